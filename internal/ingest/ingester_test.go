package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

const wallet = "0x60A4C4b1E76DA34501932Dd01cCEDdf477ca5214"

type call struct{ limit, offset int }

// fakeFetcher serves pages from sizes; sizes[i] is the length of page i.
type fakeFetcher struct {
	sizes []int
	errAt int
	calls []call
}

func (f *fakeFetcher) GetActivity(_ context.Context, _ string, limit, offset int) ([]domain.Activity, error) {
	f.calls = append(f.calls, call{limit, offset})
	i := len(f.calls) - 1
	if f.errAt > 0 && i+1 == f.errAt {
		return nil, fmt.Errorf("HTTP 500: boom")
	}
	if i >= len(f.sizes) {
		return nil, nil
	}
	page := make([]domain.Activity, f.sizes[i])
	for j := range page {
		page[j] = domain.Activity{Timestamp: int64(offset + j)}
	}
	return page, nil
}

func newTestIngester(f ActivityFetcher) *Ingester {
	return NewIngester(f, Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fullPages(n int) []int {
	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = DefaultPageSize
	}
	return sizes
}

// noSleep swaps the pacer for one that records waits instead of sleeping.
func noSleep(in *Ingester, waits *[]time.Duration) {
	in.newPacer = func() *Pacer {
		clock := time.Unix(0, 0)
		return &Pacer{
			interval: DefaultDelay,
			now:      func() time.Time { return clock },
			sleep: func(_ context.Context, d time.Duration) error {
				*waits = append(*waits, d)
				clock = clock.Add(d)
				return nil
			},
		}
	}
}

func TestFetchShortFirstPageSingleRequest(t *testing.T) {
	f := &fakeFetcher{sizes: []int{120}}
	in := newTestIngester(f)
	var waits []time.Duration
	noSleep(in, &waits)

	got, err := in.Fetch(context.Background(), wallet)
	require.NoError(t, err)
	assert.Len(t, got, 120)
	assert.Equal(t, []call{{500, 0}}, f.calls)
	// the first request is paced too
	assert.Equal(t, []time.Duration{time.Second}, waits)
}

func TestFetchEmptyFirstPage(t *testing.T) {
	f := &fakeFetcher{}
	in := newTestIngester(f)
	var waits []time.Duration
	noSleep(in, &waits)

	got, err := in.Fetch(context.Background(), wallet)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, f.calls, 1)
}

func TestFetchStopsOnEmptyPageAfterFullPages(t *testing.T) {
	f := &fakeFetcher{sizes: []int{500, 500}}
	in := newTestIngester(f)
	var waits []time.Duration
	noSleep(in, &waits)

	got, err := in.Fetch(context.Background(), wallet)
	require.NoError(t, err)
	assert.Len(t, got, 1000)
	assert.Equal(t, []call{{500, 0}, {500, 500}, {500, 1000}}, f.calls)
	assert.Len(t, waits, 3)
	for _, w := range waits {
		assert.Equal(t, time.Second, w)
	}
}

func TestFetchRecordCap(t *testing.T) {
	f := &fakeFetcher{sizes: fullPages(50)}
	in := newTestIngester(f)
	var waits []time.Duration
	noSleep(in, &waits)

	got, err := in.Fetch(context.Background(), wallet)
	require.NoError(t, err)
	// 10 full pages reach exactly 5000, which is not over the cap; the 11th
	// page pushes it over and paging stops there.
	assert.Len(t, f.calls, 11)
	assert.Len(t, got, 5500)
	assert.Equal(t, 5000, f.calls[10].offset)
}

func TestFetchPreservesSourceOrder(t *testing.T) {
	f := &fakeFetcher{sizes: []int{500, 3}}
	in := newTestIngester(f)
	var waits []time.Duration
	noSleep(in, &waits)

	got, err := in.Fetch(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, got, 503)
	for i, a := range got {
		assert.Equal(t, int64(i), a.Timestamp)
	}
}

func TestFetchErrorAbortsWithoutPartialResult(t *testing.T) {
	f := &fakeFetcher{sizes: fullPages(5), errAt: 3}
	in := newTestIngester(f)
	var waits []time.Duration
	noSleep(in, &waits)

	got, err := in.Fetch(context.Background(), wallet)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, domain.ErrFetchFailed))
	assert.Contains(t, err.Error(), "HTTP 500")
	// no retry
	assert.Len(t, f.calls, 3)
}

func TestFetchHonoursCancellation(t *testing.T) {
	f := &fakeFetcher{sizes: fullPages(3)}
	in := NewIngester(f, Options{Delay: time.Hour}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := in.Fetch(ctx, wallet)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Empty(t, f.calls)
}

func TestFetchDeadlineDuringPacingIsFetchFailure(t *testing.T) {
	f := &fakeFetcher{sizes: fullPages(3)}
	in := NewIngester(f, Options{Delay: time.Hour}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := in.Fetch(ctx, wallet)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Empty(t, f.calls)
}
