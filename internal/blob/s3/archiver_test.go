package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

type memSnapshots struct {
	rows []domain.PnLSnapshot
}

func (m *memSnapshots) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.PnLSnapshot, error) {
	var out []domain.PnLSnapshot
	for _, s := range m.rows {
		if s.Timestamp.Before(before) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSnapshots) DeleteBefore(_ context.Context, before time.Time, maxID int64) (int64, error) {
	var kept []domain.PnLSnapshot
	var n int64
	for _, s := range m.rows {
		if s.Timestamp.Before(before) && s.ID <= maxID {
			n++
			continue
		}
		kept = append(kept, s)
	}
	m.rows = kept
	return n, nil
}

type memBlobs struct {
	objects map[string][]byte
	putErr  error
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (m *memBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	return nil
}

func (m *memBlobs) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

type memAudit struct {
	events []string
}

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func snapshotsAt(start time.Time, n int) []domain.PnLSnapshot {
	out := make([]domain.PnLSnapshot, n)
	for i := range out {
		out[i] = domain.PnLSnapshot{
			ID:        int64(i + 1),
			TraderID:  "t1",
			TotalPnL:  float64(i),
			Timestamp: start.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func countLines(t *testing.T, b []byte) int {
	t.Helper()
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var s domain.PnLSnapshot
		require.NoError(t, json.Unmarshal(sc.Bytes(), &s))
		n++
	}
	return n
}

func TestArchiveSnapshotsBatches(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cutoff := start.Add(5 * time.Hour)

	store := &memSnapshots{rows: snapshotsAt(start, 8)}
	blobs := newMemBlobs()
	audit := &memAudit{}
	a := NewArchiver(blobs, blobs, store, audit, 2, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := a.ArchiveSnapshots(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// 5 old rows in batches of 2 -> three objects
	require.Len(t, blobs.objects, 3)
	assert.Equal(t, 2, countLines(t, blobs.objects["archive/snapshots/2026-01.jsonl"]))
	assert.Equal(t, 2, countLines(t, blobs.objects["archive/snapshots/2026-01.part2.jsonl"]))
	assert.Equal(t, 1, countLines(t, blobs.objects["archive/snapshots/2026-01.part3.jsonl"]))

	assert.Len(t, store.rows, 3)
	for _, s := range store.rows {
		assert.False(t, s.Timestamp.Before(cutoff))
	}
	assert.Equal(t, []string{"archive.snapshots", "archive.snapshots", "archive.snapshots"}, audit.events)
}

func TestArchiveSnapshotsSkipsTakenPaths(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &memSnapshots{rows: snapshotsAt(start, 1)}
	blobs := newMemBlobs()
	blobs.objects["archive/snapshots/2026-03.jsonl"] = []byte("old\n")

	a := NewArchiver(blobs, blobs, store, &memAudit{}, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := a.ArchiveSnapshots(context.Background(), start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, []byte("old\n"), blobs.objects["archive/snapshots/2026-03.jsonl"])
	assert.Contains(t, blobs.objects, "archive/snapshots/2026-03.part2.jsonl")
}

func TestArchiveSnapshotsNothingToDo(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &memSnapshots{rows: snapshotsAt(start, 3)}
	blobs := newMemBlobs()
	audit := &memAudit{}

	a := NewArchiver(blobs, blobs, store, audit, 10, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := a.ArchiveSnapshots(context.Background(), start)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, blobs.objects)
	assert.Empty(t, audit.events)
}

func TestArchiveSnapshotsKeepsRowsWhenUploadFails(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &memSnapshots{rows: snapshotsAt(start, 3)}
	blobs := newMemBlobs()
	blobs.putErr = errors.New("bucket gone")

	a := NewArchiver(blobs, blobs, store, &memAudit{}, 10, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := a.ArchiveSnapshots(context.Background(), start.Add(24*time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
	assert.Len(t, store.rows, 3)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("http://localhost:9000", true))
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("e2.example.com", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
}
