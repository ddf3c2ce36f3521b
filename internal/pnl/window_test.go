package pnl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

func TestClassifyBoundariesInclusive(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	n := now.Unix()
	events := []domain.RealizationEvent{
		{Timestamp: n, PnL: 1},
		// exactly one day old
		{Timestamp: n - 86400, PnL: 2},
		// just outside daily
		{Timestamp: n - 86401, PnL: 4},
		// exactly one week old
		{Timestamp: n - 7*86400, PnL: 8},
		// exactly thirty days old
		{Timestamp: n - 30*86400, PnL: 16},
		// total only
		{Timestamp: n - 30*86400 - 1, PnL: 32},
		{Timestamp: 0, PnL: -64},
	}

	w := Classify(events, now)
	assert.InDelta(t, 3, w.Daily, eps)
	assert.InDelta(t, 15, w.Weekly, eps)
	assert.InDelta(t, 31, w.Monthly, eps)
	assert.InDelta(t, -1, w.Total, eps)
}

func TestClassifyNesting(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	var events []domain.RealizationEvent
	for i := int64(0); i < 80; i++ {
		pnl := float64(i%7) + 0.25
		if i%3 == 0 {
			pnl = -pnl * 4
		}
		events = append(events, domain.RealizationEvent{Timestamp: now.Unix() - i*43200 + i%2, PnL: pnl})
	}

	var sums Windows
	for _, e := range events {
		alone := Classify([]domain.RealizationEvent{e}, now)
		inDaily, inWeekly, inMonthly := alone.Daily != 0, alone.Weekly != 0, alone.Monthly != 0

		// membership depends on age alone
		age := now.Unix() - e.Timestamp
		assert.Equal(t, age <= 86400, inDaily, "age %d", age)
		assert.Equal(t, age <= 7*86400, inWeekly, "age %d", age)
		assert.Equal(t, age <= 30*86400, inMonthly, "age %d", age)
		assert.InDelta(t, e.PnL, alone.Total, eps)

		if inDaily {
			assert.True(t, inWeekly, "daily event missing from weekly")
		}
		if inWeekly {
			assert.True(t, inMonthly, "weekly event missing from monthly")
		}

		sums.Daily += alone.Daily
		sums.Weekly += alone.Weekly
		sums.Monthly += alone.Monthly
		sums.Total += alone.Total
	}

	w := Classify(events, now)
	assert.InDelta(t, sums.Daily, w.Daily, eps)
	assert.InDelta(t, sums.Weekly, w.Weekly, eps)
	assert.InDelta(t, sums.Monthly, w.Monthly, eps)
	assert.InDelta(t, sums.Total, w.Total, eps)
	// losses make a wider window smaller than a narrower one
	assert.Less(t, w.Weekly, w.Daily)
}

func TestClassifyEmpty(t *testing.T) {
	assert.Equal(t, Windows{}, Classify(nil, time.Now()))
}
