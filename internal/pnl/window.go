package pnl

import (
	"time"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// Rolling window lengths, anchored at the computation instant.
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
)

// Windows holds realized PnL summed over each rolling window.
type Windows struct {
	Daily   float64
	Weekly  float64
	Monthly float64
	Total   float64
}

// Classify sums events into the windows ending at now. A boundary is
// inclusive: an event exactly one day old counts as daily. Each window is
// tested on its own, so daily ⊆ weekly ⊆ monthly ⊆ total always holds.
func Classify(events []domain.RealizationEvent, now time.Time) Windows {
	n := now.Unix()
	dayAgo := n - int64(Day/time.Second)
	weekAgo := n - int64(Week/time.Second)
	monthAgo := n - int64(Month/time.Second)

	var w Windows
	for _, e := range events {
		if e.Timestamp >= dayAgo {
			w.Daily += e.PnL
		}
		if e.Timestamp >= weekAgo {
			w.Weekly += e.PnL
		}
		if e.Timestamp >= monthAgo {
			w.Monthly += e.PnL
		}
		w.Total += e.PnL
	}
	return w
}
