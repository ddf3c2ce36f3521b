// Package pnl reconstructs FIFO cost-basis positions from a wallet's trades
// and turns the realized gains into windowed totals and trading metrics.
package pnl

import (
	"sort"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// position is the open-lot queue of one outcome, oldest lot first.
type position struct {
	lots     []domain.Lot
	realized float64
}

// Ledger matches SELLs against earlier BUYs of the same position, strictly
// first-in first-out regardless of price. A Ledger is transient: build one per
// computation and call Apply once.
type Ledger struct {
	positions map[domain.PositionKey]*position
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{positions: make(map[domain.PositionKey]*position)}
}

// Apply replays the TRADE records of activities and returns the realization
// events produced per position. Records of other types and trades without a
// condition ID are ignored. Within a position, trades are replayed in
// ascending timestamp order; equal timestamps keep their input order.
//
// A SELL larger than the open lots realizes only the matched part; the excess
// is dropped and never opens a short.
func (l *Ledger) Apply(activities []domain.Activity) map[domain.PositionKey][]domain.RealizationEvent {
	grouped := make(map[domain.PositionKey][]domain.Activity)
	for _, a := range activities {
		if !a.IsTrade() || a.ConditionID == "" {
			continue
		}
		grouped[a.Key()] = append(grouped[a.Key()], a)
	}

	out := make(map[domain.PositionKey][]domain.RealizationEvent, len(grouped))
	for key, trades := range grouped {
		sort.SliceStable(trades, func(i, j int) bool {
			return trades[i].Timestamp < trades[j].Timestamp
		})

		pos := l.position(key)
		var events []domain.RealizationEvent
		for _, t := range trades {
			switch t.Side {
			case domain.SideBuy:
				pos.buy(t)
			case domain.SideSell:
				events = pos.sell(t, events)
			}
		}
		if len(events) > 0 {
			out[key] = events
		}
	}
	return out
}

func (l *Ledger) position(key domain.PositionKey) *position {
	pos, ok := l.positions[key]
	if !ok {
		pos = &position{}
		l.positions[key] = pos
	}
	return pos
}

func (p *position) buy(t domain.Activity) {
	if t.Size <= 0 {
		return
	}
	p.lots = append(p.lots, domain.Lot{Size: t.Size, Price: t.Price, Timestamp: t.Timestamp})
}

func (p *position) sell(t domain.Activity, events []domain.RealizationEvent) []domain.RealizationEvent {
	remaining := t.Size
	for remaining > 0 && len(p.lots) > 0 {
		head := &p.lots[0]
		matched := min(remaining, head.Size)

		delta := (t.Price - head.Price) * matched
		p.realized += delta
		events = append(events, domain.RealizationEvent{Timestamp: t.Timestamp, PnL: delta})

		remaining -= matched
		head.Size -= matched
		if head.Size <= 0 {
			p.lots = p.lots[1:]
		}
	}
	return events
}

// OpenLots returns a copy of the lots still queued for key.
func (l *Ledger) OpenLots(key domain.PositionKey) []domain.Lot {
	pos, ok := l.positions[key]
	if !ok || len(pos.lots) == 0 {
		return nil
	}
	return append([]domain.Lot(nil), pos.lots...)
}

// Realized returns the realized PnL accumulated for key.
func (l *Ledger) Realized(key domain.PositionKey) float64 {
	if pos, ok := l.positions[key]; ok {
		return pos.realized
	}
	return 0
}

// Flatten merges per-position events into one slice. Order across positions
// is unspecified.
func Flatten(byKey map[domain.PositionKey][]domain.RealizationEvent) []domain.RealizationEvent {
	n := 0
	for _, evs := range byKey {
		n += len(evs)
	}
	out := make([]domain.RealizationEvent, 0, n)
	for _, evs := range byKey {
		out = append(out, evs...)
	}
	return out
}
