package pnl

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

const eps = 1e-9

func trade(ts int64, side domain.Side, size, price float64, cond string, idx int) domain.Activity {
	return domain.Activity{
		Timestamp:    ts,
		Type:         domain.ActivityTrade,
		Side:         side,
		Size:         size,
		Price:        price,
		USDCSize:     size * price,
		ConditionID:  cond,
		OutcomeIndex: idx,
	}
}

func buy(ts int64, size, price float64) domain.Activity {
	return trade(ts, domain.SideBuy, size, price, "C", 0)
}

func sell(ts int64, size, price float64) domain.Activity {
	return trade(ts, domain.SideSell, size, price, "C", 0)
}

var keyC = domain.PositionKey{ConditionID: "C", OutcomeIndex: 0}

func sum(evs []domain.RealizationEvent) float64 {
	var s float64
	for _, e := range evs {
		s += e.PnL
	}
	return s
}

func TestLedgerFIFOPartialLot(t *testing.T) {
	l := NewLedger()
	got := l.Apply([]domain.Activity{
		sell(200, 4, 0.70),
		buy(100, 10, 0.50),
	})

	require.Len(t, got[keyC], 1)
	assert.InDelta(t, 0.80, got[keyC][0].PnL, eps)
	assert.Equal(t, int64(200), got[keyC][0].Timestamp)
	assert.InDelta(t, 0.80, l.Realized(keyC), eps)

	lots := l.OpenLots(keyC)
	require.Len(t, lots, 1)
	assert.InDelta(t, 6, lots[0].Size, eps)
	assert.InDelta(t, 0.50, lots[0].Price, eps)
}

func TestLedgerSellSpansLots(t *testing.T) {
	l := NewLedger()
	got := l.Apply([]domain.Activity{
		buy(100, 5, 0.40),
		buy(200, 5, 0.60),
		sell(300, 8, 0.70),
	})

	want := []domain.RealizationEvent{
		{Timestamp: 300, PnL: 1.50},
		{Timestamp: 300, PnL: 0.30},
	}
	if diff := cmp.Diff(want, got[keyC], cmpopts.EquateApprox(0, eps)); diff != "" {
		t.Errorf("realization events mismatch (-want +got):\n%s", diff)
	}

	lots := l.OpenLots(keyC)
	require.Len(t, lots, 1)
	assert.InDelta(t, 2, lots[0].Size, eps)
	assert.InDelta(t, 0.60, lots[0].Price, eps)
}

func TestLedgerFIFOIgnoresPrice(t *testing.T) {
	l := NewLedger()
	got := l.Apply([]domain.Activity{
		buy(100, 1, 0.90),
		buy(200, 1, 0.10),
		sell(300, 1, 0.50),
	})
	// the older, pricier lot goes first
	assert.InDelta(t, -0.40, sum(got[keyC]), eps)
}

func TestLedgerUnmatchedSellDropsExcess(t *testing.T) {
	l := NewLedger()
	got := l.Apply([]domain.Activity{
		buy(100, 2, 0.50),
		sell(200, 5, 0.80),
	})
	assert.InDelta(t, 0.60, sum(got[keyC]), eps)
	assert.Empty(t, l.OpenLots(keyC))

	// a later BUY is not consumed by the dropped excess
	l2 := NewLedger()
	l2.Apply([]domain.Activity{
		buy(100, 2, 0.50),
		sell(200, 5, 0.80),
		buy(300, 4, 0.30),
	})
	lots := l2.OpenLots(keyC)
	require.Len(t, lots, 1)
	assert.InDelta(t, 4, lots[0].Size, eps)
}

func TestLedgerSellWithoutLots(t *testing.T) {
	l := NewLedger()
	got := l.Apply([]domain.Activity{sell(100, 5, 0.9)})
	assert.Empty(t, got)
	assert.Zero(t, l.Realized(keyC))
}

func TestLedgerPositionIndependence(t *testing.T) {
	a := trade(100, domain.SideBuy, 10, 0.40, "A", 0)
	aSell := trade(300, domain.SideSell, 10, 0.50, "A", 0)
	other := []domain.Activity{
		trade(50, domain.SideBuy, 4, 0.10, "B", 0),
		trade(150, domain.SideSell, 4, 0.90, "B", 0),
		// same condition, other outcome
		trade(120, domain.SideBuy, 7, 0.20, "A", 1),
		trade(250, domain.SideSell, 7, 0.30, "A", 1),
	}

	alone := NewLedger().Apply([]domain.Activity{a, aSell})
	mixed := NewLedger().Apply(append([]domain.Activity{aSell, a}, other...))

	keyA := domain.PositionKey{ConditionID: "A", OutcomeIndex: 0}
	assert.InDelta(t, sum(alone[keyA]), sum(mixed[keyA]), eps)
	assert.InDelta(t, 1.0, sum(mixed[keyA]), eps)
	assert.Len(t, mixed, 3)
}

func TestLedgerFiltersNonTrades(t *testing.T) {
	redeem := buy(50, 100, 0.01)
	redeem.Type = "REDEEM"
	noCond := buy(60, 100, 0.01)
	noCond.ConditionID = ""
	weird := buy(70, 100, 0.01)
	weird.Side = "MERGE"

	l := NewLedger()
	got := l.Apply([]domain.Activity{redeem, noCond, weird, buy(100, 1, 0.5), sell(200, 1, 0.6)})
	require.Len(t, got[keyC], 1)
	assert.InDelta(t, 0.1, got[keyC][0].PnL, eps)
	assert.Empty(t, l.OpenLots(keyC))
}

func TestLedgerEqualTimestampsKeepInputOrder(t *testing.T) {
	l := NewLedger()
	got := l.Apply([]domain.Activity{
		buy(100, 1, 0.30),
		sell(100, 1, 0.50),
		buy(100, 1, 0.10),
	})
	// BUY@0.30 precedes the SELL in input order, so it is the matched lot
	assert.InDelta(t, 0.20, sum(got[keyC]), eps)
	lots := l.OpenLots(keyC)
	require.Len(t, lots, 1)
	assert.InDelta(t, 0.10, lots[0].Price, eps)
}

func TestLedgerRealizedEqualsEventSum(t *testing.T) {
	l := NewLedger()
	got := l.Apply([]domain.Activity{
		buy(1, 4, 0.25), buy(2, 4, 0.35), sell(3, 3, 0.5), sell(4, 3, 0.2), buy(5, 1, 0.9), sell(6, 5, 0.95),
	})
	assert.InDelta(t, l.Realized(keyC), sum(got[keyC]), eps)
	assert.InDelta(t, l.Realized(keyC), sum(Flatten(got)), eps)
}
