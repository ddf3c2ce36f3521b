package pnl

import "github.com/alanyoungcy/polyrank/internal/domain"

// WinPriceThreshold is the SELL price above which a sale counts as a win.
const WinPriceThreshold = 0.6

// Metrics are the auxiliary trading figures of a wallet.
type Metrics struct {
	TotalVolume  float64
	TradeCount   int
	WinRate      float64
	AvgTradeSize float64
}

// ComputeMetrics summarizes the TRADE records of activities, both sides.
//
// WinRate is a price heuristic, not an outcome measure: the percentage of
// SELL trades priced above WinPriceThreshold. It is 0 when there are no SELLs.
func ComputeMetrics(activities []domain.Activity) Metrics {
	var m Metrics
	var sells, wins int
	for _, a := range activities {
		if !a.IsTrade() {
			continue
		}
		m.TradeCount++
		m.TotalVolume += a.USDCSize
		if a.Side == domain.SideSell {
			sells++
			if a.Price > WinPriceThreshold {
				wins++
			}
		}
	}
	if m.TradeCount > 0 {
		m.AvgTradeSize = m.TotalVolume / float64(m.TradeCount)
	}
	if sells > 0 {
		m.WinRate = float64(wins) / float64(sells) * 100
	}
	return m
}
