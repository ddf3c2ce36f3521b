package domain

import "time"

// Lot is an open purchase awaiting matching. Size stays positive while the lot
// is queued.
type Lot struct {
	Size      float64
	Price     float64
	Timestamp int64
}

// RealizationEvent is the PnL produced by matching part of a SELL against one
// lot. Timestamp is the SELL's timestamp.
type RealizationEvent struct {
	Timestamp int64
	PnL       float64
}

// PnLResult is the computed summary for one wallet.
type PnLResult struct {
	Wallet        string    `json:"wallet"`
	DailyPnL      float64   `json:"dailyPnL"`
	WeeklyPnL     float64   `json:"weeklyPnL"`
	MonthlyPnL    float64   `json:"monthlyPnL"`
	TotalPnL      float64   `json:"totalPnL"`
	TotalVolume   float64   `json:"totalVolume"`
	TradeCount    int       `json:"tradeCount"`
	WinRate       float64   `json:"winRate"`
	AvgTradeSize  float64   `json:"avgTradeSize"`
	UnrealizedPnL float64   `json:"unrealizedPnL"`
	RealizedPnL   float64   `json:"realizedPnL"`
	ActivityCount int       `json:"activityCount"`
	CalculatedAt  time.Time `json:"calculatedAt"`
}

// EmptyPnLResult is the result for a wallet with no activity.
func EmptyPnLResult(wallet string, now time.Time) PnLResult {
	return PnLResult{Wallet: wallet, CalculatedAt: now.UTC()}
}
