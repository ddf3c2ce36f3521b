package domain

import "time"

// Trader is a wallet tracked on the leaderboard.
type Trader struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	Name          string    `json:"name"`
	XProfile      string    `json:"xProfile,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PnLSnapshot is a point-in-time copy of a trader's computed PnL.
type PnLSnapshot struct {
	ID           int64     `json:"id"`
	TraderID     string    `json:"traderId"`
	DailyPnL     float64   `json:"dailyPnL"`
	WeeklyPnL    float64   `json:"weeklyPnL"`
	MonthlyPnL   float64   `json:"monthlyPnL"`
	TotalPnL     float64   `json:"totalPnL"`
	TotalVolume  float64   `json:"totalVolume"`
	TradeCount   int       `json:"tradeCount"`
	WinRate      float64   `json:"winRate"`
	AvgTradeSize float64   `json:"avgTradeSize"`
	Timestamp    time.Time `json:"timestamp"`
}

// SnapshotFromResult copies the windowed figures of r into a snapshot for
// traderID.
func SnapshotFromResult(traderID string, r PnLResult) PnLSnapshot {
	return PnLSnapshot{
		TraderID:     traderID,
		DailyPnL:     r.DailyPnL,
		WeeklyPnL:    r.WeeklyPnL,
		MonthlyPnL:   r.MonthlyPnL,
		TotalPnL:     r.TotalPnL,
		TotalVolume:  r.TotalVolume,
		TradeCount:   r.TradeCount,
		WinRate:      r.WinRate,
		AvgTradeSize: r.AvgTradeSize,
		Timestamp:    r.CalculatedAt,
	}
}

// LeaderboardEntry joins a trader with its most recent snapshot. Latest is nil
// when the trader has never been snapshotted.
type LeaderboardEntry struct {
	Trader
	Latest *PnLSnapshot `json:"latestPnL"`
}

// POLPrice is a USD quote for the POL token.
type POLPrice struct {
	USD       float64   `json:"price"`
	Change24h float64   `json:"change24h"`
	Source    string    `json:"source"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"lastUpdated"`
}
