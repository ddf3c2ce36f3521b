package domain

// ActivityType classifies a wallet activity record. Only TRADE records feed
// the ledger and the trading metrics.
type ActivityType string

const (
	ActivityTrade ActivityType = "TRADE"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Activity is one normalized record from the upstream activity feed.
// Timestamp is UTC epoch seconds.
type Activity struct {
	ProxyWallet  string
	Timestamp    int64
	Type         ActivityType
	Side         Side
	Size         float64
	USDCSize     float64
	Price        float64
	Title        string
	Outcome      string
	ConditionID  string
	OutcomeIndex int
}

// IsTrade reports whether the record is a TRADE.
func (a Activity) IsTrade() bool {
	return a.Type == ActivityTrade
}

// PositionKey identifies one outcome of one market. Positions with different
// keys never interact.
type PositionKey struct {
	ConditionID  string
	OutcomeIndex int
}

// Key returns the position key the activity belongs to.
func (a Activity) Key() PositionKey {
	return PositionKey{ConditionID: a.ConditionID, OutcomeIndex: a.OutcomeIndex}
}
