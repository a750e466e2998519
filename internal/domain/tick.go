package domain

// Tick is a single price update for one symbol. Ticks are ephemeral:
// produced by the feed, broadcast to brokers, consumed by traders.
type Tick struct {
	Symbol        string
	Price         int64 // cents
	PercentChange float64
}
