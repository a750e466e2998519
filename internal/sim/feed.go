package sim

import (
	"context"
	"math/rand"
	"time"

	"github.com/chenming7777/tradefloor/internal/domain"
)

// DefaultSymbols is the simulated market's universe.
var DefaultSymbols = []string{
	"AAPL", "GOOGL", "AMZN", "MSFT", "TSLA", "FB", "NFLX", "NVDA", "BABA", "V",
	"JPM", "JNJ", "WMT", "PG", "MA", "DIS", "HD", "PYPL", "BAC", "VZ",
	"ADBE", "CMCSA", "PFE", "KO", "PEP", "INTC", "CSCO", "MRK", "XOM", "NKE",
	"T", "ABT", "CVX", "LLY", "MCD", "MDT", "UNH", "WFC", "BMY", "COST",
	"NEE", "PM", "HON", "IBM", "TXN", "LIN", "UNP", "QCOM", "LOW", "ORCL",
	"SBUX", "RTX", "CAT", "GS", "MS", "BLK", "AMGN", "SPGI", "PLD", "TMO",
}

// FeedConfig sizes the simulated price feed.
type FeedConfig struct {
	Symbols    []string
	StartPrice int64 // cents
	MaxMove    int64 // cents, per step per symbol
	Interval   time.Duration
	Seed       int64
}

// Feed walks every symbol's price by a uniform random step each
// interval. It satisfies the floor's tick source, returning the whole
// universe as one batch per interval.
type Feed struct {
	cfg    FeedConfig
	prices map[string]int64
	rng    *rand.Rand
	timer  *time.Timer
}

// NewFeed seeds every symbol at the start price.
func NewFeed(cfg FeedConfig) *Feed {
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = DefaultSymbols
	}
	prices := make(map[string]int64, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		prices[sym] = cfg.StartPrice
	}
	return &Feed{
		cfg:    cfg,
		prices: prices,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Next waits one interval and returns a fresh tick for every symbol.
func (f *Feed) Next(ctx context.Context) ([]domain.Tick, error) {
	if f.timer == nil {
		f.timer = time.NewTimer(f.cfg.Interval)
	} else {
		f.timer.Reset(f.cfg.Interval)
	}
	select {
	case <-ctx.Done():
		f.timer.Stop()
		return nil, ctx.Err()
	case <-f.timer.C:
	}

	ticks := make([]domain.Tick, 0, len(f.cfg.Symbols))
	for _, sym := range f.cfg.Symbols {
		ticks = append(ticks, f.step(sym))
	}
	return ticks, nil
}

// step moves one symbol's price by a uniform step in [-MaxMove, MaxMove]
// cents, never below one cent.
func (f *Feed) step(sym string) domain.Tick {
	change := f.rng.Int63n(2*f.cfg.MaxMove+1) - f.cfg.MaxMove
	price := f.prices[sym] + change
	if price < 1 {
		price = 1
	}
	f.prices[sym] = price
	return domain.Tick{
		Symbol:        sym,
		Price:         price,
		PercentChange: float64(change) / float64(price) * 100,
	}
}
