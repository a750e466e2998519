// Package strategy defines the pluggable decision policy a trader runs
// against each price tick. The policy is glue, not engineering: the
// engine only cares that it returns a Decision.
package strategy

import (
	"math/rand"

	"github.com/chenming7777/tradefloor/internal/domain"
)

// Action is what a policy wants done in response to a tick.
type Action string

const (
	Hold       Action = "hold"
	MarketBuy  Action = "market_buy"
	LimitBuy   Action = "limit_buy"
	MarketSell Action = "market_sell"
	LimitSell  Action = "limit_sell"
)

// Kind maps the action to the corresponding order kind. Only meaningful
// for non-Hold actions.
func (a Action) Kind() domain.OrderKind {
	switch a {
	case MarketBuy:
		return domain.OrderKindMarketBuy
	case LimitBuy:
		return domain.OrderKindLimitBuy
	case MarketSell:
		return domain.OrderKindMarketSell
	default:
		return domain.OrderKindLimitSell
	}
}

// Decision is a policy's reaction to one tick.
type Decision struct {
	Action     Action
	Quantity   int64
	LimitPrice int64 // cents; only for limit actions
}

// AccountView is the read-only slice of the trader's state a policy may
// consult: its free cash and its tradable holding of the tick's symbol.
type AccountView struct {
	Cash int64
	Held int64
}

// Policy decides how a trader reacts to a price tick. Implementations
// must be self-contained: each trader owns its policy instance, so a
// policy may keep per-trader state (e.g. its own randomness source)
// without synchronization.
type Policy interface {
	Decide(tick domain.Tick, view AccountView) Decision
}

// Func adapts a plain function to the Policy interface.
type Func func(tick domain.Tick, view AccountView) Decision

// Decide implements Policy.
func (f Func) Decide(tick domain.Tick, view AccountView) Decision {
	return f(tick, view)
}

// Random is the default policy: hold half the time, otherwise trade a
// small random quantity, selling only when shares are held. Limit prices
// are quoted within 2% of the tick.
type Random struct {
	rng *rand.Rand
}

// NewRandom creates a random policy with its own seeded source.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// Decide implements Policy.
func (r *Random) Decide(tick domain.Tick, view AccountView) Decision {
	if r.rng.Intn(2) == 0 {
		return Decision{Action: Hold}
	}

	qty := int64(r.rng.Intn(5) + 1)
	limit := r.rng.Intn(2) == 0

	sellable := view.Held > 0 && r.rng.Intn(2) == 0
	if sellable {
		if qty > view.Held {
			qty = view.Held
		}
		if limit {
			return Decision{
				Action:     LimitSell,
				Quantity:   qty,
				LimitPrice: jitter(r.rng, tick.Price),
			}
		}
		return Decision{Action: MarketSell, Quantity: qty}
	}

	if tick.Price <= 0 || view.Cash < tick.Price {
		return Decision{Action: Hold}
	}
	if qty*tick.Price > view.Cash {
		qty = view.Cash / tick.Price
	}
	if limit {
		return Decision{
			Action:     LimitBuy,
			Quantity:   qty,
			LimitPrice: jitter(r.rng, tick.Price),
		}
	}
	return Decision{Action: MarketBuy, Quantity: qty}
}

// jitter returns price moved by up to ±2%, never below one cent.
func jitter(rng *rand.Rand, price int64) int64 {
	delta := price / 50
	if delta == 0 {
		delta = 1
	}
	p := price + rng.Int63n(2*delta+1) - delta
	if p < 1 {
		p = 1
	}
	return p
}
