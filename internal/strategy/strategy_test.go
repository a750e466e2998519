package strategy

import (
	"testing"

	"github.com/chenming7777/tradefloor/internal/domain"
)

func TestAction_Kind(t *testing.T) {
	tests := []struct {
		action Action
		want   domain.OrderKind
	}{
		{MarketBuy, domain.OrderKindMarketBuy},
		{LimitBuy, domain.OrderKindLimitBuy},
		{MarketSell, domain.OrderKindMarketSell},
		{LimitSell, domain.OrderKindLimitSell},
	}
	for _, tt := range tests {
		if got := tt.action.Kind(); got != tt.want {
			t.Errorf("%s.Kind() = %s, want %s", tt.action, got, tt.want)
		}
	}
}

func TestRandom_DecisionsAreAffordable(t *testing.T) {
	r := NewRandom(1)
	tick := domain.Tick{Symbol: "AAPL", Price: 10000}
	view := AccountView{Cash: 25000, Held: 3}

	for i := 0; i < 1000; i++ {
		d := r.Decide(tick, view)
		switch d.Action {
		case Hold:
		case MarketBuy, LimitBuy:
			if d.Quantity < 1 {
				t.Fatalf("buy with quantity %d", d.Quantity)
			}
			if d.Quantity*tick.Price > view.Cash {
				t.Fatalf("buy of %d exceeds cash %d", d.Quantity*tick.Price, view.Cash)
			}
		case MarketSell, LimitSell:
			if d.Quantity < 1 || d.Quantity > view.Held {
				t.Fatalf("sell quantity %d outside held %d", d.Quantity, view.Held)
			}
		}
	}
}

func TestRandom_NeverSellsWithoutShares(t *testing.T) {
	r := NewRandom(2)
	tick := domain.Tick{Symbol: "AAPL", Price: 10000}
	view := AccountView{Cash: 500000, Held: 0}

	for i := 0; i < 1000; i++ {
		d := r.Decide(tick, view)
		if d.Action == MarketSell || d.Action == LimitSell {
			t.Fatalf("sell decision with no shares held")
		}
	}
}

func TestRandom_HoldsWhenBroke(t *testing.T) {
	r := NewRandom(3)
	tick := domain.Tick{Symbol: "AAPL", Price: 10000}
	view := AccountView{Cash: 50, Held: 0}

	for i := 0; i < 1000; i++ {
		if d := r.Decide(tick, view); d.Action != Hold {
			t.Fatalf("decision %s with cash below one share", d.Action)
		}
	}
}

func TestRandom_LimitPricesNearTick(t *testing.T) {
	r := NewRandom(4)
	tick := domain.Tick{Symbol: "AAPL", Price: 10000}
	view := AccountView{Cash: 500000, Held: 10}

	for i := 0; i < 1000; i++ {
		d := r.Decide(tick, view)
		if d.Action != LimitBuy && d.Action != LimitSell {
			continue
		}
		if d.LimitPrice < 9800 || d.LimitPrice > 10200 {
			t.Fatalf("limit price %d outside 2%% of 10000", d.LimitPrice)
		}
	}
}

func TestFunc_Adapts(t *testing.T) {
	p := Func(func(tick domain.Tick, view AccountView) Decision {
		return Decision{Action: MarketBuy, Quantity: 7}
	})
	d := p.Decide(domain.Tick{}, AccountView{})
	if d.Action != MarketBuy || d.Quantity != 7 {
		t.Errorf("Decision = %+v, want MarketBuy qty 7", d)
	}
}
