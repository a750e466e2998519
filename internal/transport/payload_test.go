package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chenming7777/tradefloor/internal/domain"
)

func TestTickPayload_RoundTrip(t *testing.T) {
	in := domain.Tick{Symbol: "AAPL", Price: 10250, PercentChange: 1.5}

	p := NewTickPayload(in)
	require.Equal(t, "AAPL", p.Symbol)
	require.InDelta(t, 102.50, p.Price, 1e-9)

	out, err := p.Tick()
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestTickPayload_WireFormat(t *testing.T) {
	data, err := json.Marshal(NewTickPayload(domain.Tick{Symbol: "MSFT", Price: 20000}))
	require.NoError(t, err)
	require.JSONEq(t, `{
		"symbol": "MSFT",
		"price": 200,
		"price_change": {"percentage": 0, "absolute": 0}
	}`, string(data))
}

func TestTickPayload_RoundsSubCentPrecision(t *testing.T) {
	tk, err := TickPayload{Symbol: "AAPL", Price: 100.004}.Tick()
	require.NoError(t, err)
	require.Equal(t, int64(10000), tk.Price)

	tk, err = TickPayload{Symbol: "AAPL", Price: 99.4767}.Tick()
	require.NoError(t, err)
	require.Equal(t, int64(9948), tk.Price)
}

func TestTickPayload_RejectsBadPrices(t *testing.T) {
	_, err := TickPayload{Symbol: "AAPL", Price: 0}.Tick()
	require.Error(t, err, "zero price must be rejected")

	_, err = TickPayload{Symbol: "AAPL", Price: -3}.Tick()
	require.Error(t, err, "negative price must be rejected")

	_, err = TickPayload{Symbol: "AAPL", Price: 0.004}.Tick()
	require.Error(t, err, "price rounding to zero must be rejected")
}

func TestOrderPayload_MarketBuy(t *testing.T) {
	o := &domain.Order{
		OrderID:      "B001-T002-O000004",
		TraderID:     "B001-T002",
		Symbol:       "AMZN",
		Kind:         domain.OrderKindMarketBuy,
		Quantity:     5,
		PlacedPrice:  15000,
		EscrowedCash: 75000,
	}

	p := NewOrderPayload("B001", o)
	require.Equal(t, "B001", p.BrokerID)
	require.Equal(t, "B001-T002", p.TraderID)
	require.Equal(t, "Market", p.Order.OrderType)
	require.Equal(t, "Buy", p.Order.OrderAction)
	require.InDelta(t, 150.00, p.Order.TargetPrice, 1e-9)

	kind, err := p.Order.Kind()
	require.NoError(t, err)
	require.Equal(t, domain.OrderKindMarketBuy, kind)
}

func TestOrderPayload_LimitSellUsesLimitPrice(t *testing.T) {
	o := &domain.Order{
		OrderID:     "B003-T001-O000009",
		TraderID:    "B003-T001",
		Symbol:      "TSLA",
		Kind:        domain.OrderKindLimitSell,
		Quantity:    2,
		PlacedPrice: 20000,
		LimitPrice:  20400,
	}

	p := NewOrderPayload("B003", o)
	require.Equal(t, "Limit", p.Order.OrderType)
	require.Equal(t, "Sell", p.Order.OrderAction)
	require.InDelta(t, 204.00, p.Order.TargetPrice, 1e-9)

	kind, err := p.Order.Kind()
	require.NoError(t, err)
	require.Equal(t, domain.OrderKindLimitSell, kind)
}

func TestOrderBody_KindRejectsUnknown(t *testing.T) {
	_, err := OrderBody{OrderType: "Stop", OrderAction: "Buy"}.Kind()
	require.Error(t, err)
}

func TestStatusPayload_Event(t *testing.T) {
	var p StatusPayload
	err := json.Unmarshal([]byte(`{"event_id":"abc","order_id":"B001-T001-O000001","status":"filled"}`), &p)
	require.NoError(t, err)

	ev := p.Event()
	require.Equal(t, "B001-T001-O000001", ev.OrderID)
	require.Equal(t, domain.OrderStatusFilled, ev.Status)
}
