package transport

import (
	"fmt"

	"github.com/chenming7777/tradefloor/internal/domain"
)

// Wire payloads. Prices travel as dollars; the conversion to integer
// cents happens at this boundary and nowhere else.

// PriceChangePayload describes a tick's movement since the previous one.
type PriceChangePayload struct {
	Percentage float64 `json:"percentage"`
	Absolute   float64 `json:"absolute"`
}

// TickPayload is one price update on the stocks subject.
type TickPayload struct {
	Symbol      string             `json:"symbol"`
	Price       float64            `json:"price"`
	PriceChange PriceChangePayload `json:"price_change"`
}

// Tick converts the payload to its domain form. Feed prices are raw
// floats from a random walk, so sub-cent precision is rounded rather
// than rejected.
func (p TickPayload) Tick() (domain.Tick, error) {
	cents := domain.RoundToCents(p.Price)
	if cents <= 0 {
		return domain.Tick{}, fmt.Errorf("tick for %s: non-positive price", p.Symbol)
	}
	return domain.Tick{
		Symbol:        p.Symbol,
		Price:         cents,
		PercentChange: p.PriceChange.Percentage,
	}, nil
}

// NewTickPayload converts a domain tick to its wire form.
func NewTickPayload(t domain.Tick) TickPayload {
	price := domain.CentsToDollars(t.Price)
	return TickPayload{
		Symbol: t.Symbol,
		Price:  price,
		PriceChange: PriceChangePayload{
			Percentage: t.PercentChange,
			Absolute:   price * t.PercentChange / 100,
		},
	}
}

// OrderBody is the order detail nested inside OrderPayload.
type OrderBody struct {
	OrderID     string  `json:"order_id"`
	Symbol      string  `json:"stock_symbol"`
	OrderType   string  `json:"order_type"`   // "Market" or "Limit"
	OrderAction string  `json:"order_action"` // "Buy" or "Sell"
	TargetPrice float64 `json:"target_price"`
	Quantity    int64   `json:"quantity"`
}

// OrderPayload is one order submission on the orders subject.
type OrderPayload struct {
	BrokerID string    `json:"broker_id"`
	TraderID string    `json:"trader_id"`
	Order    OrderBody `json:"order"`
}

// NewOrderPayload converts a domain order to its wire form. The target
// price is the limit price for limit orders and the placement price
// otherwise.
func NewOrderPayload(brokerID string, o *domain.Order) OrderPayload {
	target := o.PlacedPrice
	if o.Kind.IsLimit() {
		target = o.LimitPrice
	}
	action := "Sell"
	if o.Kind.IsBuy() {
		action = "Buy"
	}
	orderType := "Market"
	if o.Kind.IsLimit() {
		orderType = "Limit"
	}
	return OrderPayload{
		BrokerID: brokerID,
		TraderID: o.TraderID,
		Order: OrderBody{
			OrderID:     o.OrderID,
			Symbol:      o.Symbol,
			OrderType:   orderType,
			OrderAction: action,
			TargetPrice: domain.CentsToDollars(target),
			Quantity:    o.Quantity,
		},
	}
}

// Kind maps the wire order_type/order_action pair back to a domain kind.
func (b OrderBody) Kind() (domain.OrderKind, error) {
	switch b.OrderType + "/" + b.OrderAction {
	case "Market/Buy":
		return domain.OrderKindMarketBuy, nil
	case "Limit/Buy":
		return domain.OrderKindLimitBuy, nil
	case "Market/Sell":
		return domain.OrderKindMarketSell, nil
	case "Limit/Sell":
		return domain.OrderKindLimitSell, nil
	}
	return "", fmt.Errorf("unknown order type %q action %q", b.OrderType, b.OrderAction)
}

// StatusPayload is one completion event on the order status subject.
type StatusPayload struct {
	EventID string `json:"event_id,omitempty"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// Event converts the payload to its domain form.
func (p StatusPayload) Event() domain.StatusEvent {
	return domain.StatusEvent{
		OrderID: p.OrderID,
		Status:  domain.OrderStatus(p.Status),
	}
}
