package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderKind distinguishes the four order shapes a trader can emit.
type OrderKind string

const (
	OrderKindMarketBuy  OrderKind = "market_buy"
	OrderKindLimitBuy   OrderKind = "limit_buy"
	OrderKindMarketSell OrderKind = "market_sell"
	OrderKindLimitSell  OrderKind = "limit_sell"
)

// IsBuy reports whether the kind acquires shares.
func (k OrderKind) IsBuy() bool {
	return k == OrderKindMarketBuy || k == OrderKindLimitBuy
}

// IsLimit reports whether the kind carries a limit price.
func (k OrderKind) IsLimit() bool {
	return k == OrderKindLimitBuy || k == OrderKindLimitSell
}

// OrderStatus represents the lifecycle state of an order. Filled and
// Cancelled are terminal; no operation re-enters Pending.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a buy or sell instruction emitted by one trader. The trader
// owns the order until it reaches a terminal state. The escrow fields
// record exactly what was removed from the account at placement so that
// a fill consumes it, or a cancellation restores it, exactly once.
type Order struct {
	OrderID     string
	TraderID    string
	Symbol      string
	Kind        OrderKind
	Quantity    int64
	LimitPrice  int64 // cents; 0 for market orders
	PlacedPrice int64 // cents; the reference price at decision time

	EscrowedCash int64 // cents debited at placement (buy orders)
	EscrowedQty  int64 // shares reserved at placement (sell orders)

	Status    OrderStatus
	CreatedAt time.Time
}

// PerShareEscrow returns the per-share price the escrow was computed at.
func (o *Order) PerShareEscrow() int64 {
	if o.Quantity <= 0 || o.EscrowedCash == 0 {
		return o.PlacedPrice
	}
	return o.EscrowedCash / o.Quantity
}

// orderIDSep separates the trader id from the per-trader sequence inside
// an order id, e.g. "B002-T003-O000017".
const orderIDSep = "-O"

// MakeOrderID builds an order id embedding the owning trader's id and a
// per-trader sequence number. Sequence numbers are strictly increasing
// for a trader's lifetime, so ids are unique per trader.
func MakeOrderID(traderID string, seq uint64) string {
	return fmt.Sprintf("%s%s%06d", traderID, orderIDSep, seq)
}

// TraderIDFromOrderID extracts the owning trader's id from an order id.
// Brokers use this to correlate asynchronous status events back to the
// originating trader.
func TraderIDFromOrderID(orderID string) (string, bool) {
	idx := strings.LastIndex(orderID, orderIDSep)
	if idx <= 0 {
		return "", false
	}
	return orderID[:idx], true
}

// StatusEvent is the exchange's asynchronous answer to a submitted order.
// Events may be delayed, duplicated, or lost; the shutdown sweep is the
// correctness backstop for lost events.
type StatusEvent struct {
	OrderID string
	Status  OrderStatus
}
