package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chenming7777/tradefloor/internal/domain"
	"github.com/chenming7777/tradefloor/internal/obs"
	"github.com/chenming7777/tradefloor/internal/strategy"
)

// TraderActor owns one trader account exclusively. Its loop consumes
// ticks from a bounded inbound queue, runs the decision policy, and
// emits orders to its broker's fan-in channel. The account sits behind a
// single mutex that any task may take: the actor's own loop when
// placing, the broker's loop when applying a completion, the shutdown
// sweep when cancelling. Each critical section is non-blocking, so an
// escrow and its pending-order entry always change together.
type TraderActor struct {
	id      string
	policy  strategy.Policy
	orders  chan<- *domain.Order
	inbound chan domain.Tick
	logger  *slog.Logger
	metrics *obs.Metrics

	mu      sync.Mutex
	account *domain.Account
	seq     uint64
}

// NewTraderActor creates a trader with the given starting cash. The
// orders channel is shared by the broker's whole roster.
func NewTraderActor(
	id string,
	initialCash int64,
	queueCap int,
	orders chan<- *domain.Order,
	policy strategy.Policy,
	logger *slog.Logger,
	metrics *obs.Metrics,
) *TraderActor {
	return &TraderActor{
		id:      id,
		policy:  policy,
		orders:  orders,
		inbound: make(chan domain.Tick, queueCap),
		logger:  logger.With(slog.String("trader", id)),
		metrics: metrics,
		account: domain.NewAccount(id, initialCash),
	}
}

// ID returns the trader's identifier.
func (t *TraderActor) ID() string {
	return t.id
}

// Deliver enqueues a tick for the trader, blocking while the inbound
// queue is full. The broker calls this per trader, so a slow trader
// delays only its own future ticks.
func (t *TraderActor) Deliver(ctx context.Context, tick domain.Tick) error {
	select {
	case t.inbound <- tick:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes ticks until ctx is cancelled.
func (t *TraderActor) Run(ctx context.Context) {
	t.logger.Info("trader started")
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-t.inbound:
			t.handleTick(ctx, tick)
		}
	}
}

func (t *TraderActor) handleTick(ctx context.Context, tick domain.Tick) {
	dec := t.policy.Decide(tick, t.view(tick.Symbol))
	if dec.Action == strategy.Hold || dec.Quantity <= 0 {
		return
	}

	kind := dec.Action.Kind()
	price := tick.Price
	if kind.IsLimit() {
		price = dec.LimitPrice
	}

	var err error
	if kind.IsBuy() {
		_, err = t.PlaceBuy(ctx, tick.Symbol, kind, price, dec.Quantity)
	} else {
		_, err = t.PlaceSell(ctx, tick.Symbol, kind, price, dec.Quantity)
	}
	switch err {
	case nil:
	case domain.ErrInvalidOrder, domain.ErrInsufficientFunds, domain.ErrInsufficientShares:
		t.logger.Debug("order rejected locally",
			slog.String("symbol", tick.Symbol),
			slog.String("reason", err.Error()))
	default:
		t.logger.Warn("order placement failed",
			slog.String("symbol", tick.Symbol),
			slog.String("error", err.Error()))
	}
}

// view captures the policy-visible account state for one symbol.
func (t *TraderActor) view(symbol string) strategy.AccountView {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := strategy.AccountView{Cash: t.account.Cash}
	if p, ok := t.account.Positions[symbol]; ok {
		v.Held = p.Quantity
	}
	return v
}

// PlaceBuy escrows price×quantity cash, allocates the next order id,
// records the order as pending, and emits it to the broker. The escrow
// and the pending entry are written in one critical section; the channel
// send happens outside the lock and is rolled back if it fails. Returns
// ErrInvalidOrder for a non-positive price or quantity, and
// ErrInsufficientFunds when cash cannot cover the escrow; neither emits
// nor mutates anything. For limit buys price is the limit price; for
// market buys it is the latest observed price.
func (t *TraderActor) PlaceBuy(ctx context.Context, symbol string, kind domain.OrderKind, price, quantity int64) (*domain.Order, error) {
	if price <= 0 || quantity <= 0 {
		return nil, domain.ErrInvalidOrder
	}
	t.mu.Lock()
	cost := price * quantity
	if cost > t.account.Cash {
		t.mu.Unlock()
		t.metrics.OrdersRejected.Inc()
		return nil, domain.ErrInsufficientFunds
	}

	t.seq++
	o := &domain.Order{
		OrderID:      domain.MakeOrderID(t.id, t.seq),
		TraderID:     t.id,
		Symbol:       symbol,
		Kind:         kind,
		Quantity:     quantity,
		PlacedPrice:  price,
		EscrowedCash: cost,
		Status:       domain.OrderStatusCreated,
		CreatedAt:    time.Now(),
	}
	if kind.IsLimit() {
		o.LimitPrice = price
	}
	_ = t.account.ReserveBuy(o) // funds were checked above
	t.mu.Unlock()

	return t.emit(ctx, o)
}

// PlaceSell reserves quantity shares of the position, allocates the next
// order id, records the order as pending, and emits it to the broker.
// Returns ErrInvalidOrder for a non-positive quantity, and
// ErrInsufficientShares when the tradable amount is too small; neither
// emits nor mutates anything.
func (t *TraderActor) PlaceSell(ctx context.Context, symbol string, kind domain.OrderKind, price, quantity int64) (*domain.Order, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidOrder
	}
	t.mu.Lock()
	p := t.account.Positions[symbol]
	if p == nil || p.Quantity < quantity {
		t.mu.Unlock()
		t.metrics.OrdersRejected.Inc()
		return nil, domain.ErrInsufficientShares
	}

	t.seq++
	o := &domain.Order{
		OrderID:     domain.MakeOrderID(t.id, t.seq),
		TraderID:    t.id,
		Symbol:      symbol,
		Kind:        kind,
		Quantity:    quantity,
		PlacedPrice: price,
		Status:      domain.OrderStatusCreated,
		CreatedAt:   time.Now(),
	}
	if kind.IsLimit() {
		o.LimitPrice = price
	}
	_ = t.account.ReserveSell(o) // shares were checked above
	t.mu.Unlock()

	return t.emit(ctx, o)
}

// emit hands the order to the broker's fan-in channel. On failure the
// local escrow is rolled back and the pending entry removed, so the
// account is exactly as if the order had never been placed.
func (t *TraderActor) emit(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	select {
	case t.orders <- o:
		t.logger.Debug("order placed",
			slog.String("order_id", o.OrderID),
			slog.String("kind", string(o.Kind)),
			slog.String("symbol", o.Symbol),
			slog.Int64("quantity", o.Quantity))
		return o, nil
	case <-ctx.Done():
		t.mu.Lock()
		t.account.Rollback(o.OrderID)
		t.mu.Unlock()
		t.logger.Warn("order emission failed, escrow rolled back",
			slog.String("order_id", o.OrderID))
		return nil, domain.ErrOrderSinkClosed
	}
}

// PendingOrder returns a copy of the pending order with the given id.
func (t *TraderActor) PendingOrder(orderID string) (domain.Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.account.Pending[orderID]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// CompleteOrder settles the pending order with the given id at fillPrice.
// Safe to call from any goroutine; a second call for the same id returns
// ErrUnknownOrder and changes nothing.
func (t *TraderActor) CompleteOrder(orderID string, fillPrice int64) (*domain.Order, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.account.ApplyFill(orderID, fillPrice)
}

// CancelPendingOrders reverses the escrow of every pending order and
// returns the cancelled orders. Called by the shutdown sweep.
func (t *TraderActor) CancelPendingOrders() []*domain.Order {
	t.mu.Lock()
	defer t.mu.Unlock()

	cancelled := t.account.CancelPending()
	if len(cancelled) > 0 {
		t.logger.Info("pending orders cancelled", slog.Int("count", len(cancelled)))
	}
	return cancelled
}

// AccountSnapshot returns a deep copy of the trader's account.
func (t *TraderActor) AccountSnapshot() domain.Account {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.account.Clone()
}
