package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/chenming7777/tradefloor/internal/domain"
	"github.com/chenming7777/tradefloor/internal/feed"
	"github.com/chenming7777/tradefloor/internal/obs"
)

// OrderSink is the broker's path to the exchange. The in-process
// simulator and the NATS publisher both satisfy it.
type OrderSink interface {
	Submit(ctx context.Context, o *domain.Order) error
}

// Broker supervises a roster of traders. Its loop multiplexes three
// inputs: the shared price feed, the roster's fan-in order channel, and
// the status events routed to it by the floor. Orders are forwarded to
// the sink; Filled statuses are settled on the owning trader's account.
type Broker struct {
	id       string
	traders  []*TraderActor
	byID     map[string]*TraderActor
	sub      *feed.Subscriber
	orders   chan *domain.Order
	statuses chan domain.StatusEvent
	sink     OrderSink
	prices   map[string]int64
	logger   *slog.Logger
	metrics  *obs.Metrics
}

// NewBroker creates a broker over the given roster. All traders in the
// roster must already share the orders channel.
func NewBroker(
	id string,
	traders []*TraderActor,
	sub *feed.Subscriber,
	orders chan *domain.Order,
	queueCap int,
	sink OrderSink,
	logger *slog.Logger,
	metrics *obs.Metrics,
) *Broker {
	byID := make(map[string]*TraderActor, len(traders))
	for _, t := range traders {
		byID[t.ID()] = t
	}
	return &Broker{
		id:       id,
		traders:  traders,
		byID:     byID,
		sub:      sub,
		orders:   orders,
		statuses: make(chan domain.StatusEvent, queueCap),
		sink:     sink,
		prices:   make(map[string]int64),
		logger:   logger.With(slog.String("broker", id)),
		metrics:  metrics,
	}
}

// ID returns the broker's identifier.
func (b *Broker) ID() string {
	return b.id
}

// Traders returns the broker's roster.
func (b *Broker) Traders() []*TraderActor {
	return b.traders
}

// Statuses is the channel the floor routes this broker's status events to.
func (b *Broker) Statuses() chan<- domain.StatusEvent {
	return b.statuses
}

type tickDelivery struct {
	tick   domain.Tick
	lagged *feed.LaggedError
}

// Run blocks on the barrier, starts the roster, and serves the broker
// loop until ctx is cancelled. The roster is drained before Run returns.
func (b *Broker) Run(ctx context.Context, barrier *Barrier) {
	if err := barrier.Wait(ctx); err != nil {
		return
	}
	b.logger.Info("broker started", slog.Int("traders", len(b.traders)))

	var wg sync.WaitGroup
	defer wg.Wait()

	for _, t := range b.traders {
		wg.Add(1)
		go func(t *TraderActor) {
			defer wg.Done()
			t.Run(ctx)
		}(t)
	}

	ticks := make(chan tickDelivery)
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.pumpTicks(ctx, ticks)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			b.handleTick(ctx, d)
		case o := <-b.orders:
			b.forward(ctx, o)
		case ev := <-b.statuses:
			b.applyStatus(ev)
		}
	}
}

// pumpTicks drains the broker's feed subscription into the main loop.
// A lagged subscription is surfaced as a delivery with no tick so the
// loop can log the drop count before continuing from the newest price.
func (b *Broker) pumpTicks(ctx context.Context, out chan<- tickDelivery) {
	defer close(out)
	for {
		tick, err := b.sub.Recv(ctx)
		if err != nil {
			if lag, ok := err.(*feed.LaggedError); ok {
				select {
				case out <- tickDelivery{lagged: lag}:
					continue
				case <-ctx.Done():
					return
				}
			}
			return
		}
		select {
		case out <- tickDelivery{tick: tick}:
		case <-ctx.Done():
			return
		}
	}
}

func (b *Broker) handleTick(ctx context.Context, d tickDelivery) {
	if d.lagged != nil {
		b.metrics.TicksLaggedDrops.Add(float64(d.lagged.Dropped))
		b.logger.Warn("feed lagged, resuming from newest price",
			slog.Uint64("dropped", d.lagged.Dropped))
		return
	}
	b.prices[d.tick.Symbol] = d.tick.Price
	for _, t := range b.traders {
		if err := t.Deliver(ctx, d.tick); err != nil {
			return
		}
	}
}

func (b *Broker) forward(ctx context.Context, o *domain.Order) {
	b.logger.Info("forwarding order",
		slog.String("order_id", o.OrderID),
		slog.String("kind", string(o.Kind)),
		slog.String("symbol", o.Symbol),
		slog.Int64("quantity", o.Quantity))
	if err := b.sink.Submit(ctx, o); err != nil {
		b.logger.Error("order submission failed",
			slog.String("order_id", o.OrderID),
			slog.String("error", err.Error()))
		return
	}
	b.metrics.OrdersSubmitted.Inc()
}

// applyStatus settles a Filled event on the owning trader. Everything
// else (unknown order ids, duplicate fills, fills for orders the sweep
// already cancelled) is logged and discarded; the account is untouched.
func (b *Broker) applyStatus(ev domain.StatusEvent) {
	if ev.Status != domain.OrderStatusFilled {
		return
	}
	traderID, ok := domain.TraderIDFromOrderID(ev.OrderID)
	if !ok {
		b.metrics.StatusesDiscarded.Inc()
		b.logger.Warn("status for malformed order id", slog.String("order_id", ev.OrderID))
		return
	}
	t, ok := b.byID[traderID]
	if !ok {
		b.metrics.StatusesDiscarded.Inc()
		b.logger.Warn("status for unknown trader",
			slog.String("order_id", ev.OrderID),
			slog.String("trader", traderID))
		return
	}
	o, ok := t.PendingOrder(ev.OrderID)
	if !ok {
		b.metrics.StatusesDiscarded.Inc()
		b.logger.Warn("status for non-pending order, discarded",
			slog.String("order_id", ev.OrderID))
		return
	}
	if _, err := t.CompleteOrder(ev.OrderID, b.fillPrice(&o)); err != nil {
		b.metrics.StatusesDiscarded.Inc()
		b.logger.Warn("completion raced and lost, discarded",
			slog.String("order_id", ev.OrderID))
		return
	}
	b.metrics.FillsApplied.Inc()
	b.logger.Info("order filled", slog.String("order_id", ev.OrderID))
}

// fillPrice decides what a Filled status settles at. Buys settle at the
// per-share escrow, consuming the reservation exactly. Sells settle at
// the broker's latest cached price for the symbol, falling back to the
// limit price and then the price observed at placement.
func (b *Broker) fillPrice(o *domain.Order) int64 {
	if o.Kind.IsBuy() {
		return o.PerShareEscrow()
	}
	if p, ok := b.prices[o.Symbol]; ok && p > 0 {
		return p
	}
	if o.LimitPrice > 0 {
		return o.LimitPrice
	}
	return o.PlacedPrice
}
