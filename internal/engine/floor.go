package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chenming7777/tradefloor/internal/domain"
	"github.com/chenming7777/tradefloor/internal/feed"
	"github.com/chenming7777/tradefloor/internal/obs"
	"github.com/chenming7777/tradefloor/internal/strategy"
)

// Params sizes the trading floor.
type Params struct {
	Brokers          int
	TradersPerBroker int
	InitialCash      int64 // cents
	QueueCapacity    int
	FeedWindow       int
}

// PolicyFactory builds a decision policy per trader, so each trader can
// carry its own RNG seed.
type PolicyFactory func(traderID string) strategy.Policy

// TickSource feeds the floor's distributor. Implementations block until
// at least one tick is available or ctx is cancelled.
type TickSource interface {
	Next(ctx context.Context) ([]domain.Tick, error)
}

// Floor wires the distributor, brokers, and traders into one runnable
// unit and owns the status router and shutdown sweep.
type Floor struct {
	params  Params
	dist    *feed.Distributor
	brokers []*Broker
	byID    map[string]*Broker
	logger  *slog.Logger
	metrics *obs.Metrics
}

// NewFloor builds the full broker and trader topology. Trader ids follow
// the "B001-T002" shape so an order id alone routes back to its owner.
func NewFloor(params Params, sink OrderSink, policies PolicyFactory, logger *slog.Logger, metrics *obs.Metrics) *Floor {
	f := &Floor{
		params:  params,
		dist:    feed.NewDistributor(params.FeedWindow),
		byID:    make(map[string]*Broker, params.Brokers),
		logger:  logger,
		metrics: metrics,
	}
	for i := 0; i < params.Brokers; i++ {
		brokerID := fmt.Sprintf("B%03d", i+1)
		orders := make(chan *domain.Order, params.QueueCapacity)
		traders := make([]*TraderActor, 0, params.TradersPerBroker)
		for j := 0; j < params.TradersPerBroker; j++ {
			traderID := fmt.Sprintf("%s-T%03d", brokerID, j+1)
			traders = append(traders, NewTraderActor(
				traderID, params.InitialCash, params.QueueCapacity,
				orders, policies(traderID), logger, metrics,
			))
		}
		b := NewBroker(brokerID, traders, f.dist.Subscribe(), orders,
			params.QueueCapacity, sink, logger, metrics)
		f.brokers = append(f.brokers, b)
		f.byID[brokerID] = b
	}
	return f
}

// Brokers returns the floor's brokers.
func (f *Floor) Brokers() []*Broker {
	return f.brokers
}

// Run operates the floor until ctx is cancelled: it releases the startup
// barrier together with every broker, pumps the tick source into the
// distributor, routes status events to their owning brokers, and on the
// way out closes the feed, drains the workers, and sweeps pending
// orders. Statuses may be nil when no exchange is wired.
func (f *Floor) Run(ctx context.Context, source TickSource, statuses <-chan domain.StatusEvent) {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	barrier := NewBarrier(len(f.brokers) + 1)
	var wg sync.WaitGroup

	for _, b := range f.brokers {
		wg.Add(1)
		go func(b *Broker) {
			defer wg.Done()
			b.Run(runCtx, barrier)
		}(b)
	}

	if statuses != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.routeStatuses(runCtx, statuses)
		}()
	}

	// The control task is the final barrier party; no trader sees a tick
	// before every broker is in its loop.
	if err := barrier.Wait(ctx); err != nil {
		cancel()
		wg.Wait()
		return
	}
	f.logger.Info("floor started",
		slog.Int("brokers", len(f.brokers)),
		slog.Int("traders", len(f.brokers)*f.params.TradersPerBroker))

	wg.Add(1)
	go func() {
		defer wg.Done()
		f.pumpFeed(runCtx, source)
	}()

	<-ctx.Done()
	f.dist.Close()
	cancel()
	wg.Wait()
	f.sweep()
}

// pumpFeed publishes ticks from the source into the distributor until
// the source fails or ctx is cancelled. A source failure stops new
// prices but leaves the rest of the floor running.
func (f *Floor) pumpFeed(ctx context.Context, source TickSource) {
	for {
		ticks, err := source.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				f.logger.Error("tick source failed", slog.String("error", err.Error()))
			}
			return
		}
		for _, tick := range ticks {
			if f.dist.Publish(tick) {
				f.metrics.TicksPublished.Inc()
			} else {
				f.metrics.TicksDeduped.Inc()
			}
		}
	}
}

// routeStatuses demultiplexes the shared status stream to the owning
// broker, keyed by the broker prefix of the trader id inside the order
// id. Unroutable events are logged and dropped.
func (f *Floor) routeStatuses(ctx context.Context, statuses <-chan domain.StatusEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-statuses:
			if !ok {
				return
			}
			b := f.brokerFor(ev.OrderID)
			if b == nil {
				f.metrics.StatusesDiscarded.Inc()
				f.logger.Warn("unroutable status event", slog.String("order_id", ev.OrderID))
				continue
			}
			select {
			case b.Statuses() <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// brokerIDOf extracts the broker prefix from a trader id such as
// "B001-T002".
func brokerIDOf(traderID string) (string, bool) {
	id, _, ok := strings.Cut(traderID, "-")
	return id, ok
}

func (f *Floor) brokerFor(orderID string) *Broker {
	traderID, ok := domain.TraderIDFromOrderID(orderID)
	if !ok {
		return nil
	}
	brokerID, ok := brokerIDOf(traderID)
	if !ok {
		return nil
	}
	return f.byID[brokerID]
}

// sweep cancels every pending order across the floor, restoring escrows
// exactly. Runs after all worker goroutines have stopped, so no fill can
// race the refund.
func (f *Floor) sweep() {
	var cancelled int
	for _, b := range f.brokers {
		for _, t := range b.Traders() {
			n := len(t.CancelPendingOrders())
			cancelled += n
			f.metrics.OrdersCancelled.Add(float64(n))
		}
	}
	f.logger.Info("shutdown sweep complete", slog.Int("cancelled", cancelled))
}

// Accounts returns a deep-copied snapshot of every trader account on the
// floor, ordered by broker then trader.
func (f *Floor) Accounts() []domain.Account {
	accounts := make([]domain.Account, 0, len(f.brokers)*f.params.TradersPerBroker)
	for _, b := range f.brokers {
		for _, t := range b.Traders() {
			accounts = append(accounts, t.AccountSnapshot())
		}
	}
	return accounts
}

// Prices returns the distributor's latest price per symbol.
func (f *Floor) Prices() map[string]int64 {
	return f.dist.LatestPrices()
}
