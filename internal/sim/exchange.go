package sim

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"

	"github.com/chenming7777/tradefloor/internal/domain"
)

// ExchangeConfig sizes the simulated exchange.
type ExchangeConfig struct {
	MinFillDelay time.Duration
	MaxFillDelay time.Duration
	DupProb      float64 // chance a fill event is emitted twice
	DropProb     float64 // chance an order is silently never filled
	QueueCap     int
	Seed         int64
}

// scheduledFill is one queued completion, ordered by due time with the
// submission sequence breaking ties.
type scheduledFill struct {
	due     time.Time
	seq     uint64
	eventID string
	orderID string
}

func fillLess(a, b scheduledFill) bool {
	if a.due.Equal(b.due) {
		return a.seq < b.seq
	}
	return a.due.Before(b.due)
}

// Exchange is a stand-in for a real market: every submitted order fills
// after a randomized delay, except the configured fraction that is
// dropped. A fraction of fills is emitted twice, which exercises the
// consumers' idempotent completion path. It satisfies the broker's
// order sink.
type Exchange struct {
	cfg    ExchangeConfig
	logger *slog.Logger

	mu    sync.Mutex
	queue *btree.BTreeG[scheduledFill]
	seq   uint64
	rng   *rand.Rand

	events chan domain.StatusEvent
}

// NewExchange creates an idle exchange. Run must be started for fills to
// flow.
func NewExchange(cfg ExchangeConfig, logger *slog.Logger) *Exchange {
	return &Exchange{
		cfg:    cfg,
		logger: logger,
		queue:  btree.NewG(2, fillLess),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		events: make(chan domain.StatusEvent, cfg.QueueCap),
	}
}

// Events is the fill event stream. Closed when Run returns.
func (e *Exchange) Events() <-chan domain.StatusEvent {
	return e.events
}

// Submit schedules the order for completion. The order itself is not
// retained; only its id travels back on the fill event.
func (e *Exchange) Submit(ctx context.Context, o *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rng.Float64() < e.cfg.DropProb {
		e.logger.Debug("order dropped by exchange", slog.String("order_id", o.OrderID))
		return nil
	}

	due := time.Now().Add(e.fillDelay())
	e.seq++
	e.queue.ReplaceOrInsert(scheduledFill{
		due:     due,
		seq:     e.seq,
		eventID: uuid.NewString(),
		orderID: o.OrderID,
	})
	if e.rng.Float64() < e.cfg.DupProb {
		e.seq++
		e.queue.ReplaceOrInsert(scheduledFill{
			due:     due.Add(e.fillDelay()),
			seq:     e.seq,
			eventID: uuid.NewString(),
			orderID: o.OrderID,
		})
	}
	return nil
}

func (e *Exchange) fillDelay() time.Duration {
	spread := e.cfg.MaxFillDelay - e.cfg.MinFillDelay
	if spread <= 0 {
		return e.cfg.MinFillDelay
	}
	return e.cfg.MinFillDelay + time.Duration(e.rng.Int63n(int64(spread)))
}

// Run emits fill events as they come due, until ctx is cancelled.
func (e *Exchange) Run(ctx context.Context) {
	defer close(e.events)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, f := range e.takeDue(now) {
				ev := domain.StatusEvent{OrderID: f.orderID, Status: domain.OrderStatusFilled}
				select {
				case e.events <- ev:
					e.logger.Debug("fill emitted",
						slog.String("event_id", f.eventID),
						slog.String("order_id", f.orderID))
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// takeDue pops every scheduled fill due at or before now.
func (e *Exchange) takeDue(now time.Time) []scheduledFill {
	e.mu.Lock()
	defer e.mu.Unlock()

	var due []scheduledFill
	for {
		f, ok := e.queue.Min()
		if !ok || f.due.After(now) {
			return due
		}
		e.queue.DeleteMin()
		due = append(due, f)
	}
}
