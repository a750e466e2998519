// Package feed fans price ticks out to broker subscribers through a
// bounded retained window. Each subscriber reads through its own cursor;
// a subscriber that falls behind the window receives an explicit lag
// signal with the dropped count instead of silently skipping ticks.
package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/chenming7777/tradefloor/internal/domain"
)

// LaggedError signals that a subscriber's cursor fell outside the
// retained window. Dropped is the number of ticks skipped past; the next
// read returns the newest retained tick. It is a resumable condition,
// not a terminating error.
type LaggedError struct {
	Dropped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged, dropped %d ticks", e.Dropped)
}

// Distributor deduplicates ticks by symbol/price and re-publishes them on
// a multi-subscriber ring. Publishing never blocks: slow subscribers lag,
// they do not exert backpressure on the feed.
type Distributor struct {
	mu        sync.Mutex
	window    []domain.Tick
	next      uint64 // sequence number of the next tick to write
	lastPrice map[string]int64
	notify    chan struct{} // closed and replaced on every publish
	closed    bool
}

// NewDistributor creates a distributor retaining the last window ticks.
func NewDistributor(window int) *Distributor {
	if window <= 0 {
		window = 1
	}
	return &Distributor{
		window:    make([]domain.Tick, window),
		lastPrice: make(map[string]int64),
		notify:    make(chan struct{}),
	}
}

// Publish appends a tick to the retained window and wakes all waiting
// subscribers. A tick whose price equals the last published price for its
// symbol is dropped before broadcast; Publish reports whether the tick
// was actually published.
func (d *Distributor) Publish(t domain.Tick) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	if last, ok := d.lastPrice[t.Symbol]; ok && last == t.Price {
		return false
	}
	d.lastPrice[t.Symbol] = t.Price

	d.window[d.next%uint64(len(d.window))] = t
	d.next++

	close(d.notify)
	d.notify = make(chan struct{})
	return true
}

// LatestPrices returns a copy of the last published price per symbol.
func (d *Distributor) LatestPrices() map[string]int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	prices := make(map[string]int64, len(d.lastPrice))
	for sym, p := range d.lastPrice {
		prices[sym] = p
	}
	return prices
}

// Close stops the distributor. Subscribers drain what the window still
// retains for them and then receive ErrFeedClosed.
func (d *Distributor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	close(d.notify)
}

// Subscribe registers a new subscriber positioned at the next published
// tick.
func (d *Distributor) Subscribe() *Subscriber {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &Subscriber{d: d, cursor: d.next}
}

// Subscriber is a single reader's cursor into the distributor's window.
// Not safe for concurrent use by multiple goroutines.
type Subscriber struct {
	d      *Distributor
	cursor uint64
}

// Recv returns the next retained tick, blocking while none is available.
// When the cursor has fallen outside the retained window it returns a
// *LaggedError and repositions the cursor at the newest retained tick;
// the caller logs the drop and keeps reading. Returns ErrFeedClosed once
// the distributor is closed and drained, or ctx.Err() on cancellation.
func (s *Subscriber) Recv(ctx context.Context) (domain.Tick, error) {
	for {
		s.d.mu.Lock()

		size := uint64(len(s.d.window))
		oldest := uint64(0)
		if s.d.next > size {
			oldest = s.d.next - size
		}

		if s.cursor < oldest {
			// Everything up to the newest retained tick is gone; report
			// the gap once and resume from the newest entry.
			newest := s.d.next - 1
			dropped := newest - s.cursor
			s.cursor = newest
			s.d.mu.Unlock()
			return domain.Tick{}, &LaggedError{Dropped: dropped}
		}

		if s.cursor < s.d.next {
			t := s.d.window[s.cursor%size]
			s.cursor++
			s.d.mu.Unlock()
			return t, nil
		}

		if s.d.closed {
			s.d.mu.Unlock()
			return domain.Tick{}, domain.ErrFeedClosed
		}

		wake := s.d.notify
		s.d.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return domain.Tick{}, ctx.Err()
		}
	}
}
