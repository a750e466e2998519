package engine

import (
	"context"
	"sync"
)

// Barrier is a one-shot counting rendezvous for a fixed number of
// parties known at construction. All parties block in Wait until the
// last one arrives.
type Barrier struct {
	mu      sync.Mutex
	parties int
	arrived int
	release chan struct{}
}

// NewBarrier creates a barrier for the given party count.
func NewBarrier(parties int) *Barrier {
	if parties < 1 {
		parties = 1
	}
	return &Barrier{
		parties: parties,
		release: make(chan struct{}),
	}
}

// Wait blocks until all parties have arrived or ctx is cancelled. A
// cancelled waiter still counts as arrived, so the remaining parties are
// not deadlocked by it.
func (b *Barrier) Wait(ctx context.Context) error {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.parties {
		close(b.release)
		b.mu.Unlock()
		return nil
	}
	release := b.release
	b.mu.Unlock()

	select {
	case <-release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
