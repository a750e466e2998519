package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBarrier_ReleasesAllPartiesTogether(t *testing.T) {
	const parties = 6
	b := NewBarrier(parties)

	var released atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < parties-1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Wait(context.Background()); err != nil {
				t.Errorf("Wait: %v", err)
				return
			}
			released.Add(1)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	if n := released.Load(); n != 0 {
		t.Fatalf("%d parties released before the last arrival", n)
	}

	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("final Wait: %v", err)
	}
	wg.Wait()
	if n := released.Load(); n != parties-1 {
		t.Errorf("released = %d, want %d", n, parties-1)
	}
}

func TestBarrier_CancelledWaiterStillCounts(t *testing.T) {
	b := NewBarrier(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait on cancelled ctx = %v, want context.Canceled", err)
	}

	// The cancelled waiter arrived, so the second party is released.
	done := make(chan error, 1)
	go func() { done <- b.Wait(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("second party deadlocked after a cancelled waiter")
	}
}

func TestBarrier_SingleParty(t *testing.T) {
	b := NewBarrier(1)
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
