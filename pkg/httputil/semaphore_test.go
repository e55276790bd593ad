package httputil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSemaphoreTryAcquire(t *testing.T) {
	sem := NewSemaphore(2)

	if !sem.TryAcquire() || !sem.TryAcquire() {
		t.Fatal("acquires within capacity should succeed")
	}
	if sem.TryAcquire() {
		t.Error("acquire beyond capacity should fail")
	}
	if sem.DroppedCount() != 1 {
		t.Errorf("DroppedCount = %d, want 1", sem.DroppedCount())
	}

	sem.Release()
	if !sem.TryAcquire() {
		t.Error("acquire should succeed after release")
	}
}

func TestSemaphoreAcquireRespectsContext(t *testing.T) {
	sem := NewSemaphore(1)
	if err := sem.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := sem.Acquire(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestSemaphoreConcurrentLinkScan(t *testing.T) {
	// Simulates the email link scanner bounding many body URLs.
	sem := NewSemaphore(8)
	var scanned atomic.Int32
	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(context.Background()); err != nil {
				return
			}
			scanned.Add(1)
			time.Sleep(time.Millisecond)
			sem.Release()
		}()
	}
	wg.Wait()

	if scanned.Load() != 50 {
		t.Errorf("expected all 50 links scanned, got %d", scanned.Load())
	}
	if sem.Stats().InUse != 0 {
		t.Errorf("expected 0 in use after completion, got %d", sem.Stats().InUse)
	}
}

func TestSemaphoreStats(t *testing.T) {
	sem := NewSemaphore(5)
	sem.TryAcquire()
	sem.TryAcquire()

	stats := sem.Stats()
	if stats.Capacity != 5 || stats.InUse != 2 || stats.Available != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestNewSemaphoreDefaultCapacity(t *testing.T) {
	for _, n := range []int{0, -5} {
		if sem := NewSemaphore(n); cap(sem.sem) != 100 {
			t.Errorf("capacity %d should default to 100, got %d", n, cap(sem.sem))
		}
	}
}
