package executor

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestArenaExclusivePerOrder(t *testing.T) {
	arena := NewArena()

	if !arena.TryAcquire(1) {
		t.Fatal("first acquire of order 1 should succeed")
	}
	if arena.TryAcquire(1) {
		t.Fatal("second acquire of order 1 must fail while held")
	}
	if !arena.TryAcquire(2) {
		t.Fatal("acquire of a different order should succeed")
	}

	arena.Release(1)
	if !arena.TryAcquire(1) {
		t.Fatal("acquire of order 1 should succeed after release")
	}
	if got := arena.InFlight(); got != 2 {
		t.Errorf("InFlight() = %d, want 2", got)
	}
}

func TestArenaConcurrentAcquireAdmitsOne(t *testing.T) {
	arena := NewArena()
	const goroutines = 64

	var won atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if arena.TryAcquire(7) {
				won.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := won.Load(); got != 1 {
		t.Errorf("%d goroutines acquired order 7, want exactly 1", got)
	}
}
