package matching

import (
	"sync"
	"testing"
)

func TestPairLock_SerializesSameKey(t *testing.T) {
	pl := newPairLock()

	const workers = 50
	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			pl.Lock("a:b")
			counter++
			pl.Unlock("a:b")
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("expected %d serialized increments, got %d", workers, counter)
	}

	// All entries released: the table is empty again.
	pl.mu.Lock()
	n := len(pl.locks)
	pl.mu.Unlock()
	if n != 0 {
		t.Errorf("expected no live lock entries, got %d", n)
	}
}

func TestPairLock_IndependentKeys(t *testing.T) {
	pl := newPairLock()

	pl.Lock("a:b")
	done := make(chan struct{})
	go func() {
		pl.Lock("c:d")
		pl.Unlock("c:d")
		close(done)
	}()
	<-done // a different pair must not block
	pl.Unlock("a:b")
}
