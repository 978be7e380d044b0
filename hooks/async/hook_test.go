package asynchook

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/unkn0wn-root/synthcache"
)

type countHooks struct {
	synthcache.NopHooks
	hits   atomic.Int32
	failed atomic.Int32
	block  chan struct{}
}

func (c *countHooks) CacheHit(string) {
	if c.block != nil {
		<-c.block
	}
	c.hits.Add(1)
}

func (c *countHooks) EngineFailed(string, string, error) { c.failed.Add(1) }

func TestDeliversAndDrainsOnClose(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 64)
	for i := 0; i < 10; i++ {
		h.CacheHit("fp")
	}
	h.EngineFailed("fp", "timeout", errors.New("x"))
	h.Close()

	if inner.hits.Load() != 10 || inner.failed.Load() != 1 {
		t.Fatalf("hits=%d failed=%d", inner.hits.Load(), inner.failed.Load())
	}
	if h.Dropped() != 0 {
		t.Fatalf("dropped=%d want 0", h.Dropped())
	}
}

func TestFullQueueDrops(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// one event occupies the worker, one fills the queue, the rest drop
	for i := 0; i < 10; i++ {
		h.CacheHit("fp")
	}
	if h.Dropped() < 8 {
		t.Fatalf("dropped=%d want >= 8", h.Dropped())
	}
	close(inner.block)
	h.Close()
}

func TestAfterCloseIsDroppedNotPanic(t *testing.T) {
	h := New(&countHooks{}, 1, 4)
	h.Close()
	h.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.CacheMiss("fp")
		}()
	}
	wg.Wait()
	if h.Dropped() != 4 {
		t.Fatalf("dropped=%d want 4", h.Dropped())
	}
}
