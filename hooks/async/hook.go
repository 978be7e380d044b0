// Package asynchook runs synthcache hooks on a bounded worker pool so a slow
// sink never blocks the request path. Events that do not fit the queue are
// dropped and counted.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{HitEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	coord, _ := synthcache.New(synthcache.Options{
//	    Store:  st,
//	    Engine: eng,
//	    Hooks:  hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/synthcache"
)

type Hooks struct {
	inner synthcache.Hooks
	q     chan func()
	wg    sync.WaitGroup

	mu      sync.RWMutex // guards closed against sends on q
	closed  bool
	dropped atomic.Uint64
}

var _ synthcache.Hooks = (*Hooks)(nil)

func New(inner synthcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.q)
	h.mu.Unlock()
	h.wg.Wait()
}

// Dropped returns how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) CacheHit(fp string)  { h.try(func() { h.inner.CacheHit(fp) }) }
func (h *Hooks) CacheMiss(fp string) { h.try(func() { h.inner.CacheMiss(fp) }) }
func (h *Hooks) Coalesced(fp string, n int) {
	h.try(func() { h.inner.Coalesced(fp, n) })
}
func (h *Hooks) EngineFailed(fp, reason string, err error) {
	h.try(func() { h.inner.EngineFailed(fp, reason, err) })
}
func (h *Hooks) StoreWriteFailed(fp string, err error) {
	h.try(func() { h.inner.StoreWriteFailed(fp, err) })
}
func (h *Hooks) HotTierRejected(fp string, size int) {
	h.try(func() { h.inner.HotTierRejected(fp, size) })
}
