// Package sloghooks logs synthcache events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/synthcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery       uint64
	MissEvery      uint64
	CoalescedEvery uint64
	// Optional fingerprint redactor. Defaults to a SHA-256 prefix; pass
	// func(s string) string { return s } to log fingerprints as-is.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr       atomic.Uint64
	missCtr      atomic.Uint64
	coalescedCtr atomic.Uint64
}

var _ synthcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(fp string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(fp)
	}
	sum := sha256.Sum256([]byte(fp))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CacheHit(fp string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("synthcache.cache_hit", "fp", h.redact(fp))
}

func (h *Hooks) CacheMiss(fp string) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("synthcache.cache_miss", "fp", h.redact(fp))
}

func (h *Hooks) Coalesced(fp string, waiters int) {
	if h.l == nil || !sample(h.opts.CoalescedEvery, &h.coalescedCtr) {
		return
	}
	h.l.Info("synthcache.coalesced",
		"fp", h.redact(fp),
		"waiters", waiters)
}

func (h *Hooks) EngineFailed(fp, reason string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("synthcache.engine_failed",
		"fp", h.redact(fp),
		"reason", reason,
		"err", err)
}

func (h *Hooks) StoreWriteFailed(fp string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("synthcache.store_write_failed",
		"fp", h.redact(fp),
		"err", err)
}

func (h *Hooks) HotTierRejected(fp string, size int) {
	if h.l == nil {
		return
	}
	h.l.Debug("synthcache.hot_tier_rejected",
		"fp", h.redact(fp),
		"size", size)
}
