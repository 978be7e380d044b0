// Package tiered puts a bounded in-memory hot tier in front of a durable
// store.
//
// The durable store stays the source of truth: writes reach it first and the
// hot tier second, so the hot tier never holds an entry the durable store
// lacks. Dropping a hot entry only costs a durable read.
package tiered

import (
	"context"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/synthcache/codec"
	"github.com/unkn0wn-root/synthcache/hot"
	"github.com/unkn0wn-root/synthcache/store"
)

type Tiered struct {
	durable  store.Store
	hot      hot.Provider
	codec    codec.Codec[store.Entry]
	onReject func(fp string, size int)
}

var _ store.Store = (*Tiered)(nil)

type Config struct {
	Durable store.Store              // required
	Hot     hot.Provider             // required
	Codec   codec.Codec[store.Entry] // nil => deterministic CBOR

	// OnReject is called when the hot tier refuses an entry. Optional.
	OnReject func(fp string, size int)
}

func New(cfg Config) (*Tiered, error) {
	if cfg.Durable == nil || cfg.Hot == nil {
		return nil, errors.New("tiered store: durable and hot tiers are required")
	}
	c := cfg.Codec
	if c == nil {
		cb, err := codec.NewCBOR[store.Entry](true)
		if err != nil {
			return nil, err
		}
		c = cb
	}
	onReject := cfg.OnReject
	if onReject == nil {
		onReject = func(string, int) {}
	}
	return &Tiered{durable: cfg.Durable, hot: cfg.Hot, codec: c, onReject: onReject}, nil
}

func (t *Tiered) Exists(ctx context.Context, fp string) (bool, error) {
	if _, ok := t.fromHot(ctx, fp); ok {
		return true, nil
	}
	return t.durable.Exists(ctx, fp)
}

func (t *Tiered) Read(ctx context.Context, fp string) (*store.Entry, error) {
	if e, ok := t.fromHot(ctx, fp); ok {
		return e, nil
	}
	e, err := t.durable.Read(ctx, fp)
	if err != nil {
		return nil, err
	}
	t.promote(ctx, e)
	return e, nil
}

func (t *Tiered) Write(ctx context.Context, e *store.Entry) error {
	if err := t.durable.Write(ctx, e); err != nil {
		return err
	}
	t.promote(ctx, e)
	return nil
}

// Close closes the hot tier, then the durable store.
func (t *Tiered) Close(ctx context.Context) error {
	herr := t.hot.Close(ctx)
	derr := t.durable.Close(ctx)
	if derr != nil {
		return derr
	}
	if herr != nil {
		return fmt.Errorf("tiered store: close hot tier: %w", herr)
	}
	return nil
}

// fromHot treats any hot-tier failure or undecodable value as a miss and
// evicts the bad value.
func (t *Tiered) fromHot(ctx context.Context, fp string) (*store.Entry, bool) {
	b, ok, err := t.hot.Get(ctx, fp)
	if err != nil || !ok {
		return nil, false
	}
	e, err := t.codec.Decode(b)
	if err != nil || e.Fingerprint != fp {
		_ = t.hot.Del(ctx, fp)
		return nil, false
	}
	return &e, true
}

func (t *Tiered) promote(ctx context.Context, e *store.Entry) {
	b, err := t.codec.Encode(*e)
	if err != nil {
		return
	}
	ok, err := t.hot.Set(ctx, e.Fingerprint, b, int64(len(b)))
	if err != nil || !ok {
		t.onReject(e.Fingerprint, len(b))
	}
}
