// Package hot defines the bounded in-memory tier that store/tiered puts in
// front of a durable store.
//
// A Provider is a cache, not a store: it may drop any entry at any time and
// callers must treat a miss as "ask the durable store". Implementations MUST
// be byte-for-byte transparent: Get returns exactly the []byte previously
// passed to Set for the key.
package hot

import "context"

// Provider is a minimal byte cache bounded by cost.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. cost is the entry's weight against the capacity
	// bound and may be ignored. ok=false means the cache refused the entry
	// under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
