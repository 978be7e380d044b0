package synthcache

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; the coordinator calls them
// on the request path. Wrap slow sinks with hooks/async.
type Hooks interface {
	// The store held a complete artifact; no engine work was needed.
	CacheHit(fp string)

	// No artifact; the caller leads or joins a job.
	CacheMiss(fp string)

	// A caller joined an in-flight job. waiters counts every caller
	// attached to the job, the leader included.
	Coalesced(fp string, waiters int)

	// A job failed; nothing was persisted.
	// reason ∈ {"timeout", "unavailable", "failed", "invalid_output"}
	EngineFailed(fp, reason string, err error)

	// The engine succeeded but the artifact could not be persisted.
	StoreWriteFailed(fp string, err error)

	// The in-memory hot tier refused an artifact (capacity pressure).
	HotTierRejected(fp string, size int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CacheHit(string)                    {}
func (NopHooks) CacheMiss(string)                   {}
func (NopHooks) Coalesced(string, int)              {}
func (NopHooks) EngineFailed(string, string, error) {}
func (NopHooks) StoreWriteFailed(string, error)     {}
func (NopHooks) HotTierRejected(string, int)        {}
