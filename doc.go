// Package synthcache is a result cache in front of a speech synthesis engine.
//
// A request is normalized, reduced to a fingerprint and looked up in a
// durable store. On a miss the Coordinator runs exactly one engine job per
// fingerprint no matter how many callers ask for it at once, persists the
// audio and hands the same result to every caller that joined the job.
//
// Components:
//   - store.Store: content-addressed artifact store (disk, redis, tiered).
//   - engine.Engine: the synthesis backend (coqui CLI, remote sidecar).
//   - Coordinator: per-fingerprint coalescing under a global engine limit.
//
// Flow:
//
//	req, err := synthcache.Normalize(raw, defaults) // ErrInvalidRequest on empty text
//	art, err := coord.Resolve(ctx, req)              // hit, or join/lead a job
//
// Engine jobs are detached from the caller: a caller whose context ends stops
// waiting, the job finishes for everyone else and its result is persisted.
// Failures are never cached.
package synthcache
