package synthcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/unkn0wn-root/synthcache/engine"
	"github.com/unkn0wn-root/synthcache/store"
)

// Coordinator resolves synthesis requests against a store and runs at most
// one engine job per fingerprint. Safe for concurrent use.
type Coordinator struct {
	store        store.Store
	engine       engine.Engine
	log          Logger
	hooks        Hooks
	sem          *semaphore.Weighted
	timeout      time.Duration
	writeTimeout time.Duration
	format       string

	// base context of every job; cancelled when Close gives up waiting
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // jobs and engine calls

	mu     sync.Mutex
	jobs   map[string]*job
	closed bool
}

func newCoordinator(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("synthcache: store is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("synthcache: engine is required")
	}
	if opts.EngineInstances < 0 {
		return nil, fmt.Errorf("synthcache: engine instances must be >= 0, got %d", opts.EngineInstances)
	}

	c := &Coordinator{
		store:  opts.Store,
		engine: opts.Engine,
		jobs:   make(map[string]*job),
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.timeout = coalesce(opts.EngineTimeout, defaultEngineTimeout)
	c.writeTimeout = coalesce(opts.WriteTimeout, defaultWriteTimeout)
	c.format = coalesce(opts.Format, defaultFormat)
	c.sem = semaphore.NewWeighted(int64(coalesce(opts.EngineInstances, defaultEngineInstances)))
	c.ctx, c.cancel = context.WithCancel(context.Background())

	return c, nil
}

// Resolve returns the artifact for req, synthesizing it on a miss.
//
// If ctx ends while the caller waits, Resolve returns ctx.Err() and the job
// keeps running; its result is persisted for the next caller.
func (c *Coordinator) Resolve(ctx context.Context, req SynthesisRequest) (*Artifact, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	fp := req.Fingerprint()

	if art, err := c.lookup(ctx, fp); art != nil || err != nil {
		if art != nil {
			c.hooks.CacheHit(fp)
			c.log.Debug("cache hit", Fields{"fp": fp, "bytes": humanize.Bytes(uint64(len(art.Audio)))})
		}
		return art, err
	}
	c.hooks.CacheMiss(fp)

	j, leader, err := c.join(fp, req)
	if err != nil {
		return nil, err
	}
	if !leader {
		c.log.Debug("joined in-flight job", Fields{"fp": fp, "job": j.id, "state": j.State().String()})
	}

	select {
	case <-j.done:
	case <-ctx.Done():
		c.log.Debug("caller stopped waiting", Fields{"fp": fp, "job": j.id, "err": ctx.Err()})
		return nil, ctx.Err()
	}

	if j.err != nil {
		return nil, j.err
	}
	if leader {
		return j.art, nil
	}
	shared := *j.art
	if shared.Source == SourceEngine {
		shared.Source = SourceCoalesced
	}
	return &shared, nil
}

// InFlight returns the number of jobs currently registered.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

// Close stops accepting requests and waits for running jobs until ctx ends.
// Jobs still running then are cancelled. The engine and store are closed
// last. Safe to call multiple times.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := len(c.jobs)
	c.mu.Unlock()

	if pending > 0 {
		c.log.Info("waiting for in-flight jobs", Fields{"jobs": pending})
	}

	drained := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(drained)
	}()

	var errs []error
	select {
	case <-drained:
	case <-ctx.Done():
		c.log.Warn("abandoning in-flight jobs", Fields{"err": ctx.Err()})
		errs = append(errs, ctx.Err())
	}
	c.cancel()

	if err := c.engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close engine: %w", err))
	}
	if err := c.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// lookup returns (nil, nil) on a miss. A file that vanished between Exists
// and Read counts as a miss.
func (c *Coordinator) lookup(ctx context.Context, fp string) (*Artifact, error) {
	ok, err := c.store.Exists(ctx, fp)
	if err != nil {
		return nil, &CacheIOError{Fingerprint: fp, Op: "exists", Err: err}
	}
	if !ok {
		return nil, nil
	}
	e, err := c.store.Read(ctx, fp)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &CacheIOError{Fingerprint: fp, Op: "read", Err: err}
	}
	return &Artifact{
		Fingerprint: fp,
		Audio:       e.Audio,
		Format:      coalesce(e.Format, c.format),
		CreatedAt:   e.CreatedAt,
		Source:      SourceCache,
	}, nil
}

// join attaches the caller to the job for fp, creating and starting it when
// none is in flight.
func (c *Coordinator) join(fp string, req SynthesisRequest) (*job, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false, ErrClosed
	}
	if j, ok := c.jobs[fp]; ok {
		j.waiters++
		c.hooks.Coalesced(fp, j.waiters)
		return j, false, nil
	}

	j := newJob(uuid.NewString(), fp, req)
	j.waiters = 1
	c.jobs[fp] = j
	c.wg.Add(1)
	go c.run(j)
	return j, true, nil
}

func (c *Coordinator) run(j *job) {
	defer c.wg.Done()

	art, err := c.produce(j)

	// unregister before releasing waiters so a request arriving after a
	// failure starts a fresh job
	c.mu.Lock()
	delete(c.jobs, j.fp)
	waiters := j.waiters
	c.mu.Unlock()

	if err != nil {
		c.log.Error("synthesis failed", Fields{
			"fp": j.fp, "job": j.id, "model": j.req.Model, "speaker": speakerField(j.req.Speaker),
			"waiters": waiters, "took": time.Since(j.started).String(), "err": err,
		})
	} else {
		c.log.Info("synthesized", Fields{
			"fp": j.fp, "job": j.id, "model": j.req.Model, "source": string(art.Source),
			"bytes": humanize.Bytes(uint64(len(art.Audio))), "waiters": waiters,
			"took": time.Since(j.started).String(),
		})
	}
	j.complete(art, err)
}

func (c *Coordinator) produce(j *job) (*Artifact, error) {
	// a previous job may have persisted fp between the caller's lookup and
	// this job's registration
	art, err := c.lookup(c.ctx, j.fp)
	if err != nil || art != nil {
		return art, err
	}

	if err := c.sem.Acquire(c.ctx, 1); err != nil {
		return nil, ErrClosed
	}
	j.setState(Running)

	audio, err := c.synthesize(j)
	if err != nil {
		reason := classify(err)
		c.hooks.EngineFailed(j.fp, string(reason), err)
		return nil, &EngineError{
			Fingerprint: j.fp,
			Model:       j.req.Model,
			Speaker:     j.req.Speaker,
			Reason:      reason,
			Err:         err,
		}
	}

	e := &store.Entry{
		Fingerprint: j.fp,
		Audio:       audio.Data,
		Format:      c.format,
		CreatedAt:   time.Now().UTC(),
	}
	wctx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
	defer cancel()
	if err := c.store.Write(wctx, e); err != nil {
		c.hooks.StoreWriteFailed(j.fp, err)
		return nil, &CacheIOError{Fingerprint: j.fp, Op: "write", Err: err}
	}

	return &Artifact{
		Fingerprint: j.fp,
		Audio:       e.Audio,
		Format:      e.Format,
		CreatedAt:   e.CreatedAt,
		Source:      SourceEngine,
	}, nil
}

// synthesize runs one engine call under the per-call timeout. The engine
// slot is held until the engine returns, even when the job has already
// given up on it.
func (c *Coordinator) synthesize(j *job) (*engine.Audio, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	type result struct {
		audio *engine.Audio
		err   error
	}
	ch := make(chan result, 1)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.sem.Release(1)
		a, err := c.engine.Synthesize(ctx, engine.Input{
			Text:           j.req.Text,
			Model:          j.req.Model,
			Speaker:        j.req.Speaker,
			SplitSentences: true,
		})
		ch <- result{audio: a, err: err}
	}()

	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		r.err = ctx.Err()
	}

	switch {
	case r.err != nil:
		if ctx.Err() == context.DeadlineExceeded && !errors.Is(r.err, context.DeadlineExceeded) {
			// engine reported its own error after the deadline
			r.err = fmt.Errorf("%w: %v", context.DeadlineExceeded, r.err)
		}
		return nil, r.err
	case r.audio == nil || len(r.audio.Data) == 0:
		return nil, fmt.Errorf("%w: empty audio", engine.ErrInvalidOutput)
	case r.audio.Format != "" && r.audio.Format != c.format:
		return nil, fmt.Errorf("%w: engine produced %q, store holds %q", engine.ErrInvalidOutput, r.audio.Format, c.format)
	}
	return r.audio, nil
}

func speakerField(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
