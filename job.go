package synthcache

import (
	"sync/atomic"
	"time"
)

// State of a synthesis job.
type State int32

const (
	Pending State = iota // registered, waiting for an engine slot
	Running              // engine call in progress
	Done                 // artifact persisted
	Failed               // nothing persisted
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// job is the single in-flight resolution of one fingerprint. Callers
// subscribe by waiting on done; art and err are written once before done is
// closed and only read after.
type job struct {
	id      string
	fp      string
	req     SynthesisRequest
	started time.Time

	state   atomic.Int32
	waiters int // guarded by Coordinator.mu

	done chan struct{}
	art  *Artifact
	err  error
}

func newJob(id, fp string, req SynthesisRequest) *job {
	j := &job{
		id:      id,
		fp:      fp,
		req:     req,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	j.state.Store(int32(Pending))
	return j
}

func (j *job) State() State { return State(j.state.Load()) }

func (j *job) setState(s State) { j.state.Store(int32(s)) }

// complete publishes the outcome and releases every waiter.
func (j *job) complete(art *Artifact, err error) {
	j.art, j.err = art, err
	if err != nil {
		j.setState(Failed)
	} else {
		j.setState(Done)
	}
	close(j.done)
}
