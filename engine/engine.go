// Package engine is the contract between the coordinator and a speech
// synthesis backend.
//
// Backends register a Factory under a kind name from an init function and
// are built once at startup with Open. An Engine is expensive and stateful;
// the coordinator bounds how many calls run at once.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUnavailable means the backend could not be reached or started.
	ErrUnavailable = errors.New("engine: unavailable")

	// ErrUnknownModel means the backend does not know the requested model.
	ErrUnknownModel = errors.New("engine: unknown model")

	// ErrInvalidOutput means the backend returned something that is not audio.
	ErrInvalidOutput = errors.New("engine: invalid output")
)

type Input struct {
	Text    string
	Model   string
	Speaker *string // nil => model default voice

	// SplitSentences asks the backend to synthesise sentence by sentence and
	// join the result.
	SplitSentences bool
}

type Audio struct {
	Data   []byte
	Format string // "wav"
}

type Engine interface {
	Synthesize(ctx context.Context, in Input) (*Audio, error)
	Close() error
}

// Config carries what any backend may need at open time. Backends ignore
// fields that do not apply to them.
type Config struct {
	Binary       string        // coqui: CLI path
	URL          string        // remote: sidecar base URL
	Device       string        // "cpu", "cuda", "mps"
	DefaultModel string        // loaded at open; "" skips the check
	OpenTimeout  time.Duration // 0 => 30s
}

type Factory func(ctx context.Context, cfg Config) (Engine, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available to Open. It panics on a duplicate kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[kind]; dup {
		panic("engine: duplicate registration of " + kind)
	}
	factories[kind] = f
}

// Kinds lists registered backend kinds.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open builds the backend registered under kind.
func Open(ctx context.Context, kind string, cfg Config) (Engine, error) {
	mu.RLock()
	f, ok := factories[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("engine: unknown kind %q (registered: %v)", kind, Kinds())
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	e, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: open %s: %w", kind, err)
	}
	return e, nil
}

// IsWAV reports whether b starts with a RIFF/WAVE header.
func IsWAV(b []byte) bool {
	return len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE"))
}
