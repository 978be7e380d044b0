package synthcache

import (
	"time"

	"github.com/unkn0wn-root/synthcache/engine"
	"github.com/unkn0wn-root/synthcache/store"
)

// Source tells where an artifact came from.
type Source string

const (
	SourceCache     Source = "cache"     // found in the store
	SourceEngine    Source = "engine"    // this caller led the job
	SourceCoalesced Source = "coalesced" // this caller joined another caller's job
)

// Artifact is a resolved synthesis result. Audio is shared between every
// caller of the same job and must not be modified.
type Artifact struct {
	Fingerprint string
	Audio       []byte
	Format      string
	CreatedAt   time.Time
	Source      Source
}

// Options configure a Coordinator.
// Store and Engine are required; others have sensible defaults.
type Options struct {
	// Required. The coordinator owns both and closes them on Close.
	Store  store.Store
	Engine engine.Engine

	Logger          Logger        // if nil, NopLogger is used
	Hooks           Hooks         // if nil, NopHooks is used
	EngineInstances int           // concurrent engine calls; 0 => 1
	EngineTimeout   time.Duration // per engine call; 0 => 2m
	WriteTimeout    time.Duration // per store write; 0 => 30s
	Format          string        // artifact format; "" => "wav"
}

func New(opts Options) (*Coordinator, error) {
	return newCoordinator(opts)
}
