package synthcache

import "time"

const (
	defaultEngineInstances = 1
	defaultEngineTimeout   = 2 * time.Minute
	defaultWriteTimeout    = 30 * time.Second
	defaultFormat          = "wav"

	// DefaultModel and DefaultDevice apply when neither the request nor the
	// deployment names one.
	DefaultModel  = "tts_models/de/thorsten/vits"
	DefaultDevice = "cpu"
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
