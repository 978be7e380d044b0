package engine

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type limitedEngine struct {
	limiter *rate.Limiter
	engine  Engine
}

// Limit waits on l before every call. A nil limiter returns e unchanged.
func Limit(l *rate.Limiter, e Engine) Engine {
	if l == nil {
		return e
	}
	return &limitedEngine{limiter: l, engine: e}
}

func (e *limitedEngine) Synthesize(ctx context.Context, in Input) (*Audio, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		// Wait fails early, without ctx.Err(), when the next token is due
		// after the deadline
		if _, ok := ctx.Deadline(); ok && ctx.Err() == nil && e.limiter.Burst() > 0 {
			return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return nil, err
	}
	return e.engine.Synthesize(ctx, in)
}

func (e *limitedEngine) Close() error { return e.engine.Close() }
