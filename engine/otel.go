package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/unkn0wn-root/synthcache/engine"

type observableEngine struct {
	kind   string
	engine Engine
}

// Trace wraps e so every call runs in its own span on the global tracer
// provider.
func Trace(kind string, e Engine) Engine {
	return &observableEngine{kind: kind, engine: e}
}

func (e *observableEngine) Synthesize(ctx context.Context, in Input) (*Audio, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "synthesize "+in.Model,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("engine.kind", e.kind),
			attribute.String("engine.model", in.Model),
			attribute.Bool("engine.speaker", in.Speaker != nil),
			attribute.Int("engine.text_length", len(in.Text)),
		),
	)
	defer span.End()

	out, err := e.engine.Synthesize(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("engine.audio_bytes", len(out.Data)))
	return out, nil
}

func (e *observableEngine) Close() error { return e.engine.Close() }
