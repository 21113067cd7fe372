package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

type Tracer interface {
	Start()
	WithAttributes(attributes *SpanAttributes) Tracer
	AddEvent(name string, attributes EventAttributes)
	SetStatus(code codes.Code, message string)
	Spawn(spanName string) Tracer
	Export() string
	End()
}

// TracerKey is the context key of the current Tracer.
type TracerKey struct{}

// FromContext returns the tracer stored under TracerKey, or a DummyTracer.
func FromContext(ctx context.Context) Tracer {
	if tracer, ok := ctx.Value(TracerKey{}).(Tracer); ok {
		return tracer
	}
	return &DummyTracer{}
}

// TracerFactory hands out tracers backed by Telemetry, or DummyTracers when
// telemetry is disabled.
type TracerFactory struct {
	tracer trace.Tracer
}

type TracerFactoryParams struct {
	fx.In
	Telemetry Telemetry `optional:"true"`
}

func NewTracerFactory(p TracerFactoryParams) *TracerFactory {
	f := &TracerFactory{}
	if p.Telemetry != nil {
		f.tracer = p.Telemetry.GetTracer()
	}
	return f
}

func (t *TracerFactory) enabled() bool {
	return t != nil && t.tracer != nil
}

// NewTracer starts spanName as a root span.
func (t *TracerFactory) NewTracer(ctx context.Context, spanName string) Tracer {
	return t.NewTracerSpawnedFrom(ctx, "", spanName)
}

// NewTracerSpawnedFrom starts spanName as a child of an exported parent
// (MOVE_FUZZ_TRACE_CONTEXT), or as a root span when exported is empty or
// malformed.
func (t *TracerFactory) NewTracerSpawnedFrom(ctx context.Context, exported string, spanName string) Tracer {
	if !t.enabled() {
		return &DummyTracer{}
	}
	if exported != "" {
		if parent, err := NewTelemetryTracerFrom(ctx, t.tracer, exported); err == nil {
			return parent.Spawn(spanName)
		}
	}
	return NewTelemetryTracer(ctx, t.tracer, spanName)
}

// DummyTracer records nothing.
type DummyTracer struct{}

func (t *DummyTracer) Start()                                           {}
func (t *DummyTracer) WithAttributes(attributes *SpanAttributes) Tracer { return t }
func (t *DummyTracer) AddEvent(name string, attributes EventAttributes) {}
func (t *DummyTracer) SetStatus(code codes.Code, message string)        {}
func (t *DummyTracer) Spawn(spanName string) Tracer                     { return t }
func (t *DummyTracer) Export() string                                   { return "" }
func (t *DummyTracer) End()                                             {}
