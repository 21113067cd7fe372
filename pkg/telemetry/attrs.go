package telemetry

import (
	"fmt"
	"maps"

	"go.opentelemetry.io/otel/attribute"
)

type ActionCategory int

const (
	Building ActionCategory = iota
	Fuzzing
	Minimizing
	Coverage
	Inspecting
)

func (a ActionCategory) String() string {
	switch a {
	case Building:
		return "building"
	case Fuzzing:
		return "fuzzing"
	case Minimizing:
		return "minimizing"
	case Coverage:
		return "coverage"
	case Inspecting:
		return "inspecting"
	default:
		return "unknown"
	}
}

type SpanAttributes struct {
	ActionCategory string

	Target      optional[string] // fuzz.target
	Sanitizer   optional[string] // fuzz.sanitizer
	Triple      optional[string] // fuzz.triple
	ExitCode    optional[int]    // process.exit_code
	CrashCount  optional[int]    // fuzz.crash.count
	CorpusFiles optional[int]    // fuzz.corpus.size

	extraAttributes map[string]any
}

func NewSpanAttributes(actionCategory ActionCategory) *SpanAttributes {
	return &SpanAttributes{
		ActionCategory:  actionCategory.String(),
		extraAttributes: make(map[string]any),
	}
}

// EmptySpanAttributes can be populated later and merged into a span.
func EmptySpanAttributes() *SpanAttributes {
	return &SpanAttributes{
		extraAttributes: make(map[string]any),
	}
}

// Merge copies fields set in other that are not yet set in o. The action
// category is always taken from other when present.
func (o *SpanAttributes) Merge(other *SpanAttributes) {
	if other == nil {
		return
	}

	if other.ActionCategory != "" {
		o.ActionCategory = other.ActionCategory
	}

	mergeOptional(&o.Target, &other.Target)
	mergeOptional(&o.Sanitizer, &other.Sanitizer)
	mergeOptional(&o.Triple, &other.Triple)
	mergeOptional(&o.ExitCode, &other.ExitCode)
	mergeOptional(&o.CrashCount, &other.CrashCount)
	mergeOptional(&o.CorpusFiles, &other.CorpusFiles)

	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	for k, v := range other.extraAttributes {
		if _, exists := o.extraAttributes[k]; !exists {
			o.extraAttributes[k] = v
		}
	}
}

func (o *SpanAttributes) WithTarget(val string) *SpanAttributes {
	o.Target.Set(val)
	return o
}

func (o *SpanAttributes) WithSanitizer(val string) *SpanAttributes {
	o.Sanitizer.Set(val)
	return o
}

func (o *SpanAttributes) WithTriple(val string) *SpanAttributes {
	o.Triple.Set(val)
	return o
}

func (o *SpanAttributes) WithExitCode(val int) *SpanAttributes {
	o.ExitCode.Set(val)
	return o
}

func (o *SpanAttributes) WithCrashCount(val int) *SpanAttributes {
	o.CrashCount.Set(val)
	return o
}

func (o *SpanAttributes) WithCorpusFiles(val int) *SpanAttributes {
	o.CorpusFiles.Set(val)
	return o
}

func (o *SpanAttributes) WithExtraAttribute(key string, val any) *SpanAttributes {
	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	o.extraAttributes[key] = val
	return o
}

func (o *SpanAttributes) WithExtraAttributes(attrs map[string]any) *SpanAttributes {
	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	maps.Copy(o.extraAttributes, attrs)
	return o
}

func (o SpanAttributes) Attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if o.ActionCategory != "" {
		attrs = append(attrs, attribute.String("fuzz.action.category", o.ActionCategory))
	}
	if o.Target.set {
		attrs = append(attrs, attribute.String("fuzz.target", o.Target.val))
	}
	if o.Sanitizer.set {
		attrs = append(attrs, attribute.String("fuzz.sanitizer", o.Sanitizer.val))
	}
	if o.Triple.set {
		attrs = append(attrs, attribute.String("fuzz.triple", o.Triple.val))
	}
	if o.ExitCode.set {
		attrs = append(attrs, attribute.Int("process.exit_code", o.ExitCode.val))
	}
	if o.CrashCount.set {
		attrs = append(attrs, attribute.Int("fuzz.crash.count", o.CrashCount.val))
	}
	if o.CorpusFiles.set {
		attrs = append(attrs, attribute.Int("fuzz.corpus.size", o.CorpusFiles.val))
	}

	for k, v := range o.extraAttributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}

	return attrs
}

type EventAttributes []attribute.KeyValue

func NewEventAttributes(attributes map[string]string) EventAttributes {
	attrs := make(EventAttributes, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

type optional[T any] struct {
	val T
	set bool
}

func (o *optional[T]) Set(val T) { o.val = val; o.set = true }

func mergeOptional[T any](target, source *optional[T]) {
	if !target.set && source.set {
		target.val = source.val
		target.set = true
	}
}
