package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

const instrumentationName = "github.com/nodeai/flowengine"

// clueLogger delegates to goa.design/clue/log, reading formatting and debug
// settings from the context (set via log.Context and log.WithFormat/
// log.WithDebug).
type clueLogger struct{}

// NewClueLogger constructs a Logger backed by goa.design/clue/log.
func NewClueLogger() Logger { return clueLogger{} }

func (clueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, fields(msg, "", keyvals)...)
}

func (clueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, fields(msg, "", keyvals)...)
}

func (clueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	log.Warn(ctx, fields(msg, "warning", keyvals)...)
}

func (clueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, fields(msg, "", keyvals)...)
}

// fields builds the Clue field list common to every log level: the message,
// an optional severity override, then the caller's key-value pairs.
func fields(msg, severity string, keyvals []any) []log.Fielder {
	out := make([]log.Fielder, 0, 2+len(keyvals)/2)
	out = append(out, log.KV{K: "msg", V: msg})
	if severity != "" {
		out = append(out, log.KV{K: "severity", V: severity})
	}
	eachPair(keyvals, func(k string, v any) {
		out = append(out, log.KV{K: k, V: v})
	})
	return out
}

// instruments is both the Metrics and Tracer Clue implementation: metrics and
// tracing share one OTel instrumentation scope, so one type constructed once
// backs both interfaces instead of two independently-built wrappers.
type instruments struct {
	meter  metric.Meter
	tracer trace.Tracer
}

// NewClueInstruments builds the Metrics/Tracer pair backed by the global OTel
// providers. Configure them via otel.Set{Meter,Tracer}Provider, or clue's
// ConfigureOpenTelemetry helper, before engine methods run.
func NewClueInstruments() (Metrics, Tracer) {
	i := &instruments{
		meter:  otel.Meter(instrumentationName),
		tracer: otel.Tracer(instrumentationName),
	}
	return i, i
}

// NewClueMetrics builds only the Metrics half, for callers that configure
// tracing separately (or not at all).
func NewClueMetrics() Metrics {
	return &instruments{meter: otel.Meter(instrumentationName)}
}

// NewClueTracer builds only the Tracer half.
func NewClueTracer() Tracer {
	return &instruments{tracer: otel.Tracer(instrumentationName)}
}

func (i *instruments) IncCounter(name string, value float64, tags ...string) {
	counter, err := i.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(tagAttrs(tags)...))
}

func (i *instruments) RecordTimer(name string, duration time.Duration, tags ...string) {
	histogram, err := i.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	histogram.Record(context.Background(), duration.Seconds(), metric.WithAttributes(tagAttrs(tags)...))
}

// RecordGauge stands a gauge in on a histogram suffixed "_gauge": OTel has no
// synchronous gauge instrument.
func (i *instruments) RecordGauge(name string, value float64, tags ...string) {
	histogram, err := i.meter.Float64Histogram(name + "_gauge")
	if err != nil {
		return
	}
	histogram.Record(context.Background(), value, metric.WithAttributes(tagAttrs(tags)...))
}

func (i *instruments) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	newCtx, span := i.tracer.Start(ctx, name, opts...)
	return newCtx, clueSpan{span: span}
}

func (i *instruments) Span(ctx context.Context) Span {
	return clueSpan{span: trace.SpanFromContext(ctx)}
}

// clueSpan is a value type: trace.Span is already a reference-safe handle, so
// wrapping it by pointer would only add an indirection with no benefit.
type clueSpan struct{ span trace.Span }

func (s clueSpan) End(opts ...trace.SpanEndOption) { s.span.End(opts...) }

func (s clueSpan) AddEvent(name string, attrs ...any) {
	s.span.AddEvent(name, trace.WithAttributes(eventAttrs(attrs)...))
}

func (s clueSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s clueSpan) RecordError(err error, opts ...trace.EventOption) {
	s.span.RecordError(err, opts...)
}

// eachPair walks a (k1, v1, k2, v2, ...) slice, calling fn once per pair. A
// non-string key is skipped; a trailing unpaired key gets a nil value. Shared
// by the logger and span-event attribute conversion below so both bottom out
// in one place instead of repeating the same loop three times.
func eachPair(keyvals []any, fn func(k string, v any)) {
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		fn(k, v)
	}
}

// tagAttrs converts flat (k1, v1, ...) metric tag pairs into OTel attributes.
func tagAttrs(tags []string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i < len(tags); i += 2 {
		v := ""
		if i+1 < len(tags) {
			v = tags[i+1]
		}
		attrs = append(attrs, attribute.String(tags[i], v))
	}
	return attrs
}

// eventAttrs converts variadic span-event key-values into typed OTel
// attributes, falling back to an empty string for unrecognized value types.
func eventAttrs(keyvals []any) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	eachPair(keyvals, func(k string, v any) {
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
			attrs = append(attrs, attribute.String(k, ""))
		}
	})
	return attrs
}
