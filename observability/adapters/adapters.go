// Package adapters implements the observability fan-out layer's concrete
// adapter shapes: run-oriented (one span per trace, node spans recorded as
// events on it) and
// generation-oriented (llm/embedding spans modelled as generation
// observations, matching the Langfuse/LangSmith split referenced in the
// distilled system's adapter modules).
package adapters

import (
	"context"

	"go.opentelemetry.io/otel/codes"

	"github.com/nodeai/flowengine/observability"
	"github.com/nodeai/flowengine/telemetry"
)

// TelemetryAdapter is the always-available run-oriented adapter: it opens
// an OTel span for each trace and records every logged node span as an
// event on that span (span id, type, status); a failed node span sets the
// trace span's status to error. Node spans do not get OTel spans of their
// own. Grounded on telemetry.Tracer's Start/End/SetStatus idiom.
type TelemetryAdapter struct {
	tracer telemetry.Tracer
	spans  map[string]telemetry.Span
}

// NewTelemetryAdapter constructs a run-oriented adapter over tracer.
func NewTelemetryAdapter(tracer telemetry.Tracer) *TelemetryAdapter {
	return &TelemetryAdapter{tracer: tracer, spans: make(map[string]telemetry.Span)}
}

func (a *TelemetryAdapter) StartTrace(ctx context.Context, t *observability.Trace) {
	_, span := a.tracer.Start(ctx, "trace:"+t.WorkflowID)
	a.spans[t.ID] = span
}

func (a *TelemetryAdapter) LogSpan(_ context.Context, t *observability.Trace, s *observability.Span) {
	parent := a.spans[t.ID]
	if parent == nil {
		return
	}
	parent.AddEvent("span", "span_id", s.ID, "span_type", string(s.Type), "status", string(s.Status))
	if s.Status == observability.SpanFailed {
		parent.SetStatus(codes.Error, s.ErrorMessage)
	}
}

func (a *TelemetryAdapter) CompleteTrace(_ context.Context, t *observability.Trace) {
	span, ok := a.spans[t.ID]
	if !ok {
		return
	}
	if t.Status == observability.TraceFailed {
		span.SetStatus(codes.Error, t.ErrorMessage)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	delete(a.spans, t.ID)
}

// GenerationObservation is the generation-oriented shape for llm/embedding
// spans: tokens, model, and provider are first-class rather than buried in
// a generic event payload.
type GenerationObservation struct {
	SpanID   string
	Model    string
	Provider string
	Tokens   observability.TokenUsage
	Cost     float64
}

// GenerationSink receives generation observations and generic span
// summaries; a real binding (Langfuse-, LangSmith-shaped backend) would
// implement this against its SDK. Kept as an injected collaborator so
// GenerationAdapter itself stays backend-agnostic.
type GenerationSink interface {
	RecordGeneration(ctx context.Context, traceID string, obs GenerationObservation)
	RecordSpan(ctx context.Context, traceID string, s *observability.Span)
}

// GenerationAdapter implements the generation-oriented shape of §4.8: spans
// of type llm/embedding are modelled as generation observations; all others
// fall through to RecordSpan.
type GenerationAdapter struct {
	sink GenerationSink
}

// NewGenerationAdapter constructs a generation-oriented adapter over sink.
func NewGenerationAdapter(sink GenerationSink) *GenerationAdapter {
	return &GenerationAdapter{sink: sink}
}

func (a *GenerationAdapter) StartTrace(context.Context, *observability.Trace) {}

func (a *GenerationAdapter) LogSpan(ctx context.Context, t *observability.Trace, s *observability.Span) {
	if s.Type == observability.SpanLLM || s.Type == observability.SpanEmbedding {
		a.sink.RecordGeneration(ctx, t.ID, GenerationObservation{
			SpanID: s.ID, Model: s.Model, Provider: s.Provider, Tokens: s.Tokens, Cost: s.Cost,
		})
		return
	}
	a.sink.RecordSpan(ctx, t.ID, s)
}

func (a *GenerationAdapter) CompleteTrace(context.Context, *observability.Trace) {}

var _ observability.Adapter = (*TelemetryAdapter)(nil)
var _ observability.Adapter = (*GenerationAdapter)(nil)
