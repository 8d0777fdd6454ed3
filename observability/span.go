// Package observability implements the hierarchical trace/span model:
// span and trace entities, lifecycle transitions, aggregation, and
// sweep-line parallel-span detection. Grounded field-for-field and
// method-for-method on the original system's observability.py.
package observability

import "time"

// SpanStatus is the closed set of span lifecycle states. A span transitions
// only pending -> running -> {completed|failed|cancelled}; it is terminal
// once in one of the latter three and rejects further mutation.
type SpanStatus string

const (
	SpanPending   SpanStatus = "pending"
	SpanRunning   SpanStatus = "running"
	SpanCompleted SpanStatus = "completed"
	SpanFailed    SpanStatus = "failed"
	SpanCancelled SpanStatus = "cancelled"
)

// IsTerminal reports whether status is one of completed/failed/cancelled.
func (s SpanStatus) IsTerminal() bool {
	return s == SpanCompleted || s == SpanFailed || s == SpanCancelled
}

// SpanType is the closed set of span kinds.
type SpanType string

const (
	SpanWorkflowStart SpanType = "workflow_start"
	SpanNodeExecution SpanType = "node_execution"
	SpanLLM           SpanType = "llm"
	SpanEmbedding     SpanType = "embedding"
	SpanVectorSearch  SpanType = "vector_search"
	SpanReranking     SpanType = "reranking"
	SpanChunking      SpanType = "chunking"
	SpanQueryInput    SpanType = "query_input"
	SpanFinalOutput   SpanType = "final_output"
	SpanAgentToolCall SpanType = "agent_tool_call"
)

// traceFailingTypes is the set of span types whose failure also fails the
// owning trace, per §4.7.
var traceFailingTypes = map[SpanType]bool{
	SpanLLM:         true,
	SpanFinalOutput: true,
}

// TokenUsage is additive token accounting, merged (not replaced) by
// UpdateMetadata but replaced wholesale by Complete, matching the source's
// distinction between complete_span (replace) and update_span_metadata
// (merge).
type TokenUsage struct {
	Input  int
	Output int
	Total  int
}

// Span is one atomic operation within a trace.
type Span struct {
	ID           string
	TraceID      string
	ParentSpanID string
	Type         SpanType
	Name         string
	Status       SpanStatus

	StartedAt   time.Time
	CompletedAt time.Time
	DurationMs  int64

	Inputs  map[string]any
	Outputs map[string]any

	Tokens   TokenUsage
	Cost     float64
	Model    string
	Provider string

	ErrorMessage string
	ErrorKind    string
	ErrorStack   string

	APILimits  map[string]any
	RetryCount int
	Timeout    bool

	Evaluation map[string]any
	Metadata   map[string]any

	ChildSpans []string
}

// newSpan constructs a pending->running span with the given identity.
func newSpan(id, traceID, parentSpanID string, spanType SpanType, name string, inputs map[string]any, now time.Time) *Span {
	return &Span{
		ID:           id,
		TraceID:      traceID,
		ParentSpanID: parentSpanID,
		Type:         spanType,
		Name:         name,
		Status:       SpanRunning,
		StartedAt:    now,
		Inputs:       inputs,
		APILimits:    make(map[string]any),
		Metadata:     make(map[string]any),
	}
}

// complete transitions the span to completed, replacing outputs/tokens/cost
// wholesale (not merging) and computing DurationMs. A no-op (with a signal
// to the caller via the bool return) if the span is already terminal.
func (s *Span) complete(outputs map[string]any, tokens *TokenUsage, cost *float64, now time.Time) bool {
	if s.Status.IsTerminal() {
		return false
	}
	s.Status = SpanCompleted
	s.CompletedAt = now
	if outputs != nil {
		s.Outputs = outputs
	}
	if tokens != nil {
		s.Tokens = *tokens
	}
	if cost != nil {
		s.Cost = *cost
	}
	s.DurationMs = now.Sub(s.StartedAt).Milliseconds()
	return true
}

// fail transitions the span to failed, recording error fields. Reports
// whether the trace should also be failed (span type in {llm, final_output}).
func (s *Span) fail(message, kind, stack string, now time.Time) (shouldFailTrace bool, ok bool) {
	if s.Status.IsTerminal() {
		return false, false
	}
	s.Status = SpanFailed
	s.CompletedAt = now
	s.ErrorMessage = message
	s.ErrorKind = kind
	s.ErrorStack = stack
	s.DurationMs = now.Sub(s.StartedAt).Milliseconds()
	return traceFailingTypes[s.Type], true
}

// updateMetadata merges tokens additively and api_limits/metadata maps
// (last write wins per key), and replaces cost/model/provider wholesale.
func (s *Span) updateMetadata(tokens *TokenUsage, cost *float64, model, provider string, apiLimits, metadata map[string]any) {
	if tokens != nil {
		s.Tokens.Input += tokens.Input
		s.Tokens.Output += tokens.Output
		s.Tokens.Total += tokens.Total
	}
	if cost != nil {
		s.Cost = *cost
	}
	if model != "" {
		s.Model = model
	}
	if provider != "" {
		s.Provider = provider
	}
	if s.APILimits == nil {
		s.APILimits = make(map[string]any)
	}
	for k, v := range apiLimits {
		s.APILimits[k] = v
	}
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	for k, v := range metadata {
		s.Metadata[k] = v
	}
}
