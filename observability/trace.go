package observability

import (
	"sort"
	"time"
)

// TraceStatus is the closed set of trace lifecycle states.
type TraceStatus string

const (
	TraceRunning   TraceStatus = "running"
	TraceCompleted TraceStatus = "completed"
	TraceFailed    TraceStatus = "failed"
)

// Trace is the root of a span tree for one workflow execution.
type Trace struct {
	ID          string
	WorkflowID  string
	ExecutionID string
	UserID      string // optional; empty for single-tenant callers
	Query       string
	Status      TraceStatus

	StartedAt   time.Time
	CompletedAt time.Time

	TotalCost       float64
	TotalTokens     TokenUsage
	TotalDurationMs int64

	Spans     map[string]*Span
	RootSpans []string

	ErrorMessage string
}

func newTrace(id, workflowID, executionID, query string, now time.Time) *Trace {
	return &Trace{
		ID:          id,
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Query:       query,
		Status:      TraceRunning,
		StartedAt:   now,
		Spans:       make(map[string]*Span),
	}
}

// addSpan registers span in the trace's map and, if it has no parent, adds
// it to the root list. If it has a parent, the parent's ChildSpans gains
// the new span's id in insertion order.
func (t *Trace) addSpan(span *Span) {
	t.Spans[span.ID] = span
	if span.ParentSpanID == "" {
		t.RootSpans = append(t.RootSpans, span.ID)
		return
	}
	if parent, ok := t.Spans[span.ParentSpanID]; ok {
		parent.ChildSpans = append(parent.ChildSpans, span.ID)
	}
}

// fail marks the trace failed with the given message. Idempotent: failing
// an already-terminal trace is a no-op.
func (t *Trace) fail(message string, now time.Time) {
	if t.Status == TraceCompleted || t.Status == TraceFailed {
		return
	}
	t.Status = TraceFailed
	t.ErrorMessage = message
	t.CompletedAt = now
}

// complete finalises the trace: sets CompletedAt, sets status completed
// unless the trace has already failed, and recomputes aggregate totals as
// simple sums over all spans, per §4.7/§8's round-trip invariant (totals
// equal the sum over spans).
func (t *Trace) complete(now time.Time) {
	if t.Status != TraceFailed {
		t.Status = TraceCompleted
	}
	t.CompletedAt = now

	var totalCost float64
	var tokens TokenUsage
	maxCompleted := t.StartedAt
	for _, s := range t.Spans {
		totalCost += s.Cost
		tokens.Input += s.Tokens.Input
		tokens.Output += s.Tokens.Output
		tokens.Total += s.Tokens.Total
		if !s.CompletedAt.IsZero() && s.CompletedAt.After(maxCompleted) {
			maxCompleted = s.CompletedAt
		}
	}
	t.TotalCost = totalCost
	t.TotalTokens = tokens
	if maxCompleted.After(t.CompletedAt) {
		t.CompletedAt = maxCompleted
	}
	t.TotalDurationMs = t.CompletedAt.Sub(t.StartedAt).Milliseconds()
}

// SpanSequence returns spans with a non-zero StartedAt, sorted ascending by
// start time.
func (t *Trace) SpanSequence() []*Span {
	out := make([]*Span, 0, len(t.Spans))
	for _, s := range t.Spans {
		if !s.StartedAt.IsZero() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// ParallelSpans groups spans whose [StartedAt, CompletedAt] intervals
// overlap, via a linear sweep ordered by start time: a span joins the
// currently active group if it overlaps ANY member already in that group;
// otherwise it opens a new group. This can merge temporally distant spans
// transitively through a long-running overlapping member — that is the
// specified (not accidental) behaviour; see DESIGN.md's "span-parallelism
// grouping" decision. Two spans touching only at an endpoint (one
// completes exactly when the next starts) are not considered overlapping.
func (t *Trace) ParallelSpans() [][]*Span {
	spans := t.SpanSequence()
	var groups [][]*Span
	var current []*Span

	overlapsAny := func(candidate *Span, group []*Span) bool {
		for _, member := range group {
			if overlaps(candidate, member) {
				return true
			}
		}
		return false
	}

	for _, s := range spans {
		if len(current) == 0 || overlapsAny(s, current) {
			current = append(current, s)
		} else {
			groups = append(groups, current)
			current = []*Span{s}
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func overlaps(a, b *Span) bool {
	aEnd, bEnd := a.CompletedAt, b.CompletedAt
	if aEnd.IsZero() {
		aEnd = time.Now()
	}
	if bEnd.IsZero() {
		bEnd = time.Now()
	}
	return a.StartedAt.Before(bEnd) && b.StartedAt.Before(aEnd)
}
