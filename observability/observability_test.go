package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeai/flowengine/observability"
)

func TestSpanLifecycle_CompleteComputesDuration(t *testing.T) {
	m := observability.NewManager()
	tr := m.StartTrace(context.Background(), "wf-1", "exec-1", "query")
	s := m.StartSpan(tr.ID, observability.SpanNodeExecution, "node-a", "", nil)
	require.NotNil(t, s)

	time.Sleep(5 * time.Millisecond)
	m.CompleteSpan(context.Background(), tr.ID, s.ID, map[string]any{"ok": true}, nil, nil)

	got, _ := m.GetTrace(tr.ID)
	span := got.Spans[s.ID]
	assert.Equal(t, observability.SpanCompleted, span.Status)
	assert.Equal(t, span.CompletedAt.Sub(span.StartedAt).Milliseconds(), span.DurationMs)
}

func TestCompleteSpan_IdempotentNoOp(t *testing.T) {
	m := observability.NewManager()
	tr := m.StartTrace(context.Background(), "wf-1", "exec-1", "")
	s := m.StartSpan(tr.ID, observability.SpanLLM, "llm-call", "", nil)

	cost1 := 0.5
	m.CompleteSpan(context.Background(), tr.ID, s.ID, nil, nil, &cost1)
	cost2 := 99.0
	m.CompleteSpan(context.Background(), tr.ID, s.ID, nil, nil, &cost2)

	got, _ := m.GetTrace(tr.ID)
	assert.Equal(t, 0.5, got.Spans[s.ID].Cost)
}

func TestFailSpan_FailsTraceForTerminalTypes(t *testing.T) {
	m := observability.NewManager()
	tr := m.StartTrace(context.Background(), "wf-1", "exec-1", "")
	s := m.StartSpan(tr.ID, observability.SpanLLM, "llm-call", "", nil)

	m.FailSpan(context.Background(), tr.ID, s.ID, "boom", "provider_error", "")

	got, _ := m.GetTrace(tr.ID)
	assert.Equal(t, observability.TraceFailed, got.Status)
	assert.Equal(t, observability.SpanFailed, got.Spans[s.ID].Status)
}

func TestFailSpan_DoesNotFailTraceForNonTerminalTypes(t *testing.T) {
	m := observability.NewManager()
	tr := m.StartTrace(context.Background(), "wf-1", "exec-1", "")
	s := m.StartSpan(tr.ID, observability.SpanNodeExecution, "node-a", "", nil)

	m.FailSpan(context.Background(), tr.ID, s.ID, "boom", "node_error", "")

	got, _ := m.GetTrace(tr.ID)
	assert.Equal(t, observability.TraceRunning, got.Status)
}

func TestUpdateSpanMetadata_MergesTokensReplacesCost(t *testing.T) {
	m := observability.NewManager()
	tr := m.StartTrace(context.Background(), "wf-1", "exec-1", "")
	s := m.StartSpan(tr.ID, observability.SpanLLM, "llm-call", "", nil)

	m.UpdateSpanMetadata(tr.ID, s.ID, &observability.TokenUsage{Input: 10, Output: 5, Total: 15}, floatPtr(0.1), "gpt-4o", "openai", nil, nil)
	m.UpdateSpanMetadata(tr.ID, s.ID, &observability.TokenUsage{Input: 3, Output: 1, Total: 4}, floatPtr(0.2), "", "", nil, nil)

	got, _ := m.GetTrace(tr.ID)
	span := got.Spans[s.ID]
	assert.Equal(t, 13, span.Tokens.Input)
	assert.Equal(t, 6, span.Tokens.Output)
	assert.Equal(t, 0.2, span.Cost)
	assert.Equal(t, "gpt-4o", span.Model)
}

func floatPtr(f float64) *float64 { return &f }

func TestChildSpans_PreserveInsertionOrder(t *testing.T) {
	m := observability.NewManager()
	tr := m.StartTrace(context.Background(), "wf-1", "exec-1", "")
	root := m.StartSpan(tr.ID, observability.SpanWorkflowStart, "root", "", nil)
	c1 := m.StartSpan(tr.ID, observability.SpanNodeExecution, "c1", root.ID, nil)
	c2 := m.StartSpan(tr.ID, observability.SpanNodeExecution, "c2", root.ID, nil)

	got, _ := m.GetTrace(tr.ID)
	assert.Equal(t, []string{c1.ID, c2.ID}, got.Spans[root.ID].ChildSpans)
}

func TestCompleteTrace_TotalsSumSpans(t *testing.T) {
	m := observability.NewManager()
	tr := m.StartTrace(context.Background(), "wf-1", "exec-1", "")
	s1 := m.StartSpan(tr.ID, observability.SpanLLM, "s1", "", nil)
	s2 := m.StartSpan(tr.ID, observability.SpanEmbedding, "s2", "", nil)

	c1, c2 := 1.5, 2.5
	m.CompleteSpan(context.Background(), tr.ID, s1.ID, nil, &observability.TokenUsage{Input: 10, Total: 10}, &c1)
	m.CompleteSpan(context.Background(), tr.ID, s2.ID, nil, &observability.TokenUsage{Input: 5, Total: 5}, &c2)

	completed := m.CompleteTrace(context.Background(), tr.ID)
	assert.Equal(t, 4.0, completed.TotalCost)
	assert.Equal(t, 15, completed.TotalTokens.Total)
	assert.Equal(t, observability.TraceCompleted, completed.Status)
}

// TestParallelSpans_ScenarioSix mirrors the spec's concrete scenario #6.
func TestParallelSpans_ScenarioSix(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(start, end int) *observability.Span {
		return &observability.Span{
			StartedAt:   base.Add(time.Duration(start) * time.Second),
			CompletedAt: base.Add(time.Duration(end) * time.Second),
		}
	}

	tr := &observability.Trace{Spans: map[string]*observability.Span{}}
	a, b, c, d := mk(0, 10), mk(5, 15), mk(20, 30), mk(25, 28)
	for id, s := range map[string]*observability.Span{"A": a, "B": b, "C": c, "D": d} {
		s.ID = id
		tr.Spans[id] = s
	}

	groups := tr.ParallelSpans()
	require.Len(t, groups, 2)
	assert.ElementsMatch(t, []string{"A", "B"}, idsOf(groups[0]))
	assert.ElementsMatch(t, []string{"C", "D"}, idsOf(groups[1]))
}

func TestParallelSpans_BoundaryTouchIsNotOverlap(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &observability.Span{ID: "E", StartedAt: base, CompletedAt: base.Add(10 * time.Second)}
	f := &observability.Span{ID: "F", StartedAt: base.Add(10 * time.Second), CompletedAt: base.Add(20 * time.Second)}

	tr := &observability.Trace{Spans: map[string]*observability.Span{"E": e, "F": f}}
	groups := tr.ParallelSpans()
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"E"}, idsOf(groups[0]))
	assert.Equal(t, []string{"F"}, idsOf(groups[1]))
}

func idsOf(spans []*observability.Span) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.ID
	}
	return out
}
