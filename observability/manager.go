package observability

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nodeai/flowengine/telemetry"
)

// Adapter is the fan-out contract notified at trace/span lifecycle points.
// Adapter errors are caught, logged, and never propagate to the caller.
// Concrete adapters (run-oriented, generation-oriented) live in the
// observability/adapters package and are supplied to Manager by reference
// to this interface, avoiding an import cycle.
type Adapter interface {
	StartTrace(ctx context.Context, t *Trace)
	LogSpan(ctx context.Context, t *Trace, s *Span)
	CompleteTrace(ctx context.Context, t *Trace)
}

// Manager is the in-process span/trace lifecycle API: creates traces and
// spans, mutates them through the state machine in span.go/trace.go, and
// notifies adapters. It bounds its in-memory trace set with an LRU
// eviction keyed by trace id, since §5 requires implementers to document
// and enforce a bound rather than grow the trace set without limit.
type Manager struct {
	mu    sync.Mutex
	log   telemetry.Logger
	clock func() time.Time

	traces   map[string]*Trace
	byExecID map[string]string // executionID -> traceID
	lru      *list.List
	lruElems map[string]*list.Element
	maxSize  int

	adapters []Adapter
}

// ManagerOption configures a Manager at construction.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(log telemetry.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithMaxTraces bounds the number of in-memory traces retained; the least
// recently touched trace is evicted once the bound is exceeded.
func WithMaxTraces(n int) ManagerOption {
	return func(m *Manager) { m.maxSize = n }
}

// WithAdapters registers the fan-out adapters notified at lifecycle points.
func WithAdapters(adapters ...Adapter) ManagerOption {
	return func(m *Manager) { m.adapters = adapters }
}

// withClock overrides the time source; used by tests needing deterministic
// timing.
func withClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// NewManager constructs a Manager with the given options.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		log:      telemetry.NewNoopLogger(),
		clock:    time.Now,
		traces:   make(map[string]*Trace),
		byExecID: make(map[string]string),
		lru:      list.New(),
		lruElems: make(map[string]*list.Element),
		maxSize:  10_000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) touch(traceID string) {
	if el, ok := m.lruElems[traceID]; ok {
		m.lru.MoveToFront(el)
		return
	}
	el := m.lru.PushFront(traceID)
	m.lruElems[traceID] = el
	if m.maxSize > 0 && m.lru.Len() > m.maxSize {
		oldest := m.lru.Back()
		if oldest != nil {
			id := oldest.Value.(string)
			m.lru.Remove(oldest)
			delete(m.lruElems, id)
			if t := m.traces[id]; t != nil {
				delete(m.byExecID, t.ExecutionID)
			}
			delete(m.traces, id)
		}
	}
}

// StartTrace creates a new trace with a fresh id and notifies adapters.
func (m *Manager) StartTrace(ctx context.Context, workflowID, executionID, query string) *Trace {
	m.mu.Lock()
	t := newTrace(uuid.NewString(), workflowID, executionID, query, m.clock())
	m.traces[t.ID] = t
	m.byExecID[executionID] = t.ID
	m.touch(t.ID)
	m.mu.Unlock()

	m.notifyStartTrace(ctx, t)
	return t
}

// GetTrace returns the trace with the given id, if present.
func (m *Manager) GetTrace(traceID string) (*Trace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.traces[traceID]
	if ok {
		m.touch(traceID)
	}
	return t, ok
}

// GetTraceByExecutionID returns the trace started for executionID, if any.
func (m *Manager) GetTraceByExecutionID(executionID string) (*Trace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	traceID, ok := m.byExecID[executionID]
	if !ok {
		return nil, false
	}
	t := m.traces[traceID]
	m.touch(traceID)
	return t, t != nil
}

// StartSpan creates and registers a running span under traceID, linking it
// to parentSpanID (or the trace root if empty). Returns nil if traceID is
// unknown.
func (m *Manager) StartSpan(traceID string, spanType SpanType, name, parentSpanID string, inputs map[string]any) *Span {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.traces[traceID]
	if !ok {
		return nil
	}
	s := newSpan(uuid.NewString(), traceID, parentSpanID, spanType, name, inputs, m.clock())
	t.addSpan(s)
	m.touch(traceID)
	return s
}

// CompleteSpan completes the given span. A no-op (logged at warn level) if
// the span is already terminal, per the idempotence invariant in §8.
func (m *Manager) CompleteSpan(ctx context.Context, traceID, spanID string, outputs map[string]any, tokens *TokenUsage, cost *float64) {
	m.mu.Lock()
	t, ok := m.traces[traceID]
	if !ok {
		m.mu.Unlock()
		return
	}
	s, ok := t.Spans[spanID]
	if !ok {
		m.mu.Unlock()
		return
	}
	changed := s.complete(outputs, tokens, cost, m.clock())
	m.mu.Unlock()

	if !changed {
		m.log.Warn(ctx, "completing already-terminal span is a no-op", "span_id", spanID)
		return
	}
	m.notifyLogSpan(ctx, t, s)
}

// FailSpan fails the given span and, if its type is terminal-failing
// (llm/final_output), also fails the owning trace.
func (m *Manager) FailSpan(ctx context.Context, traceID, spanID, message, kind, stack string) {
	m.mu.Lock()
	t, ok := m.traces[traceID]
	if !ok {
		m.mu.Unlock()
		return
	}
	s, ok := t.Spans[spanID]
	if !ok {
		m.mu.Unlock()
		return
	}
	shouldFailTrace, changed := s.fail(message, kind, stack, m.clock())
	if changed && shouldFailTrace {
		t.fail(message, m.clock())
	}
	m.mu.Unlock()

	if !changed {
		m.log.Warn(ctx, "failing already-terminal span is a no-op", "span_id", spanID)
		return
	}
	m.notifyLogSpan(ctx, t, s)
}

// UpdateSpanMetadata merges tokens/api_limits/metadata and replaces
// cost/model/provider, per §4.7.
func (m *Manager) UpdateSpanMetadata(traceID, spanID string, tokens *TokenUsage, cost *float64, model, provider string, apiLimits, metadata map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.traces[traceID]
	if !ok {
		return
	}
	s, ok := t.Spans[spanID]
	if !ok {
		return
	}
	s.updateMetadata(tokens, cost, model, provider, apiLimits, metadata)
}

// AddSpanEvaluation replaces the span's evaluation field.
func (m *Manager) AddSpanEvaluation(traceID, spanID string, evaluation map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.traces[traceID]
	if !ok {
		return
	}
	if s, ok := t.Spans[spanID]; ok {
		s.Evaluation = evaluation
	}
}

// CompleteTrace finalises the trace and notifies adapters. Completing an
// already-terminal trace re-runs aggregation but does not re-notify
// adapters of a second completion event in a different state (status is
// simply recomputed to the same terminal value, matching the underlying
// "totals frozen once" intent).
func (m *Manager) CompleteTrace(ctx context.Context, traceID string) *Trace {
	m.mu.Lock()
	t, ok := m.traces[traceID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	t.complete(m.clock())
	m.mu.Unlock()

	m.notifyCompleteTrace(ctx, t)
	return t
}

// ListTraces returns up to limit traces for workflowID, newest first. If
// workflowID is empty, all traces are returned. This satisfies the §6
// forecaster consumer interface.
func (m *Manager) ListTraces(workflowID string, limit int) []*Trace {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Trace
	for _, t := range m.traces {
		if workflowID == "" || t.WorkflowID == workflowID {
			out = append(out, t)
		}
	}
	sortTracesNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortTracesNewestFirst(traces []*Trace) {
	for i := 1; i < len(traces); i++ {
		for j := i; j > 0 && traces[j].StartedAt.After(traces[j-1].StartedAt); j-- {
			traces[j], traces[j-1] = traces[j-1], traces[j]
		}
	}
}

func (m *Manager) notifyStartTrace(ctx context.Context, t *Trace) {
	for _, a := range m.adapters {
		m.safeCall(ctx, "start_trace", func() { a.StartTrace(ctx, t) })
	}
}

func (m *Manager) notifyLogSpan(ctx context.Context, t *Trace, s *Span) {
	for _, a := range m.adapters {
		m.safeCall(ctx, "log_span", func() { a.LogSpan(ctx, t, s) })
	}
}

func (m *Manager) notifyCompleteTrace(ctx context.Context, t *Trace) {
	for _, a := range m.adapters {
		m.safeCall(ctx, "complete_trace", func() { a.CompleteTrace(ctx, t) })
	}
}

// safeCall invokes fn, recovering from and logging any panic/error so
// adapter failures never propagate to callers, per §4.8/§7.
func (m *Manager) safeCall(ctx context.Context, point string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error(ctx, "observability adapter panicked", "point", point, "recover", r)
		}
	}()
	fn()
}
