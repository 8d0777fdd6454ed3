package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/nodeai/flowengine/eval"
	"github.com/nodeai/flowengine/node"
	"github.com/nodeai/flowengine/observability"
	"github.com/nodeai/flowengine/retry"
	"github.com/nodeai/flowengine/stream"
	"github.com/nodeai/flowengine/telemetry"
)

// NodeInvocation is one node execution within a workflow graph: a node type
// resolved from the registry, its static configuration, and the IDs of
// invocations whose outputs must be available before it runs.
type NodeInvocation struct {
	ID        string
	NodeType  string
	SpanType  observability.SpanType // defaults to observability.SpanNodeExecution
	Config    map[string]any
	DependsOn []string
}

// Graph is an ordered set of node invocations with declared dependencies.
// The in-memory Executor runs invocations with no unsatisfied dependency
// concurrently; GraphWorkflow runs them one at a time in graph order.
type Graph struct {
	Nodes []NodeInvocation
}

// Executor is the in-memory synchronous binding of Engine: it runs a node
// graph against the process's own node registry, observability manager, and
// stream sink. Grounded on §4.13's executor contract: execute_safe wrapped
// in retry, one span per node bound to the workflow trace, stream events per
// node lifecycle transition.
type Executor struct {
	nodes  *node.Registry
	obs    *observability.Manager
	sink   stream.Sink
	log    telemetry.Logger
	policy retry.Policy
}

// NewExecutor constructs an in-memory Executor. sink may be nil, in which
// case stream events are simply not emitted.
func NewExecutor(nodes *node.Registry, obs *observability.Manager, sink stream.Sink, log telemetry.Logger, policy retry.Policy) *Executor {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &Executor{nodes: nodes, obs: obs, sink: sink, log: log, policy: policy}
}

var _ Engine = (*Executor)(nil)

type nodeResult struct {
	outputs map[string]any
	err     error
}

// Run executes req.Graph to completion or first node failure. Independent
// nodes run concurrently; the first node error cancels all nodes still
// waiting on their dependencies and is returned to the caller.
func (e *Executor) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	trace := e.obs.StartTrace(ctx, req.WorkflowID, req.ExecutionID, req.Query)
	root := e.obs.StartSpan(trace.ID, observability.SpanWorkflowStart, "workflow", "", req.InitialInputs)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(map[string]*nodeResult, len(req.Graph.Nodes))
	done := make(map[string]chan struct{}, len(req.Graph.Nodes))
	for _, n := range req.Graph.Nodes {
		done[n.ID] = make(chan struct{})
	}

	var mu sync.Mutex
	var firstErr error
	recordErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := range req.Graph.Nodes {
		inv := req.Graph.Nodes[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(done[inv.ID])

			if !waitForDeps(runCtx, inv.DependsOn, done) {
				mu.Lock()
				results[inv.ID] = &nodeResult{err: runCtx.Err()}
				mu.Unlock()
				return
			}

			inputs := mergeInputs(req.InitialInputs, inv.DependsOn, results, &mu)
			outputs, err := e.runNode(runCtx, trace.ID, root.ID, inv, inputs)

			mu.Lock()
			results[inv.ID] = &nodeResult{outputs: outputs, err: err}
			mu.Unlock()
			if err != nil {
				recordErr(fmt.Errorf("node %q: %w", inv.ID, err))
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		e.obs.FailSpan(ctx, trace.ID, root.ID, firstErr.Error(), "workflow_failed", "")
		e.obs.CompleteTrace(ctx, trace.ID)
		return nil, firstErr
	}

	outputs := make(map[string]map[string]any, len(results))
	for id, r := range results {
		outputs[id] = r.outputs
	}
	e.obs.CompleteSpan(ctx, trace.ID, root.ID, nil, nil, nil)
	e.obs.CompleteTrace(ctx, trace.ID)
	return &RunResult{TraceID: trace.ID, Outputs: outputs}, nil
}

func waitForDeps(ctx context.Context, deps []string, done map[string]chan struct{}) bool {
	for _, dep := range deps {
		ch, ok := done[dep]
		if !ok {
			continue
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return false
		}
	}
	return ctx.Err() == nil
}

func mergeInputs(initial map[string]any, deps []string, results map[string]*nodeResult, mu *sync.Mutex) map[string]any {
	merged := make(map[string]any, len(initial))
	for k, v := range initial {
		merged[k] = v
	}
	mu.Lock()
	defer mu.Unlock()
	for _, dep := range deps {
		r, ok := results[dep]
		if !ok || r == nil {
			continue
		}
		for k, v := range r.outputs {
			merged[k] = v
		}
	}
	return merged
}

func (e *Executor) runNode(ctx context.Context, traceID, parentSpanID string, inv NodeInvocation, inputs map[string]any) (map[string]any, error) {
	spanType := inv.SpanType
	if spanType == "" {
		spanType = observability.SpanNodeExecution
	}
	span := e.obs.StartSpan(traceID, spanType, inv.ID, parentSpanID, inputs)
	e.publish(ctx, stream.EventNodeStarted, inv.ID, req2payload(inputs))

	n, err := e.nodes.Get(inv.NodeType)
	if err != nil {
		e.obs.FailSpan(ctx, traceID, span.ID, err.Error(), "node_type_unknown", "")
		e.publish(ctx, stream.EventNodeFailed, inv.ID, map[string]any{"error": err.Error()})
		return nil, err
	}

	config := cloneMap(inv.Config)
	outputs, err := retry.Do(ctx, e.policy, func(ctx context.Context, attempt int) (map[string]any, error) {
		if attempt > 0 {
			e.log.Warn(ctx, "retrying node execution", "node_id", inv.ID, "attempt", attempt)
		}
		return node.ExecuteSafe(ctx, n, inputs, config)
	})
	if err != nil {
		e.obs.FailSpan(ctx, traceID, span.ID, err.Error(), "node_execution_failed", "")
		e.publish(ctx, stream.EventNodeFailed, inv.ID, map[string]any{"error": err.Error()})
		return nil, err
	}

	cost := n.EstimateCost(inputs, config)
	e.obs.CompleteSpan(ctx, traceID, span.ID, outputs, nil, &cost)
	if refreshed, ok := e.obs.GetTrace(traceID); ok {
		if s, ok := refreshed.Spans[span.ID]; ok {
			e.obs.AddSpanEvaluation(traceID, span.ID, eval.Evaluate(s))
		}
	}
	e.publish(ctx, stream.EventNodeCompleted, inv.ID, outputs)
	return outputs, nil
}

func (e *Executor) publish(ctx context.Context, kind stream.EventKind, nodeID string, payload map[string]any) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Publish(ctx, stream.Event{Kind: kind, NodeID: nodeID, Payload: payload}); err != nil {
		e.log.Warn(ctx, "failed to publish stream event", "node_id", nodeID, "kind", kind, "error", err)
	}
}

func req2payload(inputs map[string]any) map[string]any {
	if inputs == nil {
		return map[string]any{}
	}
	return inputs
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
