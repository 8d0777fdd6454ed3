// Package engine defines the workflow-engine abstraction that lets a node
// graph run against either an in-memory synchronous executor or a durable
// Temporal-backed binding without the graph-running code changing. Grounded
// on runtime/agent/engine/engine.go's Engine/WorkflowContext/WorkflowHandle
// shape, narrowed to the single node-graph workflow kind this module runs
// (the teacher's version is generic over arbitrary generated workflow
// functions for a DSL-compiled agent product this module does not have).
package engine

import "context"

// Engine abstracts workflow registration and execution so the in-memory and
// Temporal-backed bindings are interchangeable.
type Engine interface {
	// Run executes graph to completion (or first failure) and returns the
	// per-node outputs, keyed by NodeInvocation.ID.
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// RunRequest describes one workflow execution.
type RunRequest struct {
	WorkflowID    string
	ExecutionID   string
	Query         string
	Graph         Graph
	InitialInputs map[string]any
}

// RunResult is the outcome of one workflow execution.
type RunResult struct {
	TraceID string
	Outputs map[string]map[string]any
}
