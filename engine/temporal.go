package engine

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/nodeai/flowengine/node"
)

// TemporalTaskQueue is the default task queue workers poll for graph
// execution workflows.
const TemporalTaskQueue = "flowengine-graph"

// TemporalExecutor is the durable alternate Engine binding: each node
// invocation runs as a Temporal activity, and the graph itself runs as one
// Temporal workflow, so a host crash mid-execution resumes from Temporal's
// own replay rather than losing in-flight node results. Grounded on
// features/model/bedrock/ledger_temporal.go's QueryWorkflow client idiom,
// adapted from a single ledger-query call to full workflow start/result
// retrieval since this binding owns workflow execution, not just a query.
type TemporalExecutor struct {
	c         client.Client
	taskQueue string
}

// NewTemporalExecutor constructs a TemporalExecutor over an existing
// Temporal client. The caller is responsible for starting a worker that
// registers GraphWorkflow and NodeActivity against taskQueue (or
// TemporalTaskQueue, if empty).
func NewTemporalExecutor(c client.Client, taskQueue string) *TemporalExecutor {
	if taskQueue == "" {
		taskQueue = TemporalTaskQueue
	}
	return &TemporalExecutor{c: c, taskQueue: taskQueue}
}

var _ Engine = (*TemporalExecutor)(nil)

// Run starts GraphWorkflow and blocks for its result.
func (e *TemporalExecutor) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	options := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("flowengine-%s-%s", req.WorkflowID, req.ExecutionID),
		TaskQueue: e.taskQueue,
	}
	run, err := e.c.ExecuteWorkflow(ctx, options, GraphWorkflow, req)
	if err != nil {
		return nil, fmt.Errorf("start graph workflow: %w", err)
	}
	var result RunResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("graph workflow %s: %w", run.GetID(), err)
	}
	return &result, nil
}

// GraphWorkflow is the Temporal workflow function that replays a node
// graph deterministically: dependency order is computed once from the
// (deterministic) input graph, and every node body runs as a NodeActivity
// invocation so retries, timeouts, and side effects are owned by Temporal's
// activity execution rather than by in-process goroutines.
func GraphWorkflow(ctx workflow.Context, req RunRequest) (RunResult, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 4,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	outputs := make(map[string]map[string]any, len(req.Graph.Nodes))
	pending := append([]NodeInvocation(nil), req.Graph.Nodes...)

	for len(pending) > 0 {
		progressed := false
		var remaining []NodeInvocation
		for _, inv := range pending {
			if !dependenciesReady(inv.DependsOn, outputs) {
				remaining = append(remaining, inv)
				continue
			}
			inputs := mergeGraphInputs(req.InitialInputs, inv.DependsOn, outputs)
			var result map[string]any
			if err := workflow.ExecuteActivity(ctx, NodeActivity, NodeActivityInput{
				NodeType: inv.NodeType, Config: inv.Config, Inputs: inputs,
			}).Get(ctx, &result); err != nil {
				return RunResult{}, fmt.Errorf("node %q: %w", inv.ID, err)
			}
			outputs[inv.ID] = result
			progressed = true
		}
		if !progressed && len(remaining) > 0 {
			return RunResult{}, fmt.Errorf("graph has an unsatisfiable dependency among: %v", remaining)
		}
		pending = remaining
	}

	return RunResult{TraceID: req.ExecutionID, Outputs: outputs}, nil
}

func dependenciesReady(deps []string, outputs map[string]map[string]any) bool {
	for _, d := range deps {
		if _, ok := outputs[d]; !ok {
			return false
		}
	}
	return true
}

func mergeGraphInputs(initial map[string]any, deps []string, outputs map[string]map[string]any) map[string]any {
	merged := make(map[string]any, len(initial))
	for k, v := range initial {
		merged[k] = v
	}
	for _, d := range deps {
		for k, v := range outputs[d] {
			merged[k] = v
		}
	}
	return merged
}

// NodeActivityInput is the payload passed to NodeActivity by GraphWorkflow.
type NodeActivityInput struct {
	NodeType string
	Config   map[string]any
	Inputs   map[string]any
}

// nodeActivityRegistry is the process-wide node registry NodeActivity
// dispatches through. Set via RegisterNodeActivityRegistry before starting
// a Temporal worker; activities run outside workflow determinism
// constraints so this package-level binding (rather than threading the
// registry through workflow.Context) is the idiomatic Temporal pattern.
var nodeActivityRegistry *node.Registry

// RegisterNodeActivityRegistry binds the node registry NodeActivity
// dispatches against. Call once during worker setup.
func RegisterNodeActivityRegistry(r *node.Registry) {
	nodeActivityRegistry = r
}

// NodeActivity is the Temporal activity body executing one node. It is
// registered with the worker alongside GraphWorkflow.
func NodeActivity(ctx context.Context, in NodeActivityInput) (map[string]any, error) {
	n, err := nodeActivityRegistry.Get(in.NodeType)
	if err != nil {
		return nil, err
	}
	return node.ExecuteSafe(ctx, n, in.Inputs, in.Config)
}
