package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeai/flowengine/engine"
	"github.com/nodeai/flowengine/node"
	"github.com/nodeai/flowengine/observability"
	"github.com/nodeai/flowengine/retry"
)

type constantNode struct {
	node.Base
	value string
}

func (n constantNode) Type() string              { return "constant" }
func (constantNode) DescribeSchema() node.Schema { return node.Schema{} }
func (constantNode) Metadata() node.Metadata     { return node.Metadata{Type: "constant"} }
func (n constantNode) Execute(context.Context, map[string]any, map[string]any) (map[string]any, error) {
	return map[string]any{"value": n.value}, nil
}

type concatNode struct {
	node.Base
}

func (concatNode) Type() string                { return "concat" }
func (concatNode) DescribeSchema() node.Schema { return node.Schema{} }
func (concatNode) Metadata() node.Metadata     { return node.Metadata{Type: "concat"} }
func (concatNode) Execute(_ context.Context, inputs, _ map[string]any) (map[string]any, error) {
	return map[string]any{"result": inputs["value"].(string) + "!"}, nil
}

func TestExecutor_RunsDependentNodesInOrder(t *testing.T) {
	registry := node.NewRegistry(nil)
	registry.Register("constant", func() node.Node { return constantNode{value: "hi"} }, node.Metadata{Type: "constant"})
	registry.Register("concat", func() node.Node { return concatNode{} }, node.Metadata{Type: "concat"})

	obs := observability.NewManager()
	exec := engine.NewExecutor(registry, obs, nil, nil, retry.DefaultPolicy())

	graph := engine.Graph{Nodes: []engine.NodeInvocation{
		{ID: "a", NodeType: "constant"},
		{ID: "b", NodeType: "concat", DependsOn: []string{"a"}},
	}}

	result, err := exec.Run(context.Background(), engine.RunRequest{
		WorkflowID: "wf-1", ExecutionID: "exec-1", Query: "test", Graph: graph,
	})
	require.NoError(t, err)
	assert.Equal(t, "hi!", result.Outputs["b"]["result"])

	trace, ok := obs.GetTrace(result.TraceID)
	require.True(t, ok)
	assert.Equal(t, observability.TraceCompleted, trace.Status)
}

func TestExecutor_PropagatesNodeFailure(t *testing.T) {
	registry := node.NewRegistry(nil)
	obs := observability.NewManager()
	exec := engine.NewExecutor(registry, obs, nil, nil, retry.Policy{MaxRetries: 0, InitialDelay: 0})

	graph := engine.Graph{Nodes: []engine.NodeInvocation{
		{ID: "missing", NodeType: "does-not-exist"},
	}}

	_, err := exec.Run(context.Background(), engine.RunRequest{
		WorkflowID: "wf-2", ExecutionID: "exec-2", Graph: graph,
	})
	require.Error(t, err)
}
