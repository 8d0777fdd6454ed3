package node_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeai/flowengine/errs"
	"github.com/nodeai/flowengine/node"
)

func minimum(v float64) *float64 { return &v }

func scenarioSchema() node.Schema {
	return node.Schema{
		Properties: map[string]node.PropertySchema{
			"x": {Type: "integer", Minimum: minimum(1), Default: 5},
			"y": {Type: "string"},
		},
		Required: []string{"y"},
	}
}

func TestValidateConfig_AppliesDefaults(t *testing.T) {
	config := map[string]any{"y": "hi"}
	err := node.ValidateConfig("demo", scenarioSchema(), config)
	require.NoError(t, err)
	assert.Equal(t, 5, config["x"])
}

func TestValidateConfig_MissingRequired(t *testing.T) {
	config := map[string]any{}
	err := node.ValidateConfig("demo", scenarioSchema(), config)
	require.Error(t, err)
	var ci *errs.ConfigurationInvalid
	require.ErrorAs(t, err, &ci)
	assert.Contains(t, ci.Reasons, "y")
}

func TestValidateConfig_BelowMinimum(t *testing.T) {
	config := map[string]any{"x": 0, "y": "hi"}
	err := node.ValidateConfig("demo", scenarioSchema(), config)
	require.Error(t, err)
	var ci *errs.ConfigurationInvalid
	require.ErrorAs(t, err, &ci)
	assert.Len(t, ci.Reasons, 1)
	assert.Contains(t, ci.Reasons[0], "x")
}

type echoNode struct {
	node.Base
}

func (echoNode) Type() string { return "echo" }
func (echoNode) DescribeSchema() node.Schema {
	return node.Schema{Properties: map[string]node.PropertySchema{"text": {Type: "string"}}}
}
func (echoNode) Execute(_ context.Context, inputs, _ map[string]any) (map[string]any, error) {
	return map[string]any{"echoed": inputs["text"]}, nil
}
func (echoNode) Metadata() node.Metadata { return node.Metadata{Type: "echo"} }

func TestExecuteSafe_Success(t *testing.T) {
	n := echoNode{}
	out, err := node.ExecuteSafe(context.Background(), n, map[string]any{"text": "hi"}, map[string]any{"text": "cfg"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out["echoed"])
}

type failingNode struct {
	node.Base
}

func (failingNode) Type() string                 { return "failing" }
func (failingNode) DescribeSchema() node.Schema   { return node.Schema{} }
func (failingNode) Metadata() node.Metadata       { return node.Metadata{Type: "failing"} }
func (failingNode) Execute(context.Context, map[string]any, map[string]any) (map[string]any, error) {
	return nil, assertError{}
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestExecuteSafe_WrapsOtherErrors(t *testing.T) {
	_, err := node.ExecuteSafe(context.Background(), failingNode{}, nil, map[string]any{})
	require.Error(t, err)
	var nef *errs.NodeExecutionFailure
	require.ErrorAs(t, err, &nef)
	assert.Equal(t, "failing", nef.NodeType)
}
