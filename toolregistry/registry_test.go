package toolregistry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeai/flowengine/node"
	"github.com/nodeai/flowengine/toolregistry"
)

type echoNode struct {
	node.Base
}

func (echoNode) Type() string               { return "echo" }
func (echoNode) DescribeSchema() node.Schema { return node.Schema{} }
func (echoNode) Metadata() node.Metadata     { return node.Metadata{Type: "echo", Category: "ai"} }
func (echoNode) Execute(_ context.Context, inputs, config map[string]any) (map[string]any, error) {
	return map[string]any{"echoed": inputs["text"], "config": config}, nil
}

func TestRegistry_RegisterAndGetMCPTool(t *testing.T) {
	r := toolregistry.New(nil, nil)
	r.RegisterMCPTool("send_message", "sends a message", nil, "slack", "integration")

	tool, ok := r.Get("slack.send_message")
	require.True(t, ok)
	assert.Equal(t, toolregistry.SourceMCP, tool.Source)
	assert.Equal(t, "slack", tool.ServerName)
	assert.Equal(t, "integration", tool.Category)
}

func TestRegistry_RegisterInternalNodesAsTools_Idempotent(t *testing.T) {
	r := toolregistry.New(nil, nil)
	defs := []toolregistry.InternalToolDef{
		{Name: "summarize", NodeType: "echo", Category: "ai"},
	}
	r.RegisterInternalNodesAsTools(defs)
	r.RegisterInternalNodesAsTools([]toolregistry.InternalToolDef{
		{Name: "other", NodeType: "echo", Category: "ai"},
	})

	_, ok := r.Get("summarize")
	assert.True(t, ok)
	_, ok = r.Get("other")
	assert.False(t, ok, "second call should be a no-op")
}

func TestRegistry_GetByCategoryAndSource(t *testing.T) {
	r := toolregistry.New(nil, nil)
	r.RegisterMCPTool("search", "", nil, "github", "integration")
	r.RegisterInternalTool("summarize", "", nil, "echo", "ai")

	assert.Len(t, r.GetByCategory("integration"), 1)
	assert.Len(t, r.GetBySource(toolregistry.SourceInternal), 1)
	assert.Len(t, r.GetAll(), 2)
}

func TestRegistry_Invoke_Internal(t *testing.T) {
	nodes := node.NewRegistry(nil)
	nodes.Register("echo", func() node.Node { return echoNode{} }, node.Metadata{Type: "echo"})

	r := toolregistry.New(nil, nodes)
	r.RegisterInternalTool("echo_tool", "", nil, "echo", "ai")

	out, err := r.Invoke(context.Background(), "echo_tool", map[string]any{
		"text":    "hi",
		"_config": map[string]any{"verbose": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", out["echoed"])
	assert.Equal(t, map[string]any{"verbose": true}, out["config"])
}

func TestRegistry_Invoke_UnknownTool(t *testing.T) {
	r := toolregistry.New(nil, nil)
	_, err := r.Invoke(context.Background(), "missing", nil)
	require.Error(t, err)
}

func TestRegistry_Describe(t *testing.T) {
	r := toolregistry.New(nil, nil)
	r.RegisterMCPTool("search", "", nil, "github", "integration")
	r.RegisterInternalTool("summarize", "", nil, "echo", "ai")

	summary := r.Describe()
	assert.Equal(t, 1, summary.MCPCount)
	assert.Equal(t, 1, summary.Internal)
	assert.ElementsMatch(t, []string{"ai", "integration"}, summary.Categories)
}
