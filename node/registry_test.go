package node_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeai/flowengine/errs"
	"github.com/nodeai/flowengine/node"
)

func TestRegistry_RegisterIdempotent(t *testing.T) {
	r := node.NewRegistry(nil)
	r.Register("echo", func() node.Node { return echoNode{} }, node.Metadata{Type: "echo", Category: "io"})
	r.Register("echo", func() node.Node { return echoNode{} }, node.Metadata{Type: "echo", Category: "io"})

	assert.Equal(t, 1, r.Count())
	assert.True(t, r.IsRegistered("echo"))
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := node.NewRegistry(nil)
	r.Register("echo", func() node.Node { return echoNode{} }, node.Metadata{Type: "echo"})

	_, err := r.Get("missing")
	require.Error(t, err)
	var nte *errs.NodeTypeUnknown
	require.ErrorAs(t, err, &nte)
	assert.Equal(t, []string{"echo"}, nte.Available)
}

func TestRegistry_CategoryIndex(t *testing.T) {
	r := node.NewRegistry(nil)
	r.Register("echo", func() node.Node { return echoNode{} }, node.Metadata{Type: "echo", Category: "io"})
	r.Register("failing", func() node.Node { return failingNode{} }, node.Metadata{Type: "failing", Category: "misc"})

	assert.ElementsMatch(t, []string{"io", "misc"}, r.GetCategories())
	assert.Equal(t, []string{"echo"}, r.GetByCategory("io"))
}

func TestRegistry_Clear(t *testing.T) {
	r := node.NewRegistry(nil)
	r.Register("echo", func() node.Node { return echoNode{} }, node.Metadata{Type: "echo"})
	r.Clear()
	assert.Equal(t, 0, r.Count())
}
