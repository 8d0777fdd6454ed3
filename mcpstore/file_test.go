package mcpstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodeai/flowengine/mcpstore"
)

func TestFileStore_CreateGetListRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp_servers.json")
	store, err := mcpstore.NewFileStore(path, nil)
	require.NoError(t, err)

	rec := mcpstore.Record{Name: "slack", DisplayName: "Slack", Command: "npx", Env: map[string]string{"SLACK_BOT_TOKEN": "x"}, Enabled: true}
	require.NoError(t, store.Create(context.Background(), "", rec))

	got, ok, err := store.Get(context.Background(), "", "slack")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Slack", got.DisplayName)

	all, err := store.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestFileStore_ReloadsDisconnected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp_servers.json")
	store, err := mcpstore.NewFileStore(path, nil)
	require.NoError(t, err)
	rec := mcpstore.Record{Name: "github", Command: "npx", Enabled: true}
	require.NoError(t, store.Create(context.Background(), "", rec))
	require.NoError(t, store.RecordLastConnected(context.Background(), "", "github", time.Now()))

	reloaded, err := mcpstore.NewFileStore(path, nil)
	require.NoError(t, err)
	got, ok, err := reloaded.Get(context.Background(), "", "github")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, got.Connected)
}

func TestFileStore_DeleteRemovesRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp_servers.json")
	store, err := mcpstore.NewFileStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), "", mcpstore.Record{Name: "notion"}))
	require.NoError(t, store.Delete(context.Background(), "", "notion"))

	_, ok, err := store.Get(context.Background(), "", "notion")
	require.NoError(t, err)
	require.False(t, ok)
}
