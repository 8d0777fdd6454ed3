package mcp

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nodeai/flowengine/errs"
	"github.com/nodeai/flowengine/mcpstore"
	"github.com/nodeai/flowengine/telemetry"
)

// ServerManager owns configured MCP server connections: it persists
// configuration through a Store (file-backed for local/dev mode,
// Mongo-backed for multi-tenant production, per §6), adds servers from the
// preset catalog or as custom commands, and drives connect/disconnect
// through a Client. Grounded on server_manager.py's MCPServerManager, with
// the original's internal use_database branch replaced by an injected
// mcpstore.Store so the two persistence modes are two Store
// implementations rather than one class with a boolean mode flag.
type ServerManager struct {
	store  mcpstore.Store
	client *Client
	log    telemetry.Logger

	userID string // empty for single-tenant (file-store) deployments

	mu          sync.Mutex
	connections map[string]mcpstore.Record
}

// NewServerManager constructs a ServerManager over store/client, loading
// any persisted configurations for userID.
func NewServerManager(ctx context.Context, store mcpstore.Store, client *Client, userID string, log telemetry.Logger) (*ServerManager, error) {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	m := &ServerManager{store: store, client: client, log: log, userID: userID, connections: make(map[string]mcpstore.Record)}
	records, err := store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load mcp server configurations: %w", err)
	}
	for _, r := range records {
		r.Connected = false // always start disconnected, per the original's load
		m.connections[r.Name] = r
	}
	log.Info(ctx, "mcp server manager loaded configurations", "count", len(records))
	return m, nil
}

// AddServerFromPreset instantiates a configured server from the preset
// catalog. envValues must supply every env var the preset requires unless
// the preset is executable-typed, in which case customName selects the
// instance name and envValues["_EXECUTABLE_PATH"] supplies the command
// when the preset itself has none.
func (m *ServerManager) AddServerFromPreset(ctx context.Context, presetName string, envValues map[string]string, customName string) (mcpstore.Record, error) {
	preset, ok := GetPreset(presetName)
	if !ok {
		return mcpstore.Record{}, fmt.Errorf("unknown preset %q", presetName)
	}

	if preset.Type != ServerTypeExecutable {
		for _, envVar := range preset.EnvVars {
			if _, ok := envValues[envVar]; !ok {
				return mcpstore.Record{}, fmt.Errorf("missing required env var %q for preset %q", envVar, presetName)
			}
		}
	}

	name := customName
	if name == "" {
		name = presetName
	}
	command := preset.Command
	if preset.Type == ServerTypeExecutable && command == "" {
		if path, ok := envValues["_EXECUTABLE_PATH"]; ok {
			command = path
			delete(envValues, "_EXECUTABLE_PATH")
		} else {
			return mcpstore.Record{}, fmt.Errorf("preset %q requires an executable path", presetName)
		}
	}

	rec := mcpstore.Record{
		Name: name, Preset: presetName, DisplayName: preset.DisplayName, Description: preset.Description,
		Command: command, Args: preset.Args, Env: envValues, Enabled: true,
	}
	if err := m.store.Create(ctx, m.userID, rec); err != nil {
		m.log.Error(ctx, "failed to persist mcp server", "name", name, "error", err)
	}

	m.mu.Lock()
	m.connections[name] = rec
	m.mu.Unlock()
	m.log.Info(ctx, "added mcp server from preset", "name", name, "preset", presetName)
	return rec, nil
}

// AddCustomServer registers a server with an arbitrary command/args/env,
// bypassing the preset catalog.
func (m *ServerManager) AddCustomServer(ctx context.Context, name, displayName, description, command string, args []string, env map[string]string) (mcpstore.Record, error) {
	rec := mcpstore.Record{Name: name, DisplayName: displayName, Description: description, Command: command, Args: args, Env: env, Enabled: true}
	if err := m.store.Create(ctx, m.userID, rec); err != nil {
		m.log.Error(ctx, "failed to persist custom mcp server", "name", name, "error", err)
	}
	m.mu.Lock()
	m.connections[name] = rec
	m.mu.Unlock()
	m.log.Info(ctx, "added custom mcp server", "name", name)
	return rec, nil
}

// RemoveServer disconnects (if connected) and deletes the named server.
func (m *ServerManager) RemoveServer(ctx context.Context, name string) bool {
	m.mu.Lock()
	rec, ok := m.connections[name]
	if ok {
		delete(m.connections, name)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	if rec.Connected {
		m.client.DisconnectServer(ctx, name)
	}
	if err := m.store.Delete(ctx, m.userID, name); err != nil {
		m.log.Error(ctx, "failed to delete mcp server", "name", name, "error", err)
	}
	m.log.Info(ctx, "removed mcp server", "name", name)
	return true
}

// Connect starts the subprocess for the named configured server and marks
// it connected on success, logging the attempt either way. A missing or
// disabled server fails with McpSetupFailed before any attempt is made.
func (m *ServerManager) Connect(ctx context.Context, name string) error {
	m.mu.Lock()
	rec, ok := m.connections[name]
	m.mu.Unlock()
	if !ok {
		return &errs.McpSetupFailed{ServerName: name, Reason: "server not configured"}
	}
	if !rec.Enabled {
		return &errs.McpSetupFailed{ServerName: name, Reason: "server is disabled"}
	}

	err := m.client.AddServer(ctx, ServerConfig{Name: rec.Name, Command: rec.Command, Args: rec.Args, Env: rec.Env, Transport: TransportStdio})
	attempt := mcpstore.ConnectionAttempt{Name: name, Success: err == nil, Timestamp: time.Now()}
	if err != nil {
		attempt.Message = err.Error()
	}
	if logErr := m.store.LogConnectionAttempt(ctx, m.userID, attempt); logErr != nil {
		m.log.Warn(ctx, "failed to log mcp connection attempt", "name", name, "error", logErr)
	}
	if err != nil {
		return err
	}

	rec.Connected = true
	rec.ToolsCount = 0
	for _, t := range m.client.AvailableTools() {
		if t.ServerName == rec.Name {
			rec.ToolsCount++
		}
	}
	rec.LastConnectedAt = attempt.Timestamp
	m.mu.Lock()
	m.connections[name] = rec
	m.mu.Unlock()
	if storeErr := m.store.RecordLastConnected(ctx, m.userID, name, attempt.Timestamp); storeErr != nil {
		m.log.Warn(ctx, "failed to record mcp last-connected timestamp", "name", name, "error", storeErr)
	}
	return nil
}

// Disconnect tears down the named server's subprocess and marks it
// disconnected.
func (m *ServerManager) Disconnect(ctx context.Context, name string) {
	m.client.DisconnectServer(ctx, name)
	m.mu.Lock()
	if rec, ok := m.connections[name]; ok {
		rec.Connected = false
		m.connections[name] = rec
	}
	m.mu.Unlock()
}

// Connections returns every configured server, sorted by name.
func (m *ServerManager) Connections() []mcpstore.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mcpstore.Record, 0, len(m.connections))
	for _, r := range m.connections {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
