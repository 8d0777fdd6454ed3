// Package mcpstore persists MCP server configurations across the two
// modes the original system supports: a per-tenant database in production
// and a single-tenant JSON file in local/dev mode. Grounded on
// server_manager.py's MCPServerManager._load_config/_load_from_database/
// _save_config split, translated into one Store interface with two
// concrete implementations selected at construction time rather than an
// internal use_database branch.
package mcpstore

import (
	"context"
	"time"
)

// Record is one persisted MCP server configuration.
type Record struct {
	Name            string
	Preset          string // empty for custom servers
	DisplayName     string
	Description     string
	Command         string
	Args            []string
	Env             map[string]string
	Enabled         bool
	Connected       bool
	ToolsCount      int
	LastConnectedAt time.Time
}

// ConnectionAttempt is one logged connect/disconnect event, kept for
// diagnostics per spec §6.
type ConnectionAttempt struct {
	Name      string
	Success   bool
	Message   string
	Timestamp time.Time
}

// Store is the persistence seam the server manager uses. userID is ignored
// by single-tenant implementations.
type Store interface {
	Create(ctx context.Context, userID string, rec Record) error
	Get(ctx context.Context, userID, name string) (Record, bool, error)
	List(ctx context.Context, userID string) ([]Record, error)
	Update(ctx context.Context, userID string, rec Record) error
	Delete(ctx context.Context, userID, name string) error
	GetCredentials(ctx context.Context, userID, name string) (map[string]string, error)
	RecordLastConnected(ctx context.Context, userID, name string, at time.Time) error
	LogConnectionAttempt(ctx context.Context, userID string, attempt ConnectionAttempt) error
}
