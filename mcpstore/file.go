package mcpstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nodeai/flowengine/telemetry"
)

// FileStore is the single-tenant, local-mode Store: configurations live in
// one JSON file, matching server_manager.py's _load_config/_save_config for
// the non-database path. userID is accepted by the Store interface but
// ignored.
type FileStore struct {
	mu   sync.Mutex
	path string
	log  telemetry.Logger

	records map[string]Record
	history []ConnectionAttempt
}

type fileDoc struct {
	Servers []Record `json:"servers"`
}

// NewFileStore constructs a FileStore backed by path, loading any existing
// configuration immediately. A nil logger defaults to a no-op.
func NewFileStore(path string, log telemetry.Logger) (*FileStore, error) {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	fs := &FileStore{path: path, log: log, records: make(map[string]Record)}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	for _, r := range doc.Servers {
		r.Connected = false // always start disconnected, per the original's load
		fs.records[r.Name] = r
	}
	return nil
}

// save persists the in-memory record set. Errors are logged, not returned,
// matching the original's best-effort _save_config (a failed save should
// not break the in-memory session).
func (fs *FileStore) save(ctx context.Context) {
	doc := fileDoc{Servers: make([]Record, 0, len(fs.records))}
	for _, r := range fs.records {
		doc.Servers = append(doc.Servers, r)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fs.log.Error(ctx, "failed to marshal mcp server config", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		fs.log.Error(ctx, "failed to create mcp config directory", "error", err)
		return
	}
	if err := os.WriteFile(fs.path, data, 0o644); err != nil {
		fs.log.Error(ctx, "failed to save mcp server config", "error", err)
	}
}

func (fs *FileStore) Create(ctx context.Context, _ string, rec Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.records[rec.Name] = rec
	fs.save(ctx)
	return nil
}

func (fs *FileStore) Get(_ context.Context, _ string, name string) (Record, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	r, ok := fs.records[name]
	return r, ok, nil
}

func (fs *FileStore) List(_ context.Context, _ string) ([]Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]Record, 0, len(fs.records))
	for _, r := range fs.records {
		out = append(out, r)
	}
	return out, nil
}

func (fs *FileStore) Update(ctx context.Context, _ string, rec Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.records[rec.Name] = rec
	fs.save(ctx)
	return nil
}

func (fs *FileStore) Delete(ctx context.Context, _ string, name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.records, name)
	fs.save(ctx)
	return nil
}

// GetCredentials returns the Env map stored for name; the file mode keeps
// credentials inline with the rest of the record rather than a separate
// encrypted vault (that split is the database mode's concern).
func (fs *FileStore) GetCredentials(_ context.Context, _ string, name string) (map[string]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	r, ok := fs.records[name]
	if !ok {
		return nil, nil
	}
	return r.Env, nil
}

func (fs *FileStore) RecordLastConnected(ctx context.Context, _ string, name string, at time.Time) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	r, ok := fs.records[name]
	if !ok {
		return nil
	}
	r.LastConnectedAt = at
	r.Connected = true
	fs.records[name] = r
	fs.save(ctx)
	return nil
}

func (fs *FileStore) LogConnectionAttempt(_ context.Context, _ string, attempt ConnectionAttempt) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.history = append(fs.history, attempt)
	return nil
}

// History returns every logged connection attempt, oldest first. Exposed
// for diagnostics; the original's db_mcp.log_mcp_connection has no direct
// in-file-mode equivalent beyond an append-only slice.
func (fs *FileStore) History() []ConnectionAttempt {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]ConnectionAttempt, len(fs.history))
	copy(out, fs.history)
	return out
}
