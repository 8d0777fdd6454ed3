package node

import (
	"context"
	"sort"
	"sync"

	"github.com/nodeai/flowengine/errs"
	"github.com/nodeai/flowengine/telemetry"
)

// Factory constructs a fresh Node instance for one execution.
type Factory func() Node

type entry struct {
	factory  Factory
	metadata Metadata
}

// Registry is the process-wide mapping node_type -> {factory, metadata}.
// Grounded on the original NodeRegistry's class-level dicts, translated
// into a mutex-guarded map since Go has no implicit process-wide class
// state. Registration is idempotent but logs a warning on overwrite.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	log     telemetry.Logger
}

// NewRegistry constructs an empty registry. A nil logger defaults to a
// no-op logger.
func NewRegistry(log telemetry.Logger) *Registry {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &Registry{entries: make(map[string]entry), log: log}
}

// Register adds or overwrites a node type. Overwriting an existing type
// logs a warning but is not an error, matching the Python registry's
// "already registered, overwriting" behaviour.
func (r *Registry) Register(nodeType string, factory Factory, metadata Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[nodeType]; exists {
		r.log.Warn(context.Background(), "node type already registered, overwriting", "node_type", nodeType)
	}
	r.entries[nodeType] = entry{factory: factory, metadata: metadata}
}

// Get returns a fresh Node instance for nodeType. Returns
// *errs.NodeTypeUnknown listing all registered types if nodeType is unknown.
func (r *Registry) Get(nodeType string) (Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[nodeType]
	if !ok {
		return nil, &errs.NodeTypeUnknown{NodeType: nodeType, Available: r.listAllLocked()}
	}
	return e.factory(), nil
}

// GetMetadata returns the metadata registered for nodeType, if any.
func (r *Registry) GetMetadata(nodeType string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[nodeType]
	return e.metadata, ok
}

// ListAll returns every registered node type identifier.
func (r *Registry) ListAll() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listAllLocked()
}

func (r *Registry) listAllLocked() []string {
	out := make([]string, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// IsRegistered reports whether nodeType has been registered.
func (r *Registry) IsRegistered(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[nodeType]
	return ok
}

// Count returns the number of registered node types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear removes all registrations. Intended for test isolation.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]entry)
}

// GetByCategory returns all node types whose metadata.Category matches
// category.
func (r *Registry) GetByCategory(category string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for t, e := range r.entries {
		if e.metadata.Category == category {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// GetCategories returns every distinct category among registered node
// types, sorted.
func (r *Registry) GetCategories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range r.entries {
		if e.metadata.Category != "" {
			seen[e.metadata.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
