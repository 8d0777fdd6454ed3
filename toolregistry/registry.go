// Package toolregistry unifies MCP tools (from external servers) and
// internal node-backed tools behind one catalog agents can query and
// invoke, regardless of where a tool's implementation actually lives.
// Grounded field-for-field on tool_registry.py's MCPToolRegistry.
package toolregistry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nodeai/flowengine/mcp"
	"github.com/nodeai/flowengine/node"
)

// Source identifies where a tool's implementation lives.
type Source string

const (
	SourceMCP      Source = "mcp"
	SourceInternal Source = "internal"
)

// Tool is the unified catalog entry: every field agents need to decide
// whether and how to call a tool, regardless of source.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Source      Source
	ServerName  string // set for Source == SourceMCP
	NodeType    string // set for Source == SourceInternal
	Category    string
}

// Registry is the process-wide catalog of MCP and internal tools.
type Registry struct {
	mcpClient *mcp.Client
	nodes     *node.Registry

	mu    sync.RWMutex
	tools map[string]Tool

	internalNodesRegistered bool
}

// New constructs an empty Registry. mcpClient backs MCP-tool invocation and
// nodes backs internal-tool invocation; either may be nil if this registry
// only ever holds the other source.
func New(mcpClient *mcp.Client, nodes *node.Registry) *Registry {
	return &Registry{mcpClient: mcpClient, nodes: nodes, tools: make(map[string]Tool)}
}

// RegisterMCPTool registers a tool backed by an external MCP server, keyed
// by its fully qualified "server.tool" name to avoid collisions across
// servers.
func (r *Registry) RegisterMCPTool(name, description string, inputSchema map[string]any, serverName, category string) {
	if category == "" {
		category = "integration"
	}
	fullName := serverName + "." + name
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[fullName] = Tool{Name: name, Description: description, InputSchema: inputSchema, Source: SourceMCP, ServerName: serverName, Category: category}
}

// RegisterInternalTool registers a tool backed by an internal node type.
func (r *Registry) RegisterInternalTool(name, description string, inputSchema map[string]any, nodeType, category string) {
	if category == "" {
		category = "ai"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = Tool{Name: name, Description: description, InputSchema: inputSchema, Source: SourceInternal, NodeType: nodeType, Category: category}
}

// RegisterInternalNodesAsTools registers the given node metadata set as
// internal tools, one per entry. Idempotent: a second call is a no-op.
// Grounded on register_internal_nodes_as_tools, generalized to take the
// AI-tool catalog as a parameter rather than hardcoding the original
// system's specific blog/proposal/lead-scoring node set.
func (r *Registry) RegisterInternalNodesAsTools(defs []InternalToolDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.internalNodesRegistered {
		return
	}
	for _, d := range defs {
		category := d.Category
		if category == "" {
			category = "ai"
		}
		r.tools[d.Name] = Tool{
			Name: d.Name, Description: d.Description, InputSchema: d.InputSchema,
			Source: SourceInternal, NodeType: d.NodeType, Category: category,
		}
	}
	r.internalNodesRegistered = true
}

// InternalToolDef describes one internal node to expose as a tool.
type InternalToolDef struct {
	Name        string
	Description string
	NodeType    string
	Category    string
	InputSchema map[string]any
}

// Get returns the tool registered under name, if any. name is the MCP
// tool's qualified "server.tool" form or an internal tool's bare name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// GetByCategory returns every tool in category, name-sorted.
func (r *Registry) GetByCategory(category string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Tool
	for _, t := range r.tools {
		if t.Category == category {
			out = append(out, t)
		}
	}
	sortByName(out)
	return out
}

// GetBySource returns every tool from the given source, name-sorted.
func (r *Registry) GetBySource(source Source) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Tool
	for _, t := range r.tools {
		if t.Source == source {
			out = append(out, t)
		}
	}
	sortByName(out)
	return out
}

// GetAll returns every registered tool, name-sorted.
func (r *Registry) GetAll() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sortByName(out)
	return out
}

func sortByName(tools []Tool) {
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
}

// Summary describes the registry's composition for API/UI consumers.
type Summary struct {
	Tools      []Tool
	Categories []string
	MCPCount   int
	Internal   int
}

// Describe returns a Summary over every registered tool.
func (r *Registry) Describe() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	s := Summary{Tools: make([]Tool, 0, len(r.tools))}
	for _, t := range r.tools {
		s.Tools = append(s.Tools, t)
		if t.Category != "" {
			seen[t.Category] = struct{}{}
		}
		if t.Source == SourceMCP {
			s.MCPCount++
		} else {
			s.Internal++
		}
	}
	sortByName(s.Tools)
	for c := range seen {
		s.Categories = append(s.Categories, c)
	}
	sort.Strings(s.Categories)
	return s
}

// Invoke executes the named tool: an MCP tool is dispatched through
// mcpClient; an internal tool is dispatched through the node registry,
// with any "_config" key in inputs passed through as the node's config
// map, matching CrewAIMCPTool._execute_internal_node's inputs.get("_config").
func (r *Registry) Invoke(ctx context.Context, name string, inputs map[string]any) (map[string]any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("tool %q not registered", name)
	}

	switch t.Source {
	case SourceMCP:
		if r.mcpClient == nil {
			return nil, fmt.Errorf("tool %q requires an mcp client, none configured", name)
		}
		qualified := t.ServerName + "." + t.Name
		return r.mcpClient.CallTool(ctx, qualified, inputs)

	case SourceInternal:
		if r.nodes == nil {
			return nil, fmt.Errorf("tool %q requires a node registry, none configured", name)
		}
		n, err := r.nodes.Get(t.NodeType)
		if err != nil {
			return nil, err
		}
		config, _ := inputs["_config"].(map[string]any)
		return node.ExecuteSafe(ctx, n, inputs, config)

	default:
		return nil, fmt.Errorf("tool %q has unknown source %q", name, t.Source)
	}
}
