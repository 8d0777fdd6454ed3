// Package node defines the polymorphic node execution contract: schema
// description, config validation with defaults application, execution,
// cost estimation, and best-effort stream event emission.
package node

import (
	"context"
	"fmt"

	"github.com/nodeai/flowengine/errs"
	"github.com/nodeai/flowengine/stream"
)

// Schema describes a node's configuration structure as a restricted JSON
// Schema: properties with type/bounds/enum/default, and a required list.
// This is the minimal property-table form of §4.2; nodes needing a full
// JSON-Schema document instead use DocumentSchema (see schema.go).
type Schema struct {
	Properties map[string]PropertySchema
	Required   []string
}

// PropertySchema describes one configuration property.
type PropertySchema struct {
	// Type is a JSON-Schema type name, or a slice of names for a union
	// (e.g. []string{"string", "null"}).
	Type        any
	Minimum     *float64
	Maximum     *float64
	MinLength   *int
	MaxLength   *int
	Enum        []any
	Default     any
	Description string
}

// Metadata is the static, process-lifetime record describing a node type.
type Metadata struct {
	Type        string
	Name        string
	Description string
	Category    string
	Inputs      []FieldSchema
	Outputs     []FieldSchema
}

// FieldSchema describes one declared input or output field.
type FieldSchema struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Node is the capability set every node type implements.
type Node interface {
	// Type returns the node's registered type identifier.
	Type() string

	// DescribeSchema returns the JSON-schema describing configuration.
	DescribeSchema() Schema

	// Execute runs the node body. Inputs and config are opaque maps keyed
	// by field name; outputs are likewise opaque.
	Execute(ctx context.Context, inputs, config map[string]any) (map[string]any, error)

	// EstimateCost returns a nonnegative USD estimate; the default
	// implementation embedded via Base returns 0.
	EstimateCost(inputs, config map[string]any) float64

	// Metadata returns the node's static descriptive record.
	Metadata() Metadata
}

// Base provides the default EstimateCost (0) and stream-event plumbing that
// concrete node types embed, mirroring the Python BaseNode's defaults.
// Concrete node types set ExecutionID before Execute to bind streaming.
type Base struct {
	ExecutionID string
	Sink        stream.Sink
}

// EstimateCost returns 0 by default; override in the embedding type for
// nodes with real provider costs.
func (Base) EstimateCost(map[string]any, map[string]any) float64 { return 0 }

// EmitStreamEvent is non-blocking best-effort: if no execution id is bound
// or no sink is configured, it is a no-op.
func (b Base) EmitStreamEvent(ctx context.Context, kind stream.EventKind, nodeID string, payload map[string]any) {
	if b.ExecutionID == "" || b.Sink == nil {
		return
	}
	_ = b.Sink.Publish(ctx, stream.Event{
		Kind:        kind,
		NodeID:      nodeID,
		ExecutionID: b.ExecutionID,
		Payload:     payload,
	})
}

// ValidateConfig applies defaults, checks required fields, and enforces
// type/bounds/enum constraints, per §4.2. Config is mutated in place to
// apply defaults. On any failure it returns *errs.ConfigurationInvalid
// carrying the full list of reasons.
func ValidateConfig(nodeType string, schema Schema, config map[string]any) error {
	var reasons []string

	for name, prop := range schema.Properties {
		if prop.Default == nil {
			continue
		}
		v, present := config[name]
		if !present || v == nil {
			config[name] = prop.Default
		}
	}

	for _, name := range schema.Required {
		v, present := config[name]
		if !present || v == nil {
			reasons = append(reasons, name)
		}
	}

	for name, prop := range schema.Properties {
		v, present := config[name]
		if !present {
			continue
		}
		if v == nil {
			continue
		}
		if !validateType(v, prop.Type) {
			reasons = append(reasons, fmt.Sprintf("field %q must be of type %v, got %T", name, prop.Type, v))
		}
		if prop.Minimum != nil || prop.Maximum != nil {
			if n, ok := asFloat(v); ok {
				if prop.Minimum != nil && n < *prop.Minimum {
					reasons = append(reasons, fmt.Sprintf("field %q must be >= %v, got %v", name, *prop.Minimum, v))
				}
				if prop.Maximum != nil && n > *prop.Maximum {
					reasons = append(reasons, fmt.Sprintf("field %q must be <= %v, got %v", name, *prop.Maximum, v))
				}
			}
		}
		if s, ok := v.(string); ok {
			if prop.MinLength != nil && len(s) < *prop.MinLength {
				reasons = append(reasons, fmt.Sprintf("field %q must be at least %d characters", name, *prop.MinLength))
			}
			if prop.MaxLength != nil && len(s) > *prop.MaxLength {
				reasons = append(reasons, fmt.Sprintf("field %q must be at most %d characters", name, *prop.MaxLength))
			}
		}
		if len(prop.Enum) > 0 && !enumContains(prop.Enum, v) {
			reasons = append(reasons, fmt.Sprintf("field %q must be one of %v, got %v", name, prop.Enum, v))
		}
	}

	if len(reasons) > 0 {
		return &errs.ConfigurationInvalid{NodeType: nodeType, Reasons: reasons}
	}
	return nil
}

func validateType(v any, expected any) bool {
	switch t := expected.(type) {
	case nil:
		return true
	case string:
		return matchesJSONType(v, t)
	case []string:
		for _, one := range t {
			if matchesJSONType(v, one) {
				return true
			}
		}
		return false
	case []any:
		for _, one := range t {
			if s, ok := one.(string); ok && matchesJSONType(v, s) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func matchesJSONType(v any, jsonType string) bool {
	switch jsonType {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer":
		switch v.(type) {
		case int, int32, int64:
			return true
		default:
			return false
		}
	case "number":
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		default:
			return false
		}
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "null":
		return v == nil
	default:
		return true
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func enumContains(enum []any, v any) bool {
	for _, e := range enum {
		if fmt.Sprint(e) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}

// ExecuteSafe wraps Execute with validation and consistent error handling:
// validation failures are rethrown unchanged; any other error is wrapped in
// *errs.NodeExecutionFailure.
func ExecuteSafe(ctx context.Context, n Node, inputs, config map[string]any) (map[string]any, error) {
	if err := ValidateConfig(n.Type(), n.DescribeSchema(), config); err != nil {
		return nil, err
	}
	out, err := n.Execute(ctx, inputs, config)
	if err != nil {
		if _, ok := err.(*errs.ConfigurationInvalid); ok {
			return nil, err
		}
		return nil, &errs.NodeExecutionFailure{NodeType: n.Type(), Cause: err}
	}
	return out, nil
}
