package node

import (
	"bytes"
	"fmt"

	"github.com/nodeai/flowengine/errs"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// DocumentSchema compiles a full JSON-Schema document for nodes whose
// configuration shape is too rich for the minimal Schema property table
// (nested objects, $ref, oneOf, etc). ValidateDocument checks config
// against the document's constraints with jsonschema/v6; unlike
// ValidateConfig it applies no defaults and leaves config unchanged. It
// reports all failures through the same *errs.ConfigurationInvalid shape so
// callers do not need to distinguish which schema source a node uses.
type DocumentSchema struct {
	compiled *jsonschema.Schema
}

// CompileDocumentSchema parses and compiles raw as a JSON-Schema document.
func CompileDocumentSchema(name string, raw []byte) (*DocumentSchema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing schema document %q: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("adding schema resource %q: %w", name, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %q: %w", name, err)
	}
	return &DocumentSchema{compiled: compiled}, nil
}

// ValidateDocument validates config against the compiled document. On
// failure it flattens the jsonschema validation error tree into a reason
// list and returns *errs.ConfigurationInvalid, matching ValidateConfig's
// error contract.
func (d *DocumentSchema) ValidateDocument(nodeType string, config map[string]any) error {
	if err := d.compiled.Validate(config); err != nil {
		var reasons []string
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			reasons = flattenValidationError(ve)
		} else {
			reasons = []string{err.Error()}
		}
		return &errs.ConfigurationInvalid{NodeType: nodeType, Reasons: reasons}
	}
	return nil
}

func flattenValidationError(ve *jsonschema.ValidationError) []string {
	var reasons []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			reasons = append(reasons, e.Error())
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return reasons
}
