package checker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moamenhredeen/apicheck/internal/parser"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v4"
)

const auditResource = "response-schema.json"

// audit validates a generated mock against the schema it was generated
// from. Findings are logged and never change the verdict.
func (c *Checker) audit(schemaNode *yaml.Node, mock any) {
	if !c.auditEnabled || mock == nil {
		return
	}

	schema, err := c.compileSchema(schemaNode)
	if err != nil {
		c.logger.Warn("response schema could not be compiled for audit", "error", err)
		return
	}
	if schema == nil {
		return
	}

	// round trip through JSON so the validator sees plain JSON values
	data, err := json.Marshal(mock)
	if err != nil {
		c.logger.Warn("mock response could not be encoded for audit", "error", err)
		return
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		c.logger.Warn("mock response could not be decoded for audit", "error", err)
		return
	}

	if err := schema.Validate(instance); err != nil {
		c.logger.Warn("mock response does not match its schema", "error", auditMessage(err))
		return
	}
	c.logger.Debug("mock response validated against its schema")
}

// compileSchema compiles the response schema as a standalone resource that
// carries the document's reusable sections, so local $refs still resolve
func (c *Checker) compileSchema(node *yaml.Node) (*jsonschema.Schema, error) {
	if schema, ok := c.schemas[node]; ok {
		return schema, nil
	}

	decoded, err := parser.Decode(node)
	if err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	resource, ok := decoded.(map[string]any)
	if !ok {
		// boolean schemas and the like carry no constraints worth auditing
		c.schemas[node] = nil
		return nil, nil
	}

	standalone := make(map[string]any, len(resource)+2)
	for k, v := range resource {
		standalone[k] = v
	}
	for _, section := range []string{"components", "definitions"} {
		if _, taken := standalone[section]; taken {
			continue
		}
		if n := parser.Get(c.doc.Root(), section); n != nil {
			v, err := parser.Decode(n)
			if err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", section, err)
			}
			standalone[section] = v
		}
	}

	data, err := json.Marshal(standalone)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft4
	if strings.HasPrefix(c.doc.Version(), "3.1") {
		compiler.Draft = jsonschema.Draft2020
	}
	if err := compiler.AddResource(auditResource, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile(auditResource)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	c.schemas[node] = schema
	return schema, nil
}

// auditMessage flattens a validation error into its leaf causes
func auditMessage(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var msgs []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			msgs = append(msgs, fmt.Sprintf("%s: %s", e.InstanceLocation, e.Message))
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	return strings.Join(msgs, "; ")
}
