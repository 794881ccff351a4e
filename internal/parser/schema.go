package parser

import (
	"fmt"

	"go.yaml.in/yaml/v4"
)

// Kind classifies a schema node by the shape of value it describes
type Kind int

const (
	// KindOpaque has neither type nor $ref and accepts anything
	KindOpaque Kind = iota
	// KindRef has no type but points elsewhere through $ref
	KindRef
	KindObject
	KindArray
	KindString
	KindNumber
	KindInteger
	KindBoolean
	// KindUnknown carries a type name outside the supported subset
	KindUnknown
)

var kindNames = map[Kind]string{
	KindOpaque:  "opaque",
	KindRef:     "ref",
	KindObject:  "object",
	KindArray:   "array",
	KindString:  "string",
	KindNumber:  "number",
	KindInteger: "integer",
	KindBoolean: "boolean",
	KindUnknown: "unknown",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var kindsByType = map[string]Kind{
	"object":  KindObject,
	"array":   KindArray,
	"string":  KindString,
	"number":  KindNumber,
	"integer": KindInteger,
	"boolean": KindBoolean,
}

// Property is one declared object property
type Property struct {
	Name   string
	Schema *yaml.Node
}

// Schema is the subset of a JSON Schema node that apicheck understands.
// Child schemas stay as nodes so self-referential documents are read lazily.
type Schema struct {
	Kind       Kind
	Type       string // declared type name, kept for KindUnknown diagnostics
	Ref        string
	Properties []Property
	Items      *yaml.Node
	Enum       []any
	HasEnum    bool
	Pattern    string
	Format     string
}

// ParseSchema reads a schema node. A nil node, or a boolean schema, is
// opaque. A declared type takes precedence over $ref.
func ParseSchema(n *yaml.Node) (Schema, error) {
	n = deref(n)
	var s Schema
	if n == nil {
		return s, nil
	}
	if n.Kind == yaml.ScalarNode && n.Tag == "!!bool" {
		return s, nil
	}
	if n.Kind != yaml.MappingNode {
		return s, fmt.Errorf("schema at line %d is not an object", n.Line)
	}

	s.Type = schemaType(Get(n, "type"))
	s.Ref, _ = RefOf(n)
	s.Pattern, _ = String(Get(n, "pattern"))
	s.Format, _ = String(Get(n, "format"))
	s.Items = Get(n, "items")

	switch {
	case s.Type != "":
		kind, ok := kindsByType[s.Type]
		if !ok {
			kind = KindUnknown
		}
		s.Kind = kind
	case s.Ref != "":
		s.Kind = KindRef
	default:
		s.Kind = KindOpaque
	}

	if props := Get(n, "properties"); props != nil {
		if props.Kind != yaml.MappingNode {
			return s, fmt.Errorf("properties at line %d is not an object", props.Line)
		}
		Each(props, func(name string, value *yaml.Node) {
			s.Properties = append(s.Properties, Property{Name: name, Schema: value})
		})
	}

	if enum := Get(n, "enum"); enum != nil {
		if enum.Kind != yaml.SequenceNode {
			return s, fmt.Errorf("enum at line %d is not an array", enum.Line)
		}
		s.HasEnum = true
		for _, item := range Items(enum) {
			v, err := Decode(item)
			if err != nil {
				return s, fmt.Errorf("failed to decode enum value at line %d: %w", item.Line, err)
			}
			s.Enum = append(s.Enum, v)
		}
	}

	return s, nil
}

// schemaType reads a type keyword. OpenAPI 3.1 allows a list of types; the
// first one that is not "null" is used.
func schemaType(n *yaml.Node) string {
	if t, ok := String(n); ok {
		return t
	}
	for _, item := range Items(n) {
		if t, ok := String(item); ok && t != "null" {
			return t
		}
	}
	return ""
}
