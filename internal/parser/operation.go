package parser

import (
	"strings"

	"github.com/pb33f/libopenapi/datamodel/high/base"
	v2high "github.com/pb33f/libopenapi/datamodel/high/v2"
	v3high "github.com/pb33f/libopenapi/datamodel/high/v3"
	"github.com/pb33f/libopenapi/orderedmap"
	"go.yaml.in/yaml/v4"
)

// Operation is a declared operation, read from the libopenapi model
type Operation struct {
	Template string
	Method   string

	// PathParameters are declared on the path item and apply to every
	// operation under it
	PathParameters []Parameter
	Parameters     []Parameter

	// Responses maps status codes to responses in declaration order.
	// The default response is not included.
	Responses *orderedmap.Map[string, *Response]
}

// Parameter is a declared request parameter
type Parameter struct {
	Name     string
	In       string
	Required bool

	// Schema is the raw schema node, possibly a $ref. Swagger 2 non-body
	// parameters carry their type keywords inline, so their schema is a
	// node built from those keywords.
	Schema *yaml.Node
}

// Response is a declared response
type Response struct {
	// Content maps media types to raw schema nodes in declaration order.
	// Swagger 2 responses have no content.
	Content *orderedmap.Map[string, *yaml.Node]
}

// Operation returns the operation declared for method under template, or
// nil. The method is matched case-insensitively.
func (d *Document) Operation(template, method string) *Operation {
	m := strings.ToLower(method)

	switch {
	case d.v3 != nil && d.v3.Paths != nil:
		item := d.v3.Paths.PathItems.GetOrZero(template)
		if item == nil {
			return nil
		}
		op := item.GetOperations().GetOrZero(m)
		if op == nil {
			return nil
		}
		return &Operation{
			Template:       template,
			Method:         m,
			PathParameters: v3Parameters(item.Parameters),
			Parameters:     v3Parameters(op.Parameters),
			Responses:      v3Responses(op.Responses),
		}

	case d.v2 != nil && d.v2.Paths != nil:
		item := d.v2.Paths.PathItems.GetOrZero(template)
		if item == nil {
			return nil
		}
		op := item.GetOperations().GetOrZero(m)
		if op == nil {
			return nil
		}
		return &Operation{
			Template:       template,
			Method:         m,
			PathParameters: v2Parameters(item.Parameters),
			Parameters:     v2Parameters(op.Parameters),
			Responses:      v2Responses(op.Responses),
		}
	}
	return nil
}

func v3Parameters(params []*v3high.Parameter) []Parameter {
	out := make([]Parameter, 0, len(params))
	for _, p := range params {
		if p == nil {
			continue
		}
		out = append(out, Parameter{
			Name:     p.Name,
			In:       p.In,
			Required: p.Required != nil && *p.Required,
			Schema:   schemaNode(p.Schema),
		})
	}
	return out
}

func v3Responses(responses *v3high.Responses) *orderedmap.Map[string, *Response] {
	out := orderedmap.New[string, *Response]()
	if responses == nil {
		return out
	}
	for code, response := range responses.Codes.FromOldest() {
		content := orderedmap.New[string, *yaml.Node]()
		if response != nil {
			for mediaType, media := range response.Content.FromOldest() {
				var schema *yaml.Node
				if media != nil {
					schema = schemaNode(media.Schema)
				}
				content.Set(mediaType, schema)
			}
		}
		out.Set(code, &Response{Content: content})
	}
	return out
}

func v2Parameters(params []*v2high.Parameter) []Parameter {
	out := make([]Parameter, 0, len(params))
	for _, p := range params {
		if p == nil {
			continue
		}
		param := Parameter{
			Name:     p.Name,
			In:       p.In,
			Required: p.Required != nil && *p.Required,
		}
		if p.In == "body" {
			param.Schema = schemaNode(p.Schema)
		} else {
			param.Schema = keywordSchema(p)
		}
		out = append(out, param)
	}
	return out
}

func v2Responses(responses *v2high.Responses) *orderedmap.Map[string, *Response] {
	out := orderedmap.New[string, *Response]()
	if responses == nil {
		return out
	}
	for code := range responses.Codes.KeysFromOldest() {
		out.Set(code, &Response{})
	}
	return out
}

// schemaNode returns the node a schema proxy was built from. The high level
// proxy only holds a node once rendered, so read the low level one.
func schemaNode(proxy *base.SchemaProxy) *yaml.Node {
	if proxy == nil {
		return nil
	}
	if low := proxy.GoLow(); low != nil {
		return low.GetValueNode()
	}
	return nil
}

// keywordSchema builds a schema node from the type keywords of a Swagger 2
// non-body parameter
func keywordSchema(p *v2high.Parameter) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	add := func(key string, value *yaml.Node) {
		n.Content = append(n.Content, scalarNode(key), value)
	}
	if p.Type != "" {
		add("type", scalarNode(p.Type))
	}
	if p.Format != "" {
		add("format", scalarNode(p.Format))
	}
	if p.Pattern != "" {
		add("pattern", scalarNode(p.Pattern))
	}
	if len(p.Enum) > 0 {
		add("enum", &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: p.Enum})
	}
	return n
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
