package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v4"
)

// RefOf returns the $ref string of a mapping node
func RefOf(n *yaml.Node) (string, bool) {
	return String(Get(n, "$ref"))
}

// Lookup returns the node a local reference such as
// #/components/schemas/Pet points at. Components are found through the
// libopenapi index; pointers the index cannot express, such as the root or
// ~0 escapes, are walked from the document root.
func (d *Document) Lookup(ref string) (*yaml.Node, error) {
	if !strings.HasPrefix(ref, "#") {
		return nil, fmt.Errorf("unsupported $ref %q: only local references are supported", ref)
	}

	pointer := strings.TrimPrefix(ref, "#")
	if pointer == "" || pointer == "/" {
		return d.root, nil
	}

	if d.index != nil {
		if found := d.index.FindComponent(context.Background(), ref); found != nil && found.Node != nil {
			return deref(found.Node), nil
		}
	}
	return d.walk(ref, pointer)
}

func (d *Document) walk(ref, pointer string) (*yaml.Node, error) {
	current := d.root
	for _, segment := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		segment = unescapePointer(segment)
		switch current.Kind {
		case yaml.MappingNode:
			current = Get(current, segment)
		case yaml.SequenceNode:
			i, err := strconv.Atoi(segment)
			if err != nil || i < 0 || i >= len(current.Content) {
				current = nil
			} else {
				current = deref(current.Content[i])
			}
		default:
			current = nil
		}
		if current == nil {
			return nil, fmt.Errorf("failed to resolve $ref %q: segment %q not found", ref, segment)
		}
	}

	return current, nil
}

// Resolve follows the $ref of n, if any, through ref chains of at most
// MaxDepth hops. When the target is missing or the chain cycles, a warning
// is logged and n is returned unresolved with false.
func (d *Document) Resolve(n *yaml.Node) (*yaml.Node, bool) {
	n = deref(n)
	current := n
	seen := make(map[string]bool)

	for hops := 0; ; hops++ {
		ref, ok := RefOf(current)
		if !ok {
			return current, true
		}
		if seen[ref] {
			d.logger.Warn("circular $ref left unresolved", "ref", ref)
			return n, false
		}
		if hops >= MaxDepth {
			d.logger.Warn("$ref chain too long, left unresolved", "ref", ref, "hops", hops)
			return n, false
		}
		seen[ref] = true

		target, err := d.Lookup(ref)
		if err != nil {
			d.logger.Error("failed to resolve $ref", "ref", ref, "error", err)
			return n, false
		}
		current = target
	}
}

func unescapePointer(s string) string {
	if !strings.Contains(s, "~") {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "~1", "/"), "~0", "~")
}
