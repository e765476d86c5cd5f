package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// nodeShape describes the persisted form of a Node. Kinds are not enumerated
// so that trees written by newer versions still load; unknown kinds stay
// opaque.
const nodeShape = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "node": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "name": {"type": "string"},
        "type": {"type": "string"},
        "required": {"type": "boolean"},
        "format": {"type": "string"},
        "description": {"type": "string"},
        "validation": {"anyOf": [{"type": "null"}, {"$ref": "#/definitions/validation"}]},
        "properties": {"type": ["array", "null"], "items": {"$ref": "#/definitions/node"}},
        "items": {"anyOf": [{"type": "null"}, {"$ref": "#/definitions/node"}]}
      }
    },
    "validation": {
      "type": "object",
      "properties": {
        "min": {"type": ["number", "null"]},
        "max": {"type": ["number", "null"]},
        "minLength": {"type": ["integer", "null"]},
        "maxLength": {"type": ["integer", "null"]},
        "pattern": {"type": "string"}
      }
    }
  },
  "allOf": [{"$ref": "#/definitions/node"}]
}`

var (
	shapeOnce sync.Once
	shape     *jsonschema.Schema
	shapeErr  error
)

func compiledShape() (*jsonschema.Schema, error) {
	shapeOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("node.json", strings.NewReader(nodeShape)); err != nil {
			shapeErr = fmt.Errorf("add node schema: %w", err)
			return
		}
		shape, shapeErr = c.Compile("node.json")
	})
	return shape, shapeErr
}

// Parse decodes a stored tree after checking it against the node shape.
// Empty input and JSON null yield nil without error.
func Parse(data []byte) (*Node, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: decode: %w", err)
	}
	sch, err := compiledShape()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("schema: malformed tree: %w", err)
	}
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("schema: decode: %w", err)
	}
	return &n, nil
}

// ParseOrDefault parses a stored root. Missing, untyped-and-empty or
// malformed input yields DefaultRoot; the parse error, if any, is returned
// alongside so callers can report it.
func ParseOrDefault(data []byte) (*Node, error) {
	n, err := Parse(data)
	if err != nil {
		return DefaultRoot(), err
	}
	return Normalize(n), nil
}

// Normalize maps an absent or untyped empty root to DefaultRoot.
func Normalize(root *Node) *Node {
	if root == nil || (root.Kind == "" && IsEmpty(root)) {
		return DefaultRoot()
	}
	return root
}

// Problems lists kind and validation mismatches in the tree, such as unknown
// kinds or string constraints on a number. They never block loading.
func Problems(root *Node) []string {
	var out []string
	walk(root, Path{}, func(n *Node, p Path) {
		if n.Kind != "" && !n.Kind.Valid() {
			out = append(out, fmt.Sprintf("%s: unknown kind %q", p, n.Kind))
		}
		if n.Validation.IsZero() {
			return
		}
		v := n.Validation
		switch n.Kind {
		case KindNumber:
			if v.MinLength != nil || v.MaxLength != nil || v.Pattern != "" {
				out = append(out, fmt.Sprintf("%s: string constraints on number", p))
			}
			if v.Min != nil && v.Max != nil && *v.Min > *v.Max {
				out = append(out, fmt.Sprintf("%s: min greater than max", p))
			}
		case KindString:
			if v.Min != nil || v.Max != nil {
				out = append(out, fmt.Sprintf("%s: numeric constraints on string", p))
			}
			if v.MinLength != nil && v.MaxLength != nil && *v.MinLength > *v.MaxLength {
				out = append(out, fmt.Sprintf("%s: minLength greater than maxLength", p))
			}
		default:
			out = append(out, fmt.Sprintf("%s: validation on %s", p, kindLabel(n.Kind)))
		}
	})
	return out
}

func walk(n *Node, p Path, fn func(*Node, Path)) {
	if n == nil {
		return
	}
	fn(n, p)
	switch n.Kind {
	case KindObject:
		for i, c := range n.Properties {
			walk(c, append(append(Path(nil), p...), i), fn)
		}
	case KindArray:
		walk(n.Items, append(append(Path(nil), p...), 0), fn)
	}
}
