// Package schema models the JSON shape of request and response payloads as a
// tree of field definitions, and provides structural edits addressed by path.
package schema

import (
	"bytes"
	"encoding/json"
)

// Kind is the structural type of a node.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// Kinds lists every kind a node may be set to.
var Kinds = []Kind{KindString, KindNumber, KindBoolean, KindObject, KindArray}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindNumber, KindBoolean, KindObject, KindArray:
		return true
	}
	return false
}

// ParseKind converts s into a Kind, rejecting unknown values.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", invalidKind(s)
	}
	return k, nil
}

// Validation holds optional constraints. Min/Max apply to numbers,
// MinLength/MaxLength/Pattern to strings.
type Validation struct {
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
}

// IsZero reports whether no constraint is set.
func (v *Validation) IsZero() bool {
	return v == nil || (v.Min == nil && v.Max == nil && v.MinLength == nil && v.MaxLength == nil && v.Pattern == "")
}

func (v *Validation) clone() *Validation {
	if v == nil {
		return nil
	}
	out := &Validation{Pattern: v.Pattern}
	if v.Min != nil {
		f := *v.Min
		out.Min = &f
	}
	if v.Max != nil {
		f := *v.Max
		out.Max = &f
	}
	if v.MinLength != nil {
		n := *v.MinLength
		out.MinLength = &n
	}
	if v.MaxLength != nil {
		n := *v.MaxLength
		out.MaxLength = &n
	}
	return out
}

// Node is one field definition.
//
// Properties is only meaningful for objects and Items only for arrays. A nil
// Properties slice means "not defined yet" and is omitted from JSON, while an
// empty non-nil slice is an object with zero properties and encodes as [].
type Node struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name,omitempty"`
	Kind        Kind        `json:"type,omitempty"`
	Required    bool        `json:"required,omitempty"`
	Format      string      `json:"format,omitempty"`
	Description string      `json:"description,omitempty"`
	Validation  *Validation `json:"validation,omitempty"`
	Properties  []*Node     `json:"properties,omitempty"`
	Items       *Node       `json:"items,omitempty"`

	// optional records a "required": false that was stored or set explicitly,
	// so it is written back instead of being omitted.
	optional bool
}

type nodeJSON struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name,omitempty"`
	Kind        Kind        `json:"type,omitempty"`
	Required    *bool       `json:"required,omitempty"`
	Format      string      `json:"format,omitempty"`
	Description string      `json:"description,omitempty"`
	Validation  *Validation `json:"validation,omitempty"`
	Properties  *[]*Node    `json:"properties,omitempty"`
	Items       *Node       `json:"items,omitempty"`
}

// MarshalJSON keeps the distinction between absent and empty properties and
// writes text such as patterns without HTML escaping.
func (n Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{
		ID:          n.ID,
		Name:        n.Name,
		Kind:        n.Kind,
		Format:      n.Format,
		Description: n.Description,
		Validation:  n.Validation,
		Items:       n.Items,
	}
	if n.Required || n.optional {
		req := n.Required
		out.Required = &req
	}
	if n.Properties != nil {
		props := n.Properties
		out.Properties = &props
	}
	return Marshal(out)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var in nodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*n = Node{
		ID:          in.ID,
		Name:        in.Name,
		Kind:        in.Kind,
		Format:      in.Format,
		Description: in.Description,
		Validation:  in.Validation,
		Items:       in.Items,
	}
	if in.Required != nil {
		n.SetRequired(*in.Required)
	}
	if in.Properties != nil {
		n.Properties = *in.Properties
	}
	return nil
}

// SetRequired toggles the flag. A node switched off keeps "required": false
// in its encoding.
func (n *Node) SetRequired(required bool) {
	n.Required = required
	n.optional = !required
}

// Marshal encodes v like json.Marshal but leaves <, > and & as written.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// DefaultRoot returns the root used when nothing has been defined: an object
// with an empty property list.
func DefaultRoot() *Node {
	return &Node{Kind: KindObject, Properties: []*Node{}}
}

// DefaultField returns the node created by an "add field" action.
func DefaultField() *Node {
	return &Node{Kind: KindString, Required: true, Name: "newField"}
}

// IsEmpty reports whether n defines no fields: nil, or an untyped or object
// node without properties and items.
func IsEmpty(n *Node) bool {
	if n == nil {
		return true
	}
	if n.Kind != "" && n.Kind != KindObject {
		return false
	}
	return len(n.Properties) == 0 && n.Items == nil
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Validation = n.Validation.clone()
	if n.Properties != nil {
		out.Properties = make([]*Node, len(n.Properties))
		for i, c := range n.Properties {
			out.Properties[i] = c.Clone()
		}
	}
	out.Items = n.Items.Clone()
	return &out
}
