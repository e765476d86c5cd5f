package types

import (
	"fmt"

	"github.com/yourorg/apiprompt/pkg/schema"
)

// Request sections that hold a schema tree.
const (
	SectionBody    = "body"
	SectionQuery   = "query"
	SectionHeaders = "headers"
)

// Section returns the tree stored under name. Unset trees come back as the
// default root.
func (e *Endpoint) Section(name string) (*schema.Node, error) {
	var n *schema.Node
	switch name {
	case SectionBody:
		n = e.RequestSpec
	case SectionQuery:
		n = e.RequestQuery
	case SectionHeaders:
		n = e.RequestHeaders
	default:
		return nil, fmt.Errorf("%w: unknown section %q", ErrInvalid, name)
	}
	if n == nil {
		return schema.DefaultRoot(), nil
	}
	return n, nil
}

// SetSection replaces the tree stored under name.
func (e *Endpoint) SetSection(name string, n *schema.Node) error {
	switch name {
	case SectionBody:
		e.RequestSpec = n
	case SectionQuery:
		e.RequestQuery = n
	case SectionHeaders:
		e.RequestHeaders = n
	default:
		return fmt.Errorf("%w: unknown section %q", ErrInvalid, name)
	}
	return nil
}

// EditSection applies op to the named tree in place.
func (e *Endpoint) EditSection(name string, op schema.Op) error {
	root, err := e.Section(name)
	if err != nil {
		return err
	}
	out, err := schema.Apply(root, op)
	if err != nil {
		return err
	}
	return e.SetSection(name, out)
}
