package schema

import (
	"errors"
	"fmt"
)

var (
	ErrRootDelete  = errors.New("schema: root node cannot be deleted")
	ErrInvalidKind = errors.New("schema: invalid kind")
	ErrNotObject   = errors.New("schema: node is not an object")
	ErrNotArray    = errors.New("schema: node is not an array")
	ErrInvalidPath = errors.New("schema: invalid path")
	ErrUnknownNode = errors.New("schema: unknown node")
)

func invalidKind(k string) error {
	return fmt.Errorf("%w %q", ErrInvalidKind, k)
}
