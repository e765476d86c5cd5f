package schema

import (
	"errors"
	"fmt"
)

// Actions accepted by Apply.
const (
	ActionUpdate   = "update"
	ActionRemove   = "remove"
	ActionAddChild = "add_child"
	ActionSetKind  = "set_kind"
	ActionSetItems = "set_items"
	ActionMove     = "move"
)

// ErrInvalidOp is returned by Apply for an unknown action or a missing
// argument.
var ErrInvalidOp = errors.New("schema: invalid operation")

// Op is one edit request as sent by clients: an action, the dotted path of
// the target and the action's argument.
type Op struct {
	Action string `json:"action"`
	Path   string `json:"path"`
	Patch  *Patch `json:"patch,omitempty"`
	Kind   Kind   `json:"type,omitempty"`
	Items  *Node  `json:"items,omitempty"`
	Index  int    `json:"index,omitempty"`
}

// Apply performs op on a copy of root and returns the new root.
func Apply(root *Node, op Op) (*Node, error) {
	path, err := ParsePath(op.Path)
	if err != nil {
		return nil, err
	}
	switch op.Action {
	case ActionUpdate:
		if op.Patch == nil {
			return nil, fmt.Errorf("%w: update needs a patch", ErrInvalidOp)
		}
		return UpdateNode(root, path, op.Patch)
	case ActionRemove:
		return UpdateNode(root, path, nil)
	case ActionAddChild:
		return AddChild(root, path)
	case ActionSetKind:
		k, err := ParseKind(string(op.Kind))
		if err != nil {
			return nil, err
		}
		return SetKind(root, path, k)
	case ActionSetItems:
		return SetItems(root, path, op.Items)
	case ActionMove:
		return Move(root, path, op.Index)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidOp, op.Action)
	}
}
