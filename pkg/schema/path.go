package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Path addresses a node from the root by child indices. For an object the
// index selects a property; for an array index 0 selects the items node.
// Paths are positional and shift when earlier siblings are removed.
type Path []int

// ParsePath parses a dotted path such as "0.2.1". The empty string and "/"
// denote the root.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "/" || s == "." {
		return Path{}, nil
	}
	parts := strings.Split(strings.Trim(s, "./"), ".")
	out := make(Path, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, s)
		}
		out = append(out, n)
	}
	return out, nil
}

func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// IsRoot reports whether p addresses the root.
func (p Path) IsRoot() bool { return len(p) == 0 }

// Parent returns the path of the parent node. The root has no parent.
func (p Path) Parent() (Path, bool) {
	if len(p) == 0 {
		return nil, false
	}
	return append(Path(nil), p[:len(p)-1]...), true
}

// Get returns a copy of the node at path.
func Get(root *Node, path Path) (*Node, error) {
	t := NewTree(root)
	id, err := t.Resolve(path)
	if err != nil {
		return nil, err
	}
	return t.Subtree(id)
}

// UpdateNode returns a copy of root in which the node at path has patch merged
// into it. A nil patch removes the node from its parent; removing the root
// fails with ErrRootDelete. root itself is never modified.
func UpdateNode(root *Node, path Path, patch *Patch) (*Node, error) {
	return edit(root, path, func(t *Tree, id ID) error {
		if patch == nil {
			return t.Remove(id)
		}
		return t.Update(id, *patch)
	})
}

// SetKind returns a copy of root with the node at path switched to kind.
func SetKind(root *Node, path Path, kind Kind) (*Node, error) {
	return edit(root, path, func(t *Tree, id ID) error {
		return t.SetKind(id, kind)
	})
}

// AddChild returns a copy of root with a default field appended to the object
// at path.
func AddChild(root *Node, path Path) (*Node, error) {
	return edit(root, path, func(t *Tree, id ID) error {
		_, err := t.AddChild(id)
		return err
	})
}

// SetItems returns a copy of root with the items of the array at path set to
// child. A nil child defines string items.
func SetItems(root *Node, path Path, child *Node) (*Node, error) {
	return edit(root, path, func(t *Tree, id ID) error {
		_, err := t.SetItems(id, child)
		return err
	})
}

// Move returns a copy of root with the property at path moved to index within
// its parent.
func Move(root *Node, path Path, index int) (*Node, error) {
	return edit(root, path, func(t *Tree, id ID) error {
		return t.Move(id, index)
	})
}

func edit(root *Node, path Path, fn func(*Tree, ID) error) (*Node, error) {
	t := NewTree(root)
	id, err := t.Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := fn(t, id); err != nil {
		return nil, err
	}
	return t.Export(), nil
}
