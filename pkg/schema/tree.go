package schema

import (
	"fmt"

	"github.com/google/uuid"
)

// ID identifies a node inside a Tree. IDs are generated when the node enters
// the tree and stay valid across edits of unrelated nodes.
type ID string

// Patch lists the fields to overwrite on a node. Nil fields are left alone.
// Properties replaces the whole child list.
type Patch struct {
	Name        *string     `json:"name,omitempty"`
	Kind        *Kind       `json:"type,omitempty"`
	Required    *bool       `json:"required,omitempty"`
	Format      *string     `json:"format,omitempty"`
	Description *string     `json:"description,omitempty"`
	Validation  *Validation `json:"validation,omitempty"`
	Properties  *[]*Node    `json:"properties,omitempty"`
	Items       *Node       `json:"items,omitempty"`
}

type entry struct {
	node     Node
	parent   ID
	hasProps bool
	children []ID
	items    ID
}

// Tree is an arena of nodes keyed by ID with a parent index and an ordered
// child index per node. It is not safe for concurrent mutation.
type Tree struct {
	root  ID
	nodes map[ID]*entry
}

// NewTree copies root into a new arena. A nil root yields DefaultRoot.
func NewTree(root *Node) *Tree {
	if root == nil {
		root = DefaultRoot()
	}
	t := &Tree{nodes: make(map[ID]*entry)}
	t.root = t.insert(root, "")
	return t
}

func newID() ID {
	return ID(uuid.NewString())
}

func (t *Tree) insert(n *Node, parent ID) ID {
	if n == nil {
		n = &Node{}
	}
	id := newID()
	e := &entry{node: *n, parent: parent}
	e.node.Validation = n.Validation.clone()
	e.node.Properties = nil
	e.node.Items = nil
	t.nodes[id] = e
	if n.Properties != nil {
		e.hasProps = true
		e.children = make([]ID, 0, len(n.Properties))
		for _, c := range n.Properties {
			e.children = append(e.children, t.insert(c, id))
		}
	}
	if n.Items != nil {
		e.items = t.insert(n.Items, id)
	}
	return id
}

func (t *Tree) get(id ID) (*entry, error) {
	e, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	return e, nil
}

// Root returns the root ID.
func (t *Tree) Root() ID { return t.root }

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Resolve walks path from the root and returns the addressed node's ID.
func (t *Tree) Resolve(path Path) (ID, error) {
	cur := t.root
	for depth, idx := range path {
		e := t.nodes[cur]
		switch e.node.Kind {
		case KindObject:
			if idx < 0 || idx >= len(e.children) {
				return "", fmt.Errorf("%w: index %d out of range at depth %d", ErrInvalidPath, idx, depth)
			}
			cur = e.children[idx]
		case KindArray:
			if idx != 0 || e.items == "" {
				return "", fmt.Errorf("%w: array at depth %d has no items at index %d", ErrInvalidPath, depth, idx)
			}
			cur = e.items
		default:
			return "", fmt.Errorf("%w: %s node at depth %d has no children", ErrInvalidPath, kindLabel(e.node.Kind), depth)
		}
	}
	return cur, nil
}

// PathOf returns the current positional path of id.
func (t *Tree) PathOf(id ID) (Path, error) {
	var rev Path
	cur := id
	for cur != t.root {
		e, err := t.get(cur)
		if err != nil {
			return nil, err
		}
		p := t.nodes[e.parent]
		if p.items == cur {
			rev = append(rev, 0)
		} else {
			rev = append(rev, indexOf(p.children, cur))
		}
		cur = e.parent
	}
	out := make(Path, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out, nil
}

// Node returns a copy of the fields of id without its children.
func (t *Tree) Node(id ID) (Node, error) {
	e, err := t.get(id)
	if err != nil {
		return Node{}, err
	}
	n := e.node
	n.Validation = e.node.Validation.clone()
	return n, nil
}

// Children returns the ordered property IDs of id. The second result is false
// when the node has no property list at all.
func (t *Tree) Children(id ID) ([]ID, bool) {
	e, ok := t.nodes[id]
	if !ok || !e.hasProps {
		return nil, false
	}
	return append([]ID(nil), e.children...), true
}

// Items returns the items ID of id, if any.
func (t *Tree) Items(id ID) (ID, bool) {
	e, ok := t.nodes[id]
	if !ok || e.items == "" {
		return "", false
	}
	return e.items, true
}

// Parent returns the parent ID of id. The root has none.
func (t *Tree) Parent(id ID) (ID, bool) {
	e, ok := t.nodes[id]
	if !ok || e.parent == "" {
		return "", false
	}
	return e.parent, true
}

// Update merges p into id. Switching the kind to object materializes an empty
// property list when none is present.
func (t *Tree) Update(id ID, p Patch) error {
	e, err := t.get(id)
	if err != nil {
		return err
	}
	if p.Kind != nil && !p.Kind.Valid() {
		return invalidKind(string(*p.Kind))
	}
	if p.Name != nil {
		e.node.Name = *p.Name
	}
	if p.Required != nil {
		e.node.SetRequired(*p.Required)
	}
	if p.Format != nil {
		e.node.Format = *p.Format
	}
	if p.Description != nil {
		e.node.Description = *p.Description
	}
	if p.Validation != nil {
		e.node.Validation = p.Validation.clone()
	}
	if p.Properties != nil {
		for _, c := range e.children {
			t.drop(c)
		}
		e.hasProps = true
		e.children = make([]ID, 0, len(*p.Properties))
		for _, c := range *p.Properties {
			e.children = append(e.children, t.insert(c, id))
		}
	}
	if p.Items != nil {
		if e.items != "" {
			t.drop(e.items)
		}
		e.items = t.insert(p.Items, id)
	}
	if p.Kind != nil {
		t.setKind(e, *p.Kind)
	}
	return nil
}

// SetKind changes the kind of id. Stale properties or items are kept but
// become inert.
func (t *Tree) SetKind(id ID, k Kind) error {
	if !k.Valid() {
		return invalidKind(string(k))
	}
	e, err := t.get(id)
	if err != nil {
		return err
	}
	t.setKind(e, k)
	return nil
}

func (t *Tree) setKind(e *entry, k Kind) {
	e.node.Kind = k
	if k == KindObject && !e.hasProps {
		e.hasProps = true
		e.children = []ID{}
	}
}

// AddChild appends a default field to the object id and returns its ID.
func (t *Tree) AddChild(id ID) (ID, error) {
	return t.AddNode(id, DefaultField())
}

// AddNode appends a copy of n to the properties of the object id.
func (t *Tree) AddNode(id ID, n *Node) (ID, error) {
	e, err := t.get(id)
	if err != nil {
		return "", err
	}
	if e.node.Kind != KindObject {
		return "", fmt.Errorf("%w: got %s", ErrNotObject, kindLabel(e.node.Kind))
	}
	child := t.insert(n, id)
	e.hasProps = true
	e.children = append(e.children, child)
	return child, nil
}

// SetItems creates or replaces the items of the array id. A nil n defines
// string items.
func (t *Tree) SetItems(id ID, n *Node) (ID, error) {
	e, err := t.get(id)
	if err != nil {
		return "", err
	}
	if e.node.Kind != KindArray {
		return "", fmt.Errorf("%w: got %s", ErrNotArray, kindLabel(e.node.Kind))
	}
	if n == nil {
		n = &Node{Kind: KindString}
	}
	if e.items != "" {
		t.drop(e.items)
	}
	e.items = t.insert(n, id)
	return e.items, nil
}

// Remove deletes id and its subtree from its parent's properties, or clears
// the parent's items.
func (t *Tree) Remove(id ID) error {
	if id == t.root {
		return ErrRootDelete
	}
	e, err := t.get(id)
	if err != nil {
		return err
	}
	p := t.nodes[e.parent]
	if p.items == id {
		p.items = ""
	} else {
		i := indexOf(p.children, id)
		p.children = append(p.children[:i:i], p.children[i+1:]...)
	}
	t.drop(id)
	return nil
}

// Move places the property id at index within its parent's properties.
func (t *Tree) Move(id ID, index int) error {
	if id == t.root {
		return fmt.Errorf("%w: root cannot be moved", ErrInvalidPath)
	}
	e, err := t.get(id)
	if err != nil {
		return err
	}
	p := t.nodes[e.parent]
	from := indexOf(p.children, id)
	if from < 0 {
		return fmt.Errorf("%w: items node cannot be moved", ErrInvalidPath)
	}
	if index < 0 || index >= len(p.children) {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidPath, index)
	}
	rest := append(p.children[:from:from], p.children[from+1:]...)
	out := make([]ID, 0, len(p.children))
	out = append(out, rest[:index]...)
	out = append(out, id)
	out = append(out, rest[index:]...)
	p.children = out
	return nil
}

func (t *Tree) drop(id ID) {
	e, ok := t.nodes[id]
	if !ok {
		return
	}
	for _, c := range e.children {
		t.drop(c)
	}
	if e.items != "" {
		t.drop(e.items)
	}
	delete(t.nodes, id)
}

// Export rebuilds the node tree.
func (t *Tree) Export() *Node {
	return t.build(t.root)
}

// Subtree rebuilds the node tree rooted at id.
func (t *Tree) Subtree(id ID) (*Node, error) {
	if _, err := t.get(id); err != nil {
		return nil, err
	}
	return t.build(id), nil
}

func (t *Tree) build(id ID) *Node {
	e := t.nodes[id]
	n := e.node
	n.Validation = e.node.Validation.clone()
	if e.hasProps {
		n.Properties = make([]*Node, 0, len(e.children))
		for _, c := range e.children {
			n.Properties = append(n.Properties, t.build(c))
		}
	}
	if e.items != "" {
		n.Items = t.build(e.items)
	}
	return &n
}

func indexOf(ids []ID, id ID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func kindLabel(k Kind) string {
	if k == "" {
		return "untyped"
	}
	return string(k)
}
