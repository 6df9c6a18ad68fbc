package tree

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Ref addresses a node in a Tree. Refs are never reused, so a Ref to a removed
// node stays invalid.
type Ref int

// NoRef is the parent of root nodes.
const NoRef Ref = -1

// Kind classifies a node.
type Kind int

const (
	Directory Kind = iota
	File
	Group
	Assertion
)

func (k Kind) String() string {
	switch k {
	case Directory:
		return "directory"
	case File:
		return "file"
	case Group:
		return "group"
	case Assertion:
		return "assertion"
	default:
		return "unknown"
	}
}

// Runnable reports whether nodes of this kind can be run on their own.
func (k Kind) Runnable() bool {
	return k == Directory || k == File
}

// Spec describes a node to get or create.
type Spec struct {
	ID      string
	Name    string
	Kind    Kind
	Locator string
}

// Node is a snapshot of a persistent node.
type Node struct {
	Ref      Ref
	Parent   Ref
	ID       string
	Name     string
	Kind     Kind
	Locator  string
	Runnable bool
}

type entry struct {
	node     Node
	children *linkedhashmap.Map // id -> Ref
	removed  bool
}

// Tree is a forest with one root per workspace. It is not safe for concurrent
// use; callers serialise reconciliation passes.
type Tree struct {
	entries []*entry
	roots   *linkedhashmap.Map // id -> Ref
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{roots: linkedhashmap.New()}
}

// GetOrCreate returns the child of parent with spec.ID, creating it at the end
// of the parent's children when absent. created reports whether a node was
// added. An existing node keeps its original name, kind and locator.
func (t *Tree) GetOrCreate(parent Ref, spec Spec) (ref Ref, created bool) {
	children := t.childMap(parent)
	if children == nil {
		return NoRef, false
	}
	if v, ok := children.Get(spec.ID); ok {
		return v.(Ref), false
	}

	ref = Ref(len(t.entries))
	t.entries = append(t.entries, &entry{
		node: Node{
			Ref:      ref,
			Parent:   parent,
			ID:       spec.ID,
			Name:     spec.Name,
			Kind:     spec.Kind,
			Locator:  spec.Locator,
			Runnable: spec.Kind.Runnable(),
		},
		children: linkedhashmap.New(),
	})
	children.Put(spec.ID, ref)
	return ref, true
}

// ClearChildren removes every descendant of ref. It returns the number of
// nodes removed.
func (t *Tree) ClearChildren(ref Ref) int {
	e := t.entry(ref)
	if e == nil {
		return 0
	}
	n := 0
	for _, v := range e.children.Values() {
		n += t.tombstone(v.(Ref))
	}
	e.children.Clear()
	return n
}

func (t *Tree) tombstone(ref Ref) int {
	e := t.entry(ref)
	if e == nil {
		return 0
	}
	n := 1
	for _, v := range e.children.Values() {
		n += t.tombstone(v.(Ref))
	}
	e.children.Clear()
	e.removed = true
	return n
}

// Remove deletes ref and its subtree from its parent. It returns the number of
// nodes removed.
func (t *Tree) Remove(ref Ref) int {
	e := t.entry(ref)
	if e == nil {
		return 0
	}
	if siblings := t.childMap(e.node.Parent); siblings != nil {
		siblings.Remove(e.node.ID)
	}
	return t.tombstone(ref)
}

// RemoveLocator deletes every node whose locator equals uri, along with its
// subtree. It returns the number of nodes removed.
func (t *Tree) RemoveLocator(uri string) int {
	if uri == "" {
		return 0
	}
	var matches []Ref
	for _, e := range t.entries {
		if !e.removed && e.node.Locator == uri {
			matches = append(matches, e.node.Ref)
		}
	}
	n := 0
	for _, ref := range matches {
		n += t.Remove(ref)
	}
	return n
}

// FindLocator returns the first live node whose locator equals uri.
func (t *Tree) FindLocator(uri string) (Ref, bool) {
	for _, e := range t.entries {
		if !e.removed && uri != "" && e.node.Locator == uri {
			return e.node.Ref, true
		}
	}
	return NoRef, false
}

// Node returns the node behind ref.
func (t *Tree) Node(ref Ref) (Node, bool) {
	e := t.entry(ref)
	if e == nil {
		return Node{}, false
	}
	return e.node, true
}

// Children returns ref's children in insertion order.
func (t *Tree) Children(ref Ref) []Ref {
	return refs(t.childMap(ref))
}

// Roots returns the root nodes in insertion order.
func (t *Tree) Roots() []Ref {
	return refs(t.roots)
}

// Lookup follows display names from root downwards and returns the node at
// the end of the path. With no names it returns root. Sibling groups and
// assertions may share a name under different ids; the earliest created one
// is matched. Directory and file names are unique among their siblings.
func (t *Tree) Lookup(root Ref, names ...string) (Ref, bool) {
	if t.entry(root) == nil {
		return NoRef, false
	}
	cur := root
	for _, name := range names {
		next := NoRef
		for _, child := range t.Children(cur) {
			if t.entries[child].node.Name == name {
				next = child
				break
			}
		}
		if next == NoRef {
			return NoRef, false
		}
		cur = next
	}
	return cur, true
}

// Walk visits every live node depth-first in child order. depth is 0 for
// roots. Returning false from fn skips the node's children.
func (t *Tree) Walk(fn func(n Node, depth int) bool) {
	for _, ref := range t.Roots() {
		t.walk(ref, 0, fn)
	}
}

func (t *Tree) walk(ref Ref, depth int, fn func(Node, int) bool) {
	e := t.entries[ref]
	if !fn(e.node, depth) {
		return
	}
	for _, child := range t.Children(ref) {
		t.walk(child, depth+1, fn)
	}
}

// Len returns the number of live nodes.
func (t *Tree) Len() int {
	n := 0
	for _, e := range t.entries {
		if !e.removed {
			n++
		}
	}
	return n
}

func (t *Tree) entry(ref Ref) *entry {
	if ref < 0 || int(ref) >= len(t.entries) {
		return nil
	}
	e := t.entries[ref]
	if e.removed {
		return nil
	}
	return e
}

func (t *Tree) childMap(parent Ref) *linkedhashmap.Map {
	if parent == NoRef {
		return t.roots
	}
	if e := t.entry(parent); e != nil {
		return e.children
	}
	return nil
}

func refs(m *linkedhashmap.Map) []Ref {
	if m == nil {
		return nil
	}
	values := m.Values()
	out := make([]Ref, 0, len(values))
	for _, v := range values {
		out = append(out, v.(Ref))
	}
	return out
}
