// Package timing models a timer report as a tree of named regions whose
// identity is their ancestry path.
package timing

import (
	"strings"
)

const (
	// PathSeparator joins ancestry names into a path.
	PathSeparator = ">"

	// RootName is the name of the synthetic root of every tree.
	RootName = "root"
)

// Node is one timing region. A node exclusively owns its children.
//
// Two nodes are equal when their paths are equal, regardless of which tree
// they belong to. Ancestry lists the names from the root (included) down to
// the immediate parent, so it has to be kept in sync when a node moves; see
// Reanchor.
type Node struct {
	Name     string   `json:"name"`
	Ancestry []string `json:"ancestry"`
	Children []*Node  `json:"children"`
}

// NewRoot returns an empty tree root.
func NewRoot() *Node {
	return &Node{Name: RootName, Ancestry: []string{}, Children: []*Node{}}
}

// NewNode returns a childless node with a copy of ancestry.
func NewNode(name string, ancestry []string) *Node {
	return &Node{
		Name:     name,
		Ancestry: append([]string{}, ancestry...),
		Children: []*Node{},
	}
}

// Path returns the ancestry and name joined by PathSeparator.
func (n *Node) Path() string {
	if len(n.Ancestry) == 0 {
		return n.Name
	}

	return strings.Join(n.Ancestry, PathSeparator) + PathSeparator + n.Name
}

// Key is the value used wherever nodes are hashed. It equals Path.
func (n *Node) Key() string {
	return n.Path()
}

// Equal reports whether both nodes have the same path.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}

	return n.Path() == other.Path()
}

// Depth is the number of ancestors.
func (n *Node) Depth() int {
	return len(n.Ancestry)
}

// ChildAncestry is the ancestry a direct child of n carries.
func (n *Node) ChildAncestry() []string {
	out := make([]string, 0, len(n.Ancestry)+1)
	out = append(out, n.Ancestry...)

	return append(out, n.Name)
}

// Walk visits n and its subtree in pre-order. Returning false from fn
// stops the walk.
func (n *Node) Walk(fn func(*Node) bool) {
	n.walk(fn)
}

func (n *Node) walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}

	for _, c := range n.Children {
		if !c.walk(fn) {
			return false
		}
	}

	return true
}

// Descendants returns the subtree in pre-order, excluding n.
func (n *Node) Descendants() []*Node {
	var out []*Node

	for _, c := range n.Children {
		c.Walk(func(d *Node) bool {
			out = append(out, d)

			return true
		})
	}

	return out
}

// FindByName returns the first node in pre-order, n included, whose bare
// name matches, or nil. Bare names can repeat across branches; use
// FindByPath when that matters.
func (n *Node) FindByName(name string) *Node {
	var found *Node

	n.Walk(func(d *Node) bool {
		if d.Name == name {
			found = d

			return false
		}

		return true
	})

	return found
}

// FindByPath returns the node with the given path, n included, or nil.
func (n *Node) FindByPath(path string) *Node {
	p := n.Path()
	if p == path {
		return n
	}

	// Only descend into branches that prefix the wanted path.
	if !strings.HasPrefix(path, p+PathSeparator) {
		return nil
	}

	for _, c := range n.Children {
		if found := c.FindByPath(path); found != nil {
			return found
		}
	}

	return nil
}

// AddChild appends child to n's children. The child's ancestry is left
// as is.
func (n *Node) AddChild(child *Node) {
	n.Children = append(n.Children, child)
}

// RemoveChild removes the first direct child equal to child and reports
// whether one was removed. Ancestry of remaining nodes is not touched.
func (n *Node) RemoveChild(child *Node) bool {
	for i, c := range n.Children {
		if c.Equal(child) {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)

			return true
		}
	}

	return false
}

// Reanchor sets n's ancestry and recomputes the ancestry of its subtree.
func (n *Node) Reanchor(ancestry []string) {
	n.Ancestry = append([]string{}, ancestry...)

	childAncestry := n.ChildAncestry()
	for _, c := range n.Children {
		c.Reanchor(childAncestry)
	}
}

// Clone returns a deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	out := NewNode(n.Name, n.Ancestry)
	for _, c := range n.Children {
		out.Children = append(out.Children, c.Clone())
	}

	return out
}

// Consistent reports whether every node's ancestry matches its position
// below n. It returns the path of the first offending node.
func (n *Node) Consistent() (string, bool) {
	bad := ""

	var check func(node *Node, want []string) bool

	check = func(node *Node, want []string) bool {
		if !equalStrings(node.Ancestry, want) {
			bad = node.Path()

			return false
		}

		next := node.ChildAncestry()
		for _, c := range node.Children {
			if !check(c, next) {
				return false
			}
		}

		return true
	}

	ok := check(n, n.Ancestry)

	return bad, ok
}

// Names returns the node names of the subtree in pre-order, n excluded.
func (n *Node) Names() []string {
	desc := n.Descendants()

	out := make([]string, len(desc))
	for i, d := range desc {
		out[i] = d.Name
	}

	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
