package timing

import "strings"

// NodeSet is an insertion-ordered set of nodes keyed by path.
type NodeSet struct {
	order []string
	nodes map[string]*Node
}

// NewNodeSet returns a set holding nodes, skipping duplicate paths.
func NewNodeSet(nodes ...*Node) *NodeSet {
	s := &NodeSet{nodes: make(map[string]*Node, len(nodes))}
	for _, n := range nodes {
		s.Add(n)
	}

	return s
}

// Add inserts n unless a node with the same path is present. It reports
// whether n was added.
func (s *NodeSet) Add(n *Node) bool {
	key := n.Key()
	if _, ok := s.nodes[key]; ok {
		return false
	}

	s.nodes[key] = n
	s.order = append(s.order, key)

	return true
}

// Has reports whether a node with the given path is in the set.
func (s *NodeSet) Has(path string) bool {
	_, ok := s.nodes[path]

	return ok
}

// Get returns the member with the given path or nil.
func (s *NodeSet) Get(path string) *Node {
	return s.nodes[path]
}

// Len returns the number of members.
func (s *NodeSet) Len() int {
	return len(s.order)
}

// Paths returns member paths in insertion order.
func (s *NodeSet) Paths() []string {
	return append([]string(nil), s.order...)
}

// Nodes returns members in insertion order.
func (s *NodeSet) Nodes() []*Node {
	out := make([]*Node, len(s.order))
	for i, k := range s.order {
		out[i] = s.nodes[k]
	}

	return out
}

// Equal reports whether both sets hold the same paths, ignoring order.
func (s *NodeSet) Equal(other *NodeSet) bool {
	if s.Len() != other.Len() {
		return false
	}

	for _, k := range s.order {
		if !other.Has(k) {
			return false
		}
	}

	return true
}

func pathSet(nodes []*Node) map[string]struct{} {
	out := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		out[n.Path()] = struct{}{}
	}

	return out
}

// Intersection returns n's descendants whose path also occurs among
// other's descendants, in n's pre-order.
func (n *Node) Intersection(other *Node) *NodeSet {
	theirs := pathSet(other.Descendants())
	out := NewNodeSet()

	for _, d := range n.Descendants() {
		if _, ok := theirs[d.Path()]; ok {
			out.Add(d)
		}
	}

	return out
}

// Difference returns the topmost nodes of every subtree of n that is
// missing from other. A differing node's own descendants are implied and
// not listed.
func (n *Node) Difference(other *Node) *NodeSet {
	theirs := pathSet(other.Descendants())
	raw := make(map[string]struct{})
	out := NewNodeSet()

	for _, d := range n.Descendants() {
		path := d.Path()
		if _, ok := theirs[path]; ok {
			continue
		}

		raw[path] = struct{}{}

		if !hasAncestorIn(d, raw) {
			out.Add(d)
		}
	}

	return out
}

func hasAncestorIn(n *Node, paths map[string]struct{}) bool {
	for i := 1; i <= len(n.Ancestry); i++ {
		if _, ok := paths[strings.Join(n.Ancestry[:i], PathSeparator)]; ok {
			return true
		}
	}

	return false
}
