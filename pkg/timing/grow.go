package timing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrParentMissing is returned by Grow when a node's ancestry path does
// not exist in the tree being grown.
var ErrParentMissing = errors.New("parent region not found")

// Grow inserts a deep copy of every node in diff at the position given by
// its ancestry. A stale child with the same path is replaced, otherwise
// the copy is appended to the parent's children. Nodes are processed in
// set order, so a parent listed before its child is available by the
// time the child is inserted. It returns how many nodes were inserted.
func (n *Node) Grow(diff *NodeSet) (int, error) {
	added := 0

	for _, d := range diff.Nodes() {
		parentPath := strings.Join(d.Ancestry, PathSeparator)

		parent := n.FindByPath(parentPath)
		if parent == nil {
			return added, fmt.Errorf("growing %q: %w", d.Path(), ErrParentMissing)
		}

		c := d.Clone()
		c.Reanchor(parent.ChildAncestry())

		replaced := false

		for i, existing := range parent.Children {
			if existing.Equal(c) {
				parent.Children[i] = c
				replaced = true

				break
			}
		}

		if !replaced {
			parent.AddChild(c)
		}

		added++
	}

	return added, nil
}
