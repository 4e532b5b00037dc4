package timing

import (
	"github.com/ethpandaops/timingtree/pkg/frame"
	"github.com/ethpandaops/timingtree/pkg/logtable"
)

// Build reconstructs the region tree of one table and the frame holding
// one row per region for the sample identified by timestamp.
//
// A row at indent d is attached below the node reached by starting at the
// root and taking the last child d times. Well-formed reports never jump
// more than one level deeper than the previous row; for malformed input
// the walk stops at the deepest node available.
func Build(table *logtable.Table, timestamp string) (*Node, *frame.Frame) {
	root := NewRoot()
	data := frame.New(table.Columns)

	for _, row := range table.Rows {
		parent := root

		for i := 0; i < row.Indent && len(parent.Children) > 0; i++ {
			parent = parent.Children[len(parent.Children)-1]
		}

		parent.AddChild(NewNode(row.Name, parent.ChildAncestry()))
		data.Append(frame.Key{Name: row.Name, Timestamp: timestamp}, row.Values)
	}

	return root, data
}
