package timing

import (
	"testing"

	"github.com/ethpandaops/timingtree/pkg/logtable/logtabletest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mainTree(t *testing.T) *Node {
	t.Helper()

	root, _ := Build(logtabletest.Table(logtabletest.MainTable()), "t1")

	return root
}

func TestNode_Path(t *testing.T) {
	root := mainTree(t)

	assert.Equal(t, "root", root.Path())

	n := root.FindByName("nh_solve.edgecomp")
	require.NotNil(t, n)
	assert.Equal(t, "root>total>integrate_nh>nh_solve>nh_solve.edgecomp", n.Path())
	assert.Equal(t, n.Path(), n.Key())
	assert.Equal(t, 4, n.Depth())
}

func TestNode_EqualAcrossTrees(t *testing.T) {
	a := mainTree(t).FindByName("nh_solve")
	b := mainTree(t).FindByName("nh_solve")

	assert.NotSame(t, a, b)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(mainTree(t).FindByName("nh_hdiff")))

	var nilNode *Node
	assert.False(t, a.Equal(nilNode))
	assert.True(t, nilNode.Equal(nil))
}

func TestNode_Descendants(t *testing.T) {
	root := mainTree(t)

	assert.Equal(t, []string{
		"total", "integrate_nh", "nh_solve", "nh_solve.edgecomp",
		"nh_hdiff", "physics", "radiation",
	}, root.Names())
	assert.Len(t, root.FindByName("nh_solve.edgecomp").Descendants(), 0)
}

func TestNode_FindByName(t *testing.T) {
	root := NewRoot()
	a := NewNode("a", root.ChildAncestry())
	b := NewNode("b", root.ChildAncestry())
	root.AddChild(a)
	root.AddChild(b)
	a.AddChild(NewNode("halo", a.ChildAncestry()))
	b.AddChild(NewNode("halo", b.ChildAncestry()))

	got := root.FindByName("halo")
	require.NotNil(t, got)
	assert.Equal(t, "root>a>halo", got.Path(), "first pre-order match")

	assert.Nil(t, root.FindByName("missing"))

	got = root.FindByPath("root>b>halo")
	require.NotNil(t, got)
	assert.Same(t, b.Children[0], got)
	assert.Nil(t, root.FindByPath("root>c>halo"))
	assert.Same(t, root, root.FindByPath("root"))
}

func TestNode_RemoveChild(t *testing.T) {
	root := mainTree(t)
	total := root.FindByName("total")

	physics := mainTree(t).FindByName("physics")
	require.True(t, total.RemoveChild(physics), "removal by path, not pointer")
	assert.Nil(t, root.FindByName("radiation"))
	assert.False(t, total.RemoveChild(physics))

	// The removed node keeps its stale ancestry.
	assert.Equal(t, []string{"root", "total"}, physics.Ancestry)
}

func TestNode_ReanchorAndClone(t *testing.T) {
	root := mainTree(t)
	solve := root.FindByName("nh_solve")

	moved := solve.Clone()
	moved.Reanchor([]string{"root", "total", "physics"})

	assert.Equal(t, "root>total>physics>nh_solve", moved.Path())
	assert.Equal(t, "root>total>physics>nh_solve>nh_solve.edgecomp", moved.Children[0].Path())

	// The original is untouched.
	assert.Equal(t, "root>total>integrate_nh>nh_solve", solve.Path())

	_, ok := root.Consistent()
	assert.True(t, ok)

	solve.Children[0].Ancestry = []string{"root", "elsewhere"}
	bad, ok := root.Consistent()
	assert.False(t, ok)
	assert.Equal(t, "root>elsewhere>nh_solve.edgecomp", bad)
}

func TestNode_Walk_Stops(t *testing.T) {
	visited := 0

	mainTree(t).Walk(func(n *Node) bool {
		visited++

		return n.Name != "integrate_nh"
	})

	assert.Equal(t, 3, visited)
}
