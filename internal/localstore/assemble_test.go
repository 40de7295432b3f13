package localstore

import (
	"testing"

	"github.com/agentic-research/codepad/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(parent string, pos int, n *tree.Node) Record {
	return Record{ParentID: parent, Position: pos, Node: n}
}

func TestAssembleOrdersByPosition(t *testing.T) {
	recs := []Record{
		rec(tree.RootID, 2, &tree.Node{ID: "c", Kind: tree.KindFile, Name: "c"}),
		rec(tree.RootID, 0, &tree.Node{ID: "a", Kind: tree.KindFolder, Name: "a", Children: []*tree.Node{}}),
		rec("a", 0, &tree.Node{ID: "a1", Kind: tree.KindFile, Name: "a1"}),
		rec(tree.RootID, 1, &tree.Node{ID: "b", Kind: tree.KindFile, Name: "b"}),
	}
	root, orphans := Assemble("ws", recs)
	assert.Empty(t, orphans)
	assert.Equal(t, "ws", root.Name)
	assert.Equal(t, []string{tree.RootID, "a", "a1", "b", "c"}, tree.Subtree(root))
}

func TestAssembleReportsOrphans(t *testing.T) {
	recs := []Record{
		rec(tree.RootID, 0, &tree.Node{ID: "f", Kind: tree.KindFile, Name: "f"}),
		rec("gone", 0, &tree.Node{ID: "lost", Kind: tree.KindFile, Name: "lost"}),
		rec("f", 0, &tree.Node{ID: "under-file", Kind: tree.KindFile, Name: "x"}),
	}
	root, orphans := Assemble("", recs)
	assert.ElementsMatch(t, []string{"lost", "under-file"}, orphans)
	assert.Equal(t, []string{tree.RootID, "f"}, tree.Subtree(root))
}

func TestAssembleEmpty(t *testing.T) {
	root, orphans := Assemble("ws", nil)
	assert.Empty(t, orphans)
	require.NotNil(t, root.Children)
	assert.Empty(t, root.Children)
}

func TestFlattenPositions(t *testing.T) {
	recs := Flatten(tree.Seed(""))
	require.Len(t, recs, 5)
	assert.Equal(t, tree.RootID, recs[0].ParentID)
	assert.Equal(t, "src", recs[0].Node.Name)
	last := recs[len(recs)-1]
	assert.Equal(t, "README.md", last.Node.Name)
	assert.Equal(t, 1, last.Position)
}
