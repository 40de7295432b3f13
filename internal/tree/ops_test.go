package tree

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(id, name, content string) *Node {
	return &Node{ID: id, Kind: KindFile, Name: name, Content: content, Language: Language(name)}
}

func folder(id, name string, children ...*Node) *Node {
	if children == nil {
		children = []*Node{}
	}
	return &Node{ID: id, Kind: KindFolder, Name: name, Children: children}
}

// nested builds root/a/b/{file-1, file-2} plus root/top.txt.
func nested() *Node {
	return folder(RootID, "proj",
		folder("a", "a",
			folder("b", "b",
				file("file-1", "one.js", "1"),
				file("file-2", "two.js", "2"),
			),
		),
		file("top", "top.txt", "top"),
	)
}

func TestInsertIntoEmptyDefault(t *testing.T) {
	root := Default("proj")
	n := &Node{ID: "file-x", Kind: KindFile, Name: "index.js"}

	out, err := Insert(root, RootID, n)
	require.NoError(t, err)
	require.Len(t, out.Children, 1)

	got := out.Children[0]
	assert.Equal(t, "file-x", got.ID)
	assert.Equal(t, KindFile, got.Kind)
	assert.Equal(t, "index.js", got.Name)
	assert.Equal(t, "", got.Content)
	assert.Empty(t, root.Children, "input tree must not change")
}

func TestInsertAppends(t *testing.T) {
	root := folder(RootID, "proj", file("a", "a.txt", ""), file("b", "b.txt", ""))
	out, err := Insert(root, RootID, file("c", "c.txt", ""))
	require.NoError(t, err)

	var ids []string
	for _, c := range out.Children {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestInsertThenFind(t *testing.T) {
	n := NewFile("main.go", "package main")
	out, err := Insert(nested(), "b", n)
	require.NoError(t, err)

	got, ok := Find(out, n.ID)
	require.True(t, ok)
	assert.Same(t, n, got)
}

func TestInsertFailures(t *testing.T) {
	root := nested()

	tests := []struct {
		name   string
		parent string
		node   *Node
		want   error
	}{
		{"missing parent", "nope", file("new", "new.txt", ""), ErrNotFound},
		{"parent is file", "top", file("new", "new.txt", ""), ErrNotFolder},
		{"duplicate sibling", RootID, file("new", "top.txt", ""), ErrDuplicateName},
		{"duplicate id", RootID, file("file-1", "other.txt", ""), ErrDuplicateID},
		{"empty name", RootID, file("new", "", ""), ErrInvalidName},
		{"slash in name", RootID, file("new", "x/y", ""), ErrInvalidName},
		{"file with children", RootID, &Node{ID: "new", Kind: KindFile, Name: "x", Children: []*Node{}}, ErrInvalidNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Insert(root, tt.parent, tt.node)
			assert.ErrorIs(t, err, tt.want)
			assert.Same(t, root, out)
		})
	}
}

func TestInsertChecksWholeSubtree(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		want error
	}{
		{"file with children below", folder("f", "lib",
			&Node{ID: "x", Kind: KindFile, Name: "x.js", Children: []*Node{}}), ErrInvalidNode},
		{"duplicate names below", folder("f", "lib",
			file("1", "a.js", ""), file("2", "a.js", "")), ErrDuplicateName},
		{"bad name below", folder("f", "lib", file("1", "a/b", "")), ErrInvalidName},
		{"folder without children list below", folder("f", "lib",
			&Node{ID: "g", Kind: KindFolder, Name: "g"}), ErrInvalidNode},
		{"repeated id below", folder("f", "lib",
			folder("g", "g", file("1", "a.js", "")), file("1", "b.js", "")), ErrDuplicateID},
		{"empty id below", folder("f", "lib", file("", "a.js", "")), ErrInvalidNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := Default("p")
			out, err := Insert(root, RootID, tt.node)
			assert.ErrorIs(t, err, tt.want)
			assert.Same(t, root, out)
		})
	}

	out, err := Insert(Default("p"), RootID, folder("f", "lib",
		folder("g", "g", file("1", "a.js", "")), file("2", "a.js", "")))
	require.NoError(t, err)
	assert.NoError(t, Check(out))
}

func TestInsertFolderWithoutChildrenList(t *testing.T) {
	out, err := Insert(Default(""), RootID, &Node{ID: "f", Kind: KindFolder, Name: "src"})
	require.NoError(t, err)
	got, ok := Find(out, "f")
	require.True(t, ok)
	assert.NotNil(t, got.Children)
	assert.NoError(t, Check(out))
}

func TestUpdateRecomputesLanguage(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	restore := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = restore })

	root := folder(RootID, "proj", file("file-1", "a.js", "x"))
	out, err := Update(root, "file-1", "b.py")
	require.NoError(t, err)

	n, ok := Find(out, "file-1")
	require.True(t, ok)
	assert.Equal(t, "b.py", n.Name)
	assert.Equal(t, "python", n.Language)
	assert.Equal(t, fixed, n.UpdatedAt)
	assert.Equal(t, "x", n.Content)

	old, _ := Find(root, "file-1")
	assert.Equal(t, "a.js", old.Name)
}

func TestUpdateFolderAndFailures(t *testing.T) {
	root := nested()

	out, err := Update(root, "a", "renamed")
	require.NoError(t, err)
	n, _ := Find(out, "a")
	assert.Equal(t, "renamed", n.Name)
	assert.Empty(t, n.Language)

	out, err = Update(root, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Same(t, root, out)

	out, err = Update(root, "file-1", "two.js")
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Same(t, root, out)

	out, err = Update(root, "file-1", "one.js")
	assert.NoError(t, err)
	assert.Same(t, root, out)
}

func TestUpdateFileContentNested(t *testing.T) {
	root := nested()
	out, err := UpdateFileContent(root, "file-1", "print(1)", "python")
	require.NoError(t, err)

	n, ok := Find(out, "file-1")
	require.True(t, ok)
	assert.Equal(t, "print(1)", n.Content)
	assert.Equal(t, "python", n.Language)
	assert.False(t, n.UpdatedAt.IsZero())
	assert.Equal(t, "one.js", n.Name)

	sib, _ := Find(out, "file-2")
	origSib, _ := Find(root, "file-2")
	assert.Same(t, origSib, sib)

	top, _ := Find(out, "top")
	origTop, _ := Find(root, "top")
	assert.Same(t, origTop, top)

	orig, _ := Find(root, "file-1")
	assert.Equal(t, "1", orig.Content)
}

func TestUpdateFileContentDefaultsLanguage(t *testing.T) {
	out, err := UpdateFileContent(nested(), "top", "hi", "")
	require.NoError(t, err)
	n, _ := Find(out, "top")
	assert.Equal(t, PlainText, n.Language)
}

func TestUpdateFileContentFailures(t *testing.T) {
	root := nested()

	out, err := UpdateFileContent(root, "a", "x", "")
	assert.ErrorIs(t, err, ErrNotFile)
	assert.Same(t, root, out)

	out, err = UpdateFileContent(root, "gone", "x", "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Same(t, root, out)
}

func TestDeleteFolderRemovesSubtree(t *testing.T) {
	root := nested()
	out, err := Delete(root, "b")
	require.NoError(t, err)

	for _, id := range []string{"b", "file-1", "file-2"} {
		_, ok := Find(out, id)
		assert.False(t, ok, id)
	}
	_, ok := Find(out, "a")
	assert.True(t, ok)
	_, ok = Find(root, "file-1")
	assert.True(t, ok, "input tree must keep the subtree")
}

func TestDeleteIdempotent(t *testing.T) {
	once, err := Delete(nested(), "file-2")
	require.NoError(t, err)

	twice, err := Delete(once, "file-2")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Same(t, once, twice)
}

func TestDeleteRoot(t *testing.T) {
	root := nested()
	out, err := Delete(root, RootID)
	assert.ErrorIs(t, err, ErrRoot)
	assert.Same(t, root, out)
}

func TestFirstMatchWins(t *testing.T) {
	// Built by hand; Insert refuses duplicate ids.
	root := folder(RootID, "proj",
		folder("d", "x", file("dup", "first.txt", "")),
		file("dup", "second.txt", ""),
	)
	n, ok := Find(root, "dup")
	require.True(t, ok)
	assert.Equal(t, "first.txt", n.Name)

	out, err := Delete(root, "dup")
	require.NoError(t, err)
	n, ok = Find(out, "dup")
	require.True(t, ok)
	assert.Equal(t, "second.txt", n.Name)
}

func TestPathOfAndResolve(t *testing.T) {
	root := nested()

	p, ok := PathOf(root, "file-2")
	require.True(t, ok)
	assert.Equal(t, "a/b/two.js", p)

	p, ok = PathOf(root, RootID)
	require.True(t, ok)
	assert.Equal(t, "", p)

	_, ok = PathOf(root, "missing")
	assert.False(t, ok)

	n, ok := Resolve(root, "/a/b/two.js")
	require.True(t, ok)
	assert.Equal(t, "file-2", n.ID)

	n, ok = Resolve(root, "")
	require.True(t, ok)
	assert.Equal(t, RootID, n.ID)

	_, ok = Resolve(root, "top.txt/child")
	assert.False(t, ok)
}

func TestSubtree(t *testing.T) {
	a, _ := Find(nested(), "a")
	assert.Equal(t, []string{"a", "b", "file-1", "file-2"}, Subtree(a))
}

func TestCloneIsDeep(t *testing.T) {
	root := nested()
	cp := Clone(root)
	assert.Equal(t, root, cp)

	cp.Children[0].Name = "changed"
	assert.Equal(t, "a", root.Children[0].Name)
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(nested()))
	assert.NoError(t, Check(Seed("")))
	assert.NoError(t, Check(Welcome("")))

	bad := folder("x", "proj")
	assert.ErrorIs(t, Check(bad), ErrInvalidNode)

	dupNames := folder(RootID, "proj", file("1", "a", ""), file("2", "a", ""))
	assert.ErrorIs(t, Check(dupNames), ErrDuplicateName)

	folderWithContent := folder(RootID, "proj", &Node{ID: "f", Kind: KindFolder, Name: "f", Children: []*Node{}, Content: "x"})
	assert.ErrorIs(t, Check(folderWithContent), ErrInvalidNode)
}

func TestCheckStructureAllowsRepeatedNames(t *testing.T) {
	dupNames := folder(RootID, "proj", file("1", "a.js", ""), file("2", "a.js", ""))
	assert.NoError(t, CheckStructure(dupNames))
	assert.ErrorIs(t, Check(dupNames), ErrDuplicateName)

	assert.ErrorIs(t, CheckStructure(folder("x", "proj")), ErrInvalidNode)
	assert.ErrorIs(t, CheckStructure(folder(RootID, "proj", file("1", "a", ""), file("1", "b", ""))), ErrDuplicateID)
	assert.ErrorIs(t, CheckStructure(folder(RootID, "proj",
		&Node{ID: "x", Kind: KindFile, Name: "x", Children: []*Node{}})), ErrInvalidNode)
	assert.ErrorIs(t, CheckStructure(nil), ErrInvalidNode)
}

// Random sequences of operations must always leave a structurally valid
// tree in which no node changed kind.
func TestRandomOperationsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	root := Default("proj")
	kinds := map[string]Kind{RootID: KindFolder}

	for i := 0; i < 500; i++ {
		ids := Subtree(root)
		target := ids[rng.Intn(len(ids))]
		var err error
		switch rng.Intn(4) {
		case 0:
			n := NewFile(fmt.Sprintf("f%d.py", i), "")
			root, err = Insert(root, target, n)
			if err == nil {
				kinds[n.ID] = KindFile
			}
		case 1:
			n := NewFolder(fmt.Sprintf("d%d", i))
			root, err = Insert(root, target, n)
			if err == nil {
				kinds[n.ID] = KindFolder
			}
		case 2:
			root, err = Update(root, target, fmt.Sprintf("r%d.js", i))
		case 3:
			root, err = Delete(root, target)
		}
		if err != nil {
			require.True(t,
				errors.Is(err, ErrNotFolder) || errors.Is(err, ErrRoot) || errors.Is(err, ErrDuplicateName),
				"unexpected error %v", err)
		}
		require.NoError(t, Check(root))
		Walk(root, func(n *Node) bool {
			assert.Equal(t, kinds[n.ID], n.Kind, n.ID)
			return true
		})
	}
}
