package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agentic-research/codepad/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, scope string) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "local.db"), scope)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, "guest")

	f := tree.NewFile("main.py", "print(1)")
	require.NoError(t, s.Put(ctx, Record{ParentID: tree.RootID, Position: 0, Node: f}))

	got, err := s.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, tree.RootID, got.ParentID)
	assert.Equal(t, "print(1)", got.Node.Content)
	assert.Equal(t, "python", got.Node.Language)

	f2 := *f
	f2.Content = "print(2)"
	require.NoError(t, s.Put(ctx, Record{ParentID: tree.RootID, Node: &f2}))
	got, err = s.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "print(2)", got.Node.Content)

	require.NoError(t, s.Delete(ctx, f.ID))
	_, err = s.Get(ctx, f.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, f.ID), "second delete is a no-op")
}

func TestPutRejectsEmptyNode(t *testing.T) {
	s := openTemp(t, "guest")
	assert.ErrorIs(t, s.Put(context.Background(), Record{}), tree.ErrInvalidNode)
}

func TestFolderStoredWithoutChildren(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, "guest")

	dir := tree.NewFolder("src")
	dir.Children = []*tree.Node{tree.NewFile("a.go", "")}
	require.NoError(t, s.Put(ctx, Record{ParentID: tree.RootID, Node: dir}))

	got, err := s.Get(ctx, dir.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Node.Children)
	assert.NotNil(t, got.Node.Children)
}

func TestScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	a, err := Open(path, "a")
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(path, "b")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Put(ctx, Record{ParentID: tree.RootID, Node: tree.NewFile("x.txt", "")}))

	all, err := b.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	all, err = a.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReplaceThenAssemble(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, "guest")

	seed := tree.Seed("guest")
	require.NoError(t, s.Replace(ctx, seed))

	recs, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 5)

	got, orphans := Assemble("guest", recs)
	assert.Empty(t, orphans)
	assert.NoError(t, tree.Check(got))
	assert.Equal(t, tree.Subtree(seed), tree.Subtree(got))

	// Replacing with a smaller tree drops the rest.
	small := tree.Default("guest")
	small.Children = []*tree.Node{tree.NewFile("only.md", "")}
	require.NoError(t, s.Replace(ctx, small))
	recs, err = s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "only.md", recs[0].Node.Name)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "x.db"), "guest")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.GetAll(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Put(context.Background(), Record{ParentID: tree.RootID, Node: tree.NewFile("a", "")}), ErrUnavailable)
}
