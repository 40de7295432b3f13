package docstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentic-research/codepad/internal/remote"
	"github.com/agentic-research/codepad/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s
}

func TestCreateProjectSeedsWelcomeTree(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	p, err := s.CreateProject(ctx, "u1", "demo", "first")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ProjectID)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	root, err := s.FetchTree(ctx, "u1", p.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, tree.RootID, root.ID)
	assert.Equal(t, "welcome", root.Name)
	require.Len(t, root.Children, 1)
	idx := root.Children[0]
	assert.Equal(t, "index.js", idx.Name)
	assert.Equal(t, "javascript", idx.Language)
	assert.Equal(t, tree.WelcomeContent, idx.Content)
}

func TestCreateProjectValidates(t *testing.T) {
	_, err := newStore(t).CreateProject(context.Background(), "u1", "", "")
	assert.ErrorIs(t, err, remote.ErrInvalid)
}

func TestFetchMissing(t *testing.T) {
	_, err := newStore(t).FetchTree(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestSaveTreeDoesNotUpsert(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.SaveTree(ctx, "u1", "never-created", tree.Default("x"))
	assert.ErrorIs(t, err, remote.ErrNotFound)

	_, err = s.FetchTree(ctx, "u1", "never-created")
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestSaveTreeReplacesDocument(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	p, err := s.CreateProject(ctx, "u1", "demo", "")
	require.NoError(t, err)

	next, err := tree.Insert(tree.Default("demo"), tree.RootID, tree.NewFile("main.py", "x"))
	require.NoError(t, err)
	require.NoError(t, s.SaveTree(ctx, "u1", p.ProjectID, next))

	got, err := s.FetchTree(ctx, "u1", p.ProjectID)
	require.NoError(t, err)
	require.Len(t, got.Children, 1)
	assert.Equal(t, "main.py", got.Children[0].Name)

	// Another user cannot write to it.
	assert.ErrorIs(t, s.SaveTree(ctx, "u2", p.ProjectID, next), remote.ErrNotFound)
}

func TestSaveTreeRejectsInvalidTree(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	p, err := s.CreateProject(ctx, "u1", "demo", "")
	require.NoError(t, err)

	bad := &tree.Node{ID: "not-root", Kind: tree.KindFolder, Name: "x", Children: []*tree.Node{}}
	assert.ErrorIs(t, s.SaveTree(ctx, "u1", p.ProjectID, bad), remote.ErrInvalid)
}

func TestSaveTreeAcceptsRepeatedSiblingNames(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	p, err := s.CreateProject(ctx, "u1", "demo", "")
	require.NoError(t, err)

	root := tree.Default("demo")
	root.Children = []*tree.Node{
		{ID: "1700000000001", Kind: tree.KindFile, Name: "a.js", Language: "javascript"},
		{ID: "1700000000002", Kind: tree.KindFile, Name: "a.js", Language: "javascript"},
	}
	require.NoError(t, s.SaveTree(ctx, "u1", p.ProjectID, root))

	got, err := s.FetchTree(ctx, "u1", p.ProjectID)
	require.NoError(t, err)
	assert.Len(t, got.Children, 2)
}

func TestSaveFileContent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	p, err := s.CreateProject(ctx, "u1", "demo", "")
	require.NoError(t, err)
	fileID := p.FileTree.Children[0].ID

	require.NoError(t, s.SaveFileContent(ctx, "u1", p.ProjectID, fileID, "console.log(2)", "javascript"))

	got, err := s.GetProject(ctx, "u1", p.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, "console.log(2)", got.FileTree.Children[0].Content)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	assert.ErrorIs(t, s.SaveFileContent(ctx, "u1", p.ProjectID, "missing-file", "x", ""), remote.ErrNotFound)
	assert.ErrorIs(t, s.SaveFileContent(ctx, "u1", "missing-project", fileID, "x", ""), remote.ErrNotFound)
	assert.ErrorIs(t, s.SaveFileContent(ctx, "u1", p.ProjectID, tree.RootID, "x", ""), remote.ErrInvalid)
}

func TestListUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a, err := s.CreateProject(ctx, "u1", "a", "")
	require.NoError(t, err)
	b, err := s.CreateProject(ctx, "u1", "b", "")
	require.NoError(t, err)
	_, err = s.CreateProject(ctx, "u2", "other", "")
	require.NoError(t, err)

	list, err := s.ListProjects(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ProjectID, list[0].ProjectID, "newest first")
	assert.Nil(t, list[0].FileTree)

	require.NoError(t, s.UpdateProject(ctx, "u1", a.ProjectID, "a2", "renamed"))
	list, err = s.ListProjects(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, a.ProjectID, list[0].ProjectID)
	assert.Equal(t, "a2", list[0].Name)
	assert.Equal(t, "renamed", list[0].Description)

	assert.ErrorIs(t, s.UpdateProject(ctx, "u1", "nope", "x", ""), remote.ErrNotFound)

	require.NoError(t, s.DeleteProject(ctx, "u1", a.ProjectID))
	assert.ErrorIs(t, s.DeleteProject(ctx, "u1", a.ProjectID), remote.ErrNotFound)

	empty, err := s.ListProjects(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)
}
