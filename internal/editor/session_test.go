package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentic-research/codepad/internal/runner"
	"github.com/agentic-research/codepad/internal/syncer"
	"github.com/agentic-research/codepad/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct{ mock.Mock }

func (m *mockRunner) Run(ctx context.Context, req runner.Request) (*runner.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*runner.Result)
	return res, args.Error(1)
}

type mockAssistant struct{ mock.Mock }

func (m *mockAssistant) Suggest(ctx context.Context, code, language string) (string, error) {
	args := m.Called(ctx, code, language)
	return args.String(0), args.Error(1)
}

func (m *mockAssistant) Fix(ctx context.Context, code, language string) (string, error) {
	args := m.Called(ctx, code, language)
	return args.String(0), args.Error(1)
}

// newEngine mounts a local-only engine over the sample tree.
func newEngine(t *testing.T) *syncer.Engine {
	t.Helper()
	e := syncer.New(syncer.Config{})
	require.NoError(t, e.Mount(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = e.Close(ctx)
	})
	return e
}

func TestOpenExistingFile(t *testing.T) {
	s := New(newEngine(t))

	tab, err := s.Open("file-main-py", "")
	require.NoError(t, err)
	assert.Equal(t, "main.py", tab.Name)
	assert.Equal(t, "# Start coding in Python\nprint('Hello, world!')", tab.Data)

	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, "file-main-py", active.ID)

	_, err = s.Open("file-main-py", "")
	require.NoError(t, err)
	assert.Len(t, s.Tabs(), 1)
}

func TestOpenMissingCreatesEmptyFile(t *testing.T) {
	e := newEngine(t)
	s := New(e)

	tab, err := s.Open("file-notes", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, Tab{ID: "file-notes", Name: "notes.txt"}, tab)

	n, parent, _, ok := tree.Locate(e.Tree(), "file-notes")
	require.True(t, ok)
	assert.Equal(t, tree.RootID, parent.ID)
	assert.Equal(t, tree.KindFile, n.Kind)
	assert.Equal(t, tree.PlainText, n.Language)
	assert.Empty(t, n.Content)
}

func TestOpenRejectsFolderAndBadName(t *testing.T) {
	s := New(newEngine(t))

	_, err := s.Open("folder-src", "")
	assert.ErrorIs(t, err, tree.ErrNotFile)

	_, err = s.Open("file-missing", "")
	assert.ErrorIs(t, err, tree.ErrInvalidName)
	assert.Empty(t, s.Tabs())
}

func TestEditMirrorsIntoTabAndTree(t *testing.T) {
	e := newEngine(t)
	s := New(e)
	_, err := s.Open("file-readme-md", "")
	require.NoError(t, err)

	require.NoError(t, s.Edit("file-readme-md", "# Hi"))
	assert.Equal(t, "# Hi", s.Tabs()[0].Data)
	n, _ := e.Find("file-readme-md")
	assert.Equal(t, "# Hi", n.Content)

	assert.ErrorIs(t, s.Edit("folder-src", "x"), tree.ErrNotFile)
}

func TestRenameUpdatesTab(t *testing.T) {
	e := newEngine(t)
	s := New(e)
	_, err := s.Open("file-main-py", "")
	require.NoError(t, err)

	require.NoError(t, s.Rename("file-main-py", "main.go"))
	assert.Equal(t, "main.go", s.Tabs()[0].Name)
	n, _ := e.Find("file-main-py")
	assert.Equal(t, "go", n.Language)
}

func TestDeleteClosesSubtreeTabs(t *testing.T) {
	s := New(newEngine(t))
	for _, id := range []string{"file-readme-md", "file-main-py", "file-button-jsx"} {
		_, err := s.Open(id, "")
		require.NoError(t, err)
	}

	require.NoError(t, s.Delete("folder-src"))
	tabs := s.Tabs()
	require.Len(t, tabs, 1)
	assert.Equal(t, "file-readme-md", tabs[0].ID)

	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, "file-readme-md", active.ID)

	assert.ErrorIs(t, s.Delete("folder-src"), tree.ErrNotFound)
}

func TestCloseTabKeepsNodeAndMovesSelection(t *testing.T) {
	e := newEngine(t)
	s := New(e)
	_, _ = s.Open("file-readme-md", "")
	_, _ = s.Open("file-main-py", "")

	assert.True(t, s.CloseTab("file-main-py"))
	assert.False(t, s.CloseTab("file-main-py"))
	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, "file-readme-md", active.ID)

	_, found := e.Find("file-main-py")
	assert.True(t, found)

	assert.True(t, s.CloseTab("file-readme-md"))
	_, ok = s.Active()
	assert.False(t, ok)
}

func TestSelect(t *testing.T) {
	s := New(newEngine(t))
	_, _ = s.Open("file-readme-md", "")
	_, _ = s.Open("file-main-py", "")

	require.NoError(t, s.Select("file-readme-md"))
	active, _ := s.Active()
	assert.Equal(t, "file-readme-md", active.ID)
	assert.ErrorIs(t, s.Select("file-button-jsx"), ErrTabNotOpen)
}

func TestAddFileOpensTab(t *testing.T) {
	s := New(newEngine(t))
	folder, err := s.AddFolder(tree.RootID, "lib")
	require.NoError(t, err)

	tab, err := s.AddFile(folder.ID, "util.js", "export {}")
	require.NoError(t, err)
	assert.Equal(t, "util.js", tab.Name)
	assert.Equal(t, "export {}", tab.Data)
	active, _ := s.Active()
	assert.Equal(t, tab.ID, active.ID)

	_, err = s.AddFile(folder.ID, "util.js", "")
	assert.ErrorIs(t, err, tree.ErrDuplicateName)
}

func TestRunUsesFileContentAndLanguage(t *testing.T) {
	r := new(mockRunner)
	s := New(newEngine(t), WithRunner(r))
	want := &runner.Result{Output: "Hello, world!\n", Status: "Accepted"}
	r.On("Run", mock.Anything, runner.Request{
		Source:   "# Start coding in Python\nprint('Hello, world!')",
		Language: "python",
		Stdin:    "input",
	}).Return(want, nil).Once()

	got, err := s.Run(context.Background(), "file-main-py", "input")
	require.NoError(t, err)
	assert.Same(t, want, got)
	r.AssertExpectations(t)

	_, err = New(newEngine(t)).Run(context.Background(), "file-main-py", "")
	assert.ErrorIs(t, err, ErrNoRunner)
}

func TestSuggestAndFix(t *testing.T) {
	e := newEngine(t)
	a := new(mockAssistant)
	s := New(e, WithAssistant(a))
	_, err := s.Open("file-main-py", "")
	require.NoError(t, err)
	src := "# Start coding in Python\nprint('Hello, world!')"

	a.On("Suggest", mock.Anything, src, "python").Return("print('more')", nil).Once()
	got, err := s.Suggest(context.Background(), "file-main-py")
	require.NoError(t, err)
	assert.Equal(t, "print('more')", got)

	a.On("Fix", mock.Anything, src, "python").Return("print('fixed')", nil).Once()
	fixed, err := s.Fix(context.Background(), "file-main-py", false)
	require.NoError(t, err)
	assert.Equal(t, "print('fixed')", fixed)
	n, _ := e.Find("file-main-py")
	assert.Equal(t, src, n.Content)

	a.On("Fix", mock.Anything, src, "python").Return("print('fixed')", nil).Once()
	_, err = s.Fix(context.Background(), "file-main-py", true)
	require.NoError(t, err)
	n, _ = e.Find("file-main-py")
	assert.Equal(t, "print('fixed')", n.Content)
	assert.Equal(t, "print('fixed')", s.Tabs()[0].Data)

	a.AssertExpectations(t)
}

func TestFixPropagatesAssistantError(t *testing.T) {
	a := new(mockAssistant)
	s := New(newEngine(t), WithAssistant(a))
	boom := errors.New("boom")
	a.On("Fix", mock.Anything, mock.Anything, mock.Anything).Return("", boom)

	_, err := s.Fix(context.Background(), "file-main-py", true)
	assert.ErrorIs(t, err, boom)
}

func TestLintAndFormat(t *testing.T) {
	e := newEngine(t)
	s := New(e)
	tab, err := s.AddFile(tree.RootID, "main.go", "package main\n\nvar xs []string\n\nfunc A()  {\nreturn\n}\n")
	require.NoError(t, err)

	diags, err := s.Lint(tab.ID)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, 3, diags[0].Line)

	changed, err := s.Format(tab.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	n, _ := e.Find(tab.ID)
	assert.Contains(t, n.Content, "func A() {\n\treturn\n}")

	changed, err = s.Format(tab.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = s.Lint("folder-src")
	assert.ErrorIs(t, err, tree.ErrNotFile)
}
