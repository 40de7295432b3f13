package mcpserver

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/codepad/internal/syncer"
	"github.com/agentic-research/codepad/internal/tree"
)

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newServer(t *testing.T) (*Server, *syncer.Engine) {
	t.Helper()
	e := syncer.New(syncer.Config{RootName: "demo"})
	require.NoError(t, e.Mount(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = e.Close(ctx)
	})
	return New(e, "test"), e
}

func call(t *testing.T, h handler, args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestListTree(t *testing.T) {
	s, _ := newServer(t)
	out, isErr := call(t, s.listTree, nil)
	assert.False(t, isErr)
	assert.Contains(t, out, "demo/ (root)\n")
	assert.Contains(t, out, "  src/ (folder-src)\n")
	assert.Contains(t, out, "    main.py (file-main-py, python,")
}

func TestReadFile(t *testing.T) {
	s, _ := newServer(t)

	out, isErr := call(t, s.readFile, map[string]any{"path": "README.md"})
	assert.False(t, isErr)
	assert.Equal(t, "# Project Documentation\nWelcome to your project!", out)

	_, isErr = call(t, s.readFile, map[string]any{"path": "src"})
	assert.True(t, isErr)
	_, isErr = call(t, s.readFile, map[string]any{"path": "nope.txt"})
	assert.True(t, isErr)
	_, isErr = call(t, s.readFile, nil)
	assert.True(t, isErr)
}

func TestWriteFileValidatesSyntax(t *testing.T) {
	s, e := newServer(t)

	out, isErr := call(t, s.writeFile, map[string]any{"path": "src/main.py", "content": "def f(:\n"})
	assert.True(t, isErr)
	assert.Contains(t, out, "force=true")
	n, _ := e.Find("file-main-py")
	assert.Contains(t, n.Content, "Hello, world!")

	_, isErr = call(t, s.writeFile, map[string]any{"path": "src/main.py", "content": "def f(:\n", "force": true})
	assert.False(t, isErr)
	n, _ = e.Find("file-main-py")
	assert.Equal(t, "def f(:\n", n.Content)
}

func TestWriteFileCreatesMissingFile(t *testing.T) {
	s, e := newServer(t)

	_, isErr := call(t, s.writeFile, map[string]any{"path": "/src/util.go", "content": "package main\n"})
	assert.False(t, isErr)
	n, ok := tree.Resolve(e.Tree(), "src/util.go")
	require.True(t, ok)
	assert.Equal(t, "package main\n", n.Content)

	_, isErr = call(t, s.writeFile, map[string]any{"path": "lib/x.txt", "content": "x"})
	assert.True(t, isErr)
}

func TestCreateFileAndFolder(t *testing.T) {
	s, e := newServer(t)

	_, isErr := call(t, s.createFolder, map[string]any{"path": "lib/deep"})
	assert.False(t, isErr)
	_, isErr = call(t, s.createFile, map[string]any{"path": "lib/deep/a.js", "content": "1;"})
	assert.False(t, isErr)
	n, ok := tree.Resolve(e.Tree(), "lib/deep/a.js")
	require.True(t, ok)
	assert.Equal(t, "javascript", n.Language)

	_, isErr = call(t, s.createFile, map[string]any{"path": "lib/deep/a.js"})
	assert.True(t, isErr)
	_, isErr = call(t, s.createFolder, map[string]any{"path": "README.md/x"})
	assert.True(t, isErr)
}

func TestRenameAndDelete(t *testing.T) {
	s, e := newServer(t)

	_, isErr := call(t, s.rename, map[string]any{"path": "src/main.py", "name": "app.py"})
	assert.False(t, isErr)
	n, _ := e.Find("file-main-py")
	assert.Equal(t, "app.py", n.Name)

	out, isErr := call(t, s.remove, map[string]any{"path": "src"})
	assert.False(t, isErr)
	assert.Equal(t, "deleted 4 node(s)", out)
	_, ok := e.Find("file-button-jsx")
	assert.False(t, ok)

	_, isErr = call(t, s.remove, map[string]any{"path": "/"})
	assert.True(t, isErr)
}

func TestLintFile(t *testing.T) {
	s, _ := newServer(t)

	out, _ := call(t, s.lintFile, map[string]any{"path": "src/main.py"})
	assert.Equal(t, "no issues", out)

	_, isErr := call(t, s.createFile, map[string]any{"path": "main.go", "content": "package main\n\nvar xs []string\n"})
	require.False(t, isErr)
	out, _ = call(t, s.lintFile, map[string]any{"path": "main.go"})
	assert.Contains(t, out, "3:5: warning: Nil slice")
}

func TestQueryTree(t *testing.T) {
	s, _ := newServer(t)

	out, isErr := call(t, s.queryTree, map[string]any{"selector": "$..children[?(@.language == 'python')]"})
	assert.False(t, isErr)
	assert.Equal(t, "/src/main.py (file-main-py)", out)

	out, _ = call(t, s.queryTree, map[string]any{"selector": "$..name"})
	assert.Equal(t, "no matches", out)

	_, isErr = call(t, s.queryTree, map[string]any{"selector": "$[?("})
	assert.True(t, isErr)
}
