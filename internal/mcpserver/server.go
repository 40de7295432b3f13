// Package mcpserver exposes a project tree to agents as MCP tools.
package mcpserver

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/codepad/internal/lint"
	"github.com/agentic-research/codepad/internal/tree"
	"github.com/agentic-research/codepad/internal/treefs"
)

// Server holds the tools bound to one tree.
type Server struct {
	tree treefs.Backend
	mcp  *server.MCPServer
}

func New(t treefs.Backend, version string) *Server {
	s := &Server{tree: t}
	s.mcp = server.NewMCPServer("codepad", version, server.WithToolCapabilities(false))

	pathArg := mcp.WithString("path", mcp.Required(), mcp.Description("Slash-separated path from the project root, e.g. src/main.py"))

	s.mcp.AddTool(mcp.NewTool("list_tree",
		mcp.WithDescription("List every folder and file of the project with ids and languages"),
	), s.listTree)
	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read the content of a file"),
		pathArg,
	), s.readFile)
	s.mcp.AddTool(mcp.NewTool("write_file",
		mcp.WithDescription("Replace the content of a file, creating it if its folder exists. Content that does not parse is rejected unless force is set"),
		pathArg,
		mcp.WithString("content", mcp.Required(), mcp.Description("New file content")),
		mcp.WithBoolean("force", mcp.Description("Write even if the content has syntax errors")),
	), s.writeFile)
	s.mcp.AddTool(mcp.NewTool("create_file",
		mcp.WithDescription("Create a new file; fails if the path exists"),
		pathArg,
		mcp.WithString("content", mcp.Description("Initial content")),
	), s.createFile)
	s.mcp.AddTool(mcp.NewTool("create_folder",
		mcp.WithDescription("Create a folder and any missing parents"),
		pathArg,
	), s.createFolder)
	s.mcp.AddTool(mcp.NewTool("rename",
		mcp.WithDescription("Rename a file or folder in place"),
		pathArg,
		mcp.WithString("name", mcp.Required(), mcp.Description("New name")),
	), s.rename)
	s.mcp.AddTool(mcp.NewTool("delete",
		mcp.WithDescription("Delete a file or a folder with everything below it"),
		pathArg,
	), s.remove)
	s.mcp.AddTool(mcp.NewTool("lint_file",
		mcp.WithDescription("Report syntax errors and lint findings for a file"),
		pathArg,
	), s.lintFile)
	s.mcp.AddTool(mcp.NewTool("query_tree",
		mcp.WithDescription("Select nodes with a JSONPath expression over the tree JSON, e.g. $..children[?(@.language == 'python')]"),
		mcp.WithString("selector", mcp.Required(), mcp.Description("JSONPath expression")),
	), s.queryTree)
	return s
}

// MCP returns the underlying server, e.g. for custom transports.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio serves on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) listTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder
	var visit func(n *tree.Node, depth int)
	visit = func(n *tree.Node, depth int) {
		indent := strings.Repeat("  ", depth)
		if n.IsDir() {
			fmt.Fprintf(&b, "%s%s/ (%s)\n", indent, n.Name, n.ID)
			for _, c := range n.Children {
				visit(c, depth+1)
			}
			return
		}
		fmt.Fprintf(&b, "%s%s (%s, %s, %d bytes)\n", indent, n.Name, n.ID, n.Language, len(n.Content))
	}
	visit(s.tree.Tree(), 0)
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, res := s.file(req)
	if res != nil {
		return res, nil
	}
	return mcp.NewToolResultText(n.Content), nil
}

func (s *Server) writeFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !req.GetBool("force", false) {
		if verr := lint.Validate([]byte(content), tree.Language(path.Base(p))); verr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %v (pass force=true to write anyway)", p, verr)), nil
		}
	}

	n, ok := tree.Resolve(s.tree.Tree(), p)
	switch {
	case !ok:
		if _, res := s.create(p, content); res != nil {
			return res, nil
		}
		return mcp.NewToolResultText("created " + clean(p)), nil
	case n.IsDir():
		return mcp.NewToolResultError(clean(p) + " is a folder"), nil
	}
	if err := s.tree.UpdateFileContent(n.ID, content, ""); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("wrote %d bytes to %s", len(content), clean(p))), nil
}

func (s *Server) createFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := tree.Resolve(s.tree.Tree(), p); ok {
		return mcp.NewToolResultError(clean(p) + " already exists"), nil
	}
	n, res := s.create(p, req.GetString("content", ""))
	if res != nil {
		return res, nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created %s (%s)", clean(p), n.ID)), nil
}

func (s *Server) create(p, content string) (*tree.Node, *mcp.CallToolResult) {
	dir, name := path.Split(clean(p))
	parent, ok := tree.Resolve(s.tree.Tree(), dir)
	if !ok || !parent.IsDir() {
		return nil, mcp.NewToolResultError("no folder at " + strings.TrimSuffix(dir, "/"))
	}
	n, err := s.tree.AddFile(parent.ID, name, content)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return n, nil
}

func (s *Server) createFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cur := s.tree.Tree()
	for _, part := range strings.Split(clean(p), "/") {
		if part == "" {
			continue
		}
		next, ok := tree.Resolve(cur, part)
		switch {
		case !ok:
			if next, err = s.tree.AddFolder(cur.ID, part); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		case !next.IsDir():
			return mcp.NewToolResultError(part + " is a file"), nil
		}
		cur = next
	}
	return mcp.NewToolResultText(fmt.Sprintf("folder %s (%s)", clean(p), cur.ID)), nil
}

func (s *Server) rename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, res := s.node(req)
	if res != nil {
		return res, nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.tree.Rename(n.ID, name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("renamed to " + name), nil
}

func (s *Server) remove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, res := s.node(req)
	if res != nil {
		return res, nil
	}
	if n.ID == tree.RootID {
		return mcp.NewToolResultError("refusing to delete the project root"), nil
	}
	if err := s.tree.Delete(n.ID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted %d node(s)", len(tree.Subtree(n)))), nil
}

func (s *Server) lintFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, res := s.file(req)
	if res != nil {
		return res, nil
	}
	diags := lint.Diagnose([]byte(n.Content), n.Language)
	if len(diags) == 0 {
		return mcp.NewToolResultText("no issues"), nil
	}
	lines := make([]string, len(diags))
	for i, d := range diags {
		lines[i] = d.String()
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) queryTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := req.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	root := s.tree.Tree()
	nodes, err := tree.Query(root, sel)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		p, _ := tree.PathOf(root, n.ID)
		lines = append(lines, fmt.Sprintf("/%s (%s)", p, n.ID))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

// node resolves the "path" argument.
func (s *Server) node(req mcp.CallToolRequest) (*tree.Node, *mcp.CallToolResult) {
	p, err := req.RequireString("path")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	n, ok := tree.Resolve(s.tree.Tree(), p)
	if !ok {
		return nil, mcp.NewToolResultError(fmt.Sprintf("%v: %s", tree.ErrNotFound, clean(p)))
	}
	return n, nil
}

func (s *Server) file(req mcp.CallToolRequest) (*tree.Node, *mcp.CallToolResult) {
	n, res := s.node(req)
	if res != nil {
		return nil, res
	}
	if n.IsDir() {
		return nil, mcp.NewToolResultError(fmt.Sprintf("%v: %s is a folder", tree.ErrNotFile, n.Name))
	}
	return n, nil
}

func clean(p string) string {
	return strings.Trim(path.Clean("/"+p), "/")
}
