// Package remote defines the authoritative per-project store and an HTTP
// client for it.
package remote

import (
	"context"
	"errors"

	"github.com/agentic-research/codepad/api"
	"github.com/agentic-research/codepad/internal/tree"
)

var (
	// ErrNotFound means no project document exists for (uid, projectId), or
	// the file named by a content save is not in the stored tree.
	ErrNotFound = errors.New("project not found")
	// ErrUnavailable means the store could not be reached or failed.
	ErrUnavailable = errors.New("remote store unavailable")
	// ErrInvalid means the store rejected the request as malformed.
	ErrInvalid = errors.New("invalid request")
)

// TreeStore reads and writes the file tree held by a project document.
// Saves never create a missing document.
type TreeStore interface {
	FetchTree(ctx context.Context, uid, projectID string) (*tree.Node, error)
	SaveTree(ctx context.Context, uid, projectID string, root *tree.Node) error
	SaveFileContent(ctx context.Context, uid, projectID, fileID, content, language string) error
}

// ProjectStore manages project documents.
type ProjectStore interface {
	CreateProject(ctx context.Context, uid, name, description string) (*api.Project, error)
	GetProject(ctx context.Context, uid, projectID string) (*api.Project, error)
	ListProjects(ctx context.Context, uid string) ([]api.Project, error)
	UpdateProject(ctx context.Context, uid, projectID, name, description string) error
	DeleteProject(ctx context.Context, uid, projectID string) error
}

// Store is the full authoritative store.
type Store interface {
	TreeStore
	ProjectStore
}
