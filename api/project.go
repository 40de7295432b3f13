package api

import (
	"time"

	"github.com/agentic-research/codepad/internal/tree"
)

// Project is the authoritative document for one (uid, projectId) pair.
// It owns the whole file tree of the project.
type Project struct {
	UID         string     `json:"uid"`
	ProjectID   string     `json:"projectId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	FileTree    *tree.Node `json:"fileTree,omitempty"`
}

// ProjectRequest creates or updates a project's metadata.
type ProjectRequest struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProjectResponse is returned by project creation.
type ProjectResponse struct {
	Message string   `json:"message"`
	Project *Project `json:"project"`
}

// ProjectList is returned by the project listing.
type ProjectList struct {
	Projects []Project `json:"projects"`
}

// SaveTreeRequest replaces the stored tree of an existing project.
type SaveTreeRequest struct {
	UID       string     `json:"uid"`
	ProjectID string     `json:"projectId"`
	FileTree  *tree.Node `json:"fileTree"`
}

// SaveFileRequest replaces the content of one file inside a stored tree.
type SaveFileRequest struct {
	UID       string `json:"uid"`
	ProjectID string `json:"projectId"`
	FileID    string `json:"fileId"`
	Content   string `json:"content"`
	Language  string `json:"language"`
}

// CodeRequest carries source for the assist and lint endpoints.
type CodeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// Message is the body of plain success and error responses.
type Message struct {
	Message string `json:"message"`
}
