package tree

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind declares whether a node is a folder or a file.
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
)

// RootID is the id of the single root folder of every project tree.
const RootID = "root"

// DefaultRootName is used when a caller mounts a tree without naming it.
const DefaultRootName = "project"

var (
	ErrNotFound      = errors.New("node not found")
	ErrNotFolder     = errors.New("node is not a folder")
	ErrNotFile       = errors.New("node is not a file")
	ErrRoot          = errors.New("operation not permitted on root")
	ErrDuplicateID   = errors.New("node id already present")
	ErrDuplicateName = errors.New("name already used in folder")
	ErrInvalidName   = errors.New("invalid node name")
	ErrInvalidNode   = errors.New("invalid node")
)

// Node is one folder or file in a project tree.
//
// Nodes returned by this package are shared between tree versions and must be
// treated as read-only. Use Clone to obtain a private copy.
type Node struct {
	ID        string
	Kind      Kind
	Name      string
	Children  []*Node // folders only, never nil for a folder
	Content   string  // files only
	Language  string  // files only, derived from Name
	UpdatedAt time.Time
}

// IsDir reports whether n is a folder.
func (n *Node) IsDir() bool { return n.Kind == KindFolder }

// now is the clock used to stamp UpdatedAt.
var now = func() time.Time { return time.Now().UTC() }

// NewFile returns a file node with a fresh id.
func NewFile(name, content string) *Node {
	return &Node{
		ID:        "file-" + uuid.NewString(),
		Kind:      KindFile,
		Name:      name,
		Content:   content,
		Language:  Language(name),
		UpdatedAt: now(),
	}
}

// NewFolder returns an empty folder node with a fresh id.
func NewFolder(name string) *Node {
	return &Node{
		ID:       "folder-" + uuid.NewString(),
		Kind:     KindFolder,
		Name:     name,
		Children: []*Node{},
	}
}

// Default returns a tree holding only the root folder.
func Default(rootName string) *Node {
	if rootName == "" {
		rootName = DefaultRootName
	}
	return &Node{ID: RootID, Kind: KindFolder, Name: rootName, Children: []*Node{}}
}

// ValidateName rejects names that cannot be used as a path segment.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrInvalidName
	case strings.ContainsAny(name, "/\x00"):
		return ErrInvalidName
	}
	return nil
}

// checkShape verifies the kind-specific field rules for a single node.
func checkShape(n *Node) error {
	switch n.Kind {
	case KindFolder:
		if n.Content != "" || n.Language != "" {
			return ErrInvalidNode
		}
	case KindFile:
		if n.Children != nil {
			return ErrInvalidNode
		}
	default:
		return ErrInvalidNode
	}
	return nil
}
