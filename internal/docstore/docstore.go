// Package docstore is the authoritative project store: one document per
// (uid, projectId) holding project metadata and the whole file tree.
package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agentic-research/codepad/api"
	"github.com/agentic-research/codepad/internal/remote"
	"github.com/agentic-research/codepad/internal/tree"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	uid TEXT NOT NULL,
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	file_tree JSON NOT NULL,
	PRIMARY KEY (uid, project_id)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_projects_updated ON projects(uid, updated_at DESC);
`

// Store keeps project documents in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ remote.Store = (*Store)(nil)

// Open opens (creating if needed) the document database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open docstore %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", remote.ErrUnavailable, op, err)
}

// FetchTree returns the stored tree of a project.
func (s *Store) FetchTree(ctx context.Context, uid, projectID string) (*tree.Node, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		"SELECT file_tree FROM projects WHERE uid = ? AND project_id = ?", uid, projectID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, remote.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("fetch tree", err)
	}
	root, err := tree.Decode([]byte(body))
	if err != nil {
		return nil, unavailable("decode tree", err)
	}
	return root, nil
}

// SaveTree replaces the tree of an existing project. A missing project is
// reported as ErrNotFound; nothing is created.
func (s *Store) SaveTree(ctx context.Context, uid, projectID string, root *tree.Node) error {
	if err := tree.CheckStructure(root); err != nil {
		return fmt.Errorf("%w: %w", remote.ErrInvalid, err)
	}
	body, err := tree.Encode(root)
	if err != nil {
		return fmt.Errorf("%w: %w", remote.ErrInvalid, err)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE projects SET file_tree = ?, updated_at = ? WHERE uid = ? AND project_id = ?",
		string(body), s.now().UnixNano(), uid, projectID)
	if err != nil {
		return unavailable("save tree", err)
	}
	return requireRow(res)
}

// SaveFileContent applies a content edit to the stored tree and writes the
// whole document back in one transaction.
func (s *Store) SaveFileContent(ctx context.Context, uid, projectID, fileID, content, language string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	var body string
	err = tx.QueryRowContext(ctx,
		"SELECT file_tree FROM projects WHERE uid = ? AND project_id = ?", uid, projectID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return remote.ErrNotFound
	}
	if err != nil {
		return unavailable("load tree", err)
	}
	root, err := tree.Decode([]byte(body))
	if err != nil {
		return unavailable("decode tree", err)
	}
	root, err = tree.UpdateFileContent(root, fileID, content, language)
	switch {
	case errors.Is(err, tree.ErrNotFound):
		return fmt.Errorf("%w: file %s", remote.ErrNotFound, fileID)
	case err != nil:
		return fmt.Errorf("%w: %w", remote.ErrInvalid, err)
	}
	out, err := tree.Encode(root)
	if err != nil {
		return fmt.Errorf("%w: %w", remote.ErrInvalid, err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE projects SET file_tree = ?, updated_at = ? WHERE uid = ? AND project_id = ?",
		string(out), s.now().UnixNano(), uid, projectID); err != nil {
		return unavailable("save file", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// CreateProject stores a new project seeded with the welcome tree.
func (s *Store) CreateProject(ctx context.Context, uid, name, description string) (*api.Project, error) {
	if uid == "" || name == "" {
		return nil, fmt.Errorf("%w: uid and name are required", remote.ErrInvalid)
	}
	ts := s.now()
	p := &api.Project{
		UID:         uid,
		ProjectID:   uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   ts,
		UpdatedAt:   ts,
		FileTree:    tree.Welcome("welcome"),
	}
	body, err := tree.Encode(p.FileTree)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (uid, project_id, name, description, created_at, updated_at, file_tree)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.UID, p.ProjectID, p.Name, p.Description, ts.UnixNano(), ts.UnixNano(), string(body)); err != nil {
		return nil, unavailable("create project", err)
	}
	return p, nil
}

// GetProject returns one project document including its tree.
func (s *Store) GetProject(ctx context.Context, uid, projectID string) (*api.Project, error) {
	p := api.Project{UID: uid, ProjectID: projectID}
	var created, updated int64
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT name, description, created_at, updated_at, file_tree
		FROM projects WHERE uid = ? AND project_id = ?`, uid, projectID).
		Scan(&p.Name, &p.Description, &created, &updated, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, remote.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get project", err)
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	if p.FileTree, err = tree.Decode([]byte(body)); err != nil {
		return nil, unavailable("decode tree", err)
	}
	return &p, nil
}

// ListProjects returns the projects of uid, most recently updated first.
// Trees are not included.
func (s *Store) ListProjects(ctx context.Context, uid string) ([]api.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, name, description, created_at, updated_at
		FROM projects WHERE uid = ? ORDER BY updated_at DESC, project_id`, uid)
	if err != nil {
		return nil, unavailable("list projects", err)
	}
	defer func() { _ = rows.Close() }()

	out := []api.Project{}
	for rows.Next() {
		p := api.Project{UID: uid}
		var created, updated int64
		if err := rows.Scan(&p.ProjectID, &p.Name, &p.Description, &created, &updated); err != nil {
			return nil, unavailable("scan project", err)
		}
		p.CreatedAt = time.Unix(0, created).UTC()
		p.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list projects", err)
	}
	return out, nil
}

// UpdateProject changes name and description of an existing project.
func (s *Store) UpdateProject(ctx context.Context, uid, projectID, name, description string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", remote.ErrInvalid)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE projects SET name = ?, description = ?, updated_at = ? WHERE uid = ? AND project_id = ?",
		name, description, s.now().UnixNano(), uid, projectID)
	if err != nil {
		return unavailable("update project", err)
	}
	return requireRow(res)
}

// DeleteProject removes a project document.
func (s *Store) DeleteProject(ctx context.Context, uid, projectID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM projects WHERE uid = ? AND project_id = ?", uid, projectID)
	if err != nil {
		return unavailable("delete project", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if n == 0 {
		return remote.ErrNotFound
	}
	return nil
}
