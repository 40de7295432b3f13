// Package localstore keeps project nodes in a local SQLite database, one row
// per node keyed by id. It backs guest workspaces and offline caches.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agentic-research/codepad/internal/tree"
	_ "modernc.org/sqlite"
)

var (
	// ErrUnavailable wraps every failure of the underlying database.
	ErrUnavailable = errors.New("local store unavailable")
	ErrNotFound    = errors.New("record not found")
)

// Record is one node as kept in the store. Children are not stored with
// their folder; Assemble rebuilds them from ParentID and Position.
type Record struct {
	ParentID string
	Position int
	Node     *tree.Node
}

// Store is a key-value view over the nodes table restricted to one scope.
// A scope is one local workspace.
type Store struct {
	db    *sql.DB
	path  string
	scope string
}

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	scope TEXT NOT NULL,
	id TEXT NOT NULL,
	parent_id TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	kind TEXT NOT NULL,
	record JSON NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (scope, id)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(scope, parent_id, position);
`

// Open opens (creating if needed) the database at path and binds the store
// to scope. Use ":memory:" for a throwaway store.
func Open(path, scope string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrUnavailable, path, err)
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: set journal mode: %w", ErrUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: set synchronous: %w", ErrUnavailable, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create schema: %w", ErrUnavailable, err)
	}
	return &Store{db: db, path: path, scope: scope}, nil
}

// Scope returns the workspace this store reads and writes.
func (s *Store) Scope() string { return s.scope }

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces the record for rec.Node.ID.
func (s *Store) Put(ctx context.Context, rec Record) error {
	if rec.Node == nil || rec.Node.ID == "" {
		return fmt.Errorf("put: %w", tree.ErrInvalidNode)
	}
	return s.put(ctx, s.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) put(ctx context.Context, db execer, rec Record) error {
	body, err := encodeShallow(rec.Node)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO nodes (scope, id, parent_id, position, kind, record, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.scope, rec.Node.ID, rec.ParentID, rec.Position, string(rec.Node.Kind), body, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("%w: put %s: %w", ErrUnavailable, rec.Node.ID, err)
	}
	return nil
}

// Get returns the record stored under id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	var body string
	err := s.db.QueryRowContext(ctx,
		"SELECT parent_id, position, record FROM nodes WHERE scope = ? AND id = ?", s.scope, id).
		Scan(&rec.ParentID, &rec.Position, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: get %s: %w", ErrUnavailable, id, err)
	}
	if rec.Node, err = tree.Decode([]byte(body)); err != nil {
		return Record{}, fmt.Errorf("%w: record %s: %w", ErrUnavailable, id, err)
	}
	return rec, nil
}

// GetAll returns every record in the scope ordered by parent and position.
func (s *Store) GetAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, parent_id, position, record FROM nodes WHERE scope = ? ORDER BY parent_id, position, id", s.scope)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var id, body string
		var rec Record
		if err := rows.Scan(&id, &rec.ParentID, &rec.Position, &body); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrUnavailable, err)
		}
		if rec.Node, err = tree.Decode([]byte(body)); err != nil {
			return nil, fmt.Errorf("%w: record %s: %w", ErrUnavailable, id, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrUnavailable, err)
	}
	return out, nil
}

// Delete removes the record under id. Deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM nodes WHERE scope = ? AND id = ?", s.scope, id); err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrUnavailable, id, err)
	}
	return nil
}

// Replace rewrites the whole scope so that it holds exactly the nodes of root.
func (s *Store) Replace(ctx context.Context, root *tree.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE scope = ?", s.scope); err != nil {
		return fmt.Errorf("%w: clear scope: %w", ErrUnavailable, err)
	}
	for _, rec := range Flatten(root) {
		if err := s.put(ctx, tx, rec); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrUnavailable, err)
	}
	return nil
}

// encodeShallow serialises a node without its children.
func encodeShallow(n *tree.Node) (string, error) {
	shallow := *n
	if shallow.Kind == tree.KindFolder {
		shallow.Children = []*tree.Node{}
	}
	b, err := tree.Encode(&shallow)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
