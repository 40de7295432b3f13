// Package syncer owns the in-memory project tree of one editing session and
// keeps it persisted to either the authoritative remote store or the local
// store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/agentic-research/codepad/internal/localstore"
	"github.com/agentic-research/codepad/internal/remote"
	"github.com/agentic-research/codepad/internal/tree"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotReady       = errors.New("engine not ready")
	ErrAlreadyMounted = errors.New("engine already mounted")
	ErrClosed         = errors.New("engine closed")
)

// State is the lifecycle position of an engine.
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Mode is chosen once by Mount and never changes for the engine's lifetime.
type Mode int

const (
	ModeUnset Mode = iota
	AuthBacked
	LocalOnly
)

func (m Mode) String() string {
	switch m {
	case AuthBacked:
		return "auth"
	case LocalOnly:
		return "local"
	default:
		return "unset"
	}
}

// LocalStore is the subset of localstore.Store the engine writes through.
type LocalStore interface {
	Put(ctx context.Context, rec localstore.Record) error
	Delete(ctx context.Context, id string) error
	GetAll(ctx context.Context) ([]localstore.Record, error)
	Replace(ctx context.Context, root *tree.Node) error
}

// Config wires an engine to one session. UID and ProjectID together with a
// Remote select the auth-backed mode; anything less selects local-only.
// In auth-backed mode a Local store, when set, is kept as an offline copy.
type Config struct {
	UID       string
	ProjectID string
	RootName  string

	Remote remote.TreeStore
	Local  LocalStore

	Logger logrus.FieldLogger
	// Notify receives persistence problems. It is called from the engine's
	// worker goroutine and from Mount, and must not block.
	Notify func(Notice)
	// SaveTimeout bounds each individual store call.
	SaveTimeout time.Duration
}

// Engine is the single owner of a session's tree. All mutations are applied
// to memory synchronously and persisted asynchronously, in mutation order,
// by one worker goroutine.
type Engine struct {
	cfg Config
	log logrus.FieldLogger

	mu       sync.Mutex
	state    State
	mode     Mode
	root     *tree.Node
	detached bool
	closed   bool
	started  bool
	dirty    *dirtySet

	q       *queue
	baseCtx context.Context
	cancel  context.CancelFunc
	quit    chan struct{}
	stopped chan struct{}
}

// New returns an unmounted engine.
func New(cfg Config) *Engine {
	if cfg.RootName == "" {
		cfg.RootName = tree.DefaultRootName
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg: cfg,
		log: log.WithFields(logrus.Fields{
			"component": "syncer",
			"uid":       cfg.UID,
			"project":   cfg.ProjectID,
		}),
		dirty:   newDirtySet(),
		q:       newQueue(),
		baseCtx: ctx,
		cancel:  cancel,
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Mount loads the initial tree and enters Ready. It never fails because of
// persistence: missing or unreachable stores fall back to a default tree and
// a Notice.
func (e *Engine) Mount(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.state != Uninitialized {
		e.mu.Unlock()
		return ErrAlreadyMounted
	}
	e.state = Loading
	e.mu.Unlock()

	var root *tree.Node
	var mode Mode
	var detached bool
	if e.cfg.UID != "" && e.cfg.ProjectID != "" && e.cfg.Remote != nil {
		mode = AuthBacked
		root, detached = e.loadRemote(ctx)
	} else {
		mode = LocalOnly
		root = e.loadLocal(ctx)
	}

	e.mu.Lock()
	e.root = root
	e.mode = mode
	e.detached = detached
	e.state = Ready
	e.started = true
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{"mode": mode, "detached": detached}).Info("tree mounted")
	go e.run()
	return nil
}

func (e *Engine) loadRemote(ctx context.Context) (*tree.Node, bool) {
	root, err := e.cfg.Remote.FetchTree(ctx, e.cfg.UID, e.cfg.ProjectID)
	if err == nil {
		if checkErr := tree.Check(root); checkErr != nil {
			e.log.WithError(checkErr).Warn("fetched tree violates invariants")
		}
		if e.cfg.Local != nil {
			e.q.push(job{kind: jobReplaceLocal, root: root})
		}
		return root, false
	}
	if errors.Is(err, remote.ErrNotFound) {
		e.log.Info("no stored tree, starting from default")
		return tree.Default(e.cfg.RootName), false
	}

	// The remote is unreachable. Writing a default tree back would clobber
	// whatever it holds, so remote saves stay off for this session.
	e.log.WithError(err).Warn("fetch failed, remote saves disabled for session")
	e.report(Notice{Op: OpFetch, Err: err})
	if cached := e.loadCache(ctx); cached != nil {
		return cached, true
	}
	return tree.Default(e.cfg.RootName), true
}

// loadCache returns the offline copy of an auth-backed tree, if any.
func (e *Engine) loadCache(ctx context.Context) *tree.Node {
	if e.cfg.Local == nil {
		return nil
	}
	recs, err := e.cfg.Local.GetAll(ctx)
	if err != nil || len(recs) == 0 {
		return nil
	}
	root, orphans := localstore.Assemble(e.cfg.RootName, recs)
	if len(orphans) > 0 {
		e.log.WithField("orphans", len(orphans)).Warn("offline copy has orphaned records")
	}
	e.log.Info("using offline copy")
	return root
}

func (e *Engine) loadLocal(ctx context.Context) *tree.Node {
	if e.cfg.Local == nil {
		return tree.Seed(e.cfg.RootName)
	}
	recs, err := e.cfg.Local.GetAll(ctx)
	if err != nil {
		e.log.WithError(err).Warn("local store unavailable, keeping tree in memory")
		e.report(Notice{Op: OpLocalLoad, Err: err})
		return tree.Seed(e.cfg.RootName)
	}
	if len(recs) == 0 {
		root := tree.Seed(e.cfg.RootName)
		e.q.push(job{kind: jobReplaceLocal, root: root})
		return root
	}
	root, orphans := localstore.Assemble(e.cfg.RootName, recs)
	if len(orphans) > 0 {
		e.log.WithField("orphans", orphans).Warn("dropping orphaned local records")
		e.dirty.mark(orphans...)
		e.q.push(job{kind: jobFlushLocal})
	}
	return root
}

// State reports the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Mode reports the persistence mode chosen by Mount.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Detached reports whether remote saves were disabled because the initial
// fetch failed.
func (e *Engine) Detached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detached
}

// Tree returns the current tree. The result must not be modified.
func (e *Engine) Tree() *tree.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.root
}

// Find looks a node up in the current tree.
func (e *Engine) Find(id string) (*tree.Node, bool) {
	return tree.Find(e.Tree(), id)
}

// Insert appends n under parentID.
func (e *Engine) Insert(parentID string, n *tree.Node) error {
	return e.mutate(func(root *tree.Node) (*tree.Node, []string, error) {
		next, err := tree.Insert(root, parentID, n)
		return next, tree.Subtree(n), err
	})
}

// AddFile creates an empty or pre-filled file under parentID.
func (e *Engine) AddFile(parentID, name, content string) (*tree.Node, error) {
	n := tree.NewFile(name, content)
	if err := e.Insert(parentID, n); err != nil {
		return nil, err
	}
	return n, nil
}

// AddFolder creates an empty folder under parentID.
func (e *Engine) AddFolder(parentID, name string) (*tree.Node, error) {
	n := tree.NewFolder(name)
	if err := e.Insert(parentID, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Rename changes the name of id. Local workspaces keep no record for the
// root, whose name always comes from Config.RootName, so renaming it there
// fails with tree.ErrRoot.
func (e *Engine) Rename(id, name string) error {
	return e.mutate(func(root *tree.Node) (*tree.Node, []string, error) {
		if id == root.ID && e.mode == LocalOnly {
			return root, nil, fmt.Errorf("%w: rename in a local workspace", tree.ErrRoot)
		}
		next, err := tree.Update(root, id, name)
		return next, []string{id}, err
	})
}

// Delete removes id and its subtree. Deleting the root resets the session to
// an empty default tree.
func (e *Engine) Delete(id string) error {
	return e.mutate(func(root *tree.Node) (*tree.Node, []string, error) {
		if id == root.ID {
			next := tree.Default(root.Name)
			return next, tree.Subtree(root), nil
		}
		n, parent, _, ok := tree.Locate(root, id)
		if !ok {
			return root, nil, fmt.Errorf("%w: %s", tree.ErrNotFound, id)
		}
		next, err := tree.Delete(root, id)
		if err != nil {
			return root, nil, err
		}
		// Later siblings shift position, so their records are rewritten too.
		touched := tree.Subtree(n)
		for _, c := range parent.Children {
			if c.ID != id {
				touched = append(touched, c.ID)
			}
		}
		return next, touched, nil
	})
}

// UpdateFileContent replaces the content of fileID. Remote persistence uses
// the narrower content save instead of a whole-tree save.
func (e *Engine) UpdateFileContent(fileID, content, language string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.usableLocked(); err != nil {
		return err
	}
	next, err := tree.UpdateFileContent(e.root, fileID, content, language)
	if err != nil {
		return err
	}
	e.root = next
	if e.remoteLocked() {
		n, _ := tree.Find(next, fileID)
		e.q.push(job{kind: jobSaveFile, fileID: fileID, content: content, language: n.Language})
	}
	e.touchLocalLocked(fileID)
	return nil
}

// mutate applies fn to the current tree and queues persistence of the
// result. fn also returns the ids whose local records must be rewritten.
func (e *Engine) mutate(fn func(root *tree.Node) (*tree.Node, []string, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.usableLocked(); err != nil {
		return err
	}
	next, touched, err := fn(e.root)
	if err != nil {
		return err
	}
	e.root = next
	if e.remoteLocked() {
		e.q.push(job{kind: jobSaveTree, root: next})
	}
	e.touchLocalLocked(touched...)
	return nil
}

func (e *Engine) usableLocked() error {
	if e.closed {
		return ErrClosed
	}
	if e.state != Ready {
		return ErrNotReady
	}
	return nil
}

func (e *Engine) remoteLocked() bool {
	return e.mode == AuthBacked && !e.detached
}

func (e *Engine) touchLocalLocked(ids ...string) {
	if e.cfg.Local == nil || len(ids) == 0 {
		return
	}
	e.dirty.mark(ids...)
	e.q.push(job{kind: jobFlushLocal})
}

// Flush blocks until every persistence step queued before the call has run.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	started, closed := e.started, e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !started {
		return nil
	}
	return e.barrier(ctx)
}

func (e *Engine) barrier(ctx context.Context) error {
	done := make(chan struct{})
	e.q.push(job{kind: jobBarrier, done: done})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting mutations, waits for queued persistence and stops
// the worker. If ctx expires first, outstanding store calls are abandoned.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	started := e.started
	e.mu.Unlock()

	if !started {
		e.cancel()
		return nil
	}
	err := e.barrier(ctx)
	if err != nil {
		e.log.WithField("pending", e.q.len()).Warn("close timed out, dropping queued saves")
	}
	e.cancel()
	close(e.quit)
	<-e.stopped
	return err
}

func (e *Engine) run() {
	defer close(e.stopped)
	for {
		if j, ok := e.q.pop(); ok {
			e.exec(j)
			continue
		}
		select {
		case <-e.q.wake:
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) exec(j job) {
	if j.kind == jobBarrier {
		close(j.done)
		return
	}
	if e.baseCtx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(e.baseCtx, e.cfg.SaveTimeout)
	defer cancel()

	switch j.kind {
	case jobSaveTree:
		err := e.cfg.Remote.SaveTree(ctx, e.cfg.UID, e.cfg.ProjectID, j.root)
		e.done(OpSaveTree, "", err)
	case jobSaveFile:
		err := e.cfg.Remote.SaveFileContent(ctx, e.cfg.UID, e.cfg.ProjectID, j.fileID, j.content, j.language)
		e.done(OpSaveFile, j.fileID, err)
	case jobReplaceLocal:
		err := e.cfg.Local.Replace(ctx, j.root)
		e.done(OpLocalWrite, "", err)
	case jobFlushLocal:
		e.flushLocal(ctx)
	}
}

// flushLocal writes every dirty node still in the tree and deletes every
// dirty node that is gone. Failed ids stay dirty and are picked up by the
// next flush.
func (e *Engine) flushLocal(ctx context.Context) {
	e.mu.Lock()
	ids := e.dirty.take()
	root := e.root
	e.mu.Unlock()

	var failed []string
	var lastErr error
	for _, id := range ids {
		n, parent, idx, ok := tree.Locate(root, id)
		var err error
		switch {
		case ok && parent == nil:
			continue
		case ok:
			err = e.cfg.Local.Put(ctx, localstore.Record{ParentID: parent.ID, Position: idx, Node: n})
		default:
			err = e.cfg.Local.Delete(ctx, id)
		}
		if err != nil {
			failed = append(failed, id)
			lastErr = err
		}
	}
	if len(failed) == 0 {
		e.log.WithField("nodes", len(ids)).Debug("local flush")
		return
	}
	e.mu.Lock()
	e.dirty.mark(failed...)
	e.mu.Unlock()
	e.done(OpLocalWrite, failed[0], lastErr)
}

func (e *Engine) done(op Op, nodeID string, err error) {
	entry := e.log.WithField("op", op)
	if nodeID != "" {
		entry = entry.WithField("node", nodeID)
	}
	if err == nil {
		entry.Debug("persisted")
		return
	}
	entry.WithError(err).Warn("persistence failed")
	e.report(Notice{Op: op, NodeID: nodeID, Err: err})
}

func (e *Engine) report(n Notice) {
	if e.cfg.Notify != nil {
		e.cfg.Notify(n)
	}
}
