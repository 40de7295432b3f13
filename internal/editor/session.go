// Package editor binds open editor tabs to nodes of a synchronized tree.
package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/agentic-research/codepad/internal/lint"
	"github.com/agentic-research/codepad/internal/runner"
	"github.com/agentic-research/codepad/internal/tree"
	"github.com/sirupsen/logrus"
)

var (
	ErrTabNotOpen  = errors.New("tab not open")
	ErrNoRunner    = errors.New("no code runner configured")
	ErrNoAssistant = errors.New("no assistant configured")
)

// Tree is the synchronized tree a session edits.
type Tree interface {
	Find(id string) (*tree.Node, bool)
	Insert(parentID string, n *tree.Node) error
	AddFile(parentID, name, content string) (*tree.Node, error)
	AddFolder(parentID, name string) (*tree.Node, error)
	Rename(id, name string) error
	Delete(id string) error
	UpdateFileContent(fileID, content, language string) error
}

// Runner executes a program.
type Runner interface {
	Run(ctx context.Context, req runner.Request) (*runner.Result, error)
}

// Assistant produces completions and fixes.
type Assistant interface {
	Suggest(ctx context.Context, code, language string) (string, error)
	Fix(ctx context.Context, code, language string) (string, error)
}

// Tab mirrors an open file node.
type Tab struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Data string `json:"data"`
}

type Option func(*Session)

func WithRunner(r Runner) Option { return func(s *Session) { s.runner = r } }

func WithAssistant(a Assistant) Option { return func(s *Session) { s.assistant = a } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Session) { s.log = l } }

// Session is one editor window: a list of tabs, the selected one, and the
// tree they are backed by.
type Session struct {
	mu        sync.Mutex
	tree      Tree
	runner    Runner
	assistant Assistant
	log       logrus.FieldLogger
	tabs      []Tab
	active    string
}

func New(t Tree, opts ...Option) *Session {
	s := &Session{tree: t}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.log = l
	}
	return s
}

// Tabs returns a copy of the open tabs in display order.
func (s *Session) Tabs() []Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Tab(nil), s.tabs...)
}

// Active returns the selected tab.
func (s *Session) Active() (Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(s.active); i >= 0 {
		return s.tabs[i], true
	}
	return Tab{}, false
}

// Open selects the tab for id, opening it if needed. An id that is not in the
// tree becomes a new empty file under the root so the tab is always backed by
// a stored node.
func (s *Session) Open(id, name string) (Tab, error) {
	n, ok := s.tree.Find(id)
	if !ok {
		if err := tree.ValidateName(name); err != nil {
			return Tab{}, err
		}
		n = &tree.Node{ID: id, Kind: tree.KindFile, Name: name, Language: tree.Language(name)}
		if err := s.tree.Insert(tree.RootID, n); err != nil {
			return Tab{}, err
		}
		s.log.WithField("id", id).Debug("created file for tab")
	}
	if n.IsDir() {
		return Tab{}, fmt.Errorf("%w: %s", tree.ErrNotFile, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showLocked(n), nil
}

// AddFile creates a file under parentID and opens it.
func (s *Session) AddFile(parentID, name, content string) (Tab, error) {
	n, err := s.tree.AddFile(parentID, name, content)
	if err != nil {
		return Tab{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showLocked(n), nil
}

func (s *Session) AddFolder(parentID, name string) (*tree.Node, error) {
	return s.tree.AddFolder(parentID, name)
}

// Edit replaces the content of a file and mirrors it into its tab.
func (s *Session) Edit(id, content string) error {
	if err := s.tree.UpdateFileContent(id, content, ""); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		s.tabs[i].Data = content
	}
	return nil
}

func (s *Session) Rename(id, name string) error {
	if err := s.tree.Rename(id, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		s.tabs[i].Name = name
	}
	return nil
}

// Delete removes id and closes the tabs of every removed file.
func (s *Session) Delete(id string) error {
	n, ok := s.tree.Find(id)
	if !ok {
		return fmt.Errorf("%w: %s", tree.ErrNotFound, id)
	}
	removed := tree.Subtree(n)
	if err := s.tree.Delete(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rid := range removed {
		s.closeLocked(rid)
	}
	return nil
}

// CloseTab closes the tab for id. The node is left alone.
func (s *Session) CloseTab(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked(id)
}

// Select makes an open tab the active one.
func (s *Session) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(id) < 0 {
		return fmt.Errorf("%w: %s", ErrTabNotOpen, id)
	}
	s.active = id
	return nil
}

// Run executes the file with stdin.
func (s *Session) Run(ctx context.Context, id, stdin string) (*runner.Result, error) {
	if s.runner == nil {
		return nil, ErrNoRunner
	}
	n, err := s.file(id)
	if err != nil {
		return nil, err
	}
	return s.runner.Run(ctx, runner.Request{Source: n.Content, Language: n.Language, Stdin: stdin})
}

// Suggest asks the assistant for an inline completion of the file.
func (s *Session) Suggest(ctx context.Context, id string) (string, error) {
	if s.assistant == nil {
		return "", ErrNoAssistant
	}
	n, err := s.file(id)
	if err != nil {
		return "", err
	}
	return s.assistant.Suggest(ctx, n.Content, n.Language)
}

// Fix asks the assistant for a corrected version of the file and, when apply
// is set, writes it back.
func (s *Session) Fix(ctx context.Context, id string, apply bool) (string, error) {
	if s.assistant == nil {
		return "", ErrNoAssistant
	}
	n, err := s.file(id)
	if err != nil {
		return "", err
	}
	fixed, err := s.assistant.Fix(ctx, n.Content, n.Language)
	if err != nil {
		return "", err
	}
	if apply {
		if err := s.Edit(id, fixed); err != nil {
			return fixed, err
		}
	}
	return fixed, nil
}

func (s *Session) Lint(id string) ([]lint.Diagnostic, error) {
	n, err := s.file(id)
	if err != nil {
		return nil, err
	}
	return lint.Diagnose([]byte(n.Content), n.Language), nil
}

// Format rewrites the file with its language formatter. It reports whether
// the content changed.
func (s *Session) Format(id string) (bool, error) {
	n, err := s.file(id)
	if err != nil {
		return false, err
	}
	out, ok := lint.Format([]byte(n.Content), n.Language)
	if !ok || bytes.Equal(out, []byte(n.Content)) {
		return false, nil
	}
	return true, s.Edit(id, string(out))
}

func (s *Session) file(id string) (*tree.Node, error) {
	n, ok := s.tree.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", tree.ErrNotFound, id)
	}
	if n.IsDir() {
		return nil, fmt.Errorf("%w: %s", tree.ErrNotFile, id)
	}
	return n, nil
}

func (s *Session) showLocked(n *tree.Node) Tab {
	i := s.indexLocked(n.ID)
	if i < 0 {
		s.tabs = append(s.tabs, Tab{ID: n.ID, Name: n.Name, Data: n.Content})
		i = len(s.tabs) - 1
	}
	s.active = n.ID
	return s.tabs[i]
}

func (s *Session) closeLocked(id string) bool {
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.tabs = append(s.tabs[:i], s.tabs[i+1:]...)
	if s.active == id {
		s.active = ""
		switch {
		case i > 0:
			s.active = s.tabs[i-1].ID
		case len(s.tabs) > 0:
			s.active = s.tabs[0].ID
		}
	}
	return true
}

func (s *Session) indexLocked(id string) int {
	for i, t := range s.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}
