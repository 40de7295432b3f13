package tree

import (
	"fmt"
	"strings"
)

// Every mutating operation below is pure. The returned tree shares all
// untouched subtrees with the input and copies only the path from the root to
// the modified node. When an operation fails it returns the input tree
// unchanged together with an error describing why nothing happened.

// Find returns the first node with the given id in depth-first pre-order.
func Find(t *Node, id string) (*Node, bool) {
	var found *Node
	walk(t, func(n *Node) bool {
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// Walk visits every node in depth-first pre-order. Returning false from fn
// stops the walk.
func Walk(t *Node, fn func(n *Node) bool) {
	walk(t, fn)
}

func walk(n *Node, fn func(n *Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// Locate returns the first node with id together with its parent and its
// index in the parent's children. The root has a nil parent and index -1.
func Locate(t *Node, id string) (n, parent *Node, index int, ok bool) {
	if t == nil {
		return nil, nil, -1, false
	}
	if t.ID == id {
		return t, nil, -1, true
	}
	var visit func(p *Node) bool
	visit = func(p *Node) bool {
		for i, c := range p.Children {
			if c.ID == id {
				n, parent, index = c, p, i
				return true
			}
			if visit(c) {
				return true
			}
		}
		return false
	}
	if visit(t) {
		return n, parent, index, true
	}
	return nil, nil, -1, false
}

// Insert appends n to the children of the folder parentID. The whole subtree
// under n must satisfy the rules of Check.
func Insert(t *Node, parentID string, n *Node) (*Node, error) {
	if n == nil || n.ID == "" {
		return t, ErrInvalidNode
	}
	if n.Kind == KindFolder && n.Children == nil {
		cp := *n
		cp.Children = []*Node{}
		n = &cp
	}
	if err := checkSubtree(n); err != nil {
		return t, err
	}

	var dup string
	walk(n, func(c *Node) bool {
		if _, ok := Find(t, c.ID); ok {
			dup = c.ID
			return false
		}
		return true
	})
	if dup != "" {
		return t, fmt.Errorf("%w: %s", ErrDuplicateID, dup)
	}

	out, ok, err := edit(t, parentID, func(p *Node) (*Node, error) {
		if !p.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrNotFolder, p.ID)
		}
		if sibling(p, n.Name, "") != nil {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, n.Name)
		}
		cp := *p
		cp.Children = make([]*Node, len(p.Children), len(p.Children)+1)
		copy(cp.Children, p.Children)
		cp.Children = append(cp.Children, n)
		return &cp, nil
	})
	if err != nil {
		return t, err
	}
	if !ok {
		return t, fmt.Errorf("%w: %s", ErrNotFound, parentID)
	}
	return out, nil
}

// Update renames the node id. File languages follow the new extension.
func Update(t *Node, id, newName string) (*Node, error) {
	if err := ValidateName(newName); err != nil {
		return t, fmt.Errorf("%w: %q", err, newName)
	}
	n, parent, _, ok := Locate(t, id)
	if !ok {
		return t, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if n.Name == newName {
		return t, nil
	}
	if parent != nil && sibling(parent, newName, id) != nil {
		return t, fmt.Errorf("%w: %q", ErrDuplicateName, newName)
	}
	out, _, err := edit(t, id, func(n *Node) (*Node, error) {
		cp := *n
		cp.Name = newName
		if cp.Kind == KindFile {
			if lang := Language(newName); lang != cp.Language {
				cp.Language = lang
				cp.UpdatedAt = now()
			}
		}
		return &cp, nil
	})
	if err != nil {
		return t, err
	}
	return out, nil
}

// Delete removes the node id and its whole subtree.
func Delete(t *Node, id string) (*Node, error) {
	if t != nil && t.ID == id {
		return t, ErrRoot
	}
	out, ok, err := edit(t, id, func(*Node) (*Node, error) { return nil, nil })
	if err != nil {
		return t, err
	}
	if !ok {
		return t, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return out, nil
}

// UpdateFileContent replaces the content of a file. An empty language keeps
// the one derived from the file name.
func UpdateFileContent(t *Node, fileID, content, language string) (*Node, error) {
	out, ok, err := edit(t, fileID, func(n *Node) (*Node, error) {
		if n.Kind != KindFile {
			return nil, fmt.Errorf("%w: %s", ErrNotFile, n.ID)
		}
		cp := *n
		cp.Content = content
		if language == "" {
			language = Language(n.Name)
		}
		cp.Language = language
		cp.UpdatedAt = now()
		return &cp, nil
	})
	if err != nil {
		return t, err
	}
	if !ok {
		return t, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	return out, nil
}

// edit rebuilds the path from t to the first pre-order match of id and
// replaces the match with the result of fn. A nil result removes the match
// from its parent. ok is false when id is not in the tree.
func edit(t *Node, id string, fn func(n *Node) (*Node, error)) (out *Node, ok bool, err error) {
	if t == nil {
		return nil, false, nil
	}
	if t.ID == id {
		out, err = fn(t)
		return out, true, err
	}
	for i, c := range t.Children {
		repl, found, err := edit(c, id, fn)
		if err != nil {
			return t, true, err
		}
		if !found {
			continue
		}
		cp := *t
		cp.Children = make([]*Node, 0, len(t.Children))
		cp.Children = append(cp.Children, t.Children[:i]...)
		if repl != nil {
			cp.Children = append(cp.Children, repl)
		}
		cp.Children = append(cp.Children, t.Children[i+1:]...)
		return &cp, true, nil
	}
	return t, false, nil
}

// sibling returns the child of p named name, ignoring the node skipID.
func sibling(p *Node, name, skipID string) *Node {
	for _, c := range p.Children {
		if c.Name == name && c.ID != skipID {
			return c
		}
	}
	return nil
}

// Subtree returns the ids of n and all of its descendants in pre-order.
func Subtree(n *Node) []string {
	var ids []string
	walk(n, func(c *Node) bool {
		ids = append(ids, c.ID)
		return true
	})
	return ids
}

// PathOf returns the slash-separated name path of id below the root.
// The root itself has the empty path.
func PathOf(t *Node, id string) (string, bool) {
	var parts []string
	var visit func(n *Node) bool
	visit = func(n *Node) bool {
		if n.ID == id {
			return true
		}
		for _, c := range n.Children {
			parts = append(parts, c.Name)
			if visit(c) {
				return true
			}
			parts = parts[:len(parts)-1]
		}
		return false
	}
	if t == nil || !visit(t) {
		return "", false
	}
	return strings.Join(parts, "/"), true
}

// Resolve walks a slash-separated name path from the root.
func Resolve(t *Node, path string) (*Node, bool) {
	cur := t
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." {
			continue
		}
		if cur == nil || !cur.IsDir() {
			return nil, false
		}
		cur = sibling(cur, part, "")
	}
	return cur, cur != nil
}

// Clone returns a deep copy of t.
func Clone(t *Node) *Node {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Children != nil {
		cp.Children = make([]*Node, len(t.Children))
		for i, c := range t.Children {
			cp.Children[i] = Clone(c)
		}
	}
	return &cp
}

// CheckStructure validates what every stored tree must satisfy: a folder
// root with id "root", kind-specific fields and unique ids. Sibling names are
// not looked at; documents written by other clients may repeat them.
func CheckStructure(t *Node) error {
	if t == nil {
		return fmt.Errorf("%w: nil tree", ErrInvalidNode)
	}
	if t.ID != RootID || t.Kind != KindFolder {
		return fmt.Errorf("%w: root must be folder %q", ErrInvalidNode, RootID)
	}
	seen := make(map[string]struct{})
	var err error
	walk(t, func(n *Node) bool {
		if _, dup := seen[n.ID]; dup {
			err = fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
			return false
		}
		seen[n.ID] = struct{}{}
		err = checkNode(n)
		return err == nil
	})
	return err
}

// Check is CheckStructure plus valid, unique sibling names. Trees built only
// through this package always pass it.
func Check(t *Node) error {
	if err := CheckStructure(t); err != nil {
		return err
	}
	return checkNames(t)
}

// checkSubtree applies the rules of Check to a detached subtree that is
// about to be inserted.
func checkSubtree(n *Node) error {
	if err := ValidateName(n.Name); err != nil {
		return fmt.Errorf("%w: %q", err, n.Name)
	}
	seen := make(map[string]struct{})
	var err error
	walk(n, func(c *Node) bool {
		if c.ID == "" {
			err = fmt.Errorf("%w: empty id below %s", ErrInvalidNode, n.ID)
			return false
		}
		if _, dup := seen[c.ID]; dup {
			err = fmt.Errorf("%w: %s", ErrDuplicateID, c.ID)
			return false
		}
		seen[c.ID] = struct{}{}
		err = checkNode(c)
		return err == nil
	})
	if err != nil {
		return err
	}
	return checkNames(n)
}

func checkNode(n *Node) error {
	if e := checkShape(n); e != nil {
		return fmt.Errorf("%w: %s", e, n.ID)
	}
	if n.Kind == KindFolder && n.Children == nil {
		return fmt.Errorf("%w: folder %s has no children list", ErrInvalidNode, n.ID)
	}
	return nil
}

func checkNames(t *Node) error {
	var err error
	walk(t, func(n *Node) bool {
		names := make(map[string]struct{}, len(n.Children))
		for _, c := range n.Children {
			if e := ValidateName(c.Name); e != nil {
				err = fmt.Errorf("%w: %q", e, c.Name)
				return false
			}
			if _, dup := names[c.Name]; dup {
				err = fmt.Errorf("%w: %q in %s", ErrDuplicateName, c.Name, n.ID)
				return false
			}
			names[c.Name] = struct{}{}
		}
		return true
	})
	return err
}
