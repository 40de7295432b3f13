package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// wireNode is the canonical JSON shape of a node. Folders always carry a
// children array and files always carry content, so readers never have to
// guess the kind from absent fields.
type wireNode struct {
	ID        wireID     `json:"id"`
	Type      Kind       `json:"type,omitempty"`
	Kind      Kind       `json:"kind,omitempty"`
	Name      string     `json:"name"`
	Children  *[]*Node   `json:"children,omitempty"`
	Content   *string    `json:"content,omitempty"`
	Data      *string    `json:"data,omitempty"`
	Language  string     `json:"language,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// wireID accepts both string and numeric ids. Older guest trees used numbers.
type wireID string

func (id *wireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("node id: %w", err)
	}
	*id = wireID(num.String())
	return nil
}

// MarshalJSON encodes n in the canonical shape.
func (n *Node) MarshalJSON() ([]byte, error) {
	w := wireNode{
		ID:   wireID(n.ID),
		Type: n.Kind,
		Name: n.Name,
	}
	switch n.Kind {
	case KindFolder:
		children := n.Children
		if children == nil {
			children = []*Node{}
		}
		w.Children = &children
	default:
		content := n.Content
		w.Content = &content
		w.Language = n.Language
	}
	if !n.UpdatedAt.IsZero() {
		ts := n.UpdatedAt
		w.UpdatedAt = &ts
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the canonical shape. It also accepts the legacy
// "data" field for file content and a "kind" field in place of "type".
func (n *Node) UnmarshalJSON(b []byte) error {
	var w wireNode
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	kind := w.Type
	if kind == "" {
		kind = w.Kind
	}
	if kind == "" {
		if w.Children != nil {
			kind = KindFolder
		} else {
			kind = KindFile
		}
	}
	if kind != KindFolder && kind != KindFile {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidNode, kind)
	}

	*n = Node{ID: string(w.ID), Kind: kind, Name: w.Name}
	if w.UpdatedAt != nil {
		n.UpdatedAt = *w.UpdatedAt
	}
	if kind == KindFolder {
		n.Children = []*Node{}
		if w.Children != nil {
			for _, c := range *w.Children {
				if c != nil {
					n.Children = append(n.Children, c)
				}
			}
		}
		return nil
	}

	switch {
	case w.Content != nil:
		n.Content = *w.Content
	case w.Data != nil:
		n.Content = *w.Data
	}
	n.Language = w.Language
	if n.Language == "" {
		n.Language = Language(n.Name)
	}
	return nil
}

// Decode parses a whole tree.
func Decode(b []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return &n, nil
}

// Encode serialises a whole tree.
func Encode(t *Node) ([]byte, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}
	return b, nil
}

// idString renders numeric ids consistently with wireID.
func idString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
