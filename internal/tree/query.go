package tree

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Query evaluates a JSONPath selector against the canonical JSON encoding of
// t and returns the nodes whose objects matched, in match order. Matches that
// are not node objects (for example "$..name") are ignored.
//
//	Query(t, "$..children[?(@.language == 'python')]")
func Query(t *Node, selector string) ([]*Node, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	b, err := Encode(t)
	if err != nil {
		return nil, err
	}
	doc, err := oj.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("reparse tree: %w", err)
	}

	var out []*Node
	seen := make(map[string]struct{})
	for _, r := range x.Get(doc) {
		obj, ok := r.(map[string]any)
		if !ok {
			continue
		}
		rawID, ok := obj["id"]
		if !ok {
			continue
		}
		id := idString(rawID)
		if _, dup := seen[id]; dup {
			continue
		}
		if n, ok := Find(t, id); ok {
			seen[id] = struct{}{}
			out = append(out, n)
		}
	}
	return out, nil
}
