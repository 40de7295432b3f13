package localstore

import (
	"sort"

	"github.com/agentic-research/codepad/internal/tree"
)

// Flatten returns one record per non-root node of root in pre-order.
func Flatten(root *tree.Node) []Record {
	var out []Record
	var visit func(p *tree.Node)
	visit = func(p *tree.Node) {
		for i, c := range p.Children {
			out = append(out, Record{ParentID: p.ID, Position: i, Node: c})
			visit(c)
		}
	}
	if root != nil {
		visit(root)
	}
	return out
}

// Assemble rebuilds a tree from stored records under a synthetic root named
// rootName. Records whose parent chain does not reach the root are returned
// as orphans and left out of the tree.
func Assemble(rootName string, recs []Record) (*tree.Node, []string) {
	byParent := make(map[string][]Record)
	for _, r := range recs {
		if r.Node == nil || r.Node.ID == tree.RootID {
			continue
		}
		byParent[r.ParentID] = append(byParent[r.ParentID], r)
	}
	for _, group := range byParent {
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Position != group[j].Position {
				return group[i].Position < group[j].Position
			}
			return group[i].Node.ID < group[j].Node.ID
		})
	}

	placed := make(map[string]bool)
	var build func(id string) []*tree.Node
	build = func(id string) []*tree.Node {
		children := []*tree.Node{}
		for _, r := range byParent[id] {
			if placed[r.Node.ID] {
				continue
			}
			placed[r.Node.ID] = true
			n := *r.Node
			if n.Kind == tree.KindFolder {
				n.Children = build(n.ID)
			} else {
				n.Children = nil
			}
			children = append(children, &n)
		}
		return children
	}

	root := tree.Default(rootName)
	root.Children = build(tree.RootID)

	var orphans []string
	for _, r := range recs {
		if r.Node != nil && r.Node.ID != tree.RootID && !placed[r.Node.ID] {
			orphans = append(orphans, r.Node.ID)
		}
	}
	return root, orphans
}
