package lint

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// rule is a tree-sitter query with a single capture plus a check over each
// captured node.
type rule struct {
	language string
	query    string
	check    func(n *sitter.Node) (string, bool)
}

var rules = []rule{
	{
		// var x []T (without initialization)
		language: "go",
		query: `
			(var_declaration
				(var_spec
					name: (identifier)
					type: (slice_type)
				) @decl
			)`,
		check: func(n *sitter.Node) (string, bool) {
			for i := 0; i < int(n.ChildCount()); i++ {
				if n.FieldNameForChild(i) == "value" {
					return "", false
				}
			}
			return "Nil slice declaration. Consider 'make([]T, 0)' for JSON compatibility.", true
		},
	},
	{
		// x == None
		language: "python",
		query:    `(comparison_operator (none)) @cmp`,
		check: func(n *sitter.Node) (string, bool) {
			for i := 0; i < int(n.ChildCount()); i++ {
				switch n.Child(i).Type() {
				case "==":
					return "Comparison to None should use 'is'.", true
				case "!=":
					return "Comparison to None should use 'is not'.", true
				}
			}
			return "", false
		},
	},
}

func ruleDiagnostics(content []byte, language string) []Diagnostic {
	lang := Normalize(language)
	var diags []Diagnostic
	for _, r := range rules {
		if r.language != lang {
			continue
		}
		g := grammar(lang)
		root, err := parse(content, g)
		if err != nil {
			return diags
		}
		q, err := sitter.NewQuery([]byte(r.query), g)
		if err != nil {
			continue
		}
		qc := sitter.NewQueryCursor()
		qc.Exec(q, root)
		for {
			m, ok := qc.NextMatch()
			if !ok {
				break
			}
			for _, c := range m.Captures {
				if msg, hit := r.check(c.Node); hit {
					diags = append(diags, rangeDiagnostic(c.Node, SeverityWarning, msg, "codepad"))
				}
			}
		}
	}
	return diags
}
