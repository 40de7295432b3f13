package lint

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	sitter "github.com/smacker/go-tree-sitter"
)

// Severity follows the editor's marker levels.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one finding with a 1-based range, shaped for editor markers.
type Diagnostic struct {
	Severity  Severity `json:"severity"`
	Line      int      `json:"startLineNumber"`
	Column    int      `json:"startColumn"`
	EndLine   int      `json:"endLineNumber"`
	EndColumn int      `json:"endColumn"`
	Message   string   `json:"message"`
	Source    string   `json:"source,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Line, d.Column, d.Severity, d.Message)
}

// ValidationError is the first syntax error found in a buffer.
type ValidationError struct {
	Line    int // 1-based
	Column  int // 1-based
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Validate parses content and returns a *ValidationError for the first
// syntax error. Unsupported languages pass through (returns nil).
func Validate(content []byte, language string) error {
	for _, d := range syntaxDiagnostics(content, language) {
		if d.Severity == SeverityError {
			return &ValidationError{Line: d.Line, Column: d.Column, Message: d.Message}
		}
	}
	return nil
}

// Diagnose returns every syntax error plus rule findings for content.
// Unsupported languages yield no diagnostics.
func Diagnose(content []byte, language string) []Diagnostic {
	diags := syntaxDiagnostics(content, language)
	return append(diags, ruleDiagnostics(content, language)...)
}

func syntaxDiagnostics(content []byte, language string) []Diagnostic {
	if Normalize(language) == "hcl" {
		return hclDiagnostics(content)
	}
	lang := grammar(language)
	if lang == nil {
		return nil
	}
	root, err := parse(content, lang)
	if err != nil {
		return []Diagnostic{{
			Severity: SeverityError, Line: 1, Column: 1, EndLine: 1, EndColumn: 1,
			Message: err.Error(), Source: "tree-sitter",
		}}
	}
	if !root.HasError() {
		return nil
	}
	var diags []Diagnostic
	collectErrors(root, &diags)
	if len(diags) == 0 {
		diags = append(diags, Diagnostic{
			Severity: SeverityError, Line: 1, Column: 1, EndLine: 1, EndColumn: 1,
			Message: "syntax error", Source: "tree-sitter",
		})
	}
	return diags
}

func parse(content []byte, lang *sitter.Language) (*sitter.Node, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	t, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	root := t.RootNode()
	if root == nil {
		return nil, fmt.Errorf("tree-sitter returned nil root")
	}
	return root, nil
}

// collectErrors gathers ERROR and MISSING nodes without descending into them.
func collectErrors(node *sitter.Node, diags *[]Diagnostic) {
	if node.IsError() || node.IsMissing() {
		msg := "syntax error"
		if node.IsMissing() {
			msg = fmt.Sprintf("syntax error: missing %q", node.Type())
		}
		*diags = append(*diags, rangeDiagnostic(node, SeverityError, msg, "tree-sitter"))
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			collectErrors(child, diags)
		}
	}
}

func rangeDiagnostic(n *sitter.Node, sev Severity, msg, source string) Diagnostic {
	start, end := n.StartPoint(), n.EndPoint()
	return Diagnostic{
		Severity:  sev,
		Line:      int(start.Row) + 1,
		Column:    int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndColumn: int(end.Column) + 1,
		Message:   msg,
		Source:    source,
	}
}

func hclDiagnostics(content []byte) []Diagnostic {
	_, hdiags := hclsyntax.ParseConfig(content, "input.hcl", hcl.InitialPos)
	var diags []Diagnostic
	for _, d := range hdiags {
		sev := SeverityWarning
		if d.Severity == hcl.DiagError {
			sev = SeverityError
		}
		msg := d.Summary
		if d.Detail != "" {
			msg += ": " + d.Detail
		}
		out := Diagnostic{Severity: sev, Line: 1, Column: 1, EndLine: 1, EndColumn: 1, Message: msg, Source: "hcl"}
		if d.Subject != nil {
			out.Line, out.Column = d.Subject.Start.Line, d.Subject.Start.Column
			out.EndLine, out.EndColumn = d.Subject.End.Line, d.Subject.End.Column
		}
		diags = append(diags, out)
	}
	return diags
}
