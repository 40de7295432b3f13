// Package lint validates, diagnoses and formats file content in memory.
package lint

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	sqllang "github.com/smacker/go-tree-sitter/sql"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/smacker/go-tree-sitter/yaml"
)

// Normalize maps editor language names and aliases onto the tags used by
// this package.
func Normalize(language string) string {
	l := strings.ToLower(strings.TrimSpace(language))
	switch l {
	case "c++":
		return "cpp"
	case "golang":
		return "go"
	case "js", "jsx":
		return "javascript"
	case "ts", "tsx":
		return "typescript"
	case "py":
		return "python"
	case "yml":
		return "yaml"
	case "terraform", "tf":
		return "hcl"
	}
	return l
}

// grammar returns the tree-sitter grammar for a language tag, or nil.
func grammar(language string) *sitter.Language {
	switch Normalize(language) {
	case "go":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	case "rust":
		return rust.GetLanguage()
	case "sql":
		return sqllang.GetLanguage()
	case "yaml":
		return yaml.GetLanguage()
	default:
		return nil
	}
}

// Supported reports whether Validate can check the language.
func Supported(language string) bool {
	return grammar(language) != nil || Normalize(language) == "hcl"
}
