package lint

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"mvdan.cc/gofumpt/format"
)

// Format returns content formatted for its language. ok is false, and content
// is returned unchanged, when the language has no formatter or the content
// does not parse.
func Format(content []byte, language string) (out []byte, ok bool) {
	switch Normalize(language) {
	case "go":
		formatted, err := format.Source(content, format.Options{})
		if err != nil {
			return content, false
		}
		return formatted, true
	case "hcl":
		if _, diags := hclsyntax.ParseConfig(content, "input.hcl", hcl.InitialPos); diags.HasErrors() {
			return content, false
		}
		return hclwrite.Format(content), true
	default:
		return content, false
	}
}
