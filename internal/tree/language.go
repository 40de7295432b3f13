package tree

import (
	"path"
	"strings"
)

// PlainText is the language of files with an unknown extension.
const PlainText = "plaintext"

var extLanguages = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".go":    "go",
	".rs":    "rust",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".kt":    "kotlin",
	".swift": "swift",
	".sql":   "sql",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".md":    "markdown",
	".html":  "html",
	".htm":   "html",
	".css":   "css",
	".sh":    "shell",
	".bash":  "shell",
	".tf":    "hcl",
	".hcl":   "hcl",
	".toml":  "toml",
	".xml":   "xml",
	".txt":   PlainText,
}

// Language returns the editor language tag for a file name.
func Language(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if lang, ok := extLanguages[ext]; ok {
		return lang
	}
	return PlainText
}
