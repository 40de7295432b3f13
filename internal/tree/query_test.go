package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery(t *testing.T) {
	root := Seed("demo")

	t.Run("filter by language", func(t *testing.T) {
		got, err := Query(root, "$..children[?(@.language == 'python')]")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "main.py", got[0].Name)
	})

	t.Run("all folders", func(t *testing.T) {
		got, err := Query(root, "$..children[?(@.type == 'folder')]")
		require.NoError(t, err)
		var names []string
		for _, n := range got {
			names = append(names, n.Name)
		}
		assert.ElementsMatch(t, []string{"src", "components"}, names)
	})

	t.Run("scalar matches are ignored", func(t *testing.T) {
		got, err := Query(root, "$..name")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("invalid selector", func(t *testing.T) {
		_, err := Query(root, "$[?(")
		assert.Error(t, err)
	})
}

func TestLanguage(t *testing.T) {
	cases := map[string]string{
		"main.py":    "python",
		"Button.jsx": "javascript",
		"x.TS":       "typescript",
		"lib.rs":     "rust",
		"main.tf":    "hcl",
		"README.md":  "markdown",
		"Makefile":   PlainText,
		"notes.xyz":  PlainText,
	}
	for name, want := range cases {
		assert.Equal(t, want, Language(name), name)
	}
}
