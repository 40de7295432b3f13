package lint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidGo(t *testing.T) {
	src := []byte(`package main

func hello() string {
	return "world"
}
`)
	assert.NoError(t, Validate(src, "go"))
}

func TestValidate_BrokenGo(t *testing.T) {
	src := []byte(`package main

func hello() string {
	return "world"
// missing closing brace
`)
	err := Validate(src, "go")
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "syntax error")
	assert.GreaterOrEqual(t, ve.Line, 1)
	assert.GreaterOrEqual(t, ve.Column, 1)
}

func TestValidate_Python(t *testing.T) {
	assert.NoError(t, Validate([]byte("def hello():\n    return \"world\"\n"), "python"))
	assert.Error(t, Validate([]byte("def hello(\n    return \"world\"\n"), "python"))
}

func TestValidate_JavaScript(t *testing.T) {
	assert.NoError(t, Validate([]byte("const x = () => 1;\n"), "javascript"))
	assert.Error(t, Validate([]byte("function f( {\n"), "js"))
}

func TestValidate_HCL(t *testing.T) {
	assert.NoError(t, Validate([]byte("a = 1\n"), "hcl"))

	err := Validate([]byte("block {\n"), "terraform")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 1, ve.Line)
}

func TestValidate_UnsupportedPassthrough(t *testing.T) {
	assert.NoError(t, Validate([]byte("{{{ not code"), "plaintext"))
	assert.False(t, Supported("plaintext"))
	assert.True(t, Supported("Go"))
	assert.True(t, Supported("tf"))
}

func TestDiagnose_NilSlice(t *testing.T) {
	src := []byte(`package main

var xs []string
var ys []string = nil
`)
	diags := Diagnose(src, "go")
	require.Len(t, diags, 1)
	assert.Equal(t, SeverityWarning, diags[0].Severity)
	assert.Equal(t, 3, diags[0].Line)
	assert.Contains(t, diags[0].Message, "Nil slice")
}

func TestDiagnose_PythonNoneComparison(t *testing.T) {
	src := []byte("if x == None:\n    pass\nif y is None:\n    pass\n")
	diags := Diagnose(src, "python")
	require.Len(t, diags, 1)
	assert.Equal(t, 1, diags[0].Line)
	assert.Contains(t, diags[0].Message, "'is'")
}

func TestDiagnose_SyntaxErrorsAreErrors(t *testing.T) {
	diags := Diagnose([]byte("def f(:\n"), "python")
	require.NotEmpty(t, diags)
	assert.Equal(t, SeverityError, diags[0].Severity)
	assert.Equal(t, "tree-sitter", diags[0].Source)
}

func TestDiagnose_CleanAndUnsupported(t *testing.T) {
	assert.Empty(t, Diagnose([]byte("package main\n\nvar xs = make([]string, 0)\n"), "go"))
	assert.Empty(t, Diagnose([]byte("anything"), "markdown"))
}

func TestFormat_Go(t *testing.T) {
	out, ok := Format([]byte("package main\n\nfunc A()  {\nreturn\n}\n"), "go")
	assert.True(t, ok)
	assert.Equal(t, "package main\n\nfunc A() {\n\treturn\n}\n", string(out))
}

func TestFormat_InvalidGoPassthrough(t *testing.T) {
	input := []byte("func broken {{{")
	out, ok := Format(input, "go")
	assert.False(t, ok)
	assert.Equal(t, input, out)
}

func TestFormat_HCL(t *testing.T) {
	out, ok := Format([]byte("a=\"x\"\n"), "hcl")
	assert.True(t, ok)
	assert.Equal(t, "a = \"x\"\n", string(out))
}

func TestFormat_UnsupportedPassthrough(t *testing.T) {
	input := []byte("def foo():\n  pass\n")
	out, ok := Format(input, "python")
	assert.False(t, ok)
	assert.Equal(t, input, out)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "cpp", Normalize("C++"))
	assert.Equal(t, "typescript", Normalize("tsx"))
	assert.Equal(t, "hcl", Normalize("terraform"))
	assert.Equal(t, "rust", Normalize("rust"))
}
