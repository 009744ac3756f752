package syntax_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

func mustParse(t *testing.T, src string) *syntax.Root {
	t.Helper()

	root, err := syntax.ParseString(syntax.JavaScript, src)
	require.NoError(t, err)

	return root
}

func TestParse_BuildsParentLinks(t *testing.T) {
	t.Parallel()

	root := mustParse(t, "let a = 1")
	top := root.Node()

	assert.Equal(t, "program", top.Kind())
	assert.Nil(t, top.Parent())
	assert.Equal(t, 0, top.Depth())

	top.Walk(func(n *syntax.Node) bool {
		for _, child := range n.Children() {
			assert.Same(t, n, child.Parent())
			assert.Equal(t, n.Depth()+1, child.Depth())
			assert.Same(t, root, child.Root())
		}

		return true
	})
}

func TestParse_KeepsAnonymousTokens(t *testing.T) {
	t.Parallel()

	root := mustParse(t, "const b = 2")

	decl := root.Node().NamedChildren()[0]
	require.Equal(t, "lexical_declaration", decl.Kind())

	first := decl.Children()[0]
	assert.False(t, first.IsNamed())
	assert.Equal(t, "const", first.Kind())
	assert.Equal(t, "const", first.Text())
	assert.Equal(t, "const b = 2", decl.Text())
}

func TestParse_Positions(t *testing.T) {
	t.Parallel()

	root := mustParse(t, "let a = 1\nlet b = 2")

	decls := root.Node().NamedChildren()
	require.Len(t, decls, 2)

	second := decls[1]
	assert.Equal(t, syntax.Point{Line: 1, Column: 0}, second.Start())
	assert.Equal(t, 10, second.StartByte())
	assert.Equal(t, syntax.JavaScript, second.Lang())
}

func TestParse_UnsupportedLanguage(t *testing.T) {
	t.Parallel()

	_, err := syntax.Parse(context.Background(), syntax.Language("no-such-grammar"), []byte("x"))
	require.ErrorIs(t, err, syntax.ErrUnsupportedLanguage)
}

func TestNode_HasError(t *testing.T) {
	t.Parallel()

	assert.False(t, mustParse(t, "let a = 1").Node().HasError())
	assert.True(t, mustParse(t, "let = = ;").Node().HasError())
}

func TestNode_Walk_SkipsSubtree(t *testing.T) {
	t.Parallel()

	root := mustParse(t, "function f() { let a = 1 }")

	var kinds []string

	root.Node().Walk(func(n *syntax.Node) bool {
		kinds = append(kinds, n.Kind())

		return n.Kind() != "function_declaration"
	})

	assert.Equal(t, []string{"program", "function_declaration"}, kinds)
}

func TestNode_IsTrivia(t *testing.T) {
	t.Parallel()

	root := mustParse(t, "let a = 1; // note")

	children := root.Node().Children()
	require.Len(t, children, 2)
	assert.True(t, children[1].IsTrivia(), "comment is trivia")

	decl := children[0]
	last := decl.Children()[len(decl.Children())-1]
	assert.Equal(t, ";", last.Kind())
	assert.True(t, last.IsTrivia())
	assert.False(t, decl.IsTrivia())
}

func TestNormalizeLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want syntax.Language
	}{
		{"js", syntax.JavaScript},
		{"JavaScript", syntax.JavaScript},
		{" golang ", syntax.Go},
		{"py", syntax.Python},
		{"rust", syntax.Rust},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, syntax.NormalizeLanguage(tt.in))
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	lang, ok := syntax.DetectLanguage("src/app.js", []byte("let a = 1\n"))
	require.True(t, ok)
	assert.Equal(t, syntax.JavaScript, lang)

	lang, ok = syntax.DetectLanguage("main.go", []byte("package main\n"))
	require.True(t, ok)
	assert.Equal(t, syntax.Go, lang)

	_, ok = syntax.DetectLanguage("README", []byte("plain words"))
	assert.False(t, ok)
}

func TestLanguages_AllSupported(t *testing.T) {
	t.Parallel()

	langs := syntax.Languages()
	assert.Contains(t, langs, syntax.JavaScript)

	for _, lang := range langs {
		assert.True(t, syntax.Supported(lang), "grammar %s", lang)
	}
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		want   syntax.Language
		wantOK bool
	}{
		{name: "pyhton", want: syntax.Python, wantOK: true},
		{name: "Jav", want: syntax.Java, wantOK: true},
		{name: "typescrpt", want: syntax.TypeScript, wantOK: true},
		{name: "golagn", want: syntax.Go, wantOK: true},
		{name: "klingon"},
		{name: "x"},
		{name: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := syntax.Suggest(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"pyhton" (did you mean "python"?)`, syntax.Describe("pyhton"))
	assert.Equal(t, `"klingon"`, syntax.Describe("klingon"))
}
