package syntax

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"unsafe"

	forest "github.com/alexaandru/go-sitter-forest"
	"github.com/alexaandru/go-sitter-forest/bash"
	"github.com/alexaandru/go-sitter-forest/c"
	"github.com/alexaandru/go-sitter-forest/cpp"
	golang "github.com/alexaandru/go-sitter-forest/go"
	"github.com/alexaandru/go-sitter-forest/java"
	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/python"
	"github.com/alexaandru/go-sitter-forest/ruby"
	"github.com/alexaandru/go-sitter-forest/rust"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/src-d/enry/v2"
)

// Language is a tree-sitter grammar name, as used by go-sitter-forest.
type Language string

// Grammars linked into the binary.
const (
	Bash       Language = "bash"
	C          Language = "c"
	Cpp        Language = "cpp"
	Go         Language = "go"
	Java       Language = "java"
	JavaScript Language = "javascript"
	Python     Language = "python"
	Ruby       Language = "ruby"
	Rust       Language = "rust"
	TSX        Language = "tsx"
	TypeScript Language = "typescript"
)

// languageFuncs maps linked grammars to their tree-sitter GetLanguage functions.
var languageFuncs = map[Language]func() unsafe.Pointer{
	Bash:       bash.GetLanguage,
	C:          c.GetLanguage,
	Cpp:        cpp.GetLanguage,
	Go:         golang.GetLanguage,
	Java:       java.GetLanguage,
	JavaScript: javascript.GetLanguage,
	Python:     python.GetLanguage,
	Ruby:       ruby.GetLanguage,
	Rust:       rust.GetLanguage,
	TSX:        tsx.GetLanguage,
	TypeScript: typescript.GetLanguage,
}

// enryNames maps enry language names to grammar names.
var enryNames = map[string]Language{
	"Shell":      Bash,
	"C":          C,
	"C++":        Cpp,
	"Go":         Go,
	"Java":       Java,
	"JavaScript": JavaScript,
	"Python":     Python,
	"Ruby":       Ruby,
	"Rust":       Rust,
	"TSX":        TSX,
	"TypeScript": TypeScript,
}

// aliases accepts common short names on the command line and in rule files.
var aliases = map[string]Language{
	"js":     JavaScript,
	"jsx":    JavaScript,
	"ts":     TypeScript,
	"golang": Go,
	"py":     Python,
	"rb":     Ruby,
	"rs":     Rust,
	"sh":     Bash,
	"shell":  Bash,
	"c++":    Cpp,
}

// placeholderSigils maps grammars in which "$" cannot start an identifier to
// a character that can. Templates for these grammars are rewritten before
// parsing.
var placeholderSigils = map[Language]rune{
	C:      'µ',
	Cpp:    'µ',
	Go:     'µ',
	Python: 'µ',
	Ruby:   'µ',
	Rust:   'µ',
}

var languageCache sync.Map

// grammar returns the tree-sitter language for name, or nil if it is not available.
func grammar(name Language) *sitter.Language {
	if cached, ok := languageCache.Load(name); ok {
		lang, castOK := cached.(*sitter.Language)
		if castOK {
			return lang
		}
	}

	var lang *sitter.Language

	if fn, ok := languageFuncs[name]; ok {
		lang = sitter.NewLanguage(fn())
	} else {
		lang = forestGrammar(name)
	}

	if lang == nil {
		return nil
	}

	languageCache.Store(name, lang)

	return lang
}

// forestGrammar looks up grammars that are not linked explicitly. The forest
// registry panics for unknown names.
func forestGrammar(name Language) (lang *sitter.Language) {
	defer func() {
		if recover() != nil {
			lang = nil
		}
	}()

	return forest.GetLanguage(string(name))
}

// NormalizeLanguage resolves aliases and letter case to a grammar name.
func NormalizeLanguage(name string) Language {
	lower := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[lower]; ok {
		return alias
	}

	return Language(lower)
}

// PlaceholderSigil returns the character that starts placeholders in
// parsed templates of lang.
func (l Language) PlaceholderSigil() rune {
	if sigil, ok := placeholderSigils[l]; ok {
		return sigil
	}

	return '$'
}

// Supported reports whether a grammar for lang can be loaded.
func Supported(lang Language) bool {
	return grammar(lang) != nil
}

// Languages returns the grammars linked into the binary, sorted by name.
func Languages() []Language {
	langs := make([]Language, 0, len(languageFuncs))
	for lang := range languageFuncs {
		langs = append(langs, lang)
	}

	slices.Sort(langs)

	return langs
}

// DetectLanguage guesses the grammar for a file from its name and content.
func DetectLanguage(filename string, content []byte) (Language, bool) {
	name := enry.GetLanguage(filepath.Base(filename), content)
	if name == "" {
		return "", false
	}

	lang, ok := enryNames[name]

	return lang, ok
}
