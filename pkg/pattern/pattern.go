// Package pattern compiles code templates with placeholders and matches them
// structurally against syntax tree nodes.
package pattern

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/astrule/pkg/metavar"
	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

// Sentinel errors for template compilation.
var (
	ErrEmptyPattern   = errors.New("pattern has no code")
	ErrMultipleRoots  = errors.New("pattern must contain a single top-level node")
	ErrInvalidPattern = errors.New("pattern does not parse")
)

// Pattern is a compiled template. It is immutable and safe for concurrent use.
type Pattern struct {
	tree   *syntax.Root
	node   *syntax.Node
	source string
	lang   syntax.Language
}

// New parses src with the grammar for lang. The single top-level node of
// the template becomes the node matched against candidates.
func New(lang syntax.Language, src string) (*Pattern, error) {
	if strings.TrimSpace(src) == "" {
		return nil, ErrEmptyPattern
	}

	tree, err := syntax.ParseString(lang, withSigil(src, lang.PlaceholderSigil()))
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", src, err)
	}

	if tree.Node().HasError() {
		return nil, fmt.Errorf("%w: %q (%s)", ErrInvalidPattern, src, lang)
	}

	tops := significant(tree.Node().Children())

	switch len(tops) {
	case 0:
		return nil, ErrEmptyPattern
	case 1:
	default:
		return nil, fmt.Errorf("%w: %q has %d", ErrMultipleRoots, src, len(tops))
	}

	return &Pattern{
		tree:   tree,
		node:   tops[0],
		source: src,
		lang:   lang,
	}, nil
}

// MustNew is like New but panics on error. Intended for tests and constant templates.
func MustNew(lang syntax.Language, src string) *Pattern {
	compiled, err := New(lang, src)
	if err != nil {
		panic(err)
	}

	return compiled
}

// Source returns the template text.
func (p *Pattern) Source() string {
	return p.source
}

// Lang returns the template grammar.
func (p *Pattern) Lang() syntax.Language {
	return p.lang
}

// Node returns the template node that candidates are compared with.
func (p *Pattern) Node() *syntax.Node {
	return p.node
}

// MatchNode compares node with the template. On success it returns node and
// env holds the placeholder captures; on failure it returns nil and env may
// hold partial captures.
func (p *Pattern) MatchNode(node *syntax.Node, env *metavar.Env) *syntax.Node {
	if node == nil || node.Lang() != p.lang {
		return nil
	}

	if !matchTree(p.node, node, env) {
		return nil
	}

	return node
}

// placeholder reports whether a template node stands for a placeholder. The
// whole node text is inspected so that wrappers such as expression
// statements around a bare placeholder are recognized too.
func placeholder(tpl *syntax.Node) (metavar.MetaVar, bool) {
	if !tpl.IsNamed() {
		return metavar.MetaVar{}, false
	}

	text := strings.TrimSuffix(strings.TrimSpace(tpl.Text()), ";")

	if sigil := tpl.Lang().PlaceholderSigil(); sigil != '$' {
		text = strings.ReplaceAll(text, string(sigil), "$")
	}

	return metavar.Parse(text)
}

// withSigil rewrites placeholders for grammars where "$" cannot start an
// identifier. A "$" that does not start a placeholder is kept.
func withSigil(src string, sigil rune) string {
	if sigil == '$' || !strings.Contains(src, "$") {
		return src
	}

	var buf strings.Builder

	buf.Grow(len(src))

	for i := 0; i < len(src); {
		if src[i] != '$' {
			buf.WriteByte(src[i])
			i++

			continue
		}

		run := 1
		for i+run < len(src) && src[i+run] == '$' {
			run++
		}

		next := byte(0)
		if i+run < len(src) {
			next = src[i+run]
		}

		if run == 3 || next == '_' || (next >= 'A' && next <= 'Z') {
			buf.WriteString(strings.Repeat(string(sigil), run))
		} else {
			buf.WriteString(src[i : i+run])
		}

		i += run
	}

	return buf.String()
}

func matchTree(tpl, cand *syntax.Node, env *metavar.Env) bool {
	if mv, ok := placeholder(tpl); ok {
		return bindOne(mv, cand, env)
	}

	if tpl.Kind() != cand.Kind() {
		return false
	}

	tplKids := significant(tpl.Children())
	candKids := significant(cand.Children())

	if len(tplKids) == 0 && len(candKids) == 0 {
		return tpl.Text() == cand.Text()
	}

	return matchSeq(tplKids, candKids, env)
}

func bindOne(mv metavar.MetaVar, cand *syntax.Node, env *metavar.Env) bool {
	switch mv.Kind {
	case metavar.Anonymous:
		return cand.IsNamed()
	case metavar.Single:
		return cand.IsNamed() && env.Insert(mv.Name, cand)
	case metavar.Multi:
		return env.InsertMulti(mv.Name, []*syntax.Node{cand})
	default:
		return true
	}
}

// matchSeq matches template siblings against candidate siblings. Multi
// placeholders take the shortest run of candidates that lets the rest match.
func matchSeq(tpls, cands []*syntax.Node, env *metavar.Env) bool {
	if len(tpls) == 0 {
		return len(cands) == 0
	}

	head := tpls[0]

	if mv, ok := placeholder(head); ok && mv.IsMulti() {
		for split := 0; split <= len(cands); split++ {
			snapshot := env.Clone()

			if bindRun(mv, cands[:split], env) && matchSeq(tpls[1:], cands[split:], env) {
				return true
			}

			env.Restore(snapshot)
		}

		return false
	}

	if len(cands) == 0 {
		return false
	}

	return matchTree(head, cands[0], env) && matchSeq(tpls[1:], cands[1:], env)
}

func bindRun(mv metavar.MetaVar, run []*syntax.Node, env *metavar.Env) bool {
	if mv.Kind == metavar.AnonymousMulti {
		return true
	}

	return env.InsertMulti(mv.Name, run)
}

func significant(nodes []*syntax.Node) []*syntax.Node {
	kept := make([]*syntax.Node, 0, len(nodes))

	for _, n := range nodes {
		if !n.IsTrivia() {
			kept = append(kept, n)
		}
	}

	return kept
}
