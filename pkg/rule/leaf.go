package rule

import (
	"github.com/Sumatoshi-tech/astrule/pkg/metavar"
	"github.com/Sumatoshi-tech/astrule/pkg/pattern"
	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

// Template is code text with placeholders. It is compiled for the language
// of each candidate node through pattern.DefaultCache. A template that does
// not compile for that language matches nothing.
type Template string

// MatchNode implements Matcher.
func (t Template) MatchNode(node *syntax.Node, env *metavar.Env) *syntax.Node {
	if node == nil {
		return nil
	}

	compiled, err := pattern.DefaultCache.Compile(node.Lang(), string(t))
	if err != nil {
		return nil
	}

	return compiled.MatchNode(node, env)
}

func (Template) positive() {}

// Leaf is a precompiled template.
type Leaf struct {
	pattern *pattern.Pattern
}

// FromPattern lifts a compiled template into a matcher.
func FromPattern(p *pattern.Pattern) *Leaf {
	return &Leaf{pattern: p}
}

// Pattern returns the wrapped template.
func (l *Leaf) Pattern() *pattern.Pattern {
	return l.pattern
}

// MatchNode implements Matcher.
func (l *Leaf) MatchNode(node *syntax.Node, env *metavar.Env) *syntax.Node {
	return l.pattern.MatchNode(node, env)
}

func (*Leaf) positive() {}

// KindMatcher matches nodes by grammar kind.
type KindMatcher string

// Kind matches every node whose kind equals kind, such as "call_expression".
func Kind(kind string) KindMatcher {
	return KindMatcher(kind)
}

// MatchNode implements Matcher.
func (k KindMatcher) MatchNode(node *syntax.Node, _ *metavar.Env) *syntax.Node {
	if node == nil || node.Kind() != string(k) {
		return nil
	}

	return node
}

func (KindMatcher) positive() {}
