package rule

import (
	"github.com/Sumatoshi-tech/astrule/pkg/metavar"
	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

// Builder is the start state of a rule. Every state holds a positive
// accumulator, so every Build yields an anchored rule. A bare Not has no
// Build and can only enter a rule through AndChain.And.
//
// The zero values of Builder, AndChain and OrChain carry no anchor. Using
// one panics; begin with Start, All or Either instead.
type Builder struct {
	acc Positive
}

// anchor returns acc or panics when a state was not begun with a positive
// matcher.
func anchor(state string, acc Positive) Positive {
	if acc == nil {
		panic("rule: " + state + " has no positive anchor")
	}

	return acc
}

// Start begins a rule anchored on p.
func Start(p Positive) Builder {
	return Builder{acc: p}
}

// And enters a conjunction chain.
func (b Builder) And(m Matcher) AndChain {
	return All(anchor("Builder", b.acc)).And(m)
}

// Or enters a disjunction chain.
func (b Builder) Or(p Positive) OrChain {
	return Either(anchor("Builder", b.acc)).Or(p)
}

// Negate returns the negation of the anchor for use as a refinement term.
func (b Builder) Negate() *Not {
	return Negate(anchor("Builder", b.acc))
}

// Build finalizes a rule made of the anchor alone.
func (b Builder) Build() *Rule {
	return &Rule{inner: anchor("Builder", b.acc)}
}

// AndChain folds refinements onto a positive anchor.
type AndChain struct {
	acc Positive
}

// All begins a conjunction chain anchored on p.
func All(p Positive) AndChain {
	return AndChain{acc: p}
}

// And adds a positive or plain term. The accumulator stays on the left, so
// the chain stays positive.
func (c AndChain) And(m Matcher) AndChain {
	return AndChain{acc: NewAnchoredAnd(anchor("AndChain", c.acc), m)}
}

// Build finalizes the chain.
func (c AndChain) Build() *Rule {
	return &Rule{inner: anchor("AndChain", c.acc)}
}

// OrChain folds positive alternatives.
type OrChain struct {
	acc Positive
}

// Either begins a disjunction chain with p as the first alternative.
func Either(p Positive) OrChain {
	return OrChain{acc: p}
}

// Or adds an alternative tried after the previous ones.
func (c OrChain) Or(p Positive) OrChain {
	return OrChain{acc: NewOr(anchor("OrChain", c.acc), p)}
}

// Build finalizes the chain.
func (c OrChain) Build() *Rule {
	return &Rule{inner: anchor("OrChain", c.acc)}
}

// Negate negates a positive matcher. The result is plain.
func Negate(p Positive) *Not {
	return NewNot(p)
}

// Rule is a finalized matcher expression. It is immutable and may be reused
// across searches and goroutines as long as each search has its own env.
type Rule struct {
	inner Positive
}

// MatchNode implements Matcher.
func (r *Rule) MatchNode(node *syntax.Node, env *metavar.Env) *syntax.Node {
	return r.inner.MatchNode(node, env)
}

// FindNode returns the first pre-order match below and including node.
func (r *Rule) FindNode(node *syntax.Node, env *metavar.Env) *syntax.Node {
	return FindNode(r.inner, node, env)
}

// FindNodeVec returns every match below and including node in level order.
func (r *Rule) FindNodeVec(node *syntax.Node) []*syntax.Node {
	return FindNodeVec(r.inner, node)
}

// FindAll returns every match with its bindings in level order.
func (r *Rule) FindAll(node *syntax.Node) []Match {
	return FindAll(r.inner, node)
}

func (*Rule) positive() {}
