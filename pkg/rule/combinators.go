package rule

import (
	"github.com/Sumatoshi-tech/astrule/pkg/metavar"
	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

// And matches when left matches and right matches the node left returned.
// Both sides share env, so right sees the bindings left made.
type And struct {
	left  Matcher
	right Matcher
}

// NewAnd returns a plain conjunction.
func NewAnd(left, right Matcher) *And {
	return &And{left: left, right: right}
}

// MatchNode implements Matcher. The result is the node returned by right.
func (a *And) MatchNode(node *syntax.Node, env *metavar.Env) *syntax.Node {
	matched := a.left.MatchNode(node, env)
	if matched == nil {
		return nil
	}

	return a.right.MatchNode(matched, env)
}

// AnchoredAnd is a conjunction whose left side is positive, which makes the
// conjunction itself positive whatever the right side is.
type AnchoredAnd struct {
	And
}

// NewAnchoredAnd returns a positive conjunction.
func NewAnchoredAnd(left Positive, right Matcher) *AnchoredAnd {
	return &AnchoredAnd{And: And{left: left, right: right}}
}

func (*AnchoredAnd) positive() {}

// Or tries first and, when it fails, second on the same node.
type Or struct {
	first  Positive
	second Positive
}

// NewOr returns a disjunction of two positive matchers.
func NewOr(first, second Positive) *Or {
	return &Or{first: first, second: second}
}

// MatchNode implements Matcher.
func (o *Or) MatchNode(node *syntax.Node, env *metavar.Env) *syntax.Node {
	if matched := o.first.MatchNode(node, env); matched != nil {
		return matched
	}

	return o.second.MatchNode(node, env)
}

func (*Or) positive() {}

// Not matches a node iff inner does not match that node. Descendants are
// not considered.
type Not struct {
	inner Positive
}

// NewNot negates a positive matcher. The result is plain: it cannot anchor
// a rule on its own.
func NewNot(inner Positive) *Not {
	return &Not{inner: inner}
}

// MatchNode implements Matcher.
func (n *Not) MatchNode(node *syntax.Node, env *metavar.Env) *syntax.Node {
	if n.inner.MatchNode(node, env) != nil {
		return nil
	}

	return node
}

// Inside matches a node that has an ancestor matched by outer.
type Inside struct {
	outer Matcher
}

// NewInside scopes a rule to nodes below a match of outer.
func NewInside(outer Matcher) *Inside {
	return &Inside{outer: outer}
}

// MatchNode implements Matcher. Bindings made by the ancestor match stay in env.
func (i *Inside) MatchNode(node *syntax.Node, env *metavar.Env) *syntax.Node {
	if node == nil || !anyAncestor(i.outer, node, env) {
		return nil
	}

	return node
}

// NotInside matches a node none of whose ancestors is matched by outer.
type NotInside struct {
	outer Matcher
}

// NewNotInside excludes nodes below a match of outer.
func NewNotInside(outer Matcher) *NotInside {
	return &NotInside{outer: outer}
}

// MatchNode implements Matcher.
func (n *NotInside) MatchNode(node *syntax.Node, env *metavar.Env) *syntax.Node {
	if node == nil || anyAncestor(n.outer, node, env) {
		return nil
	}

	return node
}

func anyAncestor(m Matcher, node *syntax.Node, env *metavar.Env) bool {
	for ancestor := node.Parent(); ancestor != nil; ancestor = ancestor.Parent() {
		if m.MatchNode(ancestor, env) != nil {
			return true
		}
	}

	return false
}

// Has matches a node with a strict descendant matched by inner. Descendants
// are searched in pre-order with the shared env.
type Has struct {
	inner Matcher
}

// NewHas requires a descendant matched by inner.
func NewHas(inner Matcher) *Has {
	return &Has{inner: inner}
}

// MatchNode implements Matcher.
func (h *Has) MatchNode(node *syntax.Node, env *metavar.Env) *syntax.Node {
	if node == nil {
		return nil
	}

	for _, child := range node.Children() {
		if FindNode(h.inner, child, env) != nil {
			return node
		}
	}

	return nil
}
