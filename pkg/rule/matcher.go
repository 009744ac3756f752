// Package rule composes structural matchers into rules and searches syntax
// trees with them.
//
// Every rule must carry at least one positive term: an affirmative, bounded
// condition such as a code template. Negations and ancestor scopes only
// refine a positive anchor. The Positive marker method is unexported, so
// only this package can declare it and the builder only produces anchored
// rules. A type outside the package that embeds a Positive matcher inherits
// the marker and is trusted to stay positive.
package rule

import (
	"github.com/Sumatoshi-tech/astrule/pkg/metavar"
	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

// Matcher tests a single syntax node.
//
// MatchNode returns the matched node, normally node itself, or nil. On
// success env holds any new placeholder bindings. On failure the content
// of env is unspecified.
type Matcher interface {
	MatchNode(node *syntax.Node, env *metavar.Env) *syntax.Node
}

// Positive is a Matcher that may anchor a complete rule on its own.
type Positive interface {
	Matcher
	positive()
}

// Match is one search result together with the bindings it was matched with.
type Match struct {
	Node *syntax.Node
	Env  *metavar.Env
}

// FindNode returns the first node in pre-order, starting with node itself,
// that m matches. A single env is threaded through the whole search:
// bindings left behind by a failed attempt on an ancestor are still present
// when its descendants are tried.
func FindNode(m Matcher, node *syntax.Node, env *metavar.Env) *syntax.Node {
	if node == nil {
		return nil
	}

	stack := []*syntax.Node{node}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if matched := m.MatchNode(current, env); matched != nil {
			return matched
		}

		children := current.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	return nil
}

// FindNodeVec returns every node of the subtree rooted at node that m
// matches, in level order. Each candidate is tested with a fresh env.
func FindNodeVec(m Matcher, node *syntax.Node) []*syntax.Node {
	var found []*syntax.Node

	levelOrder(node, func(candidate *syntax.Node) {
		if matched := m.MatchNode(candidate, metavar.NewEnv()); matched != nil {
			found = append(found, matched)
		}
	})

	return found
}

// FindAll is FindNodeVec that also returns the bindings of every match.
func FindAll(m Matcher, node *syntax.Node) []Match {
	var found []Match

	levelOrder(node, func(candidate *syntax.Node) {
		env := metavar.NewEnv()

		if matched := m.MatchNode(candidate, env); matched != nil {
			found = append(found, Match{Node: matched, Env: env})
		}
	})

	return found
}

// levelOrder visits the subtree breadth-first. A nil node visits nothing. Children are queued before
// their parent is handed to visit.
func levelOrder(node *syntax.Node, visit func(*syntax.Node)) {
	if node == nil {
		return
	}

	queue := []*syntax.Node{node}

	for head := 0; head < len(queue); head++ {
		candidate := queue[head]
		queue = append(queue, candidate.Children()...)

		visit(candidate)
	}
}
