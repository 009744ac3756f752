package ruleset

import (
	"fmt"

	"github.com/Sumatoshi-tech/astrule/pkg/pattern"
	"github.com/Sumatoshi-tech/astrule/pkg/rule"
	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

// compiled is a matcher together with its positive view. positive is nil
// for plain matchers.
type compiled struct {
	matcher  rule.Matcher
	positive rule.Positive
}

func positiveResult(p rule.Positive) compiled {
	return compiled{matcher: p, positive: p}
}

func plainResult(m rule.Matcher) compiled {
	return compiled{matcher: m}
}

// compileNode mirrors the builder's type-state at load time: rule files are
// data, so positivity is checked here instead of by the compiler.
func compileNode(lang syntax.Language, node ruleNode) (compiled, error) {
	switch {
	case node.Pattern != "":
		tpl, err := pattern.DefaultCache.Compile(lang, node.Pattern)
		if err != nil {
			return compiled{}, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
		}

		return positiveResult(rule.FromPattern(tpl)), nil

	case node.Kind != "":
		return positiveResult(rule.Kind(node.Kind)), nil

	case len(node.All) > 0:
		return compileAll(lang, node.All)

	case len(node.Any) > 0:
		return compileAny(lang, node.Any)

	case node.Not != nil:
		inner, err := compileNode(lang, *node.Not)
		if err != nil {
			return compiled{}, fmt.Errorf("not: %w", err)
		}

		if inner.positive == nil {
			return compiled{}, ErrNegatePlain
		}

		return plainResult(rule.Negate(inner.positive)), nil

	case node.Inside != nil:
		return compileScope(lang, "inside", *node.Inside, func(m rule.Matcher) rule.Matcher { return rule.NewInside(m) })

	case node.NotInside != nil:
		return compileScope(lang, "not_inside", *node.NotInside, func(m rule.Matcher) rule.Matcher { return rule.NewNotInside(m) })

	case node.Has != nil:
		return compileScope(lang, "has", *node.Has, func(m rule.Matcher) rule.Matcher { return rule.NewHas(m) })

	default:
		return compiled{}, fmt.Errorf("%w: empty rule", ErrSchemaViolation)
	}
}

// compileAll anchors the conjunction on its first positive item. The other
// items are folded in declared order.
func compileAll(lang syntax.Language, items []ruleNode) (compiled, error) {
	parts := make([]compiled, 0, len(items))
	anchor := -1

	for i, item := range items {
		part, err := compileNode(lang, item)
		if err != nil {
			return compiled{}, fmt.Errorf("all[%d]: %w", i, err)
		}

		if anchor < 0 && part.positive != nil {
			anchor = i
		}

		parts = append(parts, part)
	}

	if anchor < 0 {
		return compiled{}, fmt.Errorf("all: %w", ErrNoPositiveTerm)
	}

	chain := rule.All(parts[anchor].positive)

	for i, part := range parts {
		if i != anchor {
			chain = chain.And(part.matcher)
		}
	}

	return positiveResult(chain.Build()), nil
}

func compileAny(lang syntax.Language, items []ruleNode) (compiled, error) {
	var chain rule.OrChain

	for i, item := range items {
		part, err := compileNode(lang, item)
		if err != nil {
			return compiled{}, fmt.Errorf("any[%d]: %w", i, err)
		}

		if part.positive == nil {
			return compiled{}, fmt.Errorf("any[%d]: %w", i, ErrAnyPlain)
		}

		if i == 0 {
			chain = rule.Either(part.positive)
		} else {
			chain = chain.Or(part.positive)
		}
	}

	return positiveResult(chain.Build()), nil
}

func compileScope(lang syntax.Language, key string, node ruleNode, wrap func(rule.Matcher) rule.Matcher) (compiled, error) {
	inner, err := compileNode(lang, node)
	if err != nil {
		return compiled{}, fmt.Errorf("%s: %w", key, err)
	}

	return plainResult(wrap(inner.matcher)), nil
}
