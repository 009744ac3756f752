package rule_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/astrule/pkg/metavar"
	"github.com/Sumatoshi-tech/astrule/pkg/pattern"
	"github.com/Sumatoshi-tech/astrule/pkg/rule"
	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

const functionTemplate = rule.Template("function $_() { $$$ }")

func parse(t *testing.T, src string) *syntax.Node {
	t.Helper()

	root, err := syntax.ParseString(syntax.JavaScript, src)
	require.NoError(t, err)

	return root.Node()
}

func statement(t *testing.T, src string) *syntax.Node {
	t.Helper()

	named := parse(t, src).NamedChildren()
	require.NotEmpty(t, named)

	return named[0]
}

func texts(nodes []*syntax.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Text())
	}

	return out
}

func matches(m rule.Matcher, node *syntax.Node) bool {
	return m.MatchNode(node, metavar.NewEnv()) != nil
}

func TestOr(t *testing.T) {
	t.Parallel()

	direct := rule.NewOr(rule.Template("let a = 1"), rule.Template("const b = 2"))
	built := rule.Start(rule.Template("let a = 1")).Or(rule.Template("const b = 2")).Build()

	tests := []struct {
		src  string
		want bool
	}{
		{"let a = 1", true},
		{"const b = 2", true},
		{"let a = 2", false},
		{"const b = 1", false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()

			node := statement(t, tt.src)
			assert.Equal(t, tt.want, matches(direct, node))
			assert.Equal(t, tt.want, matches(built, node), "builder and direct composition agree")
		})
	}
}

func TestNot(t *testing.T) {
	t.Parallel()

	not := rule.Negate(rule.Template("let a = 1"))

	assert.True(t, matches(not, statement(t, "const b = 2")))
	assert.False(t, matches(not, statement(t, "let a = 1")))

	node := statement(t, "let b = 2")
	assert.Same(t, node, not.MatchNode(node, metavar.NewEnv()))
}

func TestNot_DoesNotDescend(t *testing.T) {
	t.Parallel()

	root := parse(t, "let a = 1")
	not := rule.NewNot(rule.Template("let a = 1"))

	assert.True(t, matches(not, root), "the program node itself is not a declaration")
}

func TestAnd_WithRefinement(t *testing.T) {
	t.Parallel()

	r := rule.All(rule.Template("let a = $_")).
		And(rule.Negate(rule.Template("let a = 123"))).
		Build()

	assert.True(t, matches(r, statement(t, "let a = 233")))
	assert.False(t, matches(r, statement(t, "let a = 123")))
	assert.False(t, matches(r, statement(t, "let b = 233")))
}

func TestAnd_RightSeesLeftBindings(t *testing.T) {
	t.Parallel()

	and := rule.NewAnd(rule.Template("let $A = $B"), rule.Template("let $A = $A"))

	assert.True(t, matches(and, statement(t, "let x = x")))
	assert.False(t, matches(and, statement(t, "let x = y")))
}

func TestBuilder_StartAndBuild(t *testing.T) {
	t.Parallel()

	r := rule.Start(rule.Kind("lexical_declaration")).
		And(rule.Template("let $A = $_")).
		And(rule.NewNotInside(functionTemplate)).
		Build()

	got := r.FindNodeVec(parse(t, "let a = 1\nfunction f() { let b = 2 }\nconst c = 3"))
	assert.Equal(t, []string{"let a = 1"}, texts(got))

	single := rule.Start(rule.Kind("identifier")).Build()
	assert.Len(t, single.FindNodeVec(parse(t, "a + b")), 2)
}

func TestInside(t *testing.T) {
	t.Parallel()

	root := parse(t, "function foo() { let a = 1 }\nlet b = 2")

	inside := rule.All(rule.Kind("lexical_declaration")).And(rule.NewInside(functionTemplate)).Build()
	notInside := rule.All(rule.Kind("lexical_declaration")).And(rule.NewNotInside(functionTemplate)).Build()

	assert.Equal(t, []string{"let a = 1"}, texts(inside.FindNodeVec(root)))
	assert.Equal(t, []string{"let b = 2"}, texts(notInside.FindNodeVec(root)))
}

func TestInside_IsComplementOfNotInside(t *testing.T) {
	t.Parallel()

	root := parse(t, "function foo() { if (x) { y() } }\nz()")
	inside := rule.NewInside(rule.Kind("if_statement"))
	notInside := rule.NewNotInside(rule.Kind("if_statement"))

	root.Walk(func(n *syntax.Node) bool {
		assert.NotEqual(t, matches(inside, n), matches(notInside, n), n.String())

		return true
	})

	assert.False(t, matches(inside, root), "the root has no ancestors")
}

func TestInside_KeepsAncestorBindings(t *testing.T) {
	t.Parallel()

	r := rule.All(rule.Kind("lexical_declaration")).
		And(rule.NewInside(rule.Template("function $F() { $$$ }"))).
		Build()

	found := r.FindAll(parse(t, "function foo() { let a = 1 }"))
	require.Len(t, found, 1)
	assert.Equal(t, "foo", found[0].Env.Get("F").Text())
}

func TestHas(t *testing.T) {
	t.Parallel()

	r := rule.All(rule.Kind("function_declaration")).
		And(rule.NewHas(rule.Kind("return_statement"))).
		Build()

	got := r.FindNodeVec(parse(t, "function a() { if (x) { return 1 } }\nfunction b() {}"))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].NamedChildren()[0].Text())

	assert.Nil(t, rule.NewHas(rule.Kind("identifier")).MatchNode(statement(t, "x").NamedChildren()[0], metavar.NewEnv()),
		"a node is not its own descendant")
}

func TestFindNodeVec_LevelOrder(t *testing.T) {
	t.Parallel()

	root := parse(t, "g(h(a)); b")
	got := rule.FindNodeVec(rule.Kind("identifier"), root)

	assert.Equal(t, []string{"b", "g", "h", "a"}, texts(got))

	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Depth(), got[i].Depth())
	}

	assert.Equal(t, texts(got), texts(rule.FindNodeVec(rule.Kind("identifier"), root)), "repeatable")
}

func TestFindNode_PreOrder(t *testing.T) {
	t.Parallel()

	root := parse(t, "g(h(a)); b")

	found := rule.FindNode(rule.Kind("identifier"), root, metavar.NewEnv())
	require.NotNil(t, found)
	assert.Equal(t, "g", found.Text())

	assert.Nil(t, rule.FindNode(rule.Kind("class_declaration"), root, metavar.NewEnv()))
	assert.Empty(t, rule.FindNodeVec(rule.Kind("class_declaration"), root))
}

func TestFindNode_SharesEnvAcrossCandidates(t *testing.T) {
	t.Parallel()

	// The first statement binds $A before failing the refinement; the stale
	// binding then blocks the second statement in FindNode but not in
	// FindNodeVec, which uses a fresh env per candidate.
	r := rule.All(rule.Template("$A + $B")).And(rule.Template("$A + 1")).Build()
	root := parse(t, "x + 2; y + 1")

	env := metavar.NewEnv()
	assert.Nil(t, r.FindNode(root, env))
	assert.Equal(t, "x", env.Get("A").Text())

	assert.Equal(t, []string{"y + 1"}, texts(r.FindNodeVec(root)))
}

func TestFindAll_FreshEnvPerMatch(t *testing.T) {
	t.Parallel()

	found := rule.FindAll(rule.Template("let $A = 1"), parse(t, "let a = 1\nlet b = 1"))
	require.Len(t, found, 2)

	assert.Equal(t, "a", found[0].Env.Get("A").Text())
	assert.Equal(t, "b", found[1].Env.Get("A").Text())
}

func TestLeaf(t *testing.T) {
	t.Parallel()

	leaf := rule.FromPattern(pattern.MustNew(syntax.JavaScript, "foo($X)"))
	assert.Equal(t, "foo($X)", leaf.Pattern().Source())

	found := rule.Start(leaf).Build().FindAll(parse(t, "foo(1); bar(2); foo(3)"))
	require.Len(t, found, 2)
	assert.Equal(t, "3", found[1].Env.Get("X").Text())
}

func TestTemplate_InvalidNeverMatches(t *testing.T) {
	t.Parallel()

	assert.Empty(t, rule.FindNodeVec(rule.Template("let = ="), parse(t, "let a = 1")))
	assert.Nil(t, rule.Template("a").MatchNode(nil, metavar.NewEnv()))
}

func TestPositivity(t *testing.T) {
	t.Parallel()

	positive := reflect.TypeFor[rule.Positive]()

	tests := []struct {
		name string
		typ  reflect.Type
		want bool
	}{
		{"template", reflect.TypeFor[rule.Template](), true},
		{"leaf", reflect.TypeFor[*rule.Leaf](), true},
		{"kind", reflect.TypeFor[rule.KindMatcher](), true},
		{"anchored and", reflect.TypeFor[*rule.AnchoredAnd](), true},
		{"or", reflect.TypeFor[*rule.Or](), true},
		{"rule", reflect.TypeFor[*rule.Rule](), true},
		{"and", reflect.TypeFor[*rule.And](), false},
		{"not", reflect.TypeFor[*rule.Not](), false},
		{"inside", reflect.TypeFor[*rule.Inside](), false},
		{"not inside", reflect.TypeFor[*rule.NotInside](), false},
		{"has", reflect.TypeFor[*rule.Has](), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.typ.Implements(positive))
		})
	}
}

func TestPositivity_NegationCannotBuild(t *testing.T) {
	t.Parallel()

	_, ok := reflect.TypeFor[*rule.Not]().MethodByName("Build")
	assert.False(t, ok)
}

func TestBuilder_ZeroValuePanics(t *testing.T) {
	t.Parallel()

	refinement := rule.Negate(rule.Template("let a = 2"))

	tests := []struct {
		name  string
		build func() *rule.Rule
		want  string
	}{
		{
			name:  "builder",
			build: func() *rule.Rule { return rule.Builder{}.Build() },
			want:  "rule: Builder has no positive anchor",
		},
		{
			name:  "builder and",
			build: func() *rule.Rule { return rule.Builder{}.And(refinement).Build() },
			want:  "rule: Builder has no positive anchor",
		},
		{
			name:  "and chain",
			build: func() *rule.Rule { return rule.AndChain{}.And(refinement).Build() },
			want:  "rule: AndChain has no positive anchor",
		},
		{
			name:  "and chain build",
			build: func() *rule.Rule { return rule.AndChain{}.Build() },
			want:  "rule: AndChain has no positive anchor",
		},
		{
			name:  "or chain",
			build: func() *rule.Rule { return rule.OrChain{}.Or(functionTemplate).Build() },
			want:  "rule: OrChain has no positive anchor",
		},
		{
			name:  "or chain build",
			build: func() *rule.Rule { return rule.OrChain{}.Build() },
			want:  "rule: OrChain has no positive anchor",
		},
		{
			name:  "nil anchor",
			build: func() *rule.Rule { return rule.Start(nil).Build() },
			want:  "rule: Builder has no positive anchor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.PanicsWithValue(t, tt.want, func() { tt.build() })
		})
	}
}

func TestBuilder_StartedStatesBuild(t *testing.T) {
	t.Parallel()

	root := parse(t, "let a = 1\nlet a = 2\n")

	r := rule.All(rule.Kind("lexical_declaration")).
		And(rule.Negate(rule.Template("let a = 2"))).
		Build()

	assert.Equal(t, []string{"let a = 1"}, texts(r.FindNodeVec(root)))
}

func TestSearch_NilStartNode(t *testing.T) {
	t.Parallel()

	r := rule.Start(rule.Template("let a = 1")).Build()

	assert.Nil(t, rule.FindNode(r, nil, metavar.NewEnv()))
	assert.Empty(t, rule.FindNodeVec(r, nil))
	assert.Empty(t, rule.FindAll(r, nil))
	assert.Nil(t, r.FindNode(nil, metavar.NewEnv()))
	assert.Empty(t, r.FindNodeVec(nil))
	assert.Empty(t, r.FindAll(nil))
}
