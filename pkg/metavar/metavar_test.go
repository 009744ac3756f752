package metavar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/astrule/pkg/metavar"
	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text   string
		want   metavar.MetaVar
		wantOK bool
	}{
		{"$A", metavar.MetaVar{Name: "A", Kind: metavar.Single}, true},
		{"$FOO_2", metavar.MetaVar{Name: "FOO_2", Kind: metavar.Single}, true},
		{"$_", metavar.MetaVar{Kind: metavar.Anonymous}, true},
		{"$$$", metavar.MetaVar{Kind: metavar.AnonymousMulti}, true},
		{"$$$ARGS", metavar.MetaVar{Name: "ARGS", Kind: metavar.Multi}, true},
		{"$a", metavar.MetaVar{}, false},
		{"$1A", metavar.MetaVar{}, false},
		{"$", metavar.MetaVar{}, false},
		{"foo", metavar.MetaVar{}, false},
		{"$$$args", metavar.MetaVar{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			got, ok := metavar.Parse(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetaVar_IsMulti(t *testing.T) {
	t.Parallel()

	assert.True(t, metavar.MetaVar{Kind: metavar.Multi}.IsMulti())
	assert.True(t, metavar.MetaVar{Kind: metavar.AnonymousMulti}.IsMulti())
	assert.False(t, metavar.MetaVar{Kind: metavar.Single}.IsMulti())
	assert.False(t, metavar.MetaVar{Kind: metavar.Anonymous}.IsMulti())
}

// identifiers returns the identifier nodes of src in source order.
func identifiers(t *testing.T, src string) []*syntax.Node {
	t.Helper()

	root, err := syntax.ParseString(syntax.JavaScript, src)
	require.NoError(t, err)

	var ids []*syntax.Node

	root.Node().Walk(func(n *syntax.Node) bool {
		if n.Kind() == "identifier" {
			ids = append(ids, n)
		}

		return true
	})

	return ids
}

func TestEnv_InsertConsistency(t *testing.T) {
	t.Parallel()

	ids := identifiers(t, "f(x, x, y)")
	require.Len(t, ids, 4)

	env := metavar.NewEnv()
	require.True(t, env.Insert("A", ids[1]))
	assert.True(t, env.Insert("A", ids[2]), "same text rebinding is accepted")
	assert.False(t, env.Insert("A", ids[3]), "different text is rejected")
	assert.Same(t, ids[1], env.Get("A"))
	assert.Nil(t, env.Get("B"))
}

func TestEnv_MultiAndTexts(t *testing.T) {
	t.Parallel()

	ids := identifiers(t, "f(a, b)")
	require.Len(t, ids, 3)

	env := metavar.NewEnv()
	require.True(t, env.Insert("F", ids[0]))
	require.True(t, env.InsertMulti("ARGS", ids[1:]))
	assert.False(t, env.InsertMulti("ARGS", ids[:1]))

	assert.Equal(t, []string{"ARGS", "F"}, env.Names())
	assert.Equal(t, 2, env.Len())
	assert.Equal(t, map[string]string{"F": "f", "ARGS": "a, b"}, env.Texts())
}

func TestEnv_CloneRestore(t *testing.T) {
	t.Parallel()

	ids := identifiers(t, "a; b")
	require.Len(t, ids, 2)

	env := metavar.NewEnv()
	require.True(t, env.Insert("A", ids[0]))

	snapshot := env.Clone()
	require.True(t, env.Insert("B", ids[1]))
	assert.Equal(t, 1, snapshot.Len())

	env.Restore(snapshot)
	assert.Equal(t, []string{"A"}, env.Names())
	assert.Nil(t, env.Get("B"))
}
