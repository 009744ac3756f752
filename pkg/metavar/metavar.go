// Package metavar holds placeholder bindings captured while matching a
// template against a syntax tree.
package metavar

import (
	"maps"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

// Placeholder syntax.
const (
	prefix      = "$"
	multiPrefix = "$$$"
	anonymous   = "_"
)

// Kind classifies a placeholder.
type Kind int

// Placeholder kinds.
const (
	// Single matches exactly one node and binds it by name.
	Single Kind = iota
	// Anonymous ($_) matches exactly one node without binding.
	Anonymous
	// Multi ($$$NAME) matches zero or more sibling nodes and binds them by name.
	Multi
	// AnonymousMulti ($$$) matches zero or more sibling nodes without binding.
	AnonymousMulti
)

// MetaVar is a parsed placeholder.
type MetaVar struct {
	Name string
	Kind Kind
}

// IsMulti reports whether the placeholder consumes a sequence of nodes.
func (mv MetaVar) IsMulti() bool {
	return mv.Kind == Multi || mv.Kind == AnonymousMulti
}

// Parse classifies text as a placeholder. Names are upper case letters,
// digits and underscores, not starting with a digit.
func Parse(text string) (MetaVar, bool) {
	if rest, ok := strings.CutPrefix(text, multiPrefix); ok {
		if rest == "" {
			return MetaVar{Kind: AnonymousMulti}, true
		}

		if validName(rest) {
			return MetaVar{Name: rest, Kind: Multi}, true
		}

		return MetaVar{}, false
	}

	rest, ok := strings.CutPrefix(text, prefix)
	if !ok {
		return MetaVar{}, false
	}

	if rest == anonymous {
		return MetaVar{Kind: Anonymous}, true
	}

	if validName(rest) {
		return MetaVar{Name: rest, Kind: Single}, true
	}

	return MetaVar{}, false
}

func validName(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}

	return true
}

// Env maps placeholder names to captured nodes for one match attempt.
// It is not safe for concurrent use.
type Env struct {
	single map[string]*syntax.Node
	multi  map[string][]*syntax.Node
}

// NewEnv returns an empty environment.
func NewEnv() *Env {
	return &Env{
		single: make(map[string]*syntax.Node),
		multi:  make(map[string][]*syntax.Node),
	}
}

// Get returns the node bound to name, or nil.
func (env *Env) Get(name string) *syntax.Node {
	return env.single[name]
}

// GetMulti returns the nodes bound to a $$$NAME placeholder.
func (env *Env) GetMulti(name string) []*syntax.Node {
	return env.multi[name]
}

// Insert binds name to node. A name that is already bound only accepts a
// node with the same source text; Insert reports whether the binding holds.
func (env *Env) Insert(name string, node *syntax.Node) bool {
	if bound, ok := env.single[name]; ok {
		return bound.Text() == node.Text()
	}

	env.single[name] = node

	return true
}

// InsertMulti binds name to a node sequence, with the same consistency rule
// as Insert applied element-wise.
func (env *Env) InsertMulti(name string, nodes []*syntax.Node) bool {
	if bound, ok := env.multi[name]; ok {
		return slices.EqualFunc(bound, nodes, func(a, b *syntax.Node) bool {
			return a.Text() == b.Text()
		})
	}

	env.multi[name] = nodes

	return true
}

// Len returns the number of bound names.
func (env *Env) Len() int {
	return len(env.single) + len(env.multi)
}

// Names returns the bound names in sorted order.
func (env *Env) Names() []string {
	names := slices.Collect(maps.Keys(env.single))
	names = slices.AppendSeq(names, maps.Keys(env.multi))
	slices.Sort(names)

	return names
}

// Clone returns a copy that can be modified independently.
func (env *Env) Clone() *Env {
	return &Env{
		single: maps.Clone(env.single),
		multi:  maps.Clone(env.multi),
	}
}

// Restore replaces the bindings with those of snapshot.
func (env *Env) Restore(snapshot *Env) {
	env.single = maps.Clone(snapshot.single)
	env.multi = maps.Clone(snapshot.multi)
}

// Texts renders every binding as source text; multi bindings are joined
// with the source between their first and last node.
func (env *Env) Texts() map[string]string {
	texts := make(map[string]string, env.Len())

	for name, node := range env.single {
		texts[name] = node.Text()
	}

	for name, nodes := range env.multi {
		texts[name] = spanText(nodes)
	}

	return texts
}

func spanText(nodes []*syntax.Node) string {
	if len(nodes) == 0 {
		return ""
	}

	first, last := nodes[0], nodes[len(nodes)-1]
	src := first.Root().Source()

	return string(src[first.StartByte():last.EndByte()])
}
