// Package syntax provides read-only syntax trees produced by tree-sitter
// grammars. Trees are copied into Go-owned nodes with parent links, so a
// Root never references parser memory and can be searched concurrently.
package syntax

import "strings"

// Kind names with special meaning for matching.
const (
	KindError   = "ERROR"
	KindComment = "comment"
)

// Point is a 0-based line/column position in the source.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Root is one parsed source file.
type Root struct {
	lang   Language
	source []byte
	node   *Node
}

// Lang returns the grammar the source was parsed with.
func (r *Root) Lang() Language {
	return r.lang
}

// Source returns the parsed source bytes. Callers must not modify them.
func (r *Root) Source() []byte {
	return r.source
}

// Node returns the top-level node of the tree.
func (r *Root) Node() *Node {
	return r.node
}

// Node is a handle into a syntax tree.
type Node struct {
	root      *Root
	parent    *Node
	children  []*Node
	kind      string
	start     Point
	end       Point
	startByte int
	endByte   int
	depth     int
	named     bool
}

// Kind returns the grammar node type, e.g. "lexical_declaration" or "=".
func (n *Node) Kind() string {
	return n.kind
}

// IsNamed reports whether the node is a named grammar rule rather than an anonymous token.
func (n *Node) IsNamed() bool {
	return n.named
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.children) == 0
}

// IsError reports whether tree-sitter marked the node as a syntax error.
func (n *Node) IsError() bool {
	return n.kind == KindError
}

// IsTrivia reports whether the node carries no structure for matching:
// zero-width tokens, statement terminators and comments.
func (n *Node) IsTrivia() bool {
	if n.startByte == n.endByte {
		return true
	}

	if !n.named && n.kind == ";" {
		return true
	}

	return n.named && strings.HasSuffix(n.kind, KindComment)
}

// Text returns the source text covered by the node.
func (n *Node) Text() string {
	return string(n.root.source[n.startByte:n.endByte])
}

// StartByte returns the byte offset where the node begins.
func (n *Node) StartByte() int {
	return n.startByte
}

// EndByte returns the byte offset where the node ends.
func (n *Node) EndByte() int {
	return n.endByte
}

// Start returns the start position.
func (n *Node) Start() Point {
	return n.start
}

// End returns the end position.
func (n *Node) End() Point {
	return n.end
}

// Depth returns the distance from the root; the root has depth 0.
func (n *Node) Depth() int {
	return n.depth
}

// Children returns all direct children in source order, named and anonymous.
// The returned slice must not be modified.
func (n *Node) Children() []*Node {
	return n.children
}

// NamedChildren returns the named direct children in source order.
func (n *Node) NamedChildren() []*Node {
	named := make([]*Node, 0, len(n.children))

	for _, child := range n.children {
		if child.named {
			named = append(named, child)
		}
	}

	return named
}

// Parent returns the enclosing node, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Root returns the tree the node belongs to.
func (n *Node) Root() *Root {
	return n.root
}

// Lang returns the grammar of the owning tree.
func (n *Node) Lang() Language {
	return n.root.lang
}

// Walk visits the subtree in pre-order. Returning false from fn skips the
// children of the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	stack := []*Node{n}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(current) {
			continue
		}

		for i := len(current.children) - 1; i >= 0; i-- {
			stack = append(stack, current.children[i])
		}
	}
}

// HasError reports whether the subtree contains a syntax error.
func (n *Node) HasError() bool {
	found := false

	n.Walk(func(current *Node) bool {
		if current.IsError() {
			found = true
		}

		return !found
	})

	return found
}

// String returns a compact S-expression of the named structure, for debugging.
func (n *Node) String() string {
	var buf strings.Builder

	writeSExpr(&buf, n)

	return buf.String()
}

func writeSExpr(buf *strings.Builder, n *Node) {
	buf.WriteByte('(')
	buf.WriteString(n.kind)

	for _, child := range n.children {
		if !child.named {
			continue
		}

		buf.WriteByte(' ')
		writeSExpr(buf, child)
	}

	buf.WriteByte(')')
}
