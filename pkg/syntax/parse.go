package syntax

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Sentinel errors for parsing.
var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrEmptyTree           = errors.New("parser returned no root node")
	errPoolType            = errors.New("parser pool returned unexpected type")
)

// parserPools holds one *sync.Pool of *sitter.Parser per language.
var parserPools sync.Map

func parserPool(lang Language, tsLang *sitter.Language) *sync.Pool {
	if pool, ok := parserPools.Load(lang); ok {
		if typed, castOK := pool.(*sync.Pool); castOK {
			return typed
		}
	}

	pool := &sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(tsLang)

			return tsParser
		},
	}

	actual, _ := parserPools.LoadOrStore(lang, pool)

	typed, ok := actual.(*sync.Pool)
	if !ok {
		return pool
	}

	return typed
}

// Parse parses src with the grammar for lang. The returned Root owns a copy
// of the tree; the tree-sitter tree is released before Parse returns.
func Parse(ctx context.Context, lang Language, src []byte) (*Root, error) {
	tsLang := grammar(lang)
	if tsLang == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}

	pool := parserPool(lang, tsLang)

	tsParser, ok := pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s source: %w", lang, err)
	}
	defer tree.Close()

	tsRoot := tree.RootNode()
	if tsRoot.IsNull() {
		return nil, ErrEmptyTree
	}

	root := &Root{lang: lang, source: src}
	root.node = root.copyTree(tsRoot)

	return root, nil
}

// ParseString parses src without a caller-supplied context.
func ParseString(lang Language, src string) (*Root, error) {
	return Parse(context.Background(), lang, []byte(src))
}

type copyFrame struct {
	ts   sitter.Node
	node *Node
}

// copyTree converts the tree-sitter tree into Go nodes using an explicit
// stack, so deeply nested sources do not grow the goroutine stack.
func (r *Root) copyTree(tsRoot sitter.Node) *Node {
	top := r.newNode(tsRoot, nil)
	stack := []copyFrame{{ts: tsRoot, node: top}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		cursor := sitter.NewTreeCursor(frame.ts)
		if !cursor.GoToFirstChild() {
			continue
		}

		for {
			tsChild := cursor.CurrentNode()
			child := r.newNode(tsChild, frame.node)
			frame.node.children = append(frame.node.children, child)
			stack = append(stack, copyFrame{ts: tsChild, node: child})

			if !cursor.GoToNextSibling() {
				break
			}
		}
	}

	return top
}

func (r *Root) newNode(tsNode sitter.Node, parent *Node) *Node {
	start := tsNode.StartPoint()
	end := tsNode.EndPoint()

	created := &Node{
		root:      r,
		parent:    parent,
		kind:      tsNode.Type(),
		named:     tsNode.IsNamed(),
		startByte: int(tsNode.StartByte()), //nolint:gosec // tree-sitter byte offsets fit in int
		endByte:   int(tsNode.EndByte()),   //nolint:gosec // tree-sitter byte offsets fit in int
		start:     Point{Line: int(start.Row), Column: int(start.Column)},
		end:       Point{Line: int(end.Row), Column: int(end.Column)},
	}

	if parent != nil {
		created.depth = parent.depth + 1
	}

	return created
}
