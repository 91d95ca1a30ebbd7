// Package treesitter runs tree-sitter grammars behind the syntax interfaces.
package treesitter

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/html"

	"github.com/mcncl/blade-ls/internal/syntax"
)

// Runtime parses documents with one grammar. It is safe for concurrent use;
// parses are serialised because a tree-sitter parser is not.
type Runtime struct {
	mu     sync.Mutex
	parser *sitter.Parser
	lang   *sitter.Language
	blade  bool

	queryMu sync.Mutex
	queries map[string]*sitter.Query
}

// NewRuntime creates a runtime for lang.
func NewRuntime(lang *sitter.Language) *Runtime {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	return &Runtime{
		parser:  parser,
		lang:    lang,
		queries: make(map[string]*sitter.Query),
	}
}

// NewBladeRuntime creates a runtime for a Blade grammar. Its trees are trusted
// for syntax diagnostics.
func NewBladeRuntime(lang *sitter.Language) *Runtime {
	r := NewRuntime(lang)
	r.blade = true
	return r
}

// HTML returns a runtime for the bundled HTML grammar. It is used when no
// Blade grammar is linked in. Its trees carry no directive nodes, so analysis
// falls back to line scanning and its error nodes are not reported.
func HTML() *Runtime {
	return NewRuntime(html.GetLanguage())
}

func (r *Runtime) UnderstandsBlade() bool { return r.blade }

func (r *Runtime) Parse(source string, previous syntax.Tree) (syntax.Tree, error) {
	return r.ParseCtx(context.Background(), source, previous)
}

// ParseCtx parses source, reusing previous when it is a tree from this runtime
// that has been edited to match source.
func (r *Runtime) ParseCtx(ctx context.Context, source string, previous syntax.Tree) (syntax.Tree, error) {
	var old *sitter.Tree
	if prev, ok := previous.(*Tree); ok && prev != nil {
		old = prev.raw
	}

	content := []byte(source)

	r.mu.Lock()
	raw, err := r.parser.ParseCtx(ctx, old, content)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}

	return &Tree{raw: raw, source: content, runtime: r}, nil
}

func (r *Runtime) query(pattern string) (*sitter.Query, error) {
	r.queryMu.Lock()
	defer r.queryMu.Unlock()

	if q, ok := r.queries[pattern]; ok {
		return q, nil
	}
	q, err := sitter.NewQuery([]byte(pattern), r.lang)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", pattern, err)
	}
	r.queries[pattern] = q
	return q, nil
}

// Tree is a parsed document. It implements syntax.Editor and syntax.Querier.
type Tree struct {
	raw     *sitter.Tree
	source  []byte
	runtime *Runtime
}

func (t *Tree) RootNode() syntax.Node {
	return t.wrap(t.raw.RootNode())
}

func (t *Tree) Edit(edit syntax.EditDescriptor) {
	t.raw.Edit(sitter.EditInput{
		StartIndex:  edit.StartIndex,
		OldEndIndex: edit.OldEndIndex,
		NewEndIndex: edit.NewEndIndex,
		StartPoint:  toPoint(edit.StartPosition),
		OldEndPoint: toPoint(edit.OldEndPosition),
		NewEndPoint: toPoint(edit.NewEndPosition),
	})
}

// QueryCaptures runs pattern and returns every capture in match order.
// Predicates such as #eq? are applied against the tree's source.
func (t *Tree) QueryCaptures(pattern string, scope syntax.Node) ([]syntax.Capture, error) {
	q, err := t.runtime.query(pattern)
	if err != nil {
		return nil, err
	}

	root := t.raw.RootNode()
	if scope != nil {
		n, ok := scope.(*Node)
		if !ok || n.tree != t {
			return nil, fmt.Errorf("query scope is not a node of this tree")
		}
		root = n.raw
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, root)

	var captures []syntax.Capture
	for {
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}
		m = cursor.FilterPredicates(m, t.source)
		for _, c := range m.Captures {
			node := t.wrap(c.Node)
			if node == nil {
				continue
			}
			captures = append(captures, syntax.Capture{
				Name: q.CaptureNameForId(c.Index),
				Node: node,
			})
		}
	}
	return captures, nil
}

// wrap returns an untyped nil for null nodes so callers can compare with nil.
func (t *Tree) wrap(n *sitter.Node) syntax.Node {
	if n == nil || n.IsNull() {
		return nil
	}
	return &Node{raw: n, tree: t}
}

// Node adapts a tree-sitter node.
type Node struct {
	raw  *sitter.Node
	tree *Tree
}

func (n *Node) Type() string             { return n.raw.Type() }
func (n *Node) StartPoint() syntax.Point { return fromPoint(n.raw.StartPoint()) }
func (n *Node) EndPoint() syntax.Point   { return fromPoint(n.raw.EndPoint()) }
func (n *Node) Text() string             { return n.raw.Content(n.tree.source) }
func (n *Node) ChildCount() int          { return int(n.raw.ChildCount()) }
func (n *Node) HasError() bool           { return n.raw.HasError() }
func (n *Node) IsMissing() bool          { return n.raw.IsMissing() }

func (n *Node) Child(i int) syntax.Node {
	if i < 0 || i >= n.ChildCount() {
		return nil
	}
	return n.tree.wrap(n.raw.Child(i))
}

func (n *Node) Parent() syntax.Node {
	return n.tree.wrap(n.raw.Parent())
}

func toPoint(p syntax.Point) sitter.Point   { return sitter.Point(p) }
func fromPoint(p sitter.Point) syntax.Point { return syntax.Point(p) }
