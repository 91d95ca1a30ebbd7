// Package syntaxtest builds in-memory syntax trees for tests that should not
// depend on a compiled grammar.
package syntaxtest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mcncl/blade-ls/internal/syntax"
)

// Node is an in-memory syntax.Node spanning a byte range of the tree's source.
type Node struct {
	typ      string
	start    int
	end      int
	missing  bool
	children []*Node
	parent   *Node

	text     string
	startPt  syntax.Point
	endPt    syntax.Point
	hasError bool
}

// N creates a node of type typ covering source[start:end].
func N(typ string, start, end int, children ...*Node) *Node {
	return &Node{typ: typ, start: start, end: end, children: children}
}

// Missing creates a zero-width node the grammar inserted at offset.
func Missing(typ string, at int) *Node {
	return &Node{typ: typ, start: at, end: at, missing: true}
}

func (n *Node) Type() string             { return n.typ }
func (n *Node) StartPoint() syntax.Point { return n.startPt }
func (n *Node) EndPoint() syntax.Point   { return n.endPt }
func (n *Node) Text() string             { return n.text }
func (n *Node) ChildCount() int          { return len(n.children) }
func (n *Node) HasError() bool           { return n.hasError }
func (n *Node) IsMissing() bool          { return n.missing }

func (n *Node) Child(i int) syntax.Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

func (n *Node) Parent() syntax.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// Tree is an in-memory syntax.Tree without query support.
type Tree struct {
	Source string
	root   *Node
}

// NewTree links parents and fills positions and text from source.
func NewTree(source string, root *Node) *Tree {
	link(source, root, nil)
	return &Tree{Source: source, root: root}
}

func (t *Tree) RootNode() syntax.Node {
	if t.root == nil {
		return nil
	}
	return t.root
}

func link(source string, n *Node, parent *Node) bool {
	n.parent = parent
	n.text = source[n.start:n.end]
	n.startPt = syntax.PointAt(source, n.start)
	n.endPt = syntax.PointAt(source, n.end)
	n.hasError = n.typ == "ERROR" || n.missing
	for _, child := range n.children {
		if link(source, child, n) {
			n.hasError = true
		}
	}
	return n.hasError
}

// QueryTree is a Tree that answers simple single-capture patterns such as
// "(tag_name) @tag" or "[(start_tag) (self_closing_tag)] @tag".
type QueryTree struct {
	*Tree
	// Err, when set, is returned from every query.
	Err error
	// Calls counts executed queries.
	Calls int
}

// WithQueries wraps t so it implements syntax.Querier.
func WithQueries(t *Tree) *QueryTree {
	return &QueryTree{Tree: t}
}

var (
	patternTypeRe    = regexp.MustCompile(`\((\w+)\)`)
	patternCaptureRe = regexp.MustCompile(`@(\w+)`)
)

func (t *QueryTree) QueryCaptures(pattern string, scope syntax.Node) ([]syntax.Capture, error) {
	t.Calls++
	if t.Err != nil {
		return nil, t.Err
	}

	typeMatches := patternTypeRe.FindAllStringSubmatch(pattern, -1)
	captureMatch := patternCaptureRe.FindStringSubmatch(pattern)
	if len(typeMatches) == 0 || captureMatch == nil || strings.Count(pattern, "@") != 1 {
		return nil, fmt.Errorf("unsupported test pattern %q", pattern)
	}

	types := make(map[string]bool, len(typeMatches))
	for _, m := range typeMatches {
		types[m[1]] = true
	}

	if scope == nil {
		scope = t.RootNode()
	}

	var captures []syntax.Capture
	syntax.Walk(scope, func(n syntax.Node) bool {
		if types[n.Type()] {
			captures = append(captures, syntax.Capture{Name: captureMatch[1], Node: n})
		}
		return true
	})
	return captures, nil
}

// Span returns the byte offsets of the first occurrence of substr in source at
// or after from. It panics when substr is absent, which fails the calling test.
func Span(source, substr string, from ...int) (int, int) {
	offset := 0
	if len(from) > 0 {
		offset = from[0]
	}
	idx := strings.Index(source[offset:], substr)
	if idx < 0 {
		panic(fmt.Sprintf("syntaxtest: %q not found in source", substr))
	}
	return offset + idx, offset + idx + len(substr)
}

// Find returns the first node of type typ in depth-first order.
func Find(t syntax.Tree, typ string) syntax.Node {
	var found syntax.Node
	syntax.Walk(t.RootNode(), func(n syntax.Node) bool {
		if found != nil {
			return false
		}
		if n.Type() == typ {
			found = n
			return false
		}
		return true
	})
	return found
}
