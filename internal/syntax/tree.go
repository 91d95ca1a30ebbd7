package syntax

import (
	"errors"
	"fmt"
)

// ErrQueryUnsupported is returned by Query when the tree cannot run structural queries.
var ErrQueryUnsupported = errors.New("structural queries not supported")

// Node is a single node of a parsed syntax tree
type Node interface {
	Type() string
	StartPoint() Point
	EndPoint() Point
	Text() string
	ChildCount() int
	Child(i int) Node
	// Parent is a back reference for traversal only. It returns nil at the root.
	Parent() Node
	HasError() bool
	IsMissing() bool
}

// Tree is one parsed version of a document
type Tree interface {
	RootNode() Node
}

// Capture is a node captured by name from a structural query
type Capture struct {
	Name string
	Node Node
}

// Runtime turns source text into a syntax tree. A previous tree that has
// already been edited may be passed to let the runtime reuse structure.
type Runtime interface {
	Parse(source string, previous Tree) (Tree, error)
}

// BladeAware is implemented by runtimes that report whether their grammar parses
// Blade itself. Trees from other grammars, such as plain HTML, misparse valid
// templates, so their error nodes mean nothing.
type BladeAware interface {
	UnderstandsBlade() bool
}

// UnderstandsBlade reports whether rt declares a Blade grammar. Runtimes that
// do not implement BladeAware are assumed not to.
func UnderstandsBlade(rt Runtime) bool {
	b, ok := rt.(BladeAware)
	return ok && b.UnderstandsBlade()
}

// Querier is implemented by trees whose runtime can execute structural queries.
// A nil scope queries the whole tree.
type Querier interface {
	QueryCaptures(pattern string, scope Node) ([]Capture, error)
}

// Editor is implemented by trees that accept incremental edits.
type Editor interface {
	Edit(edit EditDescriptor)
}

// EditDescriptor describes the changed span between two versions of a document.
type EditDescriptor struct {
	StartIndex     uint32
	OldEndIndex    uint32
	NewEndIndex    uint32
	StartPosition  Point
	OldEndPosition Point
	NewEndPosition Point
}

// Query runs pattern against tree, optionally scoped to a subtree. Any failure of
// the underlying runtime, including a panic, is returned as an error so callers
// can fall back to walking the tree.
func Query(tree Tree, pattern string, scope Node) (captures []Capture, err error) {
	if tree == nil {
		return nil, ErrQueryUnsupported
	}
	q, ok := tree.(Querier)
	if !ok {
		return nil, ErrQueryUnsupported
	}

	defer func() {
		if r := recover(); r != nil {
			captures = nil
			err = fmt.Errorf("query panicked: %v", r)
		}
	}()

	return q.QueryCaptures(pattern, scope)
}

// Root returns the root node of tree, or nil.
func Root(tree Tree) Node {
	if tree == nil {
		return nil
	}
	return tree.RootNode()
}

// SameNode reports whether a and b denote the same node. Runtimes may hand out
// distinct wrappers for one node, so identity is type plus range.
func SameNode(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Type() == b.Type() && a.StartPoint() == b.StartPoint() && a.EndPoint() == b.EndPoint()
}

// NodeRange returns the range covered by n
func NodeRange(n Node) Range {
	return Range{Start: n.StartPoint(), End: n.EndPoint()}
}

// Children returns the direct children of n.
func Children(n Node) []Node {
	if n == nil {
		return nil
	}
	count := n.ChildCount()
	children := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		if child := n.Child(i); child != nil {
			children = append(children, child)
		}
	}
	return children
}

// FirstChildOfType returns the first direct child of n with the given type.
func FirstChildOfType(n Node, types ...string) Node {
	for _, child := range Children(n) {
		for _, t := range types {
			if child.Type() == t {
				return child
			}
		}
	}
	return nil
}

// Ancestor walks up from n (inclusive) and returns the first node whose type is
// one of types.
func Ancestor(n Node, types ...string) Node {
	for cur := n; cur != nil; cur = cur.Parent() {
		for _, t := range types {
			if cur.Type() == t {
				return cur
			}
		}
	}
	return nil
}

// Walk visits n and its descendants depth first. Returning false from visit
// skips the node's children.
func Walk(n Node, visit func(Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, child := range Children(n) {
		Walk(child, visit)
	}
}

// DescendantForPoint returns the deepest node under root whose range contains p.
func DescendantForPoint(root Node, p Point) Node {
	if root == nil || !NodeRange(root).Contains(p) {
		return nil
	}

	current := root
	for {
		var next Node
		for _, child := range Children(current) {
			if NodeRange(child).Contains(p) {
				next = child
				break
			}
		}
		if next == nil {
			return current
		}
		current = next
	}
}
