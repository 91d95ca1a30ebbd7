package syntaxtest

import (
	"errors"

	"github.com/mcncl/blade-ls/internal/syntax"
)

// Runtime is a syntax.Runtime producing a single "document" node per parse.
type Runtime struct {
	// Editable makes produced trees implement syntax.Editor.
	Editable bool
	// Fail makes every parse return an error.
	Fail bool

	Parses      int
	Incremental int
	Edits       []syntax.EditDescriptor
}

// EditableTree records edits applied to it.
type EditableTree struct {
	*Tree
	runtime *Runtime
}

func (t *EditableTree) Edit(edit syntax.EditDescriptor) {
	t.runtime.Edits = append(t.runtime.Edits, edit)
}

// UnderstandsBlade is true: trees are built by hand in the shapes a Blade
// grammar produces.
func (r *Runtime) UnderstandsBlade() bool { return true }

func (r *Runtime) Parse(source string, previous syntax.Tree) (syntax.Tree, error) {
	if r.Fail {
		return nil, errors.New("parser unavailable")
	}
	r.Parses++
	if previous != nil {
		r.Incremental++
	}

	tree := NewTree(source, N("document", 0, len(source)))
	if r.Editable {
		return &EditableTree{Tree: tree, runtime: r}, nil
	}
	return tree, nil
}
