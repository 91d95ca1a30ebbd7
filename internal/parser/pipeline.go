package parser

import (
	"fmt"
	"strings"

	"github.com/mcncl/blade-ls/internal/syntax"
)

// Document is one parsed version of a template
type Document struct {
	Source string
	Tree   syntax.Tree
	// Incremental is true when the tree was produced by reparsing an edited
	// previous tree rather than from scratch.
	Incremental bool
}

// Parse parses source from scratch.
func Parse(rt syntax.Runtime, source string) (*Document, error) {
	tree, err := rt.Parse(source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Document{
		Source: source,
		Tree:   tree,
	}, nil
}

// Update produces the document for newSource. The previous tree is edited and
// reused when the runtime supports it; otherwise the text is parsed from scratch.
// Identical text returns d unchanged.
func (d *Document) Update(rt syntax.Runtime, newSource string) (*Document, error) {
	if d == nil || d.Tree == nil {
		return Parse(rt, newSource)
	}

	edit := ComputeEdit(d.Source, newSource)
	if edit == nil {
		return d, nil
	}

	if !ApplyEdit(d.Tree, edit) {
		return Parse(rt, newSource)
	}

	tree, err := rt.Parse(newSource, d.Tree)
	if err != nil {
		return nil, fmt.Errorf("failed to reparse template: %w", err)
	}

	return &Document{
		Source:      newSource,
		Tree:        tree,
		Incremental: true,
	}, nil
}

// Line returns the text of a zero-based row without its line terminator.
func (d *Document) Line(row int) string {
	return LineAt(d.Source, row)
}

// LineAt returns the text of a zero-based row of source.
func LineAt(source string, row int) string {
	if row < 0 {
		return ""
	}

	start := 0
	for i := 0; i < row; i++ {
		next := strings.IndexByte(source[start:], '\n')
		if next < 0 {
			return ""
		}
		start += next + 1
	}

	line := source[start:]
	if end := strings.IndexByte(line, '\n'); end >= 0 {
		line = line[:end]
	}
	return strings.TrimSuffix(line, "\r")
}
