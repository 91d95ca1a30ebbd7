package parser

import (
	"github.com/mcncl/blade-ls/internal/syntax"
)

// ComputeEdit returns the minimal edit that turns oldText into newText, or nil
// when the texts are identical. Indices are byte offsets.
func ComputeEdit(oldText, newText string) *syntax.EditDescriptor {
	if oldText == newText {
		return nil
	}

	limit := len(oldText)
	if len(newText) < limit {
		limit = len(newText)
	}

	prefix := 0
	for prefix < limit && oldText[prefix] == newText[prefix] {
		prefix++
	}

	// The suffix is measured on what remains after the prefix so the two never overlap.
	suffixLimit := limit - prefix
	suffix := 0
	for suffix < suffixLimit && oldText[len(oldText)-1-suffix] == newText[len(newText)-1-suffix] {
		suffix++
	}

	oldEnd := len(oldText) - suffix
	newEnd := len(newText) - suffix

	return &syntax.EditDescriptor{
		StartIndex:     uint32(prefix),
		OldEndIndex:    uint32(oldEnd),
		NewEndIndex:    uint32(newEnd),
		StartPosition:  syntax.PointAt(oldText, prefix),
		OldEndPosition: syntax.PointAt(oldText, oldEnd),
		NewEndPosition: syntax.PointAt(newText, newEnd),
	}
}

// ApplyEdit hands edit to tree when the runtime supports incremental editing.
// It reports false when the caller has to fall back to a full reparse.
func ApplyEdit(tree syntax.Tree, edit *syntax.EditDescriptor) (applied bool) {
	if tree == nil || edit == nil {
		return false
	}
	editor, ok := tree.(syntax.Editor)
	if !ok {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			applied = false
		}
	}()

	editor.Edit(*edit)
	return true
}
