// Package diagnostics computes syntax and semantic diagnostics for Blade
// templates and caches what was last published per document.
package diagnostics

import (
	"sort"

	"go.lsp.dev/protocol"

	"github.com/mcncl/blade-ls/internal/syntax"
)

// Source is set on every diagnostic this package produces.
const Source = "blade"

// Stable diagnostic codes. Quick fixes match on these.
const (
	CodeUndefinedView       = "blade/undefined-view"
	CodeUndefinedComponent  = "blade/undefined-component"
	CodeUnclosedDirective   = "blade/unclosed-directive"
	CodeUnexpectedDirective = "blade/unexpected-directive"
	CodeInvalidMethod       = "blade/invalid-method"
	CodeSyntaxError         = "blade/syntax-error"
	CodeMissingNode         = "blade/missing-node"
)

// Kind groups diagnostics by the pass that produced them.
type Kind string

const (
	KindSyntax   Kind = "syntax"
	KindSemantic Kind = "semantic"
)

// DiagnosticInfo is a syntax problem found in a tree
type DiagnosticInfo struct {
	Message  string
	Start    syntax.Point
	End      syntax.Point
	Severity protocol.DiagnosticSeverity
	Code     string
}

// ToDiagnostics converts syntax findings into protocol diagnostics.
func ToDiagnostics(infos []DiagnosticInfo) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(infos))
	for _, info := range infos {
		out = append(out, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: info.Start.Row, Character: info.Start.Column},
				End:   protocol.Position{Line: info.End.Row, Character: info.End.Column},
			},
			Severity: info.Severity,
			Code:     info.Code,
			Source:   Source,
			Message:  info.Message,
		})
	}
	return out
}

func newDiagnostic(r protocol.Range, severity protocol.DiagnosticSeverity, code, message string) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range:    r,
		Severity: severity,
		Code:     code,
		Source:   Source,
		Message:  message,
	}
}

// lineIndex maps byte offsets of a source text to line/byte-column positions.
type lineIndex []int

func newLineIndex(source string) lineIndex {
	starts := lineIndex{0}
	for i := 0; i < len(source); i++ {
		if source[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (idx lineIndex) position(offset int) protocol.Position {
	line := sort.Search(len(idx), func(i int) bool { return idx[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	return protocol.Position{Line: uint32(line), Character: uint32(offset - idx[line])}
}

func (idx lineIndex) span(start, end int) protocol.Range {
	return protocol.Range{Start: idx.position(start), End: idx.position(end)}
}
