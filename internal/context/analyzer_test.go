package context

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/mcncl/blade-ls/internal/syntax"
	"github.com/mcncl/blade-ls/internal/syntax/syntaxtest"
)

// variants returns the tree as-is, with query support, and with a failing
// querier, so both the query path and the tree-walk fallback are exercised.
func variants(tree *syntaxtest.Tree) map[string]syntax.Tree {
	failing := syntaxtest.WithQueries(tree)
	failing.Err = errors.New("Impossible pattern at offset 3")
	return map[string]syntax.Tree{
		"tree walk":     tree,
		"query":         syntaxtest.WithQueries(tree),
		"query failure": failing,
	}
}

func echoTree() *syntaxtest.Tree {
	src := "<p>{{ $user->name }}</p>"
	n := syntaxtest.N
	stmtS, stmtE := syntaxtest.Span(src, "{{ $user->name }}")
	onlyS, onlyE := syntaxtest.Span(src, " $user->name ")
	return syntaxtest.NewTree(src, n("document", 0, len(src),
		n("element", 0, len(src),
			n("start_tag", 0, 3, n("tag_name", 1, 2)),
			n(nodePHPStatement, stmtS, stmtE,
				n("bracket_start", stmtS, stmtS+2),
				n(nodePHPOnly, onlyS, onlyE),
				n("bracket_end", stmtE-2, stmtE),
			),
			n("end_tag", stmtE, len(src)),
		),
	))
}

func phpBlockTree() *syntaxtest.Tree {
	src := "@php\n  $x = 1;\n@endphp"
	n := syntaxtest.N
	onlyS, onlyE := syntaxtest.Span(src, "\n  $x = 1;\n")
	endS, endE := syntaxtest.Span(src, "@endphp")
	return syntaxtest.NewTree(src, n("document", 0, len(src),
		n(nodePHPStatement, 0, len(src),
			n(nodeDirectiveStart, 0, 4),
			n(nodePHPOnly, onlyS, onlyE),
			n("directive_end", endS, endE),
		),
	))
}

func conditionalTree() *syntaxtest.Tree {
	src := "@if($user->isAdmin())\n  <b>admin</b>\n@endif"
	n := syntaxtest.N
	paramS, paramE := syntaxtest.Span(src, "($user->isAdmin())")
	endS, endE := syntaxtest.Span(src, "@endif")
	return syntaxtest.NewTree(src, n("document", 0, len(src),
		n("conditional", 0, len(src),
			n(nodeDirectiveStart, 0, 3),
			n(nodeParameter, paramS, paramE),
			n("directive_end", endS, endE),
		),
	))
}

func commentTree() *syntaxtest.Tree {
	src := "{{-- @todo fix this --}}"
	return syntaxtest.NewTree(src, syntaxtest.N("document", 0, len(src),
		syntaxtest.N(nodeComment, 0, len(src)),
	))
}

func componentTree() *syntaxtest.Tree {
	src := `<x-alert type="x"></x-alert>`
	n := syntaxtest.N
	startS, startE := syntaxtest.Span(src, `<x-alert type="x">`)
	attrS, attrE := syntaxtest.Span(src, `type="x"`)
	endS, endE := syntaxtest.Span(src, "</x-alert>")
	return syntaxtest.NewTree(src, n("document", 0, len(src),
		n("element", 0, len(src),
			n("start_tag", startS, startE,
				n("tag_name", 1, 8),
				n("attribute", attrS, attrE, n("attribute_name", attrS, attrS+4)),
			),
			n("end_tag", endS, endE, n("tag_name", endS+2, endE-1)),
		),
	))
}

func TestGetCompletionContext_Directive(t *testing.T) {
	tests := []struct {
		name   string
		source string
		row    uint32
		col    uint32
		want   CompletionContext
		prefix string
	}{
		{"partial name", "<div>\n  @fore", 1, 7, ContextDirective, "fore"},
		{"bare at sign", "@", 0, 1, ContextDirective, ""},
		{"after other text", "<p>@if", 0, 6, ContextDirective, "if"},
		{"email address", "mail me@host", 0, 12, ContextHTML, ""},
		{"escaped directive", "@@if", 0, 4, ContextHTML, ""},
		{"cursor before the at sign", "ab @if", 0, 2, ContextHTML, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := GetCompletionContext(nil, tt.source, tt.row, tt.col)
			assert.Equal(t, tt.want, info.Type)
			assert.Equal(t, tt.prefix, info.Prefix)
		})
	}
}

func TestGetCompletionContext_Echo(t *testing.T) {
	for name, tree := range variants(echoTree()) {
		t.Run(name, func(t *testing.T) {
			info := GetCompletionContext(tree, "<p>{{ $user->name }}</p>", 0, 9)
			assert.Equal(t, ContextEcho, info.Type)
			require.NotNil(t, info.Range)

			info = GetCompletionContext(tree, "<p>{{ $user->name }}</p>", 0, 1)
			assert.Equal(t, ContextHTML, info.Type)
		})
	}
}

func TestGetCompletionContext_PHPBlock(t *testing.T) {
	src := "@php\n  $x = 1;\n@endphp"
	for name, tree := range variants(phpBlockTree()) {
		t.Run(name, func(t *testing.T) {
			info := GetCompletionContext(tree, src, 1, 3)
			assert.Equal(t, ContextPHP, info.Type)
		})
	}
}

func TestGetCompletionContext_Parameter(t *testing.T) {
	src := "@if($user->isAdmin())\n  <b>admin</b>\n@endif"
	for name, tree := range variants(conditionalTree()) {
		t.Run(name, func(t *testing.T) {
			info := GetCompletionContext(tree, src, 0, 8)
			assert.Equal(t, ContextParameter, info.Type)
			assert.Equal(t, "if", info.DirectiveName)
			assert.True(t, info.IsParameter())

			info = GetCompletionContext(tree, src, 1, 4)
			assert.Equal(t, ContextHTML, info.Type)
		})
	}
}

func TestGetCompletionContext_Comment(t *testing.T) {
	src := "{{-- @todo fix this --}}"
	for name, tree := range variants(commentTree()) {
		t.Run(name, func(t *testing.T) {
			info := GetCompletionContext(tree, src, 0, 13)
			assert.Equal(t, ContextComment, info.Type)
		})
	}
}

func TestGetCompletionContext_UnclosedArgumentsWithoutTree(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		col       uint32
		want      CompletionContext
		directive string
	}{
		{"open include", "@include('partials.", 19, ContextParameter, "include"},
		{"nested parens", "@if(count($items) > ", 20, ContextParameter, "if"},
		{"closed paren", "@include('x') ", 14, ContextHTML, ""},
		{"paren inside quotes", "@section('a)', ", 15, ContextParameter, "section"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := GetCompletionContext(nil, tt.source, 0, tt.col)
			assert.Equal(t, tt.want, info.Type)
			assert.Equal(t, tt.directive, info.DirectiveName)
		})
	}
}

func TestGetCompletionContext_OutOfRange(t *testing.T) {
	info := GetCompletionContext(echoTree(), "<p></p>", 40, 2)
	assert.Equal(t, ContextHTML, info.Type)
}

func TestAnalyzeContext_ComponentTag(t *testing.T) {
	analyzer := NewAnalyzer(nil)
	src := `<x-alert type="x"></x-alert>`

	info := analyzer.AnalyzeContext(&PositionContext{
		URI:         protocol.DocumentURI("file:///resources/views/welcome.blade.php"),
		Position:    protocol.Position{Line: 0, Character: 9},
		CurrentLine: src,
		CharIndex:   9,
		FullContent: src,
		Tree:        componentTree(),
	})

	assert.Equal(t, ContextHTML, info.Type)
	require.True(t, info.InComponentTag())
	assert.Equal(t, "x-alert", info.Component.TagName)
	assert.Equal(t, []string{"type"}, info.Component.ExistingProps)
	assert.Equal(t, "x-alert", info.ParentComponent)
}

func TestAnalyzeContext_Nil(t *testing.T) {
	info := NewAnalyzer(nil).AnalyzeContext(nil)
	assert.Equal(t, ContextHTML, info.Type)
	assert.False(t, info.IsDirective())
}

func TestCompletionContext_String(t *testing.T) {
	assert.Equal(t, "directive", ContextDirective.String())
	assert.Equal(t, "php", ContextPHP.String())
	assert.Equal(t, "html", ContextHTML.String())
}
