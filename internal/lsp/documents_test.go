package lsp

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/mcncl/blade-ls/internal/syntax/syntaxtest"
)

const testDocURI = protocol.DocumentURI("file:///app/resources/views/welcome.blade.php")

func TestDocumentManager_OpenDocument(t *testing.T) {
	dm := NewDocumentManager(&syntaxtest.Runtime{}, nil)
	content := "<div>\n  @if($user)\n</div>"

	opened := dm.OpenDocument(testDocURI, 1, content)

	doc, exists := dm.GetDocument(testDocURI)
	require.True(t, exists)
	assert.Same(t, opened, doc)
	assert.Equal(t, int32(1), doc.Version)
	assert.Equal(t, content, doc.Content)
	assert.Equal(t, []string{"<div>", "  @if($user)", "</div>"}, doc.Lines)
	assert.NotNil(t, doc.Tree)
}

func TestDocumentManager_UpdateDocumentReparsesIncrementally(t *testing.T) {
	rt := &syntaxtest.Runtime{Editable: true}
	dm := NewDocumentManager(rt, nil)

	dm.OpenDocument(testDocURI, 1, "<p>a</p>")
	doc := dm.UpdateDocument(testDocURI, 2, "<p>ab</p>")

	assert.Equal(t, int32(2), doc.Version)
	assert.Equal(t, "<p>ab</p>", doc.Content)
	assert.Equal(t, 2, rt.Parses)
	assert.Equal(t, 1, rt.Incremental)
	require.Len(t, rt.Edits, 1)
	assert.Equal(t, uint32(4), rt.Edits[0].StartIndex)
}

func TestDocumentManager_UpdateNonExistentDocument(t *testing.T) {
	dm := NewDocumentManager(&syntaxtest.Runtime{}, nil)

	doc := dm.UpdateDocument(testDocURI, 3, "@csrf")
	assert.Equal(t, int32(3), doc.Version)

	_, exists := dm.GetDocument(testDocURI)
	assert.True(t, exists)
}

func TestDocumentManager_ParseFailureKeepsText(t *testing.T) {
	dm := NewDocumentManager(&syntaxtest.Runtime{Fail: true}, nil)

	doc := dm.OpenDocument(testDocURI, 1, "@if($x)")
	assert.Nil(t, doc.Tree)
	assert.Equal(t, "@if($x)", doc.Content)

	dm = NewDocumentManager(nil, nil)
	assert.Nil(t, dm.OpenDocument(testDocURI, 1, "x").Tree)
}

func TestDocumentManager_CloseDocument(t *testing.T) {
	dm := NewDocumentManager(nil, nil)
	dm.OpenDocument(testDocURI, 1, "<p></p>")

	dm.CloseDocument(testDocURI)

	_, exists := dm.GetDocument(testDocURI)
	assert.False(t, exists)
}

func TestDocumentManager_GetContentAtPosition(t *testing.T) {
	dm := NewDocumentManager(&syntaxtest.Runtime{}, nil)
	content := "<h1>Café</h1>\n<p>😀 @include('x')</p>\n"
	dm.OpenDocument(testDocURI, 1, content)

	tests := []struct {
		name      string
		position  protocol.Position
		line      string
		charIndex int
	}{
		{"ascii", protocol.Position{Line: 0, Character: 4}, "<h1>Café</h1>", 4},
		{"after two byte rune", protocol.Position{Line: 0, Character: 8}, "<h1>Café</h1>", 9},
		{"after surrogate pair", protocol.Position{Line: 1, Character: 5}, "<p>😀 @include('x')</p>", 7},
		{"past end of line", protocol.Position{Line: 0, Character: 99}, "<h1>Café</h1>", len("<h1>Café</h1>")},
		{"line after trailing newline", protocol.Position{Line: 2, Character: 0}, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posCtx := dm.GetContentAtPosition(testDocURI, tt.position)
			require.NotNil(t, posCtx)
			assert.Equal(t, testDocURI, posCtx.URI)
			assert.Equal(t, tt.position, posCtx.Position)
			assert.Equal(t, tt.line, posCtx.CurrentLine)
			assert.Equal(t, tt.charIndex, posCtx.CharIndex)
			assert.Equal(t, content, posCtx.FullContent)
			assert.NotNil(t, posCtx.Tree)
		})
	}
}

func TestDocumentManager_GetContentAtPosition_OutOfBounds(t *testing.T) {
	dm := NewDocumentManager(nil, nil)
	dm.OpenDocument(testDocURI, 1, "<p>\n</p>")

	assert.Nil(t, dm.GetContentAtPosition(testDocURI, protocol.Position{Line: 10}))
	assert.Nil(t, dm.GetContentAtPosition("file:///missing.blade.php", protocol.Position{}))
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", []string{}},
		{"single line", []string{"single line"}},
		{"line1\nline2", []string{"line1", "line2"}},
		{"line1\nline2\n", []string{"line1", "line2"}},
		{"line1\r\nline2", []string{"line1", "line2"}},
		{"line1\n\nline3", []string{"line1", "", "line3"}},
		{"\n", []string{""}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, splitLines(tt.input), "splitLines(%q)", tt.input)
	}
}

func TestDocumentManager_ConcurrentAccess(t *testing.T) {
	dm := NewDocumentManager(&syntaxtest.Runtime{}, nil)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			content := fmt.Sprintf("<p>%d</p>", i)
			if i == 0 {
				dm.OpenDocument(testDocURI, int32(i+1), content)
			} else {
				dm.UpdateDocument(testDocURI, int32(i+1), content)
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			dm.GetDocument(testDocURI)
			dm.GetContentAtPosition(testDocURI, protocol.Position{})
		}
	}()

	wg.Wait()

	doc, exists := dm.GetDocument(testDocURI)
	require.True(t, exists)
	assert.Equal(t, int32(100), doc.Version)
}
