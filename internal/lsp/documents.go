package lsp

import (
	"strings"
	"sync"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/mcncl/blade-ls/internal/context"
	"github.com/mcncl/blade-ls/internal/parser"
	"github.com/mcncl/blade-ls/internal/syntax"
)

// DocumentManager handles document content caching and state management
type DocumentManager struct {
	mu        sync.RWMutex
	documents map[protocol.DocumentURI]*Document
	runtime   syntax.Runtime
	logger    *zap.Logger
}

// Document represents a cached document with its content and metadata
type Document struct {
	URI     protocol.DocumentURI
	Version int32
	Content string
	Lines   []string
	// Tree is nil when the document could not be parsed.
	Tree syntax.Tree

	parsed *parser.Document
}

// NewDocumentManager creates a new document manager. Documents are parsed with
// rt; a nil runtime keeps text only.
func NewDocumentManager(rt syntax.Runtime, logger *zap.Logger) *DocumentManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentManager{
		documents: make(map[protocol.DocumentURI]*Document),
		runtime:   rt,
		logger:    logger,
	}
}

// OpenDocument stores a newly opened document
func (dm *DocumentManager) OpenDocument(uri protocol.DocumentURI, version int32, content string) *Document {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	doc := dm.build(uri, version, content, nil)
	dm.documents[uri] = doc
	return doc
}

// UpdateDocument replaces the content of a document, reusing its previous tree
// for an incremental reparse. Unknown documents are opened.
func (dm *DocumentManager) UpdateDocument(uri protocol.DocumentURI, version int32, content string) *Document {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	var previous *parser.Document
	if doc, exists := dm.documents[uri]; exists {
		previous = doc.parsed
	}
	doc := dm.build(uri, version, content, previous)
	dm.documents[uri] = doc
	return doc
}

func (dm *DocumentManager) build(uri protocol.DocumentURI, version int32, content string, previous *parser.Document) *Document {
	doc := &Document{
		URI:     uri,
		Version: version,
		Content: content,
		Lines:   splitLines(content),
	}
	if dm.runtime == nil {
		return doc
	}

	var (
		parsed *parser.Document
		err    error
	)
	if previous != nil && previous.Tree != nil {
		parsed, err = previous.Update(dm.runtime, content)
	} else {
		parsed, err = parser.Parse(dm.runtime, content)
	}
	if err != nil {
		dm.logger.Warn("failed to parse document", zap.String("uri", string(uri)), zap.Error(err))
		return doc
	}

	doc.parsed = parsed
	doc.Tree = parsed.Tree
	dm.logger.Debug("parsed document",
		zap.String("uri", string(uri)),
		zap.Int32("version", version),
		zap.Bool("incremental", parsed.Incremental),
	)
	return doc
}

// CloseDocument removes a document from the cache
func (dm *DocumentManager) CloseDocument(uri protocol.DocumentURI) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	delete(dm.documents, uri)
}

// GetDocument retrieves a document by URI
func (dm *DocumentManager) GetDocument(uri protocol.DocumentURI) (*Document, bool) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	doc, exists := dm.documents[uri]
	return doc, exists
}

// GetContentAtPosition returns the content and line information at a specific
// position. The client's UTF-16 character offset becomes a byte index.
func (dm *DocumentManager) GetContentAtPosition(uri protocol.DocumentURI, position protocol.Position) *context.PositionContext {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	doc, exists := dm.documents[uri]
	if !exists {
		return nil
	}

	lineIndex := int(position.Line)
	// The row after the last line is the empty line following a trailing newline.
	if lineIndex > len(doc.Lines) {
		return nil
	}

	var currentLine string
	if lineIndex < len(doc.Lines) {
		currentLine = doc.Lines[lineIndex]
	}

	return &context.PositionContext{
		URI:         uri,
		Position:    position,
		CurrentLine: currentLine,
		CharIndex:   byteColumn(currentLine, position.Character),
		FullContent: doc.Content,
		Tree:        doc.Tree,
	}
}

// splitLines splits content into lines, preserving empty lines
func splitLines(content string) []string {
	if content == "" {
		return []string{}
	}

	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
