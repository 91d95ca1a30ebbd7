package diagnostics

import (
	"sync"

	"github.com/goccy/go-json"
	"go.lsp.dev/protocol"
)

// Update is one analysis result for a document
type Update struct {
	Syntax   []protocol.Diagnostic
	Semantic []protocol.Diagnostic
}

type bucket struct {
	syntax    []protocol.Diagnostic
	semantic  []protocol.Diagnostic
	merged    []protocol.Diagnostic
	published bool
}

// Store remembers the diagnostics last published per document so unchanged
// results are not sent to the client again.
type Store struct {
	mu      sync.Mutex
	buckets map[protocol.DocumentURI]*bucket
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{buckets: make(map[protocol.DocumentURI]*bucket)}
}

// Update records both kinds of diagnostics for uri. It returns the merged list
// and true when it differs from what was last published, or nil and false when
// publishing again would send the same result.
func (s *Store) Update(uri protocol.DocumentURI, update Update) ([]protocol.Diagnostic, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[uri]
	if !ok {
		b = &bucket{}
		s.buckets[uri] = b
	}

	b.syntax = append([]protocol.Diagnostic(nil), update.Syntax...)
	b.semantic = append([]protocol.Diagnostic(nil), update.Semantic...)

	merged := make([]protocol.Diagnostic, 0, len(b.syntax)+len(b.semantic))
	merged = append(merged, b.syntax...)
	merged = append(merged, b.semantic...)

	if b.published && equalDiagnostics(b.merged, merged) {
		return nil, false
	}

	b.merged = merged
	b.published = true
	return append([]protocol.Diagnostic(nil), merged...), true
}

// Delete forgets uri, so the next Update for it always publishes.
func (s *Store) Delete(uri protocol.DocumentURI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, uri)
}

// Get returns the diagnostics of one kind last recorded for uri.
func (s *Store) Get(uri protocol.DocumentURI, kind Kind) []protocol.Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[uri]
	if !ok {
		return nil
	}
	switch kind {
	case KindSyntax:
		return append([]protocol.Diagnostic(nil), b.syntax...)
	case KindSemantic:
		return append([]protocol.Diagnostic(nil), b.semantic...)
	}
	return nil
}

func equalDiagnostics(a, b []protocol.Diagnostic) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equalDiagnostic(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalDiagnostic(a, b protocol.Diagnostic) bool {
	if a.Message != b.Message || a.Severity != b.Severity || a.Source != b.Source || a.Range != b.Range {
		return false
	}
	if codeKey(a.Code) != codeKey(b.Code) {
		return false
	}
	if len(a.Tags) != len(b.Tags) {
		return false
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			return false
		}
	}
	if len(a.RelatedInformation) != len(b.RelatedInformation) {
		return false
	}
	for i := range a.RelatedInformation {
		ra, rb := a.RelatedInformation[i], b.RelatedInformation[i]
		if ra.Message != rb.Message || ra.Location.URI != rb.Location.URI || ra.Location.Range != rb.Location.Range {
			return false
		}
	}
	return true
}

// codeKey serializes a diagnostic code so "1" and 1 stay distinct.
func codeKey(code interface{}) string {
	if code == nil {
		return ""
	}
	data, err := json.Marshal(code)
	if err != nil {
		return ""
	}
	return string(data)
}
