package lsp

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/mcncl/blade-ls/internal/config"
	"github.com/mcncl/blade-ls/internal/diagnostics"
	"github.com/mcncl/blade-ls/internal/treesitter"
)

// recordingClient captures published diagnostics. Other client methods are
// not used by the server and panic through the nil embedded interface.
type recordingClient struct {
	protocol.Client

	mu        sync.Mutex
	published []*protocol.PublishDiagnosticsParams
}

func (c *recordingClient) PublishDiagnostics(_ context.Context, params *protocol.PublishDiagnosticsParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, params)
	return nil
}

func (c *recordingClient) last(t *testing.T) *protocol.PublishDiagnosticsParams {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.published, "nothing was published")
	return c.published[len(c.published)-1]
}

func (c *recordingClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

func newTestServer() (*Server, *recordingClient) {
	server := NewServer(Options{
		Config:  config.Default(),
		Runtime: treesitter.HTML(),
		Project: testProject(),
	})
	client := &recordingClient{}
	server.SetClient(client)
	return server, client
}

func openDocument(t *testing.T, s *Server, text string) {
	t.Helper()
	require.NoError(t, s.DidOpen(context.Background(), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: testDocURI, LanguageID: "blade", Version: 1, Text: text},
	}))
}

func changeDocument(t *testing.T, s *Server, version int32, text string) {
	t.Helper()
	require.NoError(t, s.DidChange(context.Background(), &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: testDocURI},
			Version:                version,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: text}},
	}))
}

func codes(diags []protocol.Diagnostic) []interface{} {
	out := make([]interface{}, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.Code)
	}
	return out
}

func TestServer_Initialize(t *testing.T) {
	server, _ := newTestServer()

	result, err := server.Initialize(context.Background(), &protocol.InitializeParams{
		ClientInfo: &protocol.ClientInfo{Name: "test-client", Version: "1.0.0"},
		RootURI:    uri.File("/srv/app"),
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	caps := result.Capabilities
	assert.NotNil(t, caps.TextDocumentSync)
	assert.Equal(t, true, caps.HoverProvider)
	assert.Equal(t, true, caps.DefinitionProvider)
	require.NotNil(t, caps.CompletionProvider)
	for _, trigger := range []string{"@", "<", "'"} {
		assert.Contains(t, caps.CompletionProvider.TriggerCharacters, trigger)
	}
	assert.Equal(t, "blade-ls", result.ServerInfo.Name)
	assert.Equal(t, "/srv/app", server.rootPath)
}

func TestServer_Lifecycle(t *testing.T) {
	server, _ := newTestServer()
	ctx := context.Background()

	assert.NoError(t, server.Initialized(ctx, &protocol.InitializedParams{}))
	assert.NoError(t, server.Shutdown(ctx))
	assert.NoError(t, server.Exit(ctx))
	assert.NotNil(t, server.Logger())
}

func TestServer_PublishesDiagnostics(t *testing.T) {
	server, client := newTestServer()

	openDocument(t, server, "<div>\n  @if($user)\n    <x-alert />\n</div>\n")

	params := client.last(t)
	assert.Equal(t, testDocURI, params.URI)
	assert.Equal(t, uint32(1), params.Version)
	assert.Equal(t, []interface{}{diagnostics.CodeUnclosedDirective}, codes(params.Diagnostics))
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 1, Character: 2},
		End:   protocol.Position{Line: 1, Character: 5},
	}, params.Diagnostics[0].Range)
}

func TestServer_SkipsUnchangedDiagnostics(t *testing.T) {
	server, client := newTestServer()

	openDocument(t, server, "@if($a)\n<p>a</p>\n")
	require.Equal(t, 1, client.count())

	changeDocument(t, server, 2, "@if($a)\n<p>ab</p>\n")
	assert.Equal(t, 1, client.count(), "same diagnostics are not published again")

	changeDocument(t, server, 3, "@if($a)\n<p>ab</p>\n@endif\n")
	require.Equal(t, 2, client.count())
	assert.Empty(t, client.last(t).Diagnostics)
	assert.NotNil(t, client.last(t).Diagnostics)
	assert.Equal(t, uint32(3), client.last(t).Version)
}

func TestServer_DidClose(t *testing.T) {
	server, client := newTestServer()

	openDocument(t, server, "@foreach($items as $item)\n")
	require.NoError(t, server.DidClose(context.Background(), &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testDocURI},
	}))

	last := client.last(t)
	assert.Empty(t, last.Diagnostics)
	_, exists := server.documents.GetDocument(testDocURI)
	assert.False(t, exists)

	openDocument(t, server, "@foreach($items as $item)\n")
	assert.Len(t, client.last(t).Diagnostics, 1, "reopening publishes again")
}

func TestServer_UTF16Ranges(t *testing.T) {
	server, client := newTestServer()

	openDocument(t, server, "<p>é</p> @method('FOO')\n")

	diags := client.last(t).Diagnostics
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostics.CodeInvalidMethod, diags[0].Code)
	assert.Equal(t, uint32(18), diags[0].Range.Start.Character)
	assert.Equal(t, uint32(21), diags[0].Range.End.Character)
}

func TestServer_ReferenceDiagnostics(t *testing.T) {
	server, client := newTestServer()

	openDocument(t, server, "@extends('layouts.missing')\n<x-alert />\n<x-nope />\n")

	assert.Equal(t, []interface{}{
		diagnostics.CodeUndefinedView,
		diagnostics.CodeUndefinedComponent,
	}, codes(client.last(t).Diagnostics))
}

func TestServer_DisabledDiagnostics(t *testing.T) {
	cfg := config.Default()
	cfg.SemanticDiagnostics = false
	server := NewServer(Options{Config: cfg, Runtime: treesitter.HTML()})
	client := &recordingClient{}
	server.SetClient(client)

	openDocument(t, server, "@if($a)\n")
	assert.Empty(t, client.last(t).Diagnostics)
}

func TestServer_ValidBladeHasNoSyntaxErrors(t *testing.T) {
	templates := map[string]string{
		"comparison in directive": "@if($count < 5)\n<p>few</p>\n@endif\n",
		"comparison in echo":      "<p>{{ $a < $b ? 'x' : 'y' }}</p>",
		"php block":               "@php\n if ($a<$b) { echo 1; }\n@endphp",
		"echo in attribute":       `<a href="{{ route('home') }}" @class(['active' => $on])>Home</a>`,
	}

	for name, text := range templates {
		t.Run(name, func(t *testing.T) {
			server := NewServer(Options{Runtime: treesitter.HTML(), Project: testProject()})
			assert.Empty(t, server.Check(testDocURI, text))
		})
	}
}

func TestServer_SyntaxDiagnosticsNeedBladeRuntime(t *testing.T) {
	text := "@if($count < 5)\n<p>few</p>\n@endif\n"

	// The HTML grammar misparses the comparison; a runtime claiming Blade is trusted.
	server := NewServer(Options{Runtime: treesitter.NewBladeRuntime(html.GetLanguage())})
	diags := server.Check(testDocURI, text)
	require.NotEmpty(t, diags)
	assert.Equal(t, diagnostics.CodeMissingNode, diags[0].Code)

	cfg := config.Default()
	cfg.SyntaxDiagnostics = false
	server = NewServer(Options{Config: cfg, Runtime: treesitter.NewBladeRuntime(html.GetLanguage())})
	assert.Empty(t, server.Check(testDocURI, text))
}

func TestServer_IgnoresOtherFiles(t *testing.T) {
	server, client := newTestServer()

	require.NoError(t, server.DidOpen(context.Background(), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///app/app/Models/User.php", Version: 1, Text: "@if("},
	}))
	assert.Equal(t, 0, client.count())

	assert.True(t, server.isTemplate("file:///app/resources/views/home.blade.php"))
	assert.False(t, server.isTemplate("untitled:Untitled-1"))
}

func TestServer_Check(t *testing.T) {
	server := NewServer(Options{Runtime: treesitter.HTML(), Project: testProject()})

	diags := server.Check("file:///tmp/check.blade.php", "@section('content')\n@include('partials.nav')\n")
	require.Len(t, diags, 1)
	assert.Equal(t, "@section is missing its closing @endsection", diags[0].Message)

	_, exists := server.documents.GetDocument("file:///tmp/check.blade.php")
	assert.False(t, exists)
}

func TestServer_CompletionHoverDefinition(t *testing.T) {
	server, _ := newTestServer()
	ctx := context.Background()
	_, err := server.Initialize(ctx, &protocol.InitializeParams{RootURI: uri.File("/srv/app")})
	require.NoError(t, err)

	openDocument(t, server, "@include('partials.nav')\n@for")

	position := func(line, char uint32) protocol.TextDocumentPositionParams {
		return protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testDocURI},
			Position:     protocol.Position{Line: line, Character: char},
		}
	}

	list, err := server.Completion(ctx, &protocol.CompletionParams{TextDocumentPositionParams: position(1, 4)})
	require.NoError(t, err)
	assert.Equal(t, []string{"@for", "@foreach", "@forelse"}, getLabels(list.Items))

	hover, err := server.Hover(ctx, &protocol.HoverParams{TextDocumentPositionParams: position(0, 3)})
	require.NoError(t, err)
	require.NotNil(t, hover)
	assert.Contains(t, hover.Contents.Value, "**@include**")

	locations, err := server.Definition(ctx, &protocol.DefinitionParams{TextDocumentPositionParams: position(0, 12)})
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, uri.File("/srv/app/resources/views/partials/nav.blade.php"), locations[0].URI)

	hover, err = server.Hover(ctx, &protocol.HoverParams{TextDocumentPositionParams: position(9, 0)})
	assert.NoError(t, err)
	assert.Nil(t, hover)
}

func TestServer_Handler(t *testing.T) {
	server, _ := newTestServer()
	handler := server.Handler()
	ctx := context.Background()

	call := func(method string, params interface{}) (interface{}, error) {
		req, err := jsonrpc2.NewCall(jsonrpc2.NewNumberID(1), method, params)
		require.NoError(t, err)

		var result interface{}
		var replyErr error
		require.NoError(t, handler(ctx, func(_ context.Context, r interface{}, err error) error {
			result, replyErr = r, err
			return nil
		}, req))
		return result, replyErr
	}

	result, err := call(protocol.MethodInitialize, &protocol.InitializeParams{})
	require.NoError(t, err)
	init, ok := result.(*protocol.InitializeResult)
	require.True(t, ok)
	assert.Equal(t, "blade-ls", init.ServerInfo.Name)

	_, err = call(protocol.MethodTextDocumentDidOpen, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: testDocURI, Version: 1, Text: "@php\n"},
	})
	require.NoError(t, err)

	result, err = call(protocol.MethodTextDocumentCompletion, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testDocURI},
			Position:     protocol.Position{Line: 0, Character: 3},
		},
	})
	require.NoError(t, err)
	list, ok := result.(*protocol.CompletionList)
	require.True(t, ok)
	assert.Contains(t, getLabels(list.Items), "@php")

	_, err = call("textDocument/unknown", nil)
	assert.True(t, errors.Is(err, jsonrpc2.ErrMethodNotFound))

	req, err := jsonrpc2.NewCall(jsonrpc2.NewNumberID(2), protocol.MethodTextDocumentHover, json.RawMessage(`{"textDocument": 5}`))
	require.NoError(t, err)
	var replyErr error
	require.NoError(t, handler(ctx, func(_ context.Context, _ interface{}, err error) error {
		replyErr = err
		return nil
	}, req))
	assert.Error(t, replyErr)
}
