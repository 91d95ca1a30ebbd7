package lsp

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/mcncl/blade-ls/internal/config"
	"github.com/mcncl/blade-ls/internal/diagnostics"
	"github.com/mcncl/blade-ls/internal/directives"
	"github.com/mcncl/blade-ls/internal/project"
	"github.com/mcncl/blade-ls/internal/syntax"
)

const serverName = "blade-ls"

// Version is reported to clients and set by the CLI at build time.
var Version = "dev"

type Server struct {
	client     protocol.Client
	logger     *zap.Logger
	config     config.Config
	directives *directives.Registry
	project    project.Context
	documents  *DocumentManager
	completion *CompletionProvider
	analyzer   *diagnostics.Analyzer
	store      *diagnostics.Store
	rootPath   string
	// bladeSyntax is set when the parser runtime's error nodes are meaningful.
	bladeSyntax bool
}

// Options configures a Server. Zero values fall back to defaults: no parser
// runtime means diagnostics run on text only, no project means reference
// checks are skipped.
type Options struct {
	Config  config.Config
	Runtime syntax.Runtime
	Project project.Context
	Logger  *zap.Logger
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	proj := opts.Project
	if proj == nil {
		proj = project.Unavailable{}
	}
	cfg := opts.Config
	if len(cfg.FileSuffixes) == 0 {
		cfg = config.Default()
	}
	reg := directives.Default()

	bladeSyntax := syntax.UnderstandsBlade(opts.Runtime)
	if cfg.SyntaxDiagnostics && !bladeSyntax {
		logger.Info("syntax diagnostics off: parser runtime does not understand Blade")
	}

	return &Server{
		logger:     logger,
		config:     cfg,
		directives: reg,
		project:    proj,
		documents:  NewDocumentManager(opts.Runtime, logger),
		completion: NewCompletionProvider(reg, proj, logger),
		analyzer:   diagnostics.NewAnalyzer(reg, proj, logger),
		store:      diagnostics.NewStore(),

		bladeSyntax: bladeSyntax,
	}
}

func (s *Server) SetClient(client protocol.Client) {
	s.client = client
}

// SetConnection lets the server publish diagnostics over conn.
func (s *Server) SetConnection(conn jsonrpc2.Conn) {
	s.client = protocol.ClientDispatcher(conn, s.logger)
}

func (s *Server) Logger() *zap.Logger {
	return s.logger
}

func (s *Server) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	if params != nil {
		switch {
		case len(params.WorkspaceFolders) > 0:
			s.rootPath = filenameOf(protocol.DocumentURI(params.WorkspaceFolders[0].URI))
		case params.RootURI != "":
			s.rootPath = filenameOf(params.RootURI)
		}
	}
	s.logger.Info("initializing", zap.String("root", s.rootPath))

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
			},
			HoverProvider:      true,
			DefinitionProvider: true,
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{"@", "<", ":", "'", "\"", " "},
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    serverName,
			Version: Version,
		},
	}, nil
}

func (s *Server) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	s.logger.Info("server initialized", zap.Bool("project", s.project.Available()))
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return nil
}

func (s *Server) Exit(ctx context.Context) error {
	s.logger.Info("server exiting")
	return nil
}

func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	item := params.TextDocument
	if !s.isTemplate(item.URI) {
		return nil
	}
	doc := s.documents.OpenDocument(item.URI, item.Version, item.Text)
	return s.publish(ctx, doc)
}

func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 || !s.isTemplate(params.TextDocument.URI) {
		return nil
	}
	// Full sync: the last change carries the whole text.
	lastChange := params.ContentChanges[len(params.ContentChanges)-1]
	doc := s.documents.UpdateDocument(params.TextDocument.URI, params.TextDocument.Version, lastChange.Text)
	return s.publish(ctx, doc)
}

func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	docURI := params.TextDocument.URI
	s.documents.CloseDocument(docURI)
	s.store.Delete(docURI)
	if s.client == nil {
		return nil
	}
	return s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         docURI,
		Diagnostics: []protocol.Diagnostic{},
	})
}

func (s *Server) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	posCtx := s.documents.GetContentAtPosition(params.TextDocument.URI, params.Position)
	return &protocol.CompletionList{
		IsIncomplete: false,
		Items:        s.completion.GetCompletions(posCtx),
	}, nil
}

func (s *Server) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	posCtx := s.documents.GetContentAtPosition(params.TextDocument.URI, params.Position)
	if posCtx == nil {
		return nil, nil
	}
	return hoverAt(s.directives, s.project, posCtx.CurrentLine, params.Position.Line, posCtx.CharIndex), nil
}

func (s *Server) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	posCtx := s.documents.GetContentAtPosition(params.TextDocument.URI, params.Position)
	if posCtx == nil {
		return []protocol.Location{}, nil
	}
	return definitionAt(s.project, s.rootPath, posCtx.CurrentLine, posCtx.CharIndex), nil
}

// Analyze computes both kinds of diagnostics for doc, with ranges in the
// client's UTF-16 columns.
func (s *Server) Analyze(doc *Document) diagnostics.Update {
	update := diagnostics.Update{
		Syntax:   []protocol.Diagnostic{},
		Semantic: []protocol.Diagnostic{},
	}
	if s.config.SyntaxDiagnostics && s.bladeSyntax && doc.Tree != nil {
		update.Syntax = toUTF16Diagnostics(doc.Lines, diagnostics.ToDiagnostics(diagnostics.CollectSyntaxErrors(doc.Tree)))
	}
	if s.config.SemanticDiagnostics {
		update.Semantic = toUTF16Diagnostics(doc.Lines, s.analyzer.Analyze(doc.Content, doc.Tree))
	}
	return update
}

// Check analyzes text outside an editor session and returns syntax
// diagnostics followed by semantic ones.
func (s *Server) Check(u protocol.DocumentURI, text string) []protocol.Diagnostic {
	doc := s.documents.OpenDocument(u, 0, text)
	defer s.documents.CloseDocument(u)

	update := s.Analyze(doc)
	return append(update.Syntax, update.Semantic...)
}

func (s *Server) publish(ctx context.Context, doc *Document) error {
	merged, changed := s.store.Update(doc.URI, s.Analyze(doc))
	if !changed {
		s.logger.Debug("diagnostics unchanged", zap.String("uri", string(doc.URI)))
		return nil
	}

	s.logger.Debug("publishing diagnostics",
		zap.String("uri", string(doc.URI)),
		zap.Int("count", len(merged)),
	)
	if s.client == nil {
		return nil
	}

	params := &protocol.PublishDiagnosticsParams{
		URI:         doc.URI,
		Diagnostics: merged,
	}
	if doc.Version > 0 {
		params.Version = uint32(doc.Version)
	}
	if err := s.client.PublishDiagnostics(ctx, params); err != nil {
		return fmt.Errorf("failed to publish diagnostics: %w", err)
	}
	return nil
}

func (s *Server) isTemplate(u protocol.DocumentURI) bool {
	return s.config.IsTemplate(filenameOf(u))
}

// filenameOf returns the path of a file URI, or the URI itself for other
// schemes, which Filename would panic on.
func filenameOf(u protocol.DocumentURI) string {
	if !strings.HasPrefix(string(u), uri.FileScheme+"://") {
		return string(u)
	}
	return u.Filename()
}

func (s *Server) Handler() jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		s.logger.Debug("received request", zap.String("method", req.Method()))
		switch req.Method() {
		case protocol.MethodInitialize:
			var params protocol.InitializeParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return replyParseError(ctx, reply, err)
			}
			result, err := s.Initialize(ctx, &params)
			return reply(ctx, result, err)

		case protocol.MethodInitialized:
			var params protocol.InitializedParams
			if err := unmarshalOptional(req.Params(), &params); err != nil {
				return replyParseError(ctx, reply, err)
			}
			return reply(ctx, nil, s.Initialized(ctx, &params))

		case protocol.MethodShutdown:
			return reply(ctx, nil, s.Shutdown(ctx))

		case protocol.MethodExit:
			return reply(ctx, nil, s.Exit(ctx))

		case protocol.MethodTextDocumentDidOpen:
			var params protocol.DidOpenTextDocumentParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return replyParseError(ctx, reply, err)
			}
			return reply(ctx, nil, s.DidOpen(ctx, &params))

		case protocol.MethodTextDocumentDidChange:
			var params protocol.DidChangeTextDocumentParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return replyParseError(ctx, reply, err)
			}
			return reply(ctx, nil, s.DidChange(ctx, &params))

		case protocol.MethodTextDocumentDidClose:
			var params protocol.DidCloseTextDocumentParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return replyParseError(ctx, reply, err)
			}
			return reply(ctx, nil, s.DidClose(ctx, &params))

		case protocol.MethodTextDocumentCompletion:
			var params protocol.CompletionParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return replyParseError(ctx, reply, err)
			}
			result, err := s.Completion(ctx, &params)
			return reply(ctx, result, err)

		case protocol.MethodTextDocumentHover:
			var params protocol.HoverParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return replyParseError(ctx, reply, err)
			}
			result, err := s.Hover(ctx, &params)
			return reply(ctx, result, err)

		case protocol.MethodTextDocumentDefinition:
			var params protocol.DefinitionParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return replyParseError(ctx, reply, err)
			}
			result, err := s.Definition(ctx, &params)
			return reply(ctx, result, err)

		default:
			return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
		}
	}
}

func unmarshalOptional(data []byte, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}

func replyParseError(ctx context.Context, reply jsonrpc2.Replier, err error) error {
	return reply(ctx, nil, fmt.Errorf("%s: %w", jsonrpc2.ErrParse, err))
}
