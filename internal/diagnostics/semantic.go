package diagnostics

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/mcncl/blade-ls/internal/directives"
	"github.com/mcncl/blade-ls/internal/parser"
	"github.com/mcncl/blade-ls/internal/project"
	"github.com/mcncl/blade-ls/internal/syntax"
)

var (
	// Directives whose first argument is a view name.
	viewDirectiveRe = regexp.MustCompile(`@(extends|include|each|component)\s*\(`)
	// Directives whose second argument is a view name.
	conditionalViewDirectiveRe = regexp.MustCompile(`@(includeWhen|includeUnless)\s*\(`)
	viewHelperRe               = regexp.MustCompile(`(?:^|[^\w>$:])(view)\s*\(`)

	componentTagRe = regexp.MustCompile(`<(?:(x-[\w.-]+(?:::[\w.-]+)?)|([\w]+:[\w.-]+))`)
	methodRe       = regexp.MustCompile(`@method\s*\(\s*(?:'([^']*)'|"([^"]*)")`)
)

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true, "OPTIONS": true, "HEAD": true,
}

const livewirePrefix = "livewire:"

// Analyzer runs the semantic checks over a template
type Analyzer struct {
	directives *directives.Registry
	project    project.Context
	logger     *zap.Logger
}

// NewAnalyzer creates an analyzer. A nil registry uses the embedded directive
// catalogue and a nil project context disables reference checks.
func NewAnalyzer(reg *directives.Registry, ctx project.Context, logger *zap.Logger) *Analyzer {
	if reg == nil {
		reg = directives.Default()
	}
	if ctx == nil {
		ctx = project.Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{directives: reg, project: ctx, logger: logger}
}

// Analyze runs every semantic check. The tree is optional; checks that can use
// it fall back to the source text without one.
func (a *Analyzer) Analyze(source string, tree syntax.Tree) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	checks := []struct {
		name string
		run  func() []protocol.Diagnostic
	}{
		{"undefined-views", func() []protocol.Diagnostic { return a.UndefinedViewDiagnostics(source) }},
		{"undefined-components", func() []protocol.Diagnostic { return a.UndefinedComponentDiagnostics(source, tree) }},
		{"unclosed-directives", func() []protocol.Diagnostic { return a.UnclosedDirectiveDiagnostics(source) }},
		{"invalid-methods", func() []protocol.Diagnostic { return a.InvalidMethodDiagnostics(source) }},
	}
	for _, check := range checks {
		diagnostics = append(diagnostics, a.safely(check.name, check.run)...)
	}
	return diagnostics
}

func (a *Analyzer) safely(name string, run func() []protocol.Diagnostic) (out []protocol.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("semantic check panicked", zap.String("check", name), zap.Any("panic", r))
			out = nil
		}
	}()
	return run()
}

// UndefinedViewDiagnostics flags literal view names that the project does not define.
func (a *Analyzer) UndefinedViewDiagnostics(source string) []protocol.Diagnostic {
	if !a.project.Available() {
		return nil
	}

	lines := newLineIndex(source)
	masked := maskCommentBodies(source)
	var out []protocol.Diagnostic
	check := func(open, argument int) {
		args := scanArguments(masked, open)
		if argument >= len(args) {
			return
		}
		name, offset, ok := stringLiteral(masked, args[argument])
		if !ok || name == "" || strings.Contains(name, "$") {
			return
		}
		if _, found := a.project.FindView(name); found {
			return
		}
		out = append(out, newDiagnostic(lines.span(offset, offset+len(name)), protocol.DiagnosticSeverityError,
			CodeUndefinedView, fmt.Sprintf("View '%s' not found", name)))
	}

	for _, m := range viewDirectiveRe.FindAllStringIndex(masked, -1) {
		if !directiveEscaped(masked, m[0]) {
			check(m[1]-1, 0)
		}
	}
	for _, m := range conditionalViewDirectiveRe.FindAllStringIndex(masked, -1) {
		if !directiveEscaped(masked, m[0]) {
			check(m[1]-1, 1)
		}
	}
	for _, m := range viewHelperRe.FindAllStringIndex(masked, -1) {
		check(m[1]-1, 0)
	}

	sortByPosition(out)
	return out
}

// UndefinedComponentDiagnostics flags component tags the project does not define.
func (a *Analyzer) UndefinedComponentDiagnostics(source string, tree syntax.Tree) []protocol.Diagnostic {
	if !a.project.Available() {
		return nil
	}

	var refs []parser.ComponentReference
	if syntax.Root(tree) != nil {
		refs = parser.GetAllComponentReferences(tree)
	} else {
		refs = componentReferencesFromText(source)
	}

	var out []protocol.Diagnostic
	for _, ref := range refs {
		if !parser.IsComponentTagName(ref.TagName) || a.componentExists(ref.TagName) {
			continue
		}
		message := fmt.Sprintf("Component <%s> not found", ref.TagName)
		if name, ok := strings.CutPrefix(ref.TagName, livewirePrefix); ok {
			message = fmt.Sprintf("Livewire component '%s' not found", name)
		}
		out = append(out, newDiagnostic(protocol.Range{
			Start: protocol.Position{Line: ref.Range.Start.Row, Character: ref.Range.Start.Column},
			End:   protocol.Position{Line: ref.Range.End.Row, Character: ref.Range.End.Column},
		}, protocol.DiagnosticSeverityWarning, CodeUndefinedComponent, message))
	}
	return out
}

func (a *Analyzer) componentExists(tag string) bool {
	if name, ok := strings.CutPrefix(tag, livewirePrefix); ok {
		_, found := a.project.FindView("livewire." + name)
		return found
	}
	if _, found := a.project.FindComponentByTag(tag); found {
		return true
	}
	if _, found := a.project.FindComponent(tag); found {
		return true
	}
	_, found := a.project.FindComponent(strings.TrimPrefix(tag, "x-"))
	return found
}

func componentReferencesFromText(source string) []parser.ComponentReference {
	var refs []parser.ComponentReference
	for _, m := range componentTagRe.FindAllStringSubmatchIndex(source, -1) {
		start, end := m[2], m[3]
		if start < 0 {
			start, end = m[4], m[5]
		}
		refs = append(refs, parser.ComponentReference{
			TagName: source[start:end],
			Range:   syntax.Range{Start: syntax.PointAt(source, start), End: syntax.PointAt(source, end)},
		})
	}
	return refs
}

// UnclosedDirectiveDiagnostics reports block directives without a closer and
// closers without an opener.
func (a *Analyzer) UnclosedDirectiveDiagnostics(source string) []protocol.Diagnostic {
	return matchBlockDirectives(scanBlockDirectives(source, a.directives), a.directives)
}

// InvalidMethodDiagnostics flags @method arguments that are not HTTP verbs.
func (a *Analyzer) InvalidMethodDiagnostics(source string) []protocol.Diagnostic {
	lines := newLineIndex(source)
	masked := maskCommentBodies(source)
	var out []protocol.Diagnostic
	for _, m := range methodRe.FindAllStringSubmatchIndex(masked, -1) {
		if directiveEscaped(masked, m[0]) {
			continue
		}
		start, end := m[2], m[3]
		if start < 0 {
			start, end = m[4], m[5]
		}
		method := masked[start:end]
		if httpMethods[strings.ToUpper(method)] {
			continue
		}
		out = append(out, newDiagnostic(lines.span(start, end), protocol.DiagnosticSeverityError, CodeInvalidMethod,
			fmt.Sprintf("'%s' is not a valid HTTP method; use GET, POST, PUT, PATCH, DELETE, OPTIONS or HEAD", method)))
	}
	return out
}

func sortByPosition(diags []protocol.Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i].Range.Start, diags[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Character < b.Character
	})
}
