package context

import (
	"regexp"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/mcncl/blade-ls/internal/parser"
	"github.com/mcncl/blade-ls/internal/syntax"
)

// CompletionContext represents the type of completion context at a cursor position
type CompletionContext int

const (
	ContextHTML      CompletionContext = iota // Plain markup, the default
	ContextDirective                          // Typing an @directive name
	ContextEcho                               // Inside {{ }} / {!! !!} or another PHP-only region
	ContextParameter                          // Inside a directive's parenthesized arguments
	ContextComment                            // Inside {{-- --}}
	ContextPHP                                // Inside an @php block
)

func (c CompletionContext) String() string {
	switch c {
	case ContextDirective:
		return "directive"
	case ContextEcho:
		return "echo"
	case ContextParameter:
		return "parameter"
	case ContextComment:
		return "comment"
	case ContextPHP:
		return "php"
	default:
		return "html"
	}
}

// Node types of the Blade layer of the grammar.
const (
	nodeComment        = "comment"
	nodeParameter      = "parameter"
	nodePHPStatement   = "php_statement"
	nodePHPOnly        = "php_only"
	nodeDirective      = "directive"
	nodeDirectiveStart = "directive_start"

	commentQuery   = "(comment) @comment"
	parameterQuery = "(parameter) @parameter"
	phpQuery       = "[(php_statement) (php_only)] @php"
	nameTokenQuery = "[(directive_start) (directive)] @name"
)

var (
	directivePrefixRe = regexp.MustCompile(`(?:^|[^\w@])@(\w*)$`)
	directiveOpenRe   = regexp.MustCompile(`@(\w+)\s*\(`)
	directiveNameRe   = regexp.MustCompile(`^@(\w+)`)
)

// ContextInfo provides detailed information about the completion context
type ContextInfo struct {
	Type CompletionContext
	// Prefix is the partially typed directive name for ContextDirective.
	Prefix string
	// DirectiveName is the directive owning the argument list for ContextParameter.
	DirectiveName string
	// Range covers the node the context was resolved from, when there is one.
	Range *syntax.Range

	// Component is the component tag the cursor is inside of, for ContextHTML.
	Component *parser.ComponentTagContext
	// ParentComponent is the innermost enclosing component element, for ContextHTML.
	ParentComponent string
}

// GetCompletionContext resolves what the cursor at (row, col) is inside of.
// Structural queries are preferred; any query failure falls back to walking
// the tree. It never panics and defaults to ContextHTML.
func GetCompletionContext(tree syntax.Tree, source string, row, col uint32) ContextInfo {
	line := parser.LineAt(source, int(row))
	if int(col) < len(line) {
		line = line[:col]
	}

	// Directive names are typed incrementally and are rarely valid grammar yet,
	// so this is decided on the raw line text.
	if m := directivePrefixRe.FindStringSubmatch(line); m != nil {
		return ContextInfo{Type: ContextDirective, Prefix: m[1]}
	}

	pos := syntax.Point{Row: row, Column: col}
	if syntax.Root(tree) != nil {
		if n := narrowestAt(tree, commentQuery, pos, nodeComment); n != nil {
			return ContextInfo{Type: ContextComment, Range: rangeOf(n)}
		}
		if n := narrowestAt(tree, parameterQuery, pos, nodeParameter); n != nil {
			return ContextInfo{Type: ContextParameter, DirectiveName: owningDirective(tree, n), Range: rangeOf(n)}
		}
		if n := narrowestAt(tree, phpQuery, pos, nodePHPStatement, nodePHPOnly); n != nil {
			if isPHPBlock(n) {
				return ContextInfo{Type: ContextPHP, Range: rangeOf(n)}
			}
			return ContextInfo{Type: ContextEcho, Range: rangeOf(n)}
		}
	}

	if name, ok := openArgumentList(line); ok {
		return ContextInfo{Type: ContextParameter, DirectiveName: name}
	}

	return ContextInfo{Type: ContextHTML}
}

// narrowestAt returns the narrowest node of one of types containing pos.
func narrowestAt(tree syntax.Tree, query string, pos syntax.Point, types ...string) syntax.Node {
	captures, err := syntax.Query(tree, query, nil)
	if err != nil {
		return syntax.Ancestor(syntax.DescendantForPoint(tree.RootNode(), pos), types...)
	}

	var best syntax.Node
	for _, c := range captures {
		if !hasType(c.Node, types) {
			continue
		}
		r := syntax.NodeRange(c.Node)
		if !r.Contains(pos) {
			continue
		}
		if best == nil || r.NarrowerThan(syntax.NodeRange(best)) {
			best = c.Node
		}
	}
	return best
}

func hasType(n syntax.Node, types []string) bool {
	for _, t := range types {
		if n.Type() == t {
			return true
		}
	}
	return false
}

func rangeOf(n syntax.Node) *syntax.Range {
	r := syntax.NodeRange(n)
	return &r
}

// isPHPBlock reports whether a PHP region was opened by @php rather than an echo.
func isPHPBlock(n syntax.Node) bool {
	if n.Type() != nodePHPStatement {
		n = syntax.Ancestor(n, nodePHPStatement)
		if n == nil {
			return false
		}
	}
	start := syntax.FirstChildOfType(n, nodeDirectiveStart)
	return start != nil && strings.TrimSpace(start.Text()) == "@php"
}

// owningDirective finds the nearest name token before param, searching the
// parameter's parent first and widening one ancestor at a time.
func owningDirective(tree syntax.Tree, param syntax.Node) string {
	start := param.StartPoint()
	for scope := param.Parent(); scope != nil; scope = scope.Parent() {
		if name := nameTokenBefore(tree, scope, start); name != "" {
			return name
		}
	}
	return ""
}

func nameTokenBefore(tree syntax.Tree, scope syntax.Node, before syntax.Point) string {
	var candidates []syntax.Node
	if captures, err := syntax.Query(tree, nameTokenQuery, scope); err == nil {
		for _, c := range captures {
			candidates = append(candidates, c.Node)
		}
	} else {
		for _, child := range syntax.Children(scope) {
			if child.Type() == nodeDirectiveStart || child.Type() == nodeDirective {
				candidates = append(candidates, child)
			}
		}
	}

	var best syntax.Node
	for _, n := range candidates {
		if n.EndPoint().After(before) {
			continue
		}
		if best == nil || n.StartPoint().After(best.StartPoint()) {
			best = n
		}
	}
	if best == nil {
		return ""
	}
	if m := directiveNameRe.FindStringSubmatch(strings.TrimSpace(best.Text())); m != nil {
		return m[1]
	}
	return ""
}

// openArgumentList reports whether the line ends inside a directive's argument
// list that has not been closed yet, returning the directive name.
func openArgumentList(line string) (string, bool) {
	matches := directiveOpenRe.FindAllStringSubmatchIndex(line, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if unbalanced(line[m[1]:]) {
			return line[m[2]:m[3]], true
		}
	}
	return "", false
}

// unbalanced reports whether text leaves the already opened parenthesis open.
func unbalanced(text string) bool {
	depth := 0
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return false
			}
			depth--
		}
	}
	return true
}

// Analyzer resolves completion contexts for the LSP layer
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer creates a new context analyzer
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger}
}

// PositionContext provides context information about a cursor position
type PositionContext struct {
	URI         protocol.DocumentURI
	Position    protocol.Position
	CurrentLine string
	// CharIndex is the cursor's byte column within CurrentLine.
	CharIndex   int
	FullContent string
	Tree        syntax.Tree
}

// AnalyzeContext determines the completion context at the given position
func (a *Analyzer) AnalyzeContext(posCtx *PositionContext) *ContextInfo {
	if posCtx == nil {
		return &ContextInfo{Type: ContextHTML}
	}

	row := posCtx.Position.Line
	col := uint32(posCtx.CharIndex)

	info := GetCompletionContext(posCtx.Tree, posCtx.FullContent, row, col)
	if info.Type == ContextHTML && posCtx.Tree != nil {
		info.Component = parser.GetComponentTagContext(posCtx.Tree, row, col)
		info.ParentComponent = parser.FindParentComponentFromTree(posCtx.Tree, row, col)
	}

	a.logger.Debug("resolved completion context",
		zap.String("uri", string(posCtx.URI)),
		zap.Uint32("line", row),
		zap.Uint32("column", col),
		zap.Stringer("context", info.Type),
		zap.String("directive", info.DirectiveName),
	)
	return &info
}

// IsDirective checks if the cursor is typing a directive name
func (info *ContextInfo) IsDirective() bool {
	return info.Type == ContextDirective
}

// IsParameter checks if the cursor is inside directive arguments
func (info *ContextInfo) IsParameter() bool {
	return info.Type == ContextParameter
}

// InComponentTag checks if the cursor is inside a component's start tag
func (info *ContextInfo) InComponentTag() bool {
	return info.Component != nil
}
