package lsp

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/mcncl/blade-ls/internal/directives"
	"github.com/mcncl/blade-ls/internal/project"
)

var (
	hoverDirectiveRe = regexp.MustCompile(`@(\w+)`)
	hoverComponentRe = regexp.MustCompile(`</?((?:x-[\w.-]+(?:::[\w.-]+)?)|(?:[\w]+:[\w.-]+))`)
	viewCallRe       = regexp.MustCompile(`@(?:extends|include\w*|each|component)\s*\(|\bview\s*\(`)
	stringLiteralRe  = regexp.MustCompile(`'([^']*)'|"([^"]*)"`)
)

// span is a match on a single line, in byte columns.
type span struct {
	text       string
	start, end int
}

// spanAt returns the submatch group of re whose range covers col.
func spanAt(re *regexp.Regexp, line string, col int, group int) (span, bool) {
	for _, m := range re.FindAllStringSubmatchIndex(line, -1) {
		if m[2*group] < 0 {
			continue
		}
		if col >= m[0] && col <= m[1] {
			return span{text: line[m[2*group]:m[2*group+1]], start: m[2*group], end: m[2*group+1]}, true
		}
	}
	return span{}, false
}

// stringAt returns the contents of the quoted string covering col.
func stringAt(line string, col int) (span, bool) {
	for _, m := range stringLiteralRe.FindAllStringSubmatchIndex(line, -1) {
		if col < m[0] || col > m[1] {
			continue
		}
		for g := 1; g <= 2; g++ {
			if m[2*g] >= 0 {
				return span{text: line[m[2*g]:m[2*g+1]], start: m[2*g], end: m[2*g+1]}, true
			}
		}
	}
	return span{}, false
}

func lineRange(line string, row uint32, s span) *protocol.Range {
	return &protocol.Range{
		Start: protocol.Position{Line: row, Character: utf16Column(line, uint32(s.start))},
		End:   protocol.Position{Line: row, Character: utf16Column(line, uint32(s.end))},
	}
}

// hoverAt describes the directive or component under the cursor.
func hoverAt(reg *directives.Registry, proj project.Context, line string, row uint32, col int) *protocol.Hover {
	if s, ok := spanAt(hoverDirectiveRe, line, col, 1); ok {
		if value, ok := directiveHover(reg, s.text); ok {
			return &protocol.Hover{
				Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: value},
				Range:    lineRange(line, row, span{text: s.text, start: s.start - 1, end: s.end}),
			}
		}
	}

	if s, ok := spanAt(hoverComponentRe, line, col, 1); ok {
		if c, found := proj.FindComponentByTag(s.text); found {
			return &protocol.Hover{
				Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: componentHover(c)},
				Range:    lineRange(line, row, s),
			}
		}
	}
	return nil
}

func directiveHover(reg *directives.Registry, name string) (string, bool) {
	if d, ok := reg.Find(name); ok {
		return directiveDocumentation(d), true
	}
	if opener, ok := reg.OpenerFor(name); ok {
		return fmt.Sprintf("**@%s**\n\nCloses `@%s`.", name, opener), true
	}
	return "", false
}

func componentHover(c project.Component) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**<%s>**", c.ResolvedTag())
	if c.Class != "" {
		fmt.Fprintf(&b, "\n\n`%s`", c.Class)
	}
	if len(c.Props) > 0 {
		b.WriteString("\n\n| Prop | Type | Default |\n|---|---|---|")
		for _, p := range c.Props {
			name := p.Name
			if p.Required {
				name += " *"
			}
			fmt.Fprintf(&b, "\n| `%s` | %s | %s |", name, p.Type, p.Default)
		}
	}
	return b.String()
}

// definitionAt resolves a view name or component tag under the cursor to the
// file that defines it. Relative manifest paths resolve against root.
func definitionAt(proj project.Context, root, line string, col int) []protocol.Location {
	var path string

	if s, ok := stringAt(line, col); ok && viewCallRe.MatchString(line[:s.start]) {
		if v, found := proj.FindView(s.text); found {
			path = v.Path
		}
	} else if s, ok := spanAt(hoverComponentRe, line, col, 1); ok {
		if c, found := proj.FindComponentByTag(s.text); found {
			path = c.Path
		}
	}

	if path == "" {
		return []protocol.Location{}
	}
	if !filepath.IsAbs(path) && root != "" {
		path = filepath.Join(root, path)
	}
	return []protocol.Location{{URI: uri.File(path)}}
}
