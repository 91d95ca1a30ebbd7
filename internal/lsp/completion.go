package lsp

import (
	"fmt"
	"regexp"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/mcncl/blade-ls/internal/context"
	"github.com/mcncl/blade-ls/internal/directives"
	"github.com/mcncl/blade-ls/internal/parser"
	"github.com/mcncl/blade-ls/internal/project"
)

// Directives whose arguments name views.
var viewDirectives = map[string]bool{
	"extends":       true,
	"include":       true,
	"includeIf":     true,
	"includeWhen":   true,
	"includeUnless": true,
	"includeFirst":  true,
	"each":          true,
	"component":     true,
}

const livewireViewPrefix = "livewire."

// openTagRe matches a tag name being typed at the end of the line.
var openTagRe = regexp.MustCompile(`<([\w:.-]*)$`)

// CompletionProvider handles context-aware completion
type CompletionProvider struct {
	directives *directives.Registry
	project    project.Context
	analyzer   *context.Analyzer
	logger     *zap.Logger
}

// NewCompletionProvider creates a new completion provider
func NewCompletionProvider(reg *directives.Registry, proj project.Context, logger *zap.Logger) *CompletionProvider {
	if reg == nil {
		reg = directives.Default()
	}
	if proj == nil {
		proj = project.Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionProvider{
		directives: reg,
		project:    proj,
		analyzer:   context.NewAnalyzer(logger),
		logger:     logger,
	}
}

// GetContextAnalyzer returns the context analyzer for use by other components
func (cp *CompletionProvider) GetContextAnalyzer() *context.Analyzer {
	return cp.analyzer
}

// GetCompletions returns context-aware completions for the given position
func (cp *CompletionProvider) GetCompletions(posCtx *context.PositionContext) []protocol.CompletionItem {
	if posCtx == nil {
		cp.logger.Debug("completion requested without a position context")
		return []protocol.CompletionItem{}
	}

	info := cp.analyzer.AnalyzeContext(posCtx)

	switch info.Type {
	case context.ContextDirective:
		return cp.getDirectiveCompletions(info.Prefix)
	case context.ContextParameter:
		return cp.getParameterCompletions(info.DirectiveName)
	case context.ContextHTML:
		line := posCtx.CurrentLine
		if posCtx.CharIndex < len(line) {
			line = line[:posCtx.CharIndex]
		}
		if m := openTagRe.FindStringSubmatch(line); m != nil {
			return cp.getComponentCompletions(m[1])
		}
		if info.InComponentTag() {
			return cp.getPropCompletions(info.Component)
		}
	}
	return []protocol.CompletionItem{}
}

// getDirectiveCompletions lists directives starting with prefix. The "@" is
// already typed, so inserted text starts at the name.
func (cp *CompletionProvider) getDirectiveCompletions(prefix string) []protocol.CompletionItem {
	items := []protocol.CompletionItem{}
	for _, d := range cp.directives.WithPrefix(prefix) {
		item := protocol.CompletionItem{
			Label:         "@" + d.Name,
			Kind:          protocol.CompletionItemKindKeyword,
			Detail:        "Blade directive",
			FilterText:    d.Name,
			InsertText:    d.Name,
			Documentation: &protocol.MarkupContent{Kind: protocol.Markdown, Value: directiveDocumentation(d)},
		}
		if d.Snippet != "" {
			item.InsertText = d.Snippet
			item.InsertTextFormat = protocol.InsertTextFormatSnippet
		}
		items = append(items, item)
	}
	return items
}

func (cp *CompletionProvider) getParameterCompletions(directive string) []protocol.CompletionItem {
	items := []protocol.CompletionItem{}
	switch {
	case viewDirectives[directive]:
		for _, v := range cp.project.Views() {
			items = append(items, viewItem(v))
		}
	case directive == "livewire":
		for _, v := range cp.project.Views() {
			if name, ok := strings.CutPrefix(v.Name, livewireViewPrefix); ok {
				items = append(items, protocol.CompletionItem{
					Label:  name,
					Kind:   protocol.CompletionItemKindClass,
					Detail: "Livewire component",
				})
			}
		}
	}
	return items
}

func viewItem(v project.View) protocol.CompletionItem {
	item := protocol.CompletionItem{
		Label:  v.Name,
		Kind:   protocol.CompletionItemKindFile,
		Detail: "View",
	}
	if v.Path != "" {
		item.Documentation = &protocol.MarkupContent{Kind: protocol.Markdown, Value: "`" + v.Path + "`"}
	}
	return item
}

// getPropCompletions offers the component's props that are not on the tag yet.
func (cp *CompletionProvider) getPropCompletions(tag *parser.ComponentTagContext) []protocol.CompletionItem {
	items := []protocol.CompletionItem{}
	component, ok := cp.project.FindComponentByTag(tag.TagName)
	if !ok {
		return items
	}

	for _, prop := range component.Props {
		if tag.HasProp(prop.Name) {
			continue
		}
		detail := prop.Type
		if detail == "" {
			detail = "mixed"
		}
		if prop.Required {
			detail += " (required)"
		}
		item := protocol.CompletionItem{
			Label:            prop.Name,
			Kind:             protocol.CompletionItemKindProperty,
			Detail:           detail,
			InsertText:       fmt.Sprintf(`%s="$1"`, prop.Name),
			InsertTextFormat: protocol.InsertTextFormatSnippet,
		}
		if prop.Default != "" {
			item.Documentation = &protocol.MarkupContent{Kind: protocol.Markdown, Value: "Default: `" + prop.Default + "`"}
		}
		items = append(items, item)
	}
	return items
}

func (cp *CompletionProvider) getComponentCompletions(prefix string) []protocol.CompletionItem {
	items := []protocol.CompletionItem{}
	for _, c := range cp.project.Components() {
		tag := c.ResolvedTag()
		if !strings.HasPrefix(tag, prefix) {
			continue
		}
		items = append(items, protocol.CompletionItem{
			Label:  tag,
			Kind:   protocol.CompletionItemKindClass,
			Detail: c.Class,
		})
	}
	return items
}

func directiveDocumentation(d directives.Directive) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**@%s**", d.Name)
	if d.Description != "" {
		b.WriteString("\n\n" + d.Description)
	}
	if d.HasEndTag && d.EndTag != "" {
		fmt.Fprintf(&b, "\n\nClosed by `@%s`.", d.EndTag)
	}
	if d.Parent != "" {
		fmt.Fprintf(&b, "\n\nUsed inside `@%s`.", d.Parent)
	}
	return b.String()
}
