package diagnostics

import (
	"fmt"
	"regexp"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/mcncl/blade-ls/internal/directives"
	"github.com/mcncl/blade-ls/internal/parser"
	"github.com/mcncl/blade-ls/internal/syntax"
)

const (
	nodeError          = parser.NodeError
	nodeDirectiveStart = "directive_start"
)

// suppression reports whether an ERROR node is a known grammar false positive.
// Every suppression is a pure function of the node, so their order only
// affects short-circuiting.
type suppression func(n syntax.Node, known *directives.Registry) bool

var suppressions = []suppression{
	isQuotedAttributeArtifact,
	isContainerQueryArtifact,
	isInlineAttributeConditional,
	isUnknownDirectiveToken,
}

// CollectSyntaxErrors reports missing nodes and the ERROR nodes that are not
// known false positives, checking directive names against the embedded catalogue.
func CollectSyntaxErrors(tree syntax.Tree) []DiagnosticInfo {
	return collectSyntaxErrors(tree, directives.Default())
}

func collectSyntaxErrors(tree syntax.Tree, known *directives.Registry) []DiagnosticInfo {
	root := syntax.Root(tree)
	if root == nil || !root.HasError() {
		return nil
	}

	var out []DiagnosticInfo
	seen := make(map[string]bool)
	report := func(n syntax.Node, message, code string) {
		key := fmt.Sprintf("%s:%d:%d:%d:%d", n.Type(), n.StartPoint().Row, n.StartPoint().Column, n.EndPoint().Row, n.EndPoint().Column)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, DiagnosticInfo{
			Message:  message,
			Start:    n.StartPoint(),
			End:      n.EndPoint(),
			Severity: protocol.DiagnosticSeverityError,
			Code:     code,
		})
	}

	syntax.Walk(root, func(n syntax.Node) bool {
		if n.IsMissing() {
			report(n, "Missing "+n.Type(), CodeMissingNode)
			return false
		}
		if !n.HasError() {
			return false
		}
		if n.Type() == nodeError && !suppressed(n, known) {
			report(n, "Syntax error", CodeSyntaxError)
		}
		return true
	})

	return out
}

func suppressed(n syntax.Node, known *directives.Registry) bool {
	for _, s := range suppressions {
		if s(n, known) {
			return true
		}
	}
	return false
}

// isQuotedAttributeArtifact matches errors caused by "@" inside a quoted
// attribute value being read as a directive start.
func isQuotedAttributeArtifact(n syntax.Node, _ *directives.Registry) bool {
	if quotedAttributeError(n) {
		return true
	}
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == nodeError && quotedAttributeError(p) {
			return true
		}
	}
	return false
}

func quotedAttributeError(n syntax.Node) bool {
	if syntax.Ancestor(n.Parent(), parser.NodeQuotedAttrValue) != nil {
		return true
	}

	var tagName, attrShape, attrValue bool
	syntax.Walk(n, func(c syntax.Node) bool {
		switch c.Type() {
		case parser.NodeTagName:
			tagName = true
		case parser.NodeAttributeName, parser.NodeAttribute, "=":
			attrShape = true
		case parser.NodeAttributeValue, parser.NodeQuotedAttrValue, `"`, "'":
			attrValue = true
		}
		return true
	})
	return tagName && attrShape && attrValue
}

var containerQueryTokens = map[string]bool{
	"@3xs": true, "@2xs": true, "@xs": true, "@sm": true, "@md": true, "@lg": true, "@xl": true,
	"@2xl": true, "@3xl": true, "@4xl": true, "@5xl": true, "@6xl": true, "@7xl": true,
}

func isContainerQueryName(name string) bool {
	token, _, found := strings.Cut(name, ":")
	return found && containerQueryTokens[token]
}

// isContainerQueryArtifact matches errors caused by Tailwind container query
// variants such as "@lg:flex", which look like directives to the grammar.
func isContainerQueryArtifact(n syntax.Node, _ *directives.Registry) bool {
	text := strings.TrimSpace(n.Text())
	if text == `"` || text == "'" {
		for _, sibling := range adjacentSiblings(n) {
			if isContainerQueryName(attributeNameOf(sibling)) {
				return true
			}
		}
	}

	start := firstDescendant(n, nodeDirectiveStart)
	if start == nil {
		return false
	}
	token := strings.TrimSuffix(strings.TrimSpace(start.Text()), ":")
	if !containerQueryTokens[token] {
		return false
	}
	tag := enclosingTag(n)
	if tag == nil {
		return false
	}
	for _, attr := range tagAttributes(tag) {
		if attributeNameOf(attr) == "class" {
			return true
		}
	}
	return false
}

var (
	endDirectiveRe = regexp.MustCompile(`@end\w+`)
	punctuationRe  = regexp.MustCompile(`^[\s\p{P}\p{S}]*$`)
)

// isInlineAttributeConditional matches errors caused by directives written in
// a tag's attribute list, as in <div @if($x) class="a" @endif>.
func isInlineAttributeConditional(n syntax.Node, _ *directives.Registry) bool {
	tag := enclosingTag(n)
	if tag == nil {
		return false
	}

	var opener string
	var closed bool
	for _, attr := range tagAttributes(tag) {
		name := attributeNameOf(attr)
		switch {
		case strings.HasPrefix(name, "@end"):
			closed = true
		case strings.HasPrefix(name, "@") && opener == "":
			opener = name
		}
	}
	if opener == "" {
		return false
	}
	if !closed {
		closed = siblingElementCloses(n, tag)
	}
	if !closed {
		return false
	}

	if punctuationRe.MatchString(n.Text()) {
		return true
	}
	prev := precedingAttribute(n)
	return prev != nil && attributeNameOf(prev) == opener
}

// siblingElementCloses reports whether an element next to the error, its tag or
// the tag's element contains an @end directive.
func siblingElementCloses(n, tag syntax.Node) bool {
	for _, scope := range []syntax.Node{parentOf(n), parentOf(tag), parentOf(parentOf(tag))} {
		for _, sibling := range syntax.Children(scope) {
			if sibling.Type() == parser.NodeElement && endDirectiveRe.MatchString(sibling.Text()) {
				return true
			}
		}
	}
	return false
}

// isUnknownDirectiveToken matches an ERROR wrapping a single directive start
// whose name is not a directive, e.g. an "@" in running text.
func isUnknownDirectiveToken(n syntax.Node, known *directives.Registry) bool {
	if n.ChildCount() != 1 {
		return false
	}
	child := n.Child(0)
	if child == nil || child.Type() != nodeDirectiveStart {
		return false
	}
	name := directiveNameRe.FindStringSubmatch(strings.TrimSpace(child.Text()))
	return name == nil || !known.IsKnown(name[1])
}

var directiveNameRe = regexp.MustCompile(`^@(\w+)`)

func parentOf(n syntax.Node) syntax.Node {
	if n == nil {
		return nil
	}
	return n.Parent()
}

// enclosingTag returns the start or self-closing tag around n. An ERROR that
// swallowed a tag is its own enclosing tag.
func enclosingTag(n syntax.Node) syntax.Node {
	if tag := syntax.Ancestor(n.Parent(), parser.NodeStartTag, parser.NodeSelfClosingTag); tag != nil {
		return tag
	}
	if syntax.FirstChildOfType(n, parser.NodeTagName) != nil {
		return n
	}
	if p := n.Parent(); p != nil && p.Type() == nodeError && syntax.FirstChildOfType(p, parser.NodeTagName) != nil {
		return p
	}
	return nil
}

// tagAttributes returns attribute-like nodes of a tag in order, without
// descending into nested elements.
func tagAttributes(tag syntax.Node) []syntax.Node {
	var attrs []syntax.Node
	syntax.Walk(tag, func(c syntax.Node) bool {
		switch c.Type() {
		case parser.NodeElement:
			return false
		case parser.NodeAttribute:
			attrs = append(attrs, c)
			return false
		case parser.NodeAttributeName:
			attrs = append(attrs, c)
			return false
		}
		return true
	})
	return attrs
}

func attributeNameOf(n syntax.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case parser.NodeAttributeName:
		return n.Text()
	case parser.NodeAttribute:
		if name := syntax.FirstChildOfType(n, parser.NodeAttributeName); name != nil {
			return name.Text()
		}
	}
	return ""
}

func adjacentSiblings(n syntax.Node) []syntax.Node {
	siblings := syntax.Children(parentOf(n))
	for i, s := range siblings {
		if !syntax.SameNode(s, n) {
			continue
		}
		var out []syntax.Node
		if i > 0 {
			out = append(out, siblings[i-1])
		}
		if i+1 < len(siblings) {
			out = append(out, siblings[i+1])
		}
		return out
	}
	return nil
}

func precedingAttribute(n syntax.Node) syntax.Node {
	var prev syntax.Node
	for _, s := range syntax.Children(parentOf(n)) {
		if syntax.SameNode(s, n) {
			return prev
		}
		if s.Type() == parser.NodeAttribute || s.Type() == parser.NodeAttributeName {
			prev = s
		}
	}
	return nil
}

func firstDescendant(n syntax.Node, typ string) syntax.Node {
	var found syntax.Node
	syntax.Walk(n, func(c syntax.Node) bool {
		if found != nil {
			return false
		}
		if c.Type() == typ {
			found = c
			return false
		}
		return true
	})
	return found
}
