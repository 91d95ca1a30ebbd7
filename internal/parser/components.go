package parser

import (
	"regexp"
	"strings"

	"github.com/mcncl/blade-ls/internal/syntax"
)

// Node types of the HTML layer of the Blade grammar.
const (
	NodeElement          = "element"
	NodeStartTag         = "start_tag"
	NodeEndTag           = "end_tag"
	NodeSelfClosingTag   = "self_closing_tag"
	NodeTagName          = "tag_name"
	NodeAttribute        = "attribute"
	NodeAttributeName    = "attribute_name"
	NodeAttributeValue   = "attribute_value"
	NodeQuotedAttrValue  = "quoted_attribute_value"
	NodeError            = "ERROR"
	tagNameQuery         = "(tag_name) @tag"
	componentTagQuery    = "[(start_tag) (self_closing_tag)] @tag"
	slotTagName          = "x-slot"
	slotTagNamespacedPfx = "x-slot:"
)

var namespacedTagRe = regexp.MustCompile(`^[\w]+:[\w.-]+$`)

// IsComponentTagName reports whether name refers to a component: an x- tag or
// a namespace-prefixed tag such as flux:button. Slot tags are not components.
func IsComponentTagName(name string) bool {
	if name == slotTagName || strings.HasPrefix(name, slotTagNamespacedPfx) {
		return false
	}
	return strings.HasPrefix(name, "x-") || namespacedTagRe.MatchString(name)
}

// GetTagName returns the tag_name child text of a start, end or self-closing tag.
func GetTagName(tag syntax.Node) string {
	if tag == nil {
		return ""
	}
	if name := syntax.FirstChildOfType(tag, NodeTagName); name != nil {
		return name.Text()
	}
	return ""
}

// GetAttributeNames returns the attribute names of a tag. Bound props keep their
// name without the leading ":".
func GetAttributeNames(tag syntax.Node) []string {
	var names []string
	for _, child := range syntax.Children(tag) {
		if child.Type() != NodeAttribute {
			continue
		}
		if name := syntax.FirstChildOfType(child, NodeAttributeName); name != nil {
			names = append(names, strings.TrimPrefix(name.Text(), ":"))
		}
	}
	return names
}

// componentTag returns the start or self-closing tag of an element, or the node
// itself when it already is a tag.
func componentTag(n syntax.Node) syntax.Node {
	switch n.Type() {
	case NodeStartTag, NodeSelfClosingTag:
		return n
	case NodeElement:
		return syntax.FirstChildOfType(n, NodeStartTag, NodeSelfClosingTag)
	}
	return nil
}

// componentSpan returns the span a component tag encloses: the whole element
// for a start tag, the tag itself when self-closing.
func componentSpan(tag syntax.Node) syntax.Node {
	if tag.Type() == NodeStartTag {
		if parent := tag.Parent(); parent != nil && parent.Type() == NodeElement {
			return parent
		}
	}
	return tag
}

// FindParentComponentFromTree returns the tag name of the innermost component
// enclosing the position, or "" when there is none.
func FindParentComponentFromTree(tree syntax.Tree, row, col uint32) string {
	root := syntax.Root(tree)
	if root == nil {
		return ""
	}
	pos := syntax.Point{Row: row, Column: col}

	if captures, err := syntax.Query(tree, tagNameQuery, nil); err == nil {
		var (
			best      string
			bestRange syntax.Range
			found     bool
		)
		for _, c := range captures {
			tag := c.Node.Parent()
			if tag == nil || (tag.Type() != NodeStartTag && tag.Type() != NodeSelfClosingTag) {
				continue
			}
			name := c.Node.Text()
			if !IsComponentTagName(name) {
				continue
			}
			span := syntax.NodeRange(componentSpan(tag))
			if !span.Contains(pos) {
				continue
			}
			if !found || span.NarrowerThan(bestRange) {
				best, bestRange, found = name, span, true
			}
		}
		return best
	}

	for n := syntax.DescendantForPoint(root, pos); n != nil; n = n.Parent() {
		if n.Type() != NodeElement && n.Type() != NodeSelfClosingTag {
			continue
		}
		if name := GetTagName(componentTag(n)); IsComponentTagName(name) {
			return name
		}
	}
	return ""
}

// ComponentTagContext describes the component tag the cursor is inside of.
type ComponentTagContext struct {
	TagName string
	// ExistingProps are the attribute names already present on the tag.
	ExistingProps []string
	Range         syntax.Range
	SelfClosing   bool
}

// HasProp reports whether the tag already carries the named prop.
func (c *ComponentTagContext) HasProp(name string) bool {
	for _, p := range c.ExistingProps {
		if p == name {
			return true
		}
	}
	return false
}

// GetComponentTagContext returns the component start or self-closing tag that
// contains the position, or nil when the cursor is not inside one.
func GetComponentTagContext(tree syntax.Tree, row, col uint32) *ComponentTagContext {
	root := syntax.Root(tree)
	if root == nil {
		return nil
	}
	pos := syntax.Point{Row: row, Column: col}

	if captures, err := syntax.Query(tree, componentTagQuery, nil); err == nil {
		var best syntax.Node
		for _, c := range captures {
			if !IsComponentTagName(GetTagName(c.Node)) {
				continue
			}
			span := syntax.NodeRange(c.Node)
			if !span.Contains(pos) {
				continue
			}
			if best == nil || span.NarrowerThan(syntax.NodeRange(best)) {
				best = c.Node
			}
		}
		return newComponentTagContext(best)
	}

	for n := syntax.DescendantForPoint(root, pos); n != nil; n = n.Parent() {
		switch n.Type() {
		case NodeStartTag, NodeSelfClosingTag:
			if IsComponentTagName(GetTagName(n)) {
				return newComponentTagContext(n)
			}
			return nil
		case NodeElement:
			return nil
		}
	}
	return nil
}

func newComponentTagContext(tag syntax.Node) *ComponentTagContext {
	if tag == nil {
		return nil
	}
	props := GetAttributeNames(tag)
	if props == nil {
		props = []string{}
	}
	return &ComponentTagContext{
		TagName:       GetTagName(tag),
		ExistingProps: props,
		Range:         syntax.NodeRange(tag),
		SelfClosing:   tag.Type() == NodeSelfClosingTag,
	}
}

// ComponentReference is one component tag occurrence in a document.
type ComponentReference struct {
	TagName string
	// Range covers the tag name.
	Range syntax.Range
}

// GetAllComponentReferences lists every component tag in document order.
func GetAllComponentReferences(tree syntax.Tree) []ComponentReference {
	root := syntax.Root(tree)
	if root == nil {
		return nil
	}

	var refs []ComponentReference
	add := func(nameNode syntax.Node) {
		tag := nameNode.Parent()
		if tag == nil || (tag.Type() != NodeStartTag && tag.Type() != NodeSelfClosingTag) {
			return
		}
		if name := nameNode.Text(); IsComponentTagName(name) {
			refs = append(refs, ComponentReference{TagName: name, Range: syntax.NodeRange(nameNode)})
		}
	}

	if captures, err := syntax.Query(tree, tagNameQuery, nil); err == nil {
		for _, c := range captures {
			add(c.Node)
		}
		return refs
	}

	syntax.Walk(root, func(n syntax.Node) bool {
		if n.Type() == NodeTagName {
			add(n)
			return false
		}
		return true
	})
	return refs
}
