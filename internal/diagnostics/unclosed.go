package diagnostics

import (
	"fmt"
	"regexp"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/mcncl/blade-ls/internal/directives"
)

// DirectiveOccurrence is a block directive token found while scanning.
type DirectiveOccurrence struct {
	Name     string
	Line     int
	ColStart int
	ColEnd   int
}

var directiveTokenRe = regexp.MustCompile(`@(\w+)`)

var (
	// Directives that are self-contained when directly followed by arguments.
	inlineWhenParenthesized = map[string]bool{"php": true}
	// Directives that are self-contained when given a second argument.
	inlineWhenTwoArguments = map[string]bool{"section": true, "slot": true, "push": true, "prepend": true}
)

const (
	commentOpen  = "{{--"
	commentClose = "--}}"
)

// scanBlockDirectives collects opener and closer tokens in document order.
// Escaped @@ tokens, comment bodies and @verbatim contents are skipped, as are
// inline forms that need no closer.
func scanBlockDirectives(source string, reg *directives.Registry) []DirectiveOccurrence {
	var (
		occurrences []DirectiveOccurrence
		inComment   bool
		inVerbatim  bool
	)

	for lineNo, line := range strings.Split(source, "\n") {
		var masked string
		masked, inComment = maskComments(line, inComment)

		for _, m := range directiveTokenRe.FindAllStringSubmatchIndex(masked, -1) {
			start, end := m[0], m[1]
			name := masked[m[2]:m[3]]

			if directiveEscaped(masked, start) {
				continue
			}
			if inVerbatim {
				if name != "endverbatim" {
					continue
				}
				inVerbatim = false
			} else if name == "verbatim" {
				inVerbatim = true
			}

			_, isOpener := reg.CloserFor(name)
			_, isCloser := reg.OpenerFor(name)
			if !isOpener && !isCloser {
				continue
			}

			if isOpener {
				open := skipSpace(masked, end)
				parenthesized := open < len(masked) && masked[open] == '('
				if parenthesized && inlineWhenParenthesized[name] {
					continue
				}
				if parenthesized && inlineWhenTwoArguments[name] && hasSecondArgument(masked, open) {
					continue
				}
			}

			occurrences = append(occurrences, DirectiveOccurrence{
				Name:     name,
				Line:     lineNo,
				ColStart: start,
				ColEnd:   end,
			})
		}
	}

	return occurrences
}

// maskComments blanks out comment bodies on one line so their columns stay put.
func maskComments(line string, inComment bool) (string, bool) {
	if !inComment && !strings.Contains(line, commentOpen) {
		return line, false
	}

	b := []byte(line)
	i := 0
	for i < len(b) {
		if inComment {
			end := strings.Index(line[i:], commentClose)
			if end < 0 {
				blank(b[i:])
				return string(b), true
			}
			blank(b[i : i+end+len(commentClose)])
			i += end + len(commentClose)
			inComment = false
			continue
		}
		start := strings.Index(line[i:], commentOpen)
		if start < 0 {
			break
		}
		i += start
		inComment = true
	}
	return string(b), inComment
}

// maskCommentBodies applies maskComments to every line of source. Offsets are
// unchanged.
func maskCommentBodies(source string) string {
	if !strings.Contains(source, commentOpen) {
		return source
	}
	lines := strings.Split(source, "\n")
	inComment := false
	for i, line := range lines {
		lines[i], inComment = maskComments(line, inComment)
	}
	return strings.Join(lines, "\n")
}

// directiveEscaped reports whether the "@" at index at is not a directive:
// either escaped as "@@" or part of a word such as an email address.
func directiveEscaped(s string, at int) bool {
	return at > 0 && (s[at-1] == '@' || isWordByte(s[at-1]))
}

func blank(b []byte) {
	for i := range b {
		b[i] = ' '
	}
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

type openDirective struct {
	occurrence DirectiveOccurrence
	closer     string
}

// matchBlockDirectives pairs openers with closers. A closer removes the nearest
// open entry it terminates, which need not be the top of the stack.
// A clause directive whose parent is on top of the stack is skipped.
func matchBlockDirectives(occurrences []DirectiveOccurrence, reg *directives.Registry) []protocol.Diagnostic {
	var (
		out   []protocol.Diagnostic
		stack []openDirective
	)

	for _, occ := range occurrences {
		if closer, ok := reg.CloserFor(occ.Name); ok {
			if parent, ok := reg.ClauseParent(occ.Name); ok && len(stack) > 0 && stack[len(stack)-1].occurrence.Name == parent {
				continue
			}
			stack = append(stack, openDirective{occurrence: occ, closer: closer})
			continue
		}

		opener, ok := reg.OpenerFor(occ.Name)
		if !ok {
			continue
		}
		matched := false
		for i := len(stack) - 1; i >= 0; i-- {
			if reg.Closes(stack[i].occurrence.Name, occ.Name) {
				stack = append(stack[:i], stack[i+1:]...)
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, newDiagnostic(occurrenceRange(occ), protocol.DiagnosticSeverityError, CodeUnexpectedDirective,
				fmt.Sprintf("Unexpected @%s without a matching @%s", occ.Name, opener)))
		}
	}

	for _, open := range stack {
		out = append(out, newDiagnostic(occurrenceRange(open.occurrence), protocol.DiagnosticSeverityError, CodeUnclosedDirective,
			fmt.Sprintf("@%s is missing its closing @%s", open.occurrence.Name, open.closer)))
	}

	return out
}

func occurrenceRange(occ DirectiveOccurrence) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: uint32(occ.Line), Character: uint32(occ.ColStart)},
		End:   protocol.Position{Line: uint32(occ.Line), Character: uint32(occ.ColEnd)},
	}
}
