package diagnostics

import "strings"

// argSpan is the byte span of one top-level argument.
type argSpan struct {
	start, end int
}

// scanArguments splits the argument list whose "(" is at text[open] into
// top-level arguments. Depth rises on ( and [ and falls on ) and ], and
// nothing is counted inside '...' or "..." strings. An unterminated list
// runs to the end of text.
func scanArguments(text string, open int) []argSpan {
	if open >= len(text) || text[open] != '(' {
		return nil
	}

	var args []argSpan
	start := open + 1
	depth := 0
	var quote byte
	for i := start; i < len(text); i++ {
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
		case '(', '[':
			depth++
		case ')', ']':
			if depth == 0 {
				return append(args, argSpan{start, i})
			}
			depth--
		case ',':
			if depth == 0 {
				args = append(args, argSpan{start, i})
				start = i + 1
			}
		}
	}
	return append(args, argSpan{start, len(text)})
}

// hasSecondArgument reports whether the argument list opening at text[open]
// has a comma at nesting depth zero.
func hasSecondArgument(text string, open int) bool {
	return len(scanArguments(text, open)) > 1
}

// stringLiteral returns the contents and absolute offset of a quoted literal
// argument. Arguments that are not a single plain literal are rejected.
func stringLiteral(text string, arg argSpan) (string, int, bool) {
	raw := text[arg.start:arg.end]
	trimmed := strings.TrimLeft(raw, " \t\r\n")
	lead := len(raw) - len(trimmed)
	trimmed = strings.TrimRight(trimmed, " \t\r\n")
	if len(trimmed) < 2 {
		return "", 0, false
	}

	quote := trimmed[0]
	if (quote != '\'' && quote != '"') || trimmed[len(trimmed)-1] != quote {
		return "", 0, false
	}
	value := trimmed[1 : len(trimmed)-1]
	if strings.IndexByte(value, quote) >= 0 {
		return "", 0, false
	}
	return value, arg.start + lead + 1, true
}

// skipSpace returns the index of the first non-blank byte at or after i.
func skipSpace(text string, i int) int {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	return i
}
