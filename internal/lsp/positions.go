package lsp

import (
	"unicode/utf16"
	"unicode/utf8"

	"go.lsp.dev/protocol"
)

// byteColumn converts a UTF-16 character offset on line to a byte column,
// clamping to the end of the line.
func byteColumn(line string, character uint32) int {
	var units uint32
	for i, r := range line {
		if units >= character {
			return i
		}
		units += uint32(utf16Len(r))
	}
	return len(line)
}

// utf16Column converts a byte column on line to a UTF-16 character offset.
func utf16Column(line string, col uint32) uint32 {
	if int(col) > len(line) {
		col = uint32(len(line))
	}
	var units uint32
	for i := 0; i < int(col); {
		r, size := utf8.DecodeRuneInString(line[i:])
		units += uint32(utf16Len(r))
		i += size
	}
	return units
}

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

// toUTF16Range rewrites a byte-column range into the client's UTF-16 columns.
func toUTF16Range(lines []string, r protocol.Range) protocol.Range {
	return protocol.Range{
		Start: toUTF16Position(lines, r.Start),
		End:   toUTF16Position(lines, r.End),
	}
}

func toUTF16Position(lines []string, p protocol.Position) protocol.Position {
	if int(p.Line) >= len(lines) {
		return p
	}
	return protocol.Position{Line: p.Line, Character: utf16Column(lines[p.Line], p.Character)}
}

func toUTF16Diagnostics(lines []string, diags []protocol.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, len(diags))
	for i, d := range diags {
		d.Range = toUTF16Range(lines, d.Range)
		out[i] = d
	}
	return out
}
