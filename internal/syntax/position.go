package syntax

// Point is a zero-based row and byte column in a document
type Point struct {
	Row    uint32
	Column uint32
}

// Before reports whether p comes strictly before o.
func (p Point) Before(o Point) bool {
	if p.Row != o.Row {
		return p.Row < o.Row
	}
	return p.Column < o.Column
}

// After reports whether p comes strictly after o.
func (p Point) After(o Point) bool {
	return o.Before(p)
}

// Range is a span between two points. Both ends are inclusive for containment.
type Range struct {
	Start Point
	End   Point
}

// Contains reports whether p lies within r
func (r Range) Contains(p Point) bool {
	return !p.Before(r.Start) && !p.After(r.End)
}

// NarrowerThan reports whether r is strictly narrower than o: it starts later,
// or starts at the same point and ends earlier. This picks the innermost of
// nested spans that both contain a position.
func (r Range) NarrowerThan(o Range) bool {
	if r.Start != o.Start {
		return r.Start.After(o.Start)
	}
	return r.End.Before(o.End)
}

// PointAt converts a byte index in text into a Point by counting newlines.
func PointAt(text string, index int) Point {
	if index > len(text) {
		index = len(text)
	}

	var row uint32
	lineStart := 0
	for i := 0; i < index; i++ {
		if text[i] == '\n' {
			row++
			lineStart = i + 1
		}
	}

	return Point{Row: row, Column: uint32(index - lineStart)}
}
