// Package field splits a single record's bytes into field ranges and decodes
// field values. Splitting happens on demand per row access; nothing here is
// precomputed or cached, which keeps memory bounded by row count rather than
// file size.
package field

import (
	"bytes"
	"strings"
)

// Range is a field's byte range relative to its row slice. Quoted records
// whether the field carries surrounding quotes, which affects decoding.
type Range struct {
	Start  int
	End    int
	Quoted bool
}

// Fields splits row into field ranges, honoring quoting and the
// doubled-quote escape. A row always has at least one field; an empty row
// yields a single empty range.
func Fields(row []byte, sep byte) []Range {
	// Counting separators up front sizes the result exactly for the common
	// unquoted case.
	fields := make([]Range, 0, bytes.Count(row, []byte{sep})+1)

	start := 0
	inQuote := false
	for i := 0; i < len(row); i++ {
		switch row[i] {
		case '"':
			inQuote = !inQuote
		case sep:
			if !inQuote {
				fields = append(fields, makeRange(row, start, i))
				start = i + 1
			}
		}
	}
	fields = append(fields, makeRange(row, start, len(row)))
	return fields
}

// FieldsN returns exactly n ranges for the row, applying the engine's ragged
// row policy: short rows are padded with empty trailing fields, and the
// excess fields of a long row are merged into the last column by extending
// its range to the end of the row (raw text, delimiters preserved).
func FieldsN(row []byte, sep byte, n int) []Range {
	fields := Fields(row, sep)
	if len(fields) == n || n <= 0 {
		return fields
	}
	if len(fields) > n {
		merged := fields[n-1]
		merged.End = len(row)
		merged.Quoted = false
		fields = append(fields[:n-1], merged)
		return fields
	}
	for len(fields) < n {
		fields = append(fields, Range{Start: len(row), End: len(row)})
	}
	return fields
}

func makeRange(row []byte, start, end int) Range {
	quoted := end-start >= 2 && row[start] == '"' && row[end-1] == '"'
	return Range{Start: start, End: end, Quoted: quoted}
}

// Value decodes the logical text of a field range: surrounding quotes are
// stripped and doubled quotes collapse to one. Embedded separators and
// newlines that were quoted come through verbatim.
func Value(row []byte, r Range) string {
	raw := row[r.Start:r.End]
	if !r.Quoted {
		return string(raw)
	}
	raw = raw[1 : len(raw)-1]
	if !bytes.Contains(raw, []byte(`""`)) {
		return string(raw)
	}

	var sb strings.Builder
	sb.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		sb.WriteByte(raw[i])
		if raw[i] == '"' && i+1 < len(raw) && raw[i+1] == '"' {
			i++
		}
	}
	return sb.String()
}

// Values decodes all fields of a row, padded or merged to n columns.
func Values(row []byte, sep byte, n int) []string {
	ranges := FieldsN(row, sep, n)
	out := make([]string, len(ranges))
	for i, r := range ranges {
		out[i] = Value(row, r)
	}
	return out
}
