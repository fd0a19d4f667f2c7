// Package index builds the row index of a CSV byte stream: one forward scan
// that discovers record boundaries while honoring quoted fields, producing
// byte offset pairs for O(1) row lookup.
//
// The scan is the engine's one unavoidable full-file pass. It runs over the
// mapped bytes in fixed-size chunks with bounded auxiliary memory, using the
// SWAR bitmaps from internal/simd to locate structural bytes, and checks the
// context between chunks so an in-flight build can be abandoned.
package index

import (
	"context"
	"log/slog"
	"math/bits"

	"github.com/csvview/csvview/internal/simd"
)

// chunkSize is the scan granularity. Bitmap memory per chunk is
// chunkSize/64*3 words, well under the L2 cache.
const chunkSize = 256 * 1024

// maxAnomalySamples bounds the per-file list of offending row numbers kept
// for reporting. Counts are always exact.
const maxAnomalySamples = 16

// Span is the byte range of one record. End excludes the record terminator
// and any trailing carriage return.
type Span struct {
	Start int
	End   int
}

// Anomalies summarizes recoverable parsing irregularities found during the
// scan. None of them abort indexing.
type Anomalies struct {
	// UnterminatedQuote reports a quote left open at end of file. The final
	// record then extends to EOF.
	UnterminatedQuote bool
	// RaggedRows counts rows whose field count differs from the header's.
	RaggedRows int
	// Samples holds the first few ragged row numbers.
	Samples []int
}

// Empty reports whether no anomalies were recorded.
func (a Anomalies) Empty() bool {
	return !a.UnterminatedQuote && a.RaggedRows == 0
}

// RowIndex is the ordered sequence of record spans. Immutable after Build.
type RowIndex struct {
	spans     []Span
	anomalies Anomalies
	// headerFields is the field count of row 0, derived from separator
	// positions outside quotes during the same pass.
	headerFields int
}

// Len returns the number of records, including the header row.
func (ix *RowIndex) Len() int { return len(ix.spans) }

// At returns the span of record i.
func (ix *RowIndex) At(i int) (Span, bool) {
	if i < 0 || i >= len(ix.spans) {
		return Span{}, false
	}
	return ix.spans[i], true
}

// Anomalies returns the scan's anomaly summary.
func (ix *RowIndex) Anomalies() Anomalies { return ix.anomalies }

// HeaderFields returns the field count observed in row 0, or 0 for an empty
// index.
func (ix *RowIndex) HeaderFields() int { return ix.headerFields }

// Build scans data once and returns the row index. It returns ctx.Err() if
// the context is cancelled mid-scan; parsing irregularities are accumulated
// in the index rather than returned as errors.
func Build(ctx context.Context, data []byte, sep byte, logger *slog.Logger) (*RowIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ix := &RowIndex{}
	if len(data) == 0 {
		return ix, nil
	}

	// Rough guess to avoid early reallocation churn: assume 32-byte rows.
	ix.spans = make([]Span, 0, len(data)/32+1)

	quotes := make([]uint64, simd.BitmapLen(chunkSize))
	seps := make([]uint64, simd.BitmapLen(chunkSize))
	newlines := make([]uint64, simd.BitmapLen(chunkSize))

	inQuote := false
	rowStart := 0
	sepCount := 0

	closeRow := func(nl int) {
		end := nl
		if end > rowStart && data[end-1] == '\r' {
			end--
		}
		ix.record(Span{Start: rowStart, End: end}, sepCount+1)
		rowStart = nl + 1
		sepCount = 0
	}

	for base := 0; base < len(data); base += chunkSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		chunk := data[base:min(base+chunkSize, len(data))]
		words := simd.BitmapLen(len(chunk))
		clear(quotes[:words])
		clear(seps[:words])
		clear(newlines[:words])
		simd.ScanWithSeparator(chunk, sep, quotes, seps, newlines)

		for w := 0; w < words; w++ {
			combined := quotes[w] | seps[w] | newlines[w]
			for combined != 0 {
				tz := bits.TrailingZeros64(combined)
				bit := uint64(1) << tz
				combined &^= bit

				switch {
				case quotes[w]&bit != 0:
					inQuote = !inQuote
				case inQuote:
					// Separators and newlines inside quotes are data.
				case seps[w]&bit != 0:
					sepCount++
				default:
					closeRow(base + w*64 + tz)
				}
			}
		}
	}

	// Trailing record without a final terminator.
	if rowStart < len(data) {
		end := len(data)
		if data[end-1] == '\r' {
			end--
		}
		if end > rowStart {
			ix.record(Span{Start: rowStart, End: end}, sepCount+1)
		}
	}

	if inQuote {
		ix.anomalies.UnterminatedQuote = true
		logger.Warn("unterminated quote at end of file, final record extends to EOF",
			"rows", len(ix.spans))
	}
	if ix.anomalies.RaggedRows > 0 {
		logger.Warn("ragged rows found during indexing",
			"count", ix.anomalies.RaggedRows,
			"headerFields", ix.headerFields,
			"samples", ix.anomalies.Samples)
	}

	return ix, nil
}

// record appends a span and tracks the ragged-row summary against the field
// count of the first record.
func (ix *RowIndex) record(sp Span, fields int) {
	if len(ix.spans) == 0 {
		ix.headerFields = fields
	} else if fields != ix.headerFields {
		ix.anomalies.RaggedRows++
		if len(ix.anomalies.Samples) < maxAnomalySamples {
			ix.anomalies.Samples = append(ix.anomalies.Samples, len(ix.spans))
		}
	}
	ix.spans = append(ix.spans, sp)
}
