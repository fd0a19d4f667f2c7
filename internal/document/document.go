// Package document merges the byte source, row index, field locator, and
// edit overlay into a single logical view of a CSV file. All queries go
// through the Document; the backing bytes stay immutable for its lifetime.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/csvview/csvview/internal/field"
	"github.com/csvview/csvview/internal/index"
	"github.com/csvview/csvview/internal/overlay"
	"github.com/csvview/csvview/internal/source"
)

// ErrIndex is returned for out-of-bounds row or column access. It indicates
// a caller bug, not a data problem, and never silently clamps.
var ErrIndex = errors.New("document: row/column out of bounds")

// Config holds open parameters for a document.
type Config struct {
	Path      string
	Separator byte // field separator, ',' when zero
	NoHeader  bool // treat row 0 as data and synthesize column names
	Logger    *slog.Logger
}

// Document is the single owner of an open CSV file's state. The source and
// row index are immutable after Open; the overlay serializes its own access,
// so concurrent readers are safe alongside edits.
type Document struct {
	cfg Config
	sep byte

	src *source.ByteSource
	ix  *index.RowIndex
	ov  *overlay.Overlay

	// rawHeaders is the header row as stored in the file; headers is the
	// logical column naming with duplicates disambiguated.
	rawHeaders []string
	headers    []string
	cols       int

	logger *slog.Logger
}

// Open maps the file, builds the row index, and derives the column set.
// The ctx cancels the index build; a cancelled load leaves nothing mapped.
func Open(ctx context.Context, cfg Config) (*Document, error) {
	sep := cfg.Separator
	if sep == 0 {
		sep = ','
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	src, err := source.Open(cfg.Path)
	if err != nil {
		return nil, err
	}

	ix, err := index.Build(ctx, src.Bytes(), sep, logger)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	d := &Document{
		cfg:    cfg,
		sep:    sep,
		src:    src,
		ix:     ix,
		ov:     overlay.New(),
		logger: logger,
	}
	d.deriveColumns()
	return d, nil
}

// deriveColumns fixes the document's column count and names from the first
// record. The count stays constant for the document's lifetime.
func (d *Document) deriveColumns() {
	if d.ix.Len() == 0 {
		return
	}
	sp, _ := d.ix.At(0)
	first := field.Values(d.src.Bytes()[sp.Start:sp.End], d.sep, 0)
	d.cols = len(first)

	if d.cfg.NoHeader {
		d.rawHeaders = nil
		d.headers = make([]string, d.cols)
		for i := range d.headers {
			d.headers[i] = fmt.Sprintf("column_%d", i+1)
		}
		return
	}

	d.rawHeaders = first
	d.headers = dedupeHeaders(first)
}

// dedupeHeaders disambiguates duplicate column names by suffixing the
// 1-based column position to later occurrences.
func dedupeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, name := range raw {
		candidate := name
		for seen[candidate] {
			candidate = fmt.Sprintf("%s_%d", candidate, i+1)
		}
		seen[candidate] = true
		out[i] = candidate
	}
	return out
}

// Path returns the backing file path.
func (d *Document) Path() string { return d.cfg.Path }

// Separator returns the field separator in use.
func (d *Document) Separator() byte { return d.sep }

// Rows returns the total record count, header included.
func (d *Document) Rows() int { return d.ix.Len() }

// DataRows returns the count of data records (header excluded).
func (d *Document) DataRows() int {
	if d.cfg.NoHeader {
		return d.ix.Len()
	}
	if d.ix.Len() == 0 {
		return 0
	}
	return d.ix.Len() - 1
}

// Columns returns the logical column names in order.
func (d *Document) Columns() []string { return d.headers }

// ColumnCount returns the fixed column count derived at load.
func (d *Document) ColumnCount() int { return d.cols }

// Anomalies returns the index build's anomaly summary.
func (d *Document) Anomalies() index.Anomalies { return d.ix.Anomalies() }

// Overlay exposes the edit overlay for session persistence and undo/redo.
func (d *Document) Overlay() *overlay.Overlay { return d.ov }

// headerRow reports whether row i is the header record.
func (d *Document) headerRow(i int) bool {
	return !d.cfg.NoHeader && i == 0
}

func (d *Document) rowBytes(row int) ([]byte, error) {
	sp, ok := d.ix.At(row)
	if !ok {
		return nil, fmt.Errorf("%w: row %d of %d", ErrIndex, row, d.ix.Len())
	}
	return d.src.Slice(sp.Start, sp.End)
}

// Cell returns the logical value of one cell: the overlay entry when
// present, else the decoded original field. Row 0 yields the logical header
// names when a header is present.
func (d *Document) Cell(row, col int) (string, error) {
	if col < 0 || col >= d.cols {
		return "", fmt.Errorf("%w: column %d of %d", ErrIndex, col, d.cols)
	}
	if d.headerRow(row) {
		return d.headers[col], nil
	}
	if v, ok := d.ov.Get(row, col); ok {
		return v, nil
	}
	raw, err := d.rowBytes(row)
	if err != nil {
		return "", err
	}
	ranges := field.FieldsN(raw, d.sep, d.cols)
	return field.Value(raw, ranges[col]), nil
}

// RowValues returns the full merged logical row in column order.
func (d *Document) RowValues(row int) ([]string, error) {
	if d.headerRow(row) {
		out := make([]string, d.cols)
		copy(out, d.headers)
		return out, nil
	}
	raw, err := d.rowBytes(row)
	if err != nil {
		return nil, err
	}
	values := field.Values(raw, d.sep, d.cols)
	for col := range values {
		if v, ok := d.ov.Get(row, col); ok {
			values[col] = v
		}
	}
	return values, nil
}

// RowMap returns the merged logical row keyed by column name. Key order is
// lost to the map; use Columns alongside it when order matters.
func (d *Document) RowMap(row int) (map[string]string, error) {
	values, err := d.RowValues(row)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, d.cols)
	for i, name := range d.headers {
		out[name] = values[i]
	}
	return out, nil
}

// Set records a cell edit in the overlay. The header row and out-of-bounds
// coordinates are rejected with ErrIndex; the backing bytes are untouched.
func (d *Document) Set(row, col int, value string) error {
	if d.headerRow(row) {
		return fmt.Errorf("%w: header row is not editable", ErrIndex)
	}
	old, err := d.Cell(row, col)
	if err != nil {
		return err
	}
	d.ov.Set(row, col, old, value)
	return nil
}

// ClearEdit reverts a cell to its original bytes.
func (d *Document) ClearEdit(row, col int) {
	d.ov.Clear(row, col)
}

// Dirty reports whether unsaved edits exist.
func (d *Document) Dirty() bool { return d.ov.Dirty() }

// Reload rebuilds the document from disk, discarding the overlay.
func (d *Document) Reload(ctx context.Context) error {
	src, err := source.Open(d.cfg.Path)
	if err != nil {
		return err
	}
	ix, err := index.Build(ctx, src.Bytes(), d.sep, d.logger)
	if err != nil {
		_ = src.Close()
		return err
	}

	old := d.src
	d.src = src
	d.ix = ix
	d.ov.Reset()
	d.deriveColumns()
	return old.Close()
}

// Close releases the mapping. The document must not be used afterwards.
func (d *Document) Close() error {
	return d.src.Close()
}

// widthScanRows bounds the sample used for column width estimation.
const widthScanRows = 100

// EstimateColumnWidths suggests a pixel width per column from the first
// rows, clamped to a usable range. Purely advisory for grid consumers.
func (d *Document) EstimateColumnWidths() []float64 {
	if d.cols == 0 {
		return nil
	}
	maxLens := make([]int, d.cols)
	for i := range maxLens {
		maxLens[i] = 10
	}

	rows := min(d.ix.Len(), widthScanRows)
	for r := 0; r < rows; r++ {
		values, err := d.RowValues(r)
		if err != nil {
			break
		}
		for c, v := range values {
			if len(v) > maxLens[c] {
				maxLens[c] = len(v)
			}
		}
	}

	widths := make([]float64, d.cols)
	for i, l := range maxLens {
		w := float64(l) * 8.0
		if w < 50 {
			w = 50
		}
		if w > 400 {
			w = 400
		}
		widths[i] = w
	}
	return widths
}
