// Package export streams a document's merged logical rows as JSON. Output
// is one top-level array of objects; keys are the header names in column
// order and values are the logical cell strings. Rows are encoded one at a
// time, so exporting a file larger than memory never materializes the whole
// JSON text.
package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/csvview/csvview/internal/document"
)

// ErrNoColumns is returned when the document has no header to key the
// exported objects by.
var ErrNoColumns = errors.New("export: document has no columns")

// Export writes the full document as a JSON array of row objects. The
// header row supplies the keys and is not itself emitted.
func Export(w io.Writer, doc *document.Document) error {
	keys, err := encodeKeys(doc)
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(w, 64*1024)
	if err := bw.WriteByte('['); err != nil {
		return err
	}

	start := doc.Rows() - doc.DataRows()
	for row := start; row < doc.Rows(); row++ {
		if row > start {
			if err := bw.WriteByte(','); err != nil {
				return err
			}
		}
		if err := writeObject(bw, doc, keys, row); err != nil {
			return err
		}
	}

	if err := bw.WriteByte(']'); err != nil {
		return err
	}
	return bw.Flush()
}

// ExportRow writes a single data row as one JSON object, the same shape as
// one element of Export's array. Used for row inspection.
func ExportRow(w io.Writer, doc *document.Document, row int) error {
	keys, err := encodeKeys(doc)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if err := writeObject(bw, doc, keys, row); err != nil {
		return err
	}
	return bw.Flush()
}

// encodeKeys pre-encodes the column names as JSON strings once per export.
func encodeKeys(doc *document.Document) ([][]byte, error) {
	cols := doc.Columns()
	if len(cols) == 0 {
		return nil, ErrNoColumns
	}
	keys := make([][]byte, len(cols))
	for i, name := range cols {
		b, err := json.Marshal(name)
		if err != nil {
			return nil, fmt.Errorf("failed to encode column name %q: %w", name, err)
		}
		keys[i] = b
	}
	return keys, nil
}

// writeObject emits one row object with keys in column order.
func writeObject(bw *bufio.Writer, doc *document.Document, keys [][]byte, row int) error {
	values, err := doc.RowValues(row)
	if err != nil {
		return err
	}
	if err := bw.WriteByte('{'); err != nil {
		return err
	}
	for i, key := range keys {
		if i > 0 {
			if err := bw.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := bw.Write(key); err != nil {
			return err
		}
		if err := bw.WriteByte(':'); err != nil {
			return err
		}
		val, err := json.Marshal(values[i])
		if err != nil {
			return fmt.Errorf("failed to encode row %d: %w", row, err)
		}
		if _, err := bw.Write(val); err != nil {
			return err
		}
	}
	return bw.WriteByte('}')
}
