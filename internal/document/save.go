package document

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Save streams the merged logical content as CSV: original header text,
// then every data row with overlay edits applied. CSV cannot be updated in
// place under a read-only mapping, so a save is always a full rewrite;
// scheduling it (and choosing the destination) is the caller's concern.
func (d *Document) Save(w io.Writer) error {
	bw := bufio.NewWriterSize(w, 256*1024)

	if !d.cfg.NoHeader && d.ix.Len() > 0 {
		if err := d.writeRecord(bw, d.rawHeaders); err != nil {
			return err
		}
	}

	start := 0
	if !d.cfg.NoHeader {
		start = 1
	}
	for row := start; row < d.ix.Len(); row++ {
		values, err := d.RowValues(row)
		if err != nil {
			return fmt.Errorf("failed to materialize row %d: %w", row, err)
		}
		if err := d.writeRecord(bw, values); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveFile writes the merged content to path atomically: a temp file in the
// same directory, fsync, then rename. A crash mid-save never leaves a
// truncated CSV behind. Saving over the currently mapped file is allowed;
// the mapping keeps the old inode alive until Reload.
func (d *Document) SaveFile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := d.Save(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	d.ov.MarkSaved()
	return nil
}

func (d *Document) writeRecord(bw *bufio.Writer, values []string) error {
	for i, v := range values {
		if i > 0 {
			if err := bw.WriteByte(d.sep); err != nil {
				return err
			}
		}
		if err := writeField(bw, v, d.sep); err != nil {
			return err
		}
	}
	return bw.WriteByte('\n')
}

// writeField quotes a value when it contains the separator, a quote, or a
// line break, doubling embedded quotes.
func writeField(bw *bufio.Writer, v string, sep byte) error {
	if !strings.ContainsAny(v, string([]byte{sep, '"', '\n', '\r'})) {
		_, err := bw.WriteString(v)
		return err
	}
	if err := bw.WriteByte('"'); err != nil {
		return err
	}
	for i := 0; i < len(v); i++ {
		if v[i] == '"' {
			if err := bw.WriteByte('"'); err != nil {
				return err
			}
		}
		if err := bw.WriteByte(v[i]); err != nil {
			return err
		}
	}
	return bw.WriteByte('"')
}
