// Package archive packs a document and its presentation metadata into a
// single-file container: a zip holding data.csv (the merged logical
// content) and metadata.json. Deflate is provided by klauspost/compress,
// which is drop-in for the standard flate at a better speed point.
package archive

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/csvview/csvview/internal/document"
)

const (
	dataName = "data.csv"
	metaName = "metadata.json"

	// Version guards the metadata schema.
	Version = 1
)

// Ext is the container's file extension.
const Ext = ".csvz"

// ViewSettings restores editor state when the container is reopened.
type ViewSettings struct {
	ScrollPosition float64 `json:"scrollPosition"`
	SelectedRow    int     `json:"selectedRow"`
	SelectedCol    int     `json:"selectedCol"`
	ZoomLevel      float64 `json:"zoomLevel"`
}

// Metadata is the presentation state stored next to the CSV data.
type Metadata struct {
	Version      int          `json:"version"`
	ColumnNames  []string     `json:"columnNames"`
	ColumnWidths []float64    `json:"columnWidths"`
	View         ViewSettings `json:"viewSettings"`
}

// IsArchive reports whether path carries the container extension.
func IsArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Ext)
}

// Save writes the container to path: the document's merged logical content
// plus metadata derived from it (merged with the provided view settings).
func Save(path string, doc *document.Document, view ViewSettings) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})

	dataW, err := zw.Create(dataName)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to add %s: %w", dataName, err)
	}
	if err := doc.Save(dataW); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write CSV data: %w", err)
	}

	meta := Metadata{
		Version:      Version,
		ColumnNames:  doc.Columns(),
		ColumnWidths: doc.EstimateColumnWidths(),
		View:         view,
	}
	metaW, err := zw.Create(metaName)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to add %s: %w", metaName, err)
	}
	enc := json.NewEncoder(metaW)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := zw.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return f.Close()
}

// Load reads the container at path and returns the CSV bytes and metadata.
func Load(path string) ([]byte, Metadata, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	var data []byte
	var meta Metadata
	haveData, haveMeta := false, false

	for _, zf := range zr.File {
		switch zf.Name {
		case dataName:
			rc, err := zf.Open()
			if err != nil {
				return nil, Metadata{}, err
			}
			data, err = io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				return nil, Metadata{}, fmt.Errorf("failed to read CSV data: %w", err)
			}
			haveData = true
		case metaName:
			rc, err := zf.Open()
			if err != nil {
				return nil, Metadata{}, err
			}
			err = json.NewDecoder(rc).Decode(&meta)
			_ = rc.Close()
			if err != nil {
				return nil, Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
			}
			haveMeta = true
		}
	}

	if !haveData {
		return nil, Metadata{}, fmt.Errorf("%s not found in archive", dataName)
	}
	if !haveMeta {
		return nil, Metadata{}, fmt.Errorf("%s not found in archive", metaName)
	}
	if meta.Version != Version {
		return nil, Metadata{}, fmt.Errorf("unsupported archive version %d", meta.Version)
	}
	return data, meta, nil
}

// Extract unpacks the container's CSV data to a standalone file so it can
// be opened through the normal mmap path.
func Extract(archivePath, csvPath string) (Metadata, error) {
	data, meta, err := Load(archivePath)
	if err != nil {
		return Metadata{}, err
	}
	if err := os.WriteFile(csvPath, data, 0644); err != nil {
		return Metadata{}, fmt.Errorf("failed to write extracted CSV: %w", err)
	}
	return meta, nil
}
