// Package source provides read-only, memory-mapped access to the bytes of a
// CSV file. The mapping is never written to; all mutation in the engine is
// logical and layered on top of it.
package source

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrEmptyFile is returned when the file has no bytes to map.
	ErrEmptyFile = errors.New("source: file is empty")
	// ErrRange is returned for a slice request outside the mapped region.
	ErrRange = errors.New("source: byte range out of bounds")
	// ErrClosed is returned when the mapping has already been released.
	ErrClosed = errors.New("source: byte source is closed")
)

// ByteSource owns a read-only mapping of a file. It is immutable after Open
// and safe for concurrent readers.
type ByteSource struct {
	path string
	data []byte
	size int64
}

// Open maps the file at path. The file must be non-empty; a zero-length file
// cannot be mapped and yields ErrEmptyFile.
func Open(path string) (*ByteSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := stat.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	data, err := mmapFile(f, size)
	if err != nil {
		return nil, fmt.Errorf("failed to map %s: %w", path, err)
	}

	return &ByteSource{path: path, data: data, size: size}, nil
}

// Path returns the path the source was opened from.
func (s *ByteSource) Path() string { return s.path }

// Len returns the mapped length in bytes.
func (s *ByteSource) Len() int { return len(s.data) }

// Bytes returns the full mapped region. The slice is valid until Close and
// must not be modified.
func (s *ByteSource) Bytes() []byte { return s.data }

// Slice returns the bytes in [start, end) without copying. The returned
// slice is valid until Close.
func (s *ByteSource) Slice(start, end int) ([]byte, error) {
	if s.data == nil {
		return nil, ErrClosed
	}
	if start < 0 || end < start || end > len(s.data) {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrRange, start, end, len(s.data))
	}
	return s.data[start:end], nil
}

// Close releases the mapping. Slices previously returned become invalid.
func (s *ByteSource) Close() error {
	if s.data == nil {
		return nil
	}
	data := s.data
	s.data = nil
	return munmapFile(data)
}
