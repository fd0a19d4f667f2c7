//go:build windows

package source

import (
	"io"
	"os"
)

// mmapFile reads the whole file on Windows instead of mapping it.
// TODO: use CreateFileMapping/MapViewOfFile once the engine gains a
// Windows CI target.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	return io.ReadAll(f)
}

// munmapFile is a no-op for the ReadAll fallback.
func munmapFile(data []byte) error {
	return nil
}
