//go:build !windows

package source

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile maps the file read-only. The kernel pages the content in on
// demand, so gigabyte-scale files never hit the Go heap.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	// Access pattern is one linear index pass followed by random row reads.
	_ = unix.Madvise(data, unix.MADV_WILLNEED)
	return data, nil
}

func munmapFile(data []byte) error {
	return unix.Munmap(data)
}
