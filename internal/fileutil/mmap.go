package fileutil

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mapping is a read-only memory-mapped view of a file. Data must not be used
// after Close.
type Mapping struct {
	Data []byte
}

// MapReadOnly maps the whole of path into memory. Empty files yield an empty
// mapping without calling mmap.
func MapReadOnly(path string) (*Mapping, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		return &Mapping{Data: []byte{}}, nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("map %s: file too large (%d bytes)", path, size)
	}
	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", path, err)
	}
	return &Mapping{Data: data}, nil
}

// Close releases the mapping.
func (m *Mapping) Close() error {
	if m == nil || len(m.Data) == 0 {
		return nil
	}
	data := m.Data
	m.Data = nil
	return unix.Munmap(data)
}
