package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend is the identifier-keyed blob KV plugin contract of spec §6:
// write(id, bytes) -> bool, read(id) -> Option<bytes>.
type Backend interface {
	Write(id EntryType, data []byte) bool
	Read(id EntryType) ([]byte, bool)
}

// FileBackend is the default file-backed Backend, mapping an id to the
// file <dir>/<id><suffix>, per spec §6 and grounded on
// file_storage_plugin.cpp's write_data/read_data.
type FileBackend struct {
	dir    string
	suffix string
}

// NewFileBackend constructs a FileBackend rooted at dir, creating it if
// necessary. suffix defaults to ".dat" when empty, matching the original
// plugin's default.
func NewFileBackend(dir, suffix string) (*FileBackend, error) {
	if suffix == "" {
		suffix = ".dat"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &FileBackend{dir: dir, suffix: suffix}, nil
}

func (b *FileBackend) path(id EntryType) string {
	return filepath.Join(b.dir, fmt.Sprintf("%d%s", uint64(id), b.suffix))
}

// Write stores data under id, overwriting any existing file.
func (b *FileBackend) Write(id EntryType, data []byte) bool {
	return os.WriteFile(b.path(id), data, 0o644) == nil
}

// Read loads the bytes stored under id. It reports ok=false if no entry
// exists or the file could not be read.
func (b *FileBackend) Read(id EntryType) ([]byte, bool) {
	data, err := os.ReadFile(b.path(id))
	if err != nil {
		return nil, false
	}
	return data, true
}
