// Package fs provides file system adapters for reading, listing, walking and
// hashing files.
package fs

import (
	"errors"
	"io"
	iofs "io/fs"
	"os"

	"go.trai.ch/rootconf/internal/core/ports"
)

var _ ports.FileSystem = (*OSFS)(nil)

// OSFS implements ports.FileSystem on the host operating system.
type OSFS struct{}

// NewOSFS creates a new OSFS.
func NewOSFS() *OSFS {
	return &OSFS{}
}

// Stat returns file info for the given path.
func (OSFS) Stat(path string) (iofs.FileInfo, error) {
	return os.Stat(path)
}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path) //nolint:gosec // Path is controlled by caller
}

// ReadDir lists path in batches of at most batch entries.
func (OSFS) ReadDir(path string, batch int, fn func([]iofs.DirEntry)) error {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // Read-only handle

	if batch <= 0 {
		batch = 64
	}
	for {
		entries, err := f.ReadDir(batch)
		if len(entries) > 0 {
			fn(entries)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// WriteFile creates or truncates path and writes data to it.
func (OSFS) WriteFile(path string, data []byte, perm iofs.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// MkdirAll creates the directory path and any missing parents.
func (OSFS) MkdirAll(path string, perm iofs.FileMode) error {
	return os.MkdirAll(path, perm)
}
