package ports

import "io/fs"

// FileSystem abstracts the filesystem calls made by the caches and stages.
// Every method is an I/O suspension point.
//
//go:generate mockgen -source=filesystem.go -destination=mocks/mock_filesystem.go -package=mocks
type FileSystem interface {
	// Stat returns file info for the given path.
	Stat(path string) (fs.FileInfo, error)
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
	// ReadDir lists the directory at path in batches of at most batch entries,
	// calling fn for every batch until the directory is exhausted.
	ReadDir(path string, batch int, fn func([]fs.DirEntry)) error
	// WriteFile creates or truncates path and writes data to it.
	WriteFile(path string, data []byte, perm fs.FileMode) error
	// MkdirAll creates the directory path and any missing parents.
	MkdirAll(path string, perm fs.FileMode) error
}
