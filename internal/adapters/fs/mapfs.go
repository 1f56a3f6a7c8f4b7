package fs

import (
	iofs "io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"testing/fstest"
	"time"

	"go.trai.ch/rootconf/internal/core/ports"
)

var _ ports.FileSystem = (*MapFS)(nil)

// MapFS is an in-memory ports.FileSystem backed by fstest.MapFS.
// Paths are slash separated and absolute. Every mutation advances a logical
// clock, so consecutive writes always produce distinct modification times.
type MapFS struct {
	mu    sync.RWMutex
	files fstest.MapFS
	clock int64
}

// NewMapFS creates a MapFS holding the given files, keyed by absolute path.
// A key ending in a slash creates an empty directory.
func NewMapFS(files map[string]string) *MapFS {
	m := &MapFS{files: fstest.MapFS{}}
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if strings.HasSuffix(k, "/") {
			_ = m.MkdirAll(k, 0o755)
			continue
		}
		m.put(k, []byte(files[k]), 0o644)
	}
	return m
}

func key(p string) string {
	k := strings.TrimPrefix(path.Clean(p), "/")
	if k == "" {
		return "."
	}
	return k
}

func (m *MapFS) tick() time.Time {
	m.clock++
	return time.Unix(0, m.clock)
}

// put stores a file and marks its parent directories. Callers hold mu.
func (m *MapFS) put(p string, data []byte, perm iofs.FileMode) {
	now := m.tick()
	m.files[key(p)] = &fstest.MapFile{Data: slices.Clone(data), Mode: perm, ModTime: now}
	m.touchParents(p, now)
}

func (m *MapFS) touchParents(p string, now time.Time) {
	for dir := path.Dir(path.Clean(p)); dir != "/" && dir != "."; dir = path.Dir(dir) {
		k := key(dir)
		mode := iofs.ModeDir | 0o755
		if f, ok := m.files[k]; ok && f.Mode.IsDir() {
			mode = f.Mode
		}
		// Entries are replaced, never mutated, so FileInfo values handed out
		// earlier stay stable.
		m.files[k] = &fstest.MapFile{Mode: mode, ModTime: now}
	}
}

// Stat returns file info for the given path.
func (m *MapFS) Stat(p string) (iofs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files.Stat(key(p))
}

// ReadFile reads the entire file at p.
func (m *MapFS) ReadFile(p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files.ReadFile(key(p))
}

// ReadDir lists p in batches of at most batch entries.
func (m *MapFS) ReadDir(p string, batch int, fn func([]iofs.DirEntry)) error {
	m.mu.RLock()
	entries, err := m.files.ReadDir(key(p))
	m.mu.RUnlock()
	if err != nil {
		return err
	}

	if batch <= 0 {
		batch = len(entries)
	}
	for chunk := range slices.Chunk(entries, max(batch, 1)) {
		fn(chunk)
	}
	return nil
}

// WriteFile creates or truncates p and writes data to it.
// The parent directory must exist.
func (m *MapFS) WriteFile(p string, data []byte, perm iofs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dir := path.Dir(path.Clean(p)); dir != "/" {
		info, err := m.files.Stat(key(dir))
		if err != nil || !info.IsDir() {
			return &iofs.PathError{Op: "open", Path: p, Err: iofs.ErrNotExist}
		}
	}
	m.put(p, data, perm)
	return nil
}

// MkdirAll creates the directory p and any missing parents.
func (m *MapFS) MkdirAll(p string, perm iofs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(p)
	if f, ok := m.files[k]; ok {
		if !f.Mode.IsDir() {
			return &iofs.PathError{Op: "mkdir", Path: p, Err: iofs.ErrExist}
		}
		return nil
	}
	now := m.tick()
	m.files[k] = &fstest.MapFile{Mode: iofs.ModeDir | perm, ModTime: now}
	m.touchParents(p, now)
	return nil
}

// Remove deletes the file or empty directory at p.
func (m *MapFS) Remove(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key(p))
	m.touchParents(p, m.tick())
}
