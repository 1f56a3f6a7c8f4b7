package cache

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	rcfs "go.trai.ch/rootconf/internal/adapters/fs"
	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/ports"
	"go.trai.ch/rootconf/internal/queue"
	"go.trai.ch/zerr"
)

var _ ports.FileCache = (*FileCache)(nil)

// writeRequest is one unit of work for the writer. A request with a non-nil
// barrier carries no content and only signals that every earlier request has
// been processed.
type writeRequest struct {
	path    string
	content []byte
	barrier chan struct{}
}

// FileCache caches file contents keyed by path and serialises every write
// through a single background writer owned by the cache.
type FileCache struct {
	fs     ports.FileSystem
	logger ports.Logger
	trust  *atomic.Bool

	mu      sync.RWMutex
	entries map[string]*domain.FileCacheEntry

	requests  *queue.Queue[writeRequest]
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewFileCache creates an empty FileCache and starts its writer.
// Close stops the writer.
func NewFileCache(fs ports.FileSystem, logger ports.Logger, opts ...Option) *FileCache {
	c := &FileCache{
		fs:       fs,
		logger:   logger,
		trust:    newTrust(opts),
		entries:  make(map[string]*domain.FileCacheEntry),
		requests: queue.New[writeRequest](),
		stopped:  make(chan struct{}),
	}
	go c.writer()
	return c
}

// SetTrustMtime toggles mtime validation.
func (c *FileCache) SetTrustMtime(trust bool) {
	c.trust.Store(trust)
}

// Get returns the content of path, re-reading it unless the cached entry's
// mtime still matches. It reports false if path cannot be read, evicting any
// cached entry.
func (c *FileCache) Get(path string) (*domain.FileCacheEntry, bool) {
	c.mu.RLock()
	cached, ok := c.entries[path]
	c.mu.RUnlock()

	if !ok || !c.trust.Load() {
		return c.read(path)
	}

	info, err := c.fs.Stat(path)
	if err != nil {
		c.Invalidate(path)
		return nil, false
	}
	if info.ModTime().UnixNano() == cached.Mtime {
		return cached, true
	}
	return c.read(path)
}

// Peek returns the cached entry of path without touching the file system.
func (c *FileCache) Peek(path string) (*domain.FileCacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[path]
	return entry, ok
}

func (c *FileCache) read(path string) (*domain.FileCacheEntry, bool) {
	info, err := c.fs.Stat(path)
	if err != nil || info.IsDir() {
		c.Invalidate(path)
		return nil, false
	}
	content, err := c.fs.ReadFile(path)
	if err != nil {
		c.Invalidate(path)
		return nil, false
	}

	entry := newEntry(path, content, info.ModTime().UnixNano())
	c.store(entry)
	return entry, true
}

func newEntry(path string, content []byte, mtime int64) *domain.FileCacheEntry {
	return &domain.FileCacheEntry{
		Path:    path,
		Content: content,
		Mtime:   mtime,
		Sum:     rcfs.Sum(content),
	}
}

func (c *FileCache) store(entry *domain.FileCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Path] = entry
}

// Write hands content for path to the writer. It returns once the request is
// queued and reports false only if the cache was closed.
func (c *FileCache) Write(path string, content []byte) bool {
	return c.requests.Sender().Send(writeRequest{path: path, content: slices.Clone(content)})
}

// Flush blocks until every write accepted before the call has been processed.
func (c *FileCache) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if !c.requests.Sender().Send(writeRequest{barrier: barrier}) {
		return domain.ErrCacheClosed
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting writes, processes the queued ones and stops the writer.
// It is idempotent.
func (c *FileCache) Close() {
	c.closeOnce.Do(c.requests.Close)
	<-c.stopped
}

// Invalidate drops the cached content of path.
func (c *FileCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// ClearAll drops every cached file.
func (c *FileCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*domain.FileCacheEntry)
}

func (c *FileCache) writer() {
	defer close(c.stopped)

	rx := c.requests.Receiver()
	for {
		req, ok := rx.Receive(context.Background())
		if !ok {
			return
		}
		if req.barrier != nil {
			close(req.barrier)
			continue
		}
		if err := c.write(req); err != nil {
			c.logger.Error(err)
		}
	}
}

// write persists one request and publishes the new entry. A failed write
// leaves the cached entry untouched and is not retried.
func (c *FileCache) write(req writeRequest) error {
	if err := c.fs.MkdirAll(filepath.Dir(req.path), domain.DirPerm); err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrWriteFailed), "path", req.path)
	}
	if err := c.fs.WriteFile(req.path, req.content, domain.FilePerm); err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrWriteFailed), "path", req.path)
	}
	info, err := c.fs.Stat(req.path)
	if err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrWriteFailed), "path", req.path)
	}

	c.store(newEntry(req.path, req.content, info.ModTime().UnixNano()))
	return nil
}
