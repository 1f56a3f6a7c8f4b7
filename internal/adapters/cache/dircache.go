package cache

import (
	iofs "io/fs"
	"strconv"
	"sync"
	"sync/atomic"

	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/ports"
	"golang.org/x/sync/singleflight"
)

// listBatch is the number of entries requested per directory read.
const listBatch = 128

var _ ports.DirectoryCache = (*DirCache)(nil)

// DirCache caches directory listings keyed by path.
//
// An entry is reused only while trust-mtime is enabled and the directory's
// current modification time equals the one recorded with the listing.
// Concurrent fills of the same path and mtime share a single listing.
type DirCache struct {
	fs    ports.FileSystem
	trust *atomic.Bool

	mu      sync.RWMutex
	entries map[string]*domain.DirCacheEntry
	fills   singleflight.Group
}

// NewDirCache creates an empty DirCache reading through fs.
func NewDirCache(fs ports.FileSystem, opts ...Option) *DirCache {
	return &DirCache{
		fs:      fs,
		trust:   newTrust(opts),
		entries: make(map[string]*domain.DirCacheEntry),
	}
}

// SetTrustMtime toggles mtime validation.
func (c *DirCache) SetTrustMtime(trust bool) {
	c.trust.Store(trust)
}

// Get returns the ordered listing of path. It reports false if path does not
// exist, is not a directory, or cannot be listed.
func (c *DirCache) Get(path string) ([]domain.DirEntry, bool) {
	info, err := c.fs.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, false
	}
	mtime := info.ModTime().UnixNano()

	if c.trust.Load() {
		c.mu.RLock()
		cached, ok := c.entries[path]
		c.mu.RUnlock()
		if ok && cached.Mtime == mtime {
			return cached.Entries, true
		}
	}

	v, err, _ := c.fills.Do(fillKey(path, mtime), func() (any, error) {
		return c.fill(path, mtime)
	})
	if err != nil {
		return nil, false
	}
	return v.(*domain.DirCacheEntry).Entries, true
}

// Entry returns the cached entry of path without validating it.
func (c *DirCache) Entry(path string) (*domain.DirCacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	return e, ok
}

func (c *DirCache) fill(path string, mtime int64) (*domain.DirCacheEntry, error) {
	var entries []domain.DirEntry
	err := c.fs.ReadDir(path, listBatch, func(batch []iofs.DirEntry) {
		for _, e := range batch {
			entries = append(entries, domain.DirEntry{Name: e.Name(), Type: e.Type()})
		}
	})
	if err != nil {
		return nil, err
	}

	entry := &domain.DirCacheEntry{Path: path, Entries: entries, Mtime: mtime}
	c.mu.Lock()
	if cur, ok := c.entries[path]; !ok || cur.Mtime <= mtime {
		c.entries[path] = entry
	}
	c.mu.Unlock()
	return entry, nil
}

// fillKey scopes a shared fill to one modification time of path, so a caller
// that observed a newer mtime never receives an older listing.
func fillKey(path string, mtime int64) string {
	return path + "\x00" + strconv.FormatInt(mtime, 10)
}

// Invalidate drops the cached listing of path.
func (c *DirCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// ClearAll drops every cached listing.
func (c *DirCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*domain.DirCacheEntry)
}
