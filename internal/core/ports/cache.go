package ports

import (
	"context"

	"go.trai.ch/rootconf/internal/core/domain"
)

// DirectoryCache caches directory listings, validated by modification time.
//
//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type DirectoryCache interface {
	// Get returns the ordered listing of path. It reports false if path does not
	// exist, is not a directory, or cannot be listed.
	Get(path string) ([]domain.DirEntry, bool)
	// Invalidate drops the cached listing of path.
	Invalidate(path string)
	// ClearAll drops every cached listing.
	ClearAll()
}

// FileCache caches file contents, validated by modification time, and funnels
// writes through a single writer.
type FileCache interface {
	// Get returns the cached or freshly read content of path. It reports false
	// if path cannot be read.
	Get(path string) (*domain.FileCacheEntry, bool)
	// Write submits content for path to the writer. It reports whether the
	// request was accepted, not whether it was persisted.
	Write(path string, content []byte) bool
	// Flush blocks until every write accepted before the call has been processed.
	Flush(ctx context.Context) error
	// Invalidate drops the cached content of path.
	Invalidate(path string)
	// ClearAll drops every cached file.
	ClearAll()
}
