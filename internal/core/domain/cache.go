package domain

import (
	"io/fs"
	"sync/atomic"
)

// DirEntry is one entry of a directory listing.
type DirEntry struct {
	Name string
	Type fs.FileMode
}

// IsDir reports whether the entry describes a directory.
func (e DirEntry) IsDir() bool {
	return e.Type.IsDir()
}

// IsRegular reports whether the entry describes a regular file.
func (e DirEntry) IsRegular() bool {
	return e.Type.IsRegular()
}

// DirCacheEntry holds a cached directory listing with its validation metadata.
type DirCacheEntry struct {
	Path    string
	Entries []DirEntry
	Mtime   int64 // mtime in UnixNano at the moment of the listing
}

// FileCacheEntry holds cached file content with its validation metadata.
//
// Path, Content, Mtime and Sum are immutable once the entry is published.
// The parsed JSON annotation is set by the JSON executor after the fact.
type FileCacheEntry struct {
	Path    string
	Content []byte
	Mtime   int64  // mtime in UnixNano at the moment of the read or write
	Sum     uint64 // xxhash of Content

	parsed atomic.Pointer[parsedValue]
}

type parsedValue struct {
	value any
}

// ParsedJSON returns the decoded JSON annotation, or nil if none was recorded.
func (e *FileCacheEntry) ParsedJSON() any {
	p := e.parsed.Load()
	if p == nil {
		return nil
	}
	return p.value
}

// SetParsedJSON records the decoded JSON form of Content.
func (e *FileCacheEntry) SetParsedJSON(v any) {
	e.parsed.Store(&parsedValue{value: v})
}
