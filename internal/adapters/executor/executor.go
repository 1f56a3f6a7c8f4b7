// Package executor applies project config files to a session.
//
// Every executor reads files through the session's File Cache when one is
// attached and merges what it decodes into the session's Store.
package executor

import (
	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/ports"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/zerr"
)

// Executors builds the executors for every supported config format.
type Executors struct {
	fs ports.FileSystem
}

// New creates Executors. fs is used to read files when a session has no File Cache.
func New(fs ports.FileSystem) *Executors {
	return &Executors{fs: fs}
}

// Router returns the extension to executor mapping for the given extensions.
// Extensions without a known executor are left out; the Execute stage reports
// them per file.
func (x *Executors) Router(extensions []string) map[string]session.Executor {
	all := map[string]session.Executor{
		domain.ExtJSON:  x.JSON(),
		domain.ExtLua:   x.Lua(),
		domain.ExtVim:   x.Vim(),
		domain.ExtYAML:  x.YAML(),
		domain.ExtYML:   x.YAML(),
		domain.ExtTOML:  x.TOML(),
		domain.ExtCUE:   x.CUE(),
		domain.ExtShell: x.Shell(),
	}

	router := make(map[string]session.Executor, len(extensions))
	for _, ext := range extensions {
		if exec, ok := all[ext]; ok {
			router[ext] = exec
		}
	}
	return router
}

// read returns the content of path, preferring the session's File Cache.
func (x *Executors) read(s *session.Session, path string) (*domain.FileCacheEntry, error) {
	if fc := s.FileCache(); fc != nil {
		entry, ok := fc.Get(path)
		if !ok {
			return nil, domain.With(domain.ErrReadFailed, "path", path)
		}
		return entry, nil
	}

	if x.fs == nil {
		return nil, domain.With(domain.ErrReadFailed, "path", path)
	}
	content, err := x.fs.ReadFile(path)
	if err != nil {
		return nil, zerr.With(domain.Wrap(err, domain.ErrReadFailed), "path", path)
	}
	return &domain.FileCacheEntry{Path: path, Content: content}, nil
}
