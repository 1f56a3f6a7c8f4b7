package stages

import (
	"cmp"
	"context"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/ports"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/rootconf/internal/engine/pipeline"
	"go.trai.ch/rootconf/internal/queue"
)

// listBatch is the number of entries requested per directory read when no
// Directory Cache is attached.
const listBatch = 64

// FindFilesOptions configures the FindFiles stage.
type FindFilesOptions struct {
	// Extensions lists the config file extensions in lookup order.
	// Defaults to domain.DefaultExtensions().
	Extensions []string
	// FS lists directories when the session has no Directory Cache.
	FS ports.FileSystem
}

// FindFiles locates the config files of the detected project below the
// config directory.
type FindFiles struct {
	extensions []string
	extSet     map[string]bool
	fs         ports.FileSystem
}

// NewFindFiles creates a FindFiles stage. Every extension must start with a dot.
func NewFindFiles(opts FindFilesOptions) (*FindFiles, error) {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = domain.DefaultExtensions()
	}

	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if len(ext) < 2 || !strings.HasPrefix(ext, ".") {
			return nil, domain.With(domain.ErrInvalidExtension, "extension", ext)
		}
		set[ext] = true
	}

	return &FindFiles{extensions: slices.Clone(exts), extSet: set, fs: opts.FS}, nil
}

// Name returns the stage name.
func (f *FindFiles) Name() string {
	return "findfiles"
}

// Run emits the config files of the project for every received ancestor.
// Inputs received before a project name and config directory are known are
// skipped. A file is emitted at most once per run.
func (f *FindFiles) Run(
	ctx context.Context,
	s *session.Session,
	in queue.Receiver[domain.Item],
	out queue.Sender[domain.Item],
) error {
	emitted := make(map[string]bool)

	for {
		if _, ok := pipeline.Next(ctx, s, in); !ok {
			return nil
		}

		name := s.ProjectName()
		if name == "" {
			continue
		}
		configDir, err := s.ConfigDir()
		if err != nil {
			continue
		}

		for _, file := range f.Collect(s, configDir, name) {
			if emitted[file] {
				continue
			}
			emitted[file] = true
			if !pipeline.Emit(ctx, s, out, file) {
				return nil
			}
		}
	}
}

// Collect returns the config files of project name below configDir, sorted by
// extension priority and then by path.
func (f *FindFiles) Collect(s *session.Session, configDir, name string) []string {
	found := make(map[string]bool)

	for _, prefix := range Prefixes(name) {
		base := filepath.Join(configDir, filepath.FromSlash(prefix))

		parent, stem := filepath.Dir(base), filepath.Base(base)
		if entries, ok := f.list(s, parent); ok {
			for _, ext := range f.extensions {
				if hasFile(entries, stem+ext) {
					found[base+ext] = true
				}
			}
		}

		if entries, ok := f.list(s, base); ok {
			for _, e := range entries {
				if e.IsDir() || !f.extSet[filepath.Ext(e.Name)] {
					continue
				}
				found[filepath.Join(base, e.Name)] = true
			}
		}
	}

	files := make([]string, 0, len(found))
	for file := range found {
		files = append(files, file)
	}
	SortByPriority(files)
	return files
}

func (f *FindFiles) list(s *session.Session, dir string) ([]domain.DirEntry, bool) {
	if dc := s.DirectoryCache(); dc != nil {
		return dc.Get(dir)
	}
	if f.fs == nil {
		return nil, false
	}

	var entries []domain.DirEntry
	err := f.fs.ReadDir(dir, listBatch, func(batch []fs.DirEntry) {
		for _, e := range batch {
			entries = append(entries, domain.DirEntry{Name: e.Name(), Type: e.Type()})
		}
	})
	if err != nil {
		return nil, false
	}
	return entries, true
}

func hasFile(entries []domain.DirEntry, name string) bool {
	for _, e := range entries {
		if e.Name == name && !e.IsDir() {
			return true
		}
	}
	return false
}

// Prefixes splits a slash separated project name into cumulative prefixes:
// "a/b/c" yields "a", "a/b", "a/b/c".
func Prefixes(name string) []string {
	var prefixes []string
	var b strings.Builder
	for part := range strings.SplitSeq(name, "/") {
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString(part)
		prefixes = append(prefixes, b.String())
	}
	return prefixes
}

// ExtensionPriority ranks an extension for load order: .json, then .lua,
// then .vim, then everything else.
func ExtensionPriority(ext string) int {
	switch ext {
	case domain.ExtJSON:
		return 0
	case domain.ExtLua:
		return 1
	case domain.ExtVim:
		return 2
	default:
		return 3
	}
}

// SortByPriority sorts paths by extension priority, breaking ties by path.
func SortByPriority(paths []string) {
	slices.SortFunc(paths, func(a, b string) int {
		return cmp.Or(
			cmp.Compare(ExtensionPriority(filepath.Ext(a)), ExtensionPriority(filepath.Ext(b))),
			strings.Compare(a, b),
		)
	})
}
