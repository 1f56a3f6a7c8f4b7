// Package matcher provides path predicates used to detect project roots.
package matcher

import (
	"path/filepath"
	"strings"

	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/ports"
	"go.trai.ch/zerr"
)

// Lister lists directories. ports.DirectoryCache satisfies it.
type Lister interface {
	Get(path string) ([]domain.DirEntry, bool)
}

// Name matches directories that contain an entry called name, file or directory.
func Name(l Lister, name string) ports.Matcher {
	return ports.MatcherFunc(func(dir string) bool {
		entries, ok := l.Get(dir)
		if !ok {
			return false
		}
		for _, e := range entries {
			if e.Name == name {
				return true
			}
		}
		return false
	})
}

// Pattern matches directories that contain an entry whose name matches the
// filepath.Match pattern.
func Pattern(l Lister, pattern string) (ports.Matcher, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "invalid marker pattern"), "pattern", pattern)
	}
	return ports.MatcherFunc(func(dir string) bool {
		entries, ok := l.Get(dir)
		if !ok {
			return false
		}
		for _, e := range entries {
			if ok, _ := filepath.Match(pattern, e.Name); ok {
				return true
			}
		}
		return false
	}), nil
}

// Func adapts fn to a Matcher.
func Func(fn func(dir string) bool) ports.Matcher {
	return ports.MatcherFunc(fn)
}

// Any matches when at least one of ms matches. Evaluation stops at the first
// match. Any with no matchers matches nothing.
func Any(ms ...ports.Matcher) ports.Matcher {
	return ports.MatcherFunc(func(dir string) bool {
		for _, m := range ms {
			if m.Match(dir) {
				return true
			}
		}
		return false
	})
}

// All matches when every one of ms matches. All with no matchers matches everything.
func All(ms ...ports.Matcher) ports.Matcher {
	return ports.MatcherFunc(func(dir string) bool {
		for _, m := range ms {
			if !m.Match(dir) {
				return false
			}
		}
		return true
	})
}

// Not inverts m.
func Not(m ports.Matcher) ports.Matcher {
	return ports.MatcherFunc(func(dir string) bool {
		return !m.Match(dir)
	})
}

// FromMarkers builds the root matcher for a list of markers. Markers holding
// glob metacharacters become patterns, the rest literal names.
func FromMarkers(l Lister, markers []string) (ports.Matcher, error) {
	ms := make([]ports.Matcher, 0, len(markers))
	for _, marker := range markers {
		if !isPattern(marker) {
			ms = append(ms, Name(l, marker))
			continue
		}
		m, err := Pattern(l, marker)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return Any(ms...), nil
}

func isPattern(s string) bool {
	return strings.ContainsAny(s, `*?[\`)
}
