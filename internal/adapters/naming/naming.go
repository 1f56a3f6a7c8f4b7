// Package naming derives a project name from a detected project root.
//
// Names are slash separated. FindFiles splits them into cumulative prefixes
// to locate per-project config files below the config directory.
package naming

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	// StrategyHome names projects relative to the home directory.
	StrategyHome = "home"
	// StrategyAbsolute names projects by their absolute path.
	StrategyAbsolute = "absolute"
	// StrategyGit names projects by the host/owner/repo of their origin remote.
	StrategyGit = "git"
)

// Namer turns a project root into a project name.
type Namer func(root string) string

// Home names root relative to home. Roots outside home fall back to Absolute.
func Home(home string) Namer {
	return func(root string) string {
		if home != "" {
			rel, err := filepath.Rel(home, root)
			if err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
				return filepath.ToSlash(rel)
			}
		}
		return Absolute()(root)
	}
}

// Absolute names root by its absolute path without the volume and the leading separator.
func Absolute() Namer {
	return func(root string) string {
		root = strings.TrimPrefix(filepath.Clean(root), filepath.VolumeName(root))
		return strings.Trim(filepath.ToSlash(root), "/")
	}
}

// Git names root host/owner/repo after its origin remote. Roots that are not in
// a repository or have no usable origin use fallback.
func Git(fallback Namer) Namer {
	return func(root string) string {
		name, err := RemoteName(root)
		if err != nil {
			return fallback(root)
		}
		return name
	}
}

// RemoteName returns host/path of the origin remote of the repository holding dir.
func RemoteName(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", zerr.With(domain.Wrap(err, domain.ErrGitRemoteNotFound), "path", dir)
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		return "", zerr.With(domain.Wrap(err, domain.ErrGitRemoteNotFound), "path", dir)
	}

	for _, raw := range remote.Config().URLs {
		if name, ok := endpointName(raw); ok {
			return name, nil
		}
	}
	return "", domain.With(domain.ErrGitRemoteNotFound, "path", dir)
}

func endpointName(raw string) (string, bool) {
	ep, err := transport.NewEndpoint(raw)
	if err != nil || ep.Host == "" {
		return "", false
	}
	path := strings.TrimSuffix(strings.Trim(ep.Path, "/"), ".git")
	if path == "" {
		return "", false
	}
	return ep.Host + "/" + path, true
}

// ForStrategy returns the Namer for a configured strategy. An empty strategy
// selects StrategyHome.
func ForStrategy(strategy, home string) (Namer, error) {
	switch strategy {
	case "", StrategyHome:
		return Home(home), nil
	case StrategyAbsolute:
		return Absolute(), nil
	case StrategyGit:
		return Git(Home(home)), nil
	default:
		return nil, zerr.With(zerr.New("unknown naming strategy"), "strategy", strategy)
	}
}
