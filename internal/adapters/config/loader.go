// Package config loads the rootconf tool settings.
package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/rootconf/internal/adapters/naming"
	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/ports"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

const (
	// EnvSettings overrides the settings file location.
	EnvSettings = "ROOTCONF_SETTINGS"
	// EnvConfigDir overrides the configDir setting.
	EnvConfigDir = "ROOTCONF_CONFIG_DIR"
	// EnvXDGConfigHome is the XDG base directory for user configuration.
	EnvXDGConfigHome = "XDG_CONFIG_HOME"
)

// Loader reads rootconf.yaml and resolves the tool settings.
type Loader struct {
	fs     ports.FileSystem
	getenv func(string) string
	home   func() (string, error)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithEnv replaces the environment lookup.
func WithEnv(getenv func(string) string) LoaderOption {
	return func(l *Loader) {
		l.getenv = getenv
	}
}

// WithHome replaces the home directory lookup.
func WithHome(home string) LoaderOption {
	return func(l *Loader) {
		l.home = func() (string, error) { return home, nil }
	}
}

// NewLoader creates a new Loader reading through fs.
func NewLoader(fs ports.FileSystem, opts ...LoaderOption) *Loader {
	l := &Loader{fs: fs, getenv: os.Getenv, home: os.UserHomeDir}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Home returns the user's home directory, or "" when it is unknown.
func (l *Loader) Home() string {
	home, err := l.home()
	if err != nil {
		return ""
	}
	return home
}

// baseConfigDir returns $XDG_CONFIG_HOME, falling back to ~/.config.
func (l *Loader) baseConfigDir() string {
	if xdg := l.getenv(EnvXDGConfigHome); xdg != "" {
		return xdg
	}
	return filepath.Join(l.Home(), ".config")
}

// SettingsPath returns the settings file to read. An explicit path wins over
// $ROOTCONF_SETTINGS, which wins over the XDG default.
func (l *Loader) SettingsPath(explicit string) string {
	if explicit != "" {
		return l.expandHome(explicit)
	}
	if env := l.getenv(EnvSettings); env != "" {
		return l.expandHome(env)
	}
	return domain.DefaultSettingsPath(l.baseConfigDir())
}

// Load reads the settings file at SettingsPath(explicit). A missing file
// yields the defaults.
func (l *Loader) Load(explicit string) (*Settings, error) {
	path := l.SettingsPath(explicit)

	var file SettingsFile
	if err := l.readAndUnmarshalYAML(path, &file); err != nil {
		return nil, zerr.With(err, "path", path)
	}

	settings, err := l.resolve(file)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	settings.Path = path
	return settings, nil
}

func (l *Loader) readAndUnmarshalYAML(path string, target *SettingsFile) error {
	data, err := l.fs.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return domain.Wrap(err, domain.ErrSettingsReadFailed)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return domain.Wrap(err, domain.ErrSettingsParseFailed)
	}
	return nil
}

func (l *Loader) resolve(file SettingsFile) (*Settings, error) {
	s := &Settings{
		ConfigDir:  file.ConfigDir,
		Markers:    slices.Clone(file.Markers),
		Extensions: slices.Clone(file.Extensions),
		Executors:  file.Executors,
		TrustMtime: true,
		Persist:    true,
		Naming:     file.Naming,
	}

	if env := l.getenv(EnvConfigDir); env != "" {
		s.ConfigDir = env
	}
	if s.ConfigDir == "" {
		s.ConfigDir = domain.DefaultConfigDir(l.baseConfigDir())
	}
	s.ConfigDir = l.expandHome(s.ConfigDir)

	if len(s.Markers) == 0 {
		s.Markers = domain.DefaultMarkers()
	}
	if len(s.Extensions) == 0 {
		s.Extensions = domain.DefaultExtensions()
	}
	for _, ext := range s.Extensions {
		if len(ext) < 2 || !strings.HasPrefix(ext, ".") {
			return nil, domain.With(domain.ErrInvalidExtension, "extension", ext)
		}
	}
	if s.Executors == nil {
		s.Executors = make(map[string]session.ExecOptions)
	}
	if file.TrustMtime != nil {
		s.TrustMtime = *file.TrustMtime
	}
	if file.Persist != nil {
		s.Persist = *file.Persist
	}
	if s.Naming == "" {
		s.Naming = naming.StrategyHome
	}
	if _, err := naming.ForStrategy(s.Naming, ""); err != nil {
		return nil, domain.Wrap(err, domain.ErrSettingsParseFailed)
	}
	return s, nil
}

// expandHome replaces a leading ~ with the home directory.
func (l *Loader) expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home := l.Home()
	if home == "" {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
