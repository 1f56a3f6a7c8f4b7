package config

import "go.trai.ch/rootconf/internal/core/session"

// SettingsFile represents the structure of the rootconf.yaml settings file.
// Unset fields take their defaults.
type SettingsFile struct {
	ConfigDir  string                         `yaml:"configDir"`
	Markers    []string                       `yaml:"markers"`
	Extensions []string                       `yaml:"extensions"`
	Executors  map[string]session.ExecOptions `yaml:"executors"`
	TrustMtime *bool                          `yaml:"trustMtime"`
	Persist    *bool                          `yaml:"persist"`
	Naming     string                         `yaml:"naming"`
}

// Settings holds the resolved tool settings.
type Settings struct {
	// Path is the settings file that was read, or would have been read.
	Path string
	// ConfigDir is the root of the per-project config files.
	ConfigDir string
	// Markers are the entries identifying a project root.
	Markers []string
	// Extensions are the config file extensions, in lookup order.
	Extensions []string
	// Executors holds per-extension execution options.
	Executors map[string]session.ExecOptions
	// TrustMtime enables mtime validation in both caches.
	TrustMtime bool
	// Persist writes every change of the merged config back to disk.
	Persist bool
	// Naming selects how project names are derived from roots.
	Naming string
}
