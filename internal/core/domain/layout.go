package domain

import "path/filepath"

const (
	// AppName is the name used for settings and config directories.
	AppName = "rootconf"

	// SettingsFileName is the name of the tool settings file.
	SettingsFileName = "rootconf.yaml"

	// ProjectsDirName is the name of the default per-project config directory.
	ProjectsDirName = "projects"

	// MarkerFileName is a project root marker recognised in addition to VCS directories.
	MarkerFileName = ".rootconf"

	// ExtJSON is the extension of JSON config files.
	ExtJSON = ".json"
	// ExtLua is the extension of Lua config files.
	ExtLua = ".lua"
	// ExtVim is the extension of Vim script config files.
	ExtVim = ".vim"
	// ExtYAML is the extension of YAML config files.
	ExtYAML = ".yaml"
	// ExtYML is the short extension of YAML config files.
	ExtYML = ".yml"
	// ExtTOML is the extension of TOML config files.
	ExtTOML = ".toml"
	// ExtCUE is the extension of CUE config files.
	ExtCUE = ".cue"
	// ExtShell is the extension of shell config files.
	ExtShell = ".sh"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultExtensions returns the extensions searched when none are configured.
func DefaultExtensions() []string {
	return []string{ExtLua, ExtVim, ExtJSON}
}

// DefaultMarkers returns the root markers used when none are configured.
func DefaultMarkers() []string {
	return []string{".git", ".hg", ".svn", "go.mod", "package.json", "Cargo.toml", MarkerFileName}
}

// DefaultConfigDir returns the default project config directory below the given base config directory.
// It joins base, rootconf and projects.
func DefaultConfigDir(base string) string {
	return filepath.Join(base, AppName, ProjectsDirName)
}

// DefaultSettingsPath returns the default settings file path below the given base config directory.
// It joins base, rootconf and rootconf.yaml.
func DefaultSettingsPath(base string) string {
	return filepath.Join(base, AppName, SettingsFileName)
}
