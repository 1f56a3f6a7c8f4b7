package domain

import "go.trai.ch/zerr"

var (
	// ErrStageFailed is returned when a pipeline stage body returns an error.
	ErrStageFailed = zerr.New("pipeline stage failed")

	// ErrStagePanicked is returned when a pipeline stage body panics.
	ErrStagePanicked = zerr.New("pipeline stage panicked")

	// ErrExecutorFailed is returned when an executor fails to apply a config file.
	ErrExecutorFailed = zerr.New("executor failed")

	// ErrExecutorPanicked is returned when an executor panics while applying a config file.
	ErrExecutorPanicked = zerr.New("executor panicked")

	// ErrNoExecutor is returned when no executor is routed for a file extension.
	ErrNoExecutor = zerr.New("no executor registered for extension")

	// ErrUnsupportedDirection is returned when a walk stage is configured with a direction other than "up".
	ErrUnsupportedDirection = zerr.New("unsupported walk direction, expected 'up'")

	// ErrConfigDirUnresolved is returned when the config directory cannot be determined.
	ErrConfigDirUnresolved = zerr.New("config directory could not be resolved")

	// ErrMissingProjectName is returned when an operation needs a project name but none was detected.
	ErrMissingProjectName = zerr.New("missing project name")

	// ErrNoProjectRoot is returned when no ancestor of the start path matched the root markers.
	ErrNoProjectRoot = zerr.New("no project root found")

	// ErrSettingsReadFailed is returned when the settings file cannot be read.
	ErrSettingsReadFailed = zerr.New("failed to read settings file")

	// ErrSettingsParseFailed is returned when the settings file cannot be parsed.
	ErrSettingsParseFailed = zerr.New("failed to parse settings file")

	// ErrInvalidExtension is returned when a configured extension does not start with a dot.
	ErrInvalidExtension = zerr.New("invalid extension, expected a leading '.'")

	// ErrWriteFailed is returned when the file cache writer fails to persist a file.
	ErrWriteFailed = zerr.New("failed to write config file")

	// ErrCacheClosed is returned when the file cache writer has been shut down.
	ErrCacheClosed = zerr.New("file cache is closed")

	// ErrNotAnObject is returned when a data file does not contain an object at the top level.
	ErrNotAnObject = zerr.New("config file must contain an object at the top level")

	// ErrJSONDecodeFailed is returned when a JSON config file cannot be decoded.
	ErrJSONDecodeFailed = zerr.New("failed to decode JSON config file")

	// ErrJSONEncodeFailed is returned when the merged config cannot be encoded as JSON.
	ErrJSONEncodeFailed = zerr.New("failed to encode JSON config")

	// ErrLuaFailed is returned when a Lua config file fails to run.
	ErrLuaFailed = zerr.New("failed to run Lua config file")

	// ErrVimSyntax is returned when a Vim config file contains an unsupported line.
	ErrVimSyntax = zerr.New("unsupported vim config syntax")

	// ErrYAMLDecodeFailed is returned when a YAML config file cannot be decoded.
	ErrYAMLDecodeFailed = zerr.New("failed to decode YAML config file")

	// ErrTOMLDecodeFailed is returned when a TOML config file cannot be decoded.
	ErrTOMLDecodeFailed = zerr.New("failed to decode TOML config file")

	// ErrCUEDecodeFailed is returned when a CUE config file cannot be evaluated.
	ErrCUEDecodeFailed = zerr.New("failed to evaluate CUE config file")

	// ErrShellFailed is returned when a shell config file fails to run.
	ErrShellFailed = zerr.New("failed to run shell config file")

	// ErrReadFailed is returned when a config file cannot be read through the file cache.
	ErrReadFailed = zerr.New("failed to read config file")

	// ErrGitRemoteNotFound is returned when a repository has no usable origin remote.
	ErrGitRemoteNotFound = zerr.New("git remote not found")

	// ErrInvalidAssignment is returned when a key/value assignment cannot be parsed.
	ErrInvalidAssignment = zerr.New("invalid assignment")

	// ErrKeyNotFound is returned when a requested config key does not exist.
	ErrKeyNotFound = zerr.New("config key not found")

	// ErrDecodeFailed is returned when merged config cannot be decoded into a target value.
	ErrDecodeFailed = zerr.New("failed to decode config")
)

// Wrap classifies cause as kind. The result matches both kind and cause with
// errors.Is, reads "<kind>: <cause>", and unwraps to cause.
func Wrap(cause, kind error) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{kind: kind, cause: cause}
}

// With attaches a key/value pair to a sentinel. Unlike zerr.With on the
// sentinel itself, the result still matches kind with errors.Is.
func With(kind error, key string, value any) error {
	return zerr.With(zerr.Wrap(kind, ""), key, value)
}

type classifiedError struct {
	kind  error
	cause error
}

func (e *classifiedError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

// Message returns the text of the kind without the cause chain.
func (e *classifiedError) Message() string {
	return e.kind.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func (e *classifiedError) Is(target error) bool {
	return target == e.kind
}
