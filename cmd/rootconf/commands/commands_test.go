package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rootconf/cmd/rootconf/commands"
	"go.trai.ch/rootconf/internal/app"
	"go.trai.ch/rootconf/internal/build"
	"go.trai.ch/rootconf/internal/core/session"
)

type mockApp struct {
	configureFunc func(opts app.ConfigureOptions) error
	loggingFunc   func(jsonLogs, verbose bool)
	loadFunc      func(ctx context.Context, startDir string) (*app.Result, error)
	getFunc       func(ctx context.Context, startDir, key string) (any, error)
	setFunc       func(ctx context.Context, startDir, key, raw string, opts app.SetOptions) (string, error)
	watchFunc     func(ctx context.Context, startDir string, onReload func(*app.Result)) error
}

func (m *mockApp) Configure(opts app.ConfigureOptions) error {
	if m.configureFunc != nil {
		return m.configureFunc(opts)
	}
	return nil
}

func (m *mockApp) ConfigureLogging(jsonLogs, verbose bool) {
	if m.loggingFunc != nil {
		m.loggingFunc(jsonLogs, verbose)
	}
}

func (m *mockApp) Load(ctx context.Context, startDir string) (*app.Result, error) {
	if m.loadFunc != nil {
		return m.loadFunc(ctx, startDir)
	}
	return &app.Result{Session: session.New(startDir)}, nil
}

func (m *mockApp) Get(ctx context.Context, startDir, key string) (any, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, startDir, key)
	}
	return nil, nil
}

func (m *mockApp) Set(ctx context.Context, startDir, key, raw string, opts app.SetOptions) (string, error) {
	if m.setFunc != nil {
		return m.setFunc(ctx, startDir, key, raw, opts)
	}
	return "", nil
}

func (m *mockApp) Watch(ctx context.Context, startDir string, onReload func(*app.Result)) error {
	if m.watchFunc != nil {
		return m.watchFunc(ctx, startDir, onReload)
	}
	return nil
}

func loadedResult(theme string) *app.Result {
	s := session.New("/home/u/proj/src")
	s.SetRoot("/home/u/proj", "proj")
	s.Data().Set("editor", map[string]any{"theme": theme})
	s.MarkLoaded("/cfg/proj.json")
	return &app.Result{
		Session:  s,
		Failures: []app.FileError{{Path: "/cfg/proj.lua", Err: errors.New("boom")}},
	}
}

func execute(t *testing.T, a commands.Application, args ...string) (string, string, error) {
	t.Helper()
	cli := commands.New(a)
	if args == nil {
		// cobra falls back to os.Args for nil args.
		args = []string{}
	}
	cli.SetArgs(args)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cli.SetOutput(stdout, stderr)
	err := cli.Execute(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestCommands_GlobalFlags(t *testing.T) {
	t.Run("wires flags into configuration", func(t *testing.T) {
		var captured app.ConfigureOptions
		var jsonLogs, verbose bool
		mock := &mockApp{
			configureFunc: func(opts app.ConfigureOptions) error {
				captured = opts
				return nil
			},
			loggingFunc: func(j, v bool) {
				jsonLogs, verbose = j, v
			},
		}

		_, _, err := execute(t, mock, "files", "--config-dir", "/cfg", "--settings", "/s.yaml", "--json-logs", "--verbose")
		require.NoError(t, err)
		assert.Equal(t, app.ConfigureOptions{SettingsPath: "/s.yaml", ConfigDir: "/cfg"}, captured)
		assert.True(t, jsonLogs)
		assert.True(t, verbose)
	})

	t.Run("stops on configuration failure", func(t *testing.T) {
		mock := &mockApp{
			configureFunc: func(app.ConfigureOptions) error { return errors.New("bad settings") },
			loadFunc: func(context.Context, string) (*app.Result, error) {
				panic("should not be called")
			},
		}

		_, _, err := execute(t, mock, "load")
		require.ErrorContains(t, err, "bad settings")
	})
}

func TestCommands_Load(t *testing.T) {
	t.Run("prints the merged config", func(t *testing.T) {
		var captured string
		mock := &mockApp{
			loadFunc: func(_ context.Context, startDir string) (*app.Result, error) {
				captured = startDir
				return loadedResult("dark"), nil
			},
		}

		stdout, _, err := execute(t, mock, "load", "/home/u/proj/src", "--json")
		require.NoError(t, err)
		assert.Equal(t, "/home/u/proj/src", captured)
		assert.Equal(t, "{\n  \"editor\": {\n    \"theme\": \"dark\"\n  }\n}\n", stdout)
	})

	t.Run("defaults to the working directory", func(t *testing.T) {
		var captured string
		mock := &mockApp{
			loadFunc: func(_ context.Context, startDir string) (*app.Result, error) {
				captured = startDir
				return loadedResult("dark"), nil
			},
		}

		_, _, err := execute(t, mock, "load")
		require.NoError(t, err)
		assert.Equal(t, ".", captured)
	})

	t.Run("returns load errors", func(t *testing.T) {
		mock := &mockApp{
			loadFunc: func(context.Context, string) (*app.Result, error) {
				return nil, errors.New("simulated error")
			},
		}

		_, _, err := execute(t, mock, "load")
		require.ErrorContains(t, err, "simulated error")
	})
}

func TestCommands_Root(t *testing.T) {
	mock := &mockApp{
		loadFunc: func(context.Context, string) (*app.Result, error) {
			return loadedResult("dark"), nil
		},
	}

	stdout, _, err := execute(t, mock, "root")
	require.NoError(t, err)
	assert.Equal(t, "/home/u/proj\n", stdout)

	stdout, _, err = execute(t, mock, "root", "--name")
	require.NoError(t, err)
	assert.Equal(t, "proj\n", stdout)

	_, _, err = execute(t, &mockApp{}, "root", "/tmp")
	require.ErrorContains(t, err, "no project root found")
}

func TestCommands_Files(t *testing.T) {
	mock := &mockApp{
		loadFunc: func(context.Context, string) (*app.Result, error) {
			return loadedResult("dark"), nil
		},
	}

	stdout, stderr, err := execute(t, mock, "files")
	require.NoError(t, err)
	assert.Equal(t, "/cfg/proj.json\n", stdout)
	assert.Contains(t, stderr, "/cfg/proj.lua: boom")
}

func TestCommands_Get(t *testing.T) {
	values := map[string]any{
		"editor.theme":    "dark",
		"editor.tabWidth": float64(4),
		"editor":          map[string]any{"theme": "dark"},
	}
	var capturedPath string
	mock := &mockApp{
		getFunc: func(_ context.Context, startDir, key string) (any, error) {
			capturedPath = startDir
			v, ok := values[key]
			if !ok {
				return nil, errors.New("config key not found")
			}
			return v, nil
		},
	}

	stdout, _, err := execute(t, mock, "get", "editor.theme")
	require.NoError(t, err)
	assert.Equal(t, "dark\n", stdout)
	assert.Equal(t, ".", capturedPath)

	stdout, _, err = execute(t, mock, "get", "editor.tabWidth", "--path", "/home/u/proj")
	require.NoError(t, err)
	assert.Equal(t, "4\n", stdout)
	assert.Equal(t, "/home/u/proj", capturedPath)

	stdout, _, err = execute(t, mock, "get", "editor")
	require.NoError(t, err)
	assert.Equal(t, "{\"theme\":\"dark\"}\n", stdout)

	_, _, err = execute(t, mock, "get", "missing")
	require.ErrorContains(t, err, "config key not found")

	_, _, err = execute(t, mock, "get")
	require.Error(t, err)
}

func TestCommands_Set(t *testing.T) {
	var captured []string
	var capturedOpts app.SetOptions
	mock := &mockApp{
		setFunc: func(_ context.Context, startDir, key, raw string, opts app.SetOptions) (string, error) {
			captured = []string{startDir, key, raw}
			capturedOpts = opts
			return "/cfg/proj.json", nil
		},
	}

	stdout, _, err := execute(t, mock, "set", "editor.theme", "light", "-p", "/home/u/proj", "--target", "/cfg/x.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"/home/u/proj", "editor.theme", "light"}, captured)
	assert.Equal(t, app.SetOptions{Target: "/cfg/x.json"}, capturedOpts)
	assert.Equal(t, "/cfg/proj.json\n", stdout)

	_, _, err = execute(t, mock, "set", "only-key")
	require.Error(t, err)
}

func TestCommands_Watch(t *testing.T) {
	mock := &mockApp{
		watchFunc: func(_ context.Context, startDir string, onReload func(*app.Result)) error {
			assert.Equal(t, "/home/u/proj", startDir)
			onReload(loadedResult("dark"))
			onReload(loadedResult("light"))
			return nil
		},
	}

	stdout, _, err := execute(t, mock, "watch", "/home/u/proj")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"theme": "dark"`)
	assert.Contains(t, stdout, `"theme": "light"`)
}

func TestCommands_FlagSetsMerge(t *testing.T) {
	t.Run("no arguments prints help", func(t *testing.T) {
		stdout, _, err := execute(t, &mockApp{})
		require.NoError(t, err)
		assert.Contains(t, stdout, "Usage:")
		assert.Contains(t, stdout, "--verbose")
		for _, name := range []string{"load", "root", "files", "get", "set", "watch", "version"} {
			assert.Contains(t, stdout, name)
		}
	})

	t.Run("-v is the version shorthand", func(t *testing.T) {
		stdout, _, err := execute(t, &mockApp{}, "-v")
		require.NoError(t, err)
		assert.Contains(t, stdout, "rootconf version "+build.Version)
	})

	t.Run("subcommand help inherits global flags", func(t *testing.T) {
		for _, name := range []string{"load", "root", "files", "get", "set", "watch", "version"} {
			stdout, _, err := execute(t, &mockApp{}, name, "--help")
			require.NoError(t, err, name)
			assert.Contains(t, stdout, "--verbose", name)
			assert.Contains(t, stdout, "--config-dir", name)
		}
	})
}

func TestCommands_Version(t *testing.T) {
	mock := &mockApp{
		configureFunc: func(app.ConfigureOptions) error {
			panic("settings are not read for version")
		},
	}

	stdout, _, err := execute(t, mock, "version")
	require.NoError(t, err)
	assert.Equal(t, "rootconf version "+build.Version+" (commit: "+build.Commit+", date: "+build.Date+")\n", stdout)

	stdout, _, err = execute(t, mock, "--version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "rootconf version "+build.Version)
}
