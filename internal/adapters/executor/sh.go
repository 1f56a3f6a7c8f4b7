package executor

import (
	"bytes"
	"context"
	"io"
	"maps"
	"os"
	"path/filepath"

	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/zerr"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

var (
	errExecDisabled = zerr.New("external commands are disabled in config scripts")
	errOpenDisabled = zerr.New("file access is disabled in config scripts")
)

// Shell returns the executor for .sh files. The script runs in an embedded
// POSIX shell in the project root with external commands and file access
// disabled. Variables it exports become top-level keys.
//
// The script sees PROJECT_ROOT, PROJECT_NAME and ROOTCONF_CONFIG_DIR.
func (x *Executors) Shell() session.Executor {
	return session.ExecutorFunc(x.applyShell)
}

func (x *Executors) applyShell(ctx context.Context, s *session.Session, path string) error {
	entry, err := x.read(s, path)
	if err != nil {
		return err
	}

	file, err := syntax.NewParser().Parse(bytes.NewReader(entry.Content), path)
	if err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrShellFailed), "path", path)
	}

	dir := s.Root()
	if dir == "" {
		dir = filepath.Dir(path)
	}
	configDir, _ := s.ConfigDir()
	runner, err := interp.New(
		interp.Env(expand.ListEnviron(
			"PROJECT_ROOT="+s.Root(),
			"PROJECT_NAME="+s.ProjectName(),
			"ROOTCONF_CONFIG_DIR="+configDir,
		)),
		interp.Dir(dir),
		interp.StdIO(nil, io.Discard, io.Discard),
		interp.ExecHandlers(denyExec),
		interp.OpenHandler(devNullOnly),
	)
	if err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrShellFailed), "path", path)
	}

	// An empty run records the variables the interpreter sets on its own.
	if err := runner.Run(ctx, &syntax.File{}); err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrShellFailed), "path", path)
	}
	baseline := maps.Clone(runner.Vars)

	if err := runner.Run(ctx, file); err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrShellFailed), "path", path)
	}

	exported := make(map[string]any)
	for name, v := range runner.Vars {
		if !v.Exported || v.Kind != expand.String {
			continue
		}
		if before, ok := baseline[name]; ok && before.String() == v.String() {
			continue
		}
		exported[name] = v.String()
	}
	s.Data().Merge(exported)
	return nil
}

func denyExec(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(_ context.Context, args []string) error {
		return zerr.With(errExecDisabled, "command", args[0])
	}
}

func devNullOnly(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == os.DevNull {
		return interp.DefaultOpenHandler()(ctx, path, flag, perm)
	}
	return nil, zerr.With(errOpenDisabled, "path", path)
}
