// Package app implements the application layer for rootconf.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"go.trai.ch/rootconf/internal/adapters/cache"
	"go.trai.ch/rootconf/internal/adapters/config"
	"go.trai.ch/rootconf/internal/adapters/executor"
	rcfs "go.trai.ch/rootconf/internal/adapters/fs"
	"go.trai.ch/rootconf/internal/adapters/matcher"
	"go.trai.ch/rootconf/internal/adapters/naming"
	"go.trai.ch/rootconf/internal/adapters/watcher"
	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/ports"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/rootconf/internal/engine/pipeline"
	"go.trai.ch/rootconf/internal/engine/stages"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	loader  *config.Loader
	fs      ports.FileSystem
	dirs    *cache.DirCache
	files   *cache.FileCache
	execs   *executor.Executors
	engine  *pipeline.Engine
	watcher ports.Watcher
	logger  ports.Logger
	tracer  ports.Tracer

	mu       sync.Mutex
	settings *config.Settings
	namer    naming.Namer
}

// New creates a new App instance.
func New(
	loader *config.Loader,
	fsys ports.FileSystem,
	dirs *cache.DirCache,
	files *cache.FileCache,
	execs *executor.Executors,
	engine *pipeline.Engine,
	w ports.Watcher,
	log ports.Logger,
	tracer ports.Tracer,
) *App {
	return &App{
		loader:  loader,
		fs:      fsys,
		dirs:    dirs,
		files:   files,
		execs:   execs,
		engine:  engine,
		watcher: w,
		logger:  log,
		tracer:  tracer,
	}
}

// ConfigureOptions selects the settings file and overrides parts of it.
type ConfigureOptions struct {
	// SettingsPath is an explicit settings file. Empty uses the default lookup.
	SettingsPath string
	// ConfigDir replaces the configured config directory when set.
	ConfigDir string
}

// Configure loads the tool settings and applies them to the caches.
func (a *App) Configure(opts ConfigureOptions) error {
	settings, err := a.loader.Load(opts.SettingsPath)
	if err != nil {
		return zerr.Wrap(err, "failed to load settings")
	}
	if opts.ConfigDir != "" {
		dir, err := filepath.Abs(opts.ConfigDir)
		if err != nil {
			return zerr.With(domain.Wrap(err, domain.ErrConfigDirUnresolved), "path", opts.ConfigDir)
		}
		settings.ConfigDir = dir
	}

	namer, err := naming.ForStrategy(settings.Naming, a.loader.Home())
	if err != nil {
		return err
	}

	a.dirs.SetTrustMtime(settings.TrustMtime)
	a.files.SetTrustMtime(settings.TrustMtime)

	a.mu.Lock()
	a.settings = settings
	a.namer = namer
	a.mu.Unlock()

	a.logger.Debug(fmt.Sprintf("settings %s, config dir %s", settings.Path, settings.ConfigDir))
	return nil
}

// Settings returns the active settings, loading the defaults on first use.
func (a *App) Settings() (*config.Settings, error) {
	a.mu.Lock()
	settings := a.settings
	a.mu.Unlock()

	if settings != nil {
		return settings, nil
	}
	if err := a.Configure(ConfigureOptions{}); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings, nil
}

// ConfigureLogging switches the logger to JSON output or debug level when it
// supports it.
func (a *App) ConfigureLogging(jsonLogs, verbose bool) {
	type configurable interface {
		SetJSON(enable bool)
		SetVerbose(enable bool)
	}
	if l, ok := a.logger.(configurable); ok {
		l.SetJSON(jsonLogs)
		l.SetVerbose(verbose)
	}
}

// FileError is an executor failure reported for one config file.
type FileError struct {
	Path string
	Err  error
}

// Result is the outcome of one load.
type Result struct {
	// Session holds the detected project and the merged configuration.
	Session *session.Session
	// Failures lists the config files that could not be applied, in report order.
	Failures []FileError
}

// JSON returns the merged configuration as indented JSON in insertion order.
func (r *Result) JSON() ([]byte, error) {
	return executor.MarshalData(r.Session)
}

// recorder collects the executor failures of a session.
type recorder struct {
	logger ports.Logger

	mu       sync.Mutex
	failures []FileError
}

func (r *recorder) record(err error, _ *session.Session, path string) {
	r.logger.Error(err)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, FileError{Path: path, Err: err})
}

func (r *recorder) take() []FileError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.failures
	r.failures = nil
	return out
}

// Load detects the project containing startDir and loads its config files.
func (a *App) Load(ctx context.Context, startDir string) (*Result, error) {
	s, rec, err := a.open(startDir)
	if err != nil {
		return nil, err
	}
	return a.run(ctx, s, rec)
}

// Clear stops any pipeline run of s and resets its project and merged configuration.
func (a *App) Clear(s *session.Session) {
	a.engine.Stop(s)
	s.Clear()
}

// Get loads the project containing startDir and returns the value at the
// dotted key.
func (a *App) Get(ctx context.Context, startDir, key string) (any, error) {
	if len(domain.SplitKey(key)) == 0 {
		return nil, domain.With(domain.ErrInvalidAssignment, "key", key)
	}

	res, err := a.Load(ctx, startDir)
	if err != nil {
		return nil, err
	}
	v, ok := res.Session.Data().GetDotted(key)
	if !ok {
		return nil, domain.With(domain.ErrKeyNotFound, "key", key)
	}
	return v, nil
}

// SetOptions configures Set.
type SetOptions struct {
	// Target overrides the file the configuration is written to.
	Target string
}

// Set loads the project containing startDir, assigns value at the dotted key
// and writes the merged configuration back. raw is decoded as JSON when
// possible and stored as a string otherwise. It returns the written file.
func (a *App) Set(ctx context.Context, startDir, key, raw string, opts SetOptions) (string, error) {
	if len(domain.SplitKey(key)) == 0 {
		return "", domain.With(domain.ErrInvalidAssignment, "key", key)
	}

	settings, err := a.Settings()
	if err != nil {
		return "", err
	}
	res, err := a.Load(ctx, startDir)
	if err != nil {
		return "", err
	}

	s := res.Session
	if s.Root() == "" {
		return "", domain.With(domain.ErrNoProjectRoot, "path", s.StartDir())
	}
	if opts.Target != "" {
		target, err := filepath.Abs(opts.Target)
		if err != nil {
			return "", zerr.With(domain.Wrap(err, domain.ErrWriteFailed), "path", opts.Target)
		}
		s.SetWriteTarget(target)
	}
	target, err := executor.WriteTarget(s)
	if err != nil {
		return "", err
	}

	s.Data().SetDotted(key, ParseValue(raw))
	if !settings.Persist && !executor.WriteJSON(s, a.files) {
		return "", domain.With(domain.ErrCacheClosed, "path", target)
	}
	if err := a.files.Flush(ctx); err != nil {
		return "", err
	}
	return target, nil
}

// ParseValue decodes raw as a single JSON value, falling back to the raw
// string. Numbers stay json.Number so large integers are written back as typed.
func ParseValue(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return raw
	}
	return v
}

// Watch loads the project containing startDir and reloads it whenever a
// relevant file below the config directory changes. onReload receives the
// initial load and every reload. Watch returns when ctx is done.
func (a *App) Watch(ctx context.Context, startDir string, onReload func(*Result)) error {
	s, rec, err := a.open(startDir)
	if err != nil {
		return err
	}
	res, err := a.run(ctx, s, rec)
	if err != nil {
		return err
	}
	if onReload != nil {
		onReload(res)
	}

	configDir, err := s.ConfigDir()
	if err != nil {
		return err
	}
	if err := a.fs.MkdirAll(configDir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create config directory"), "path", configDir)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.watcher.Start(ctx, configDir); err != nil {
		return err
	}
	defer func() {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Error(zerr.Wrap(err, "failed to stop watcher"))
		}
	}()
	a.logger.Info("watching " + configDir)

	batches := make(chan []string)
	debouncer := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func(paths []string) {
		select {
		case batches <- paths:
		case <-ctx.Done():
		}
	})
	go func() {
		for event := range a.watcher.Events() {
			debouncer.Add(event.Path)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-batches:
			if !a.Invalidate(s, paths) {
				continue
			}
			a.Clear(s)
			res, err := a.run(ctx, s, rec)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.Error(zerr.Wrap(err, "reload failed"))
				continue
			}
			a.logger.Info(fmt.Sprintf("reloaded %d config files", len(s.LoadedFiles())))
			if onReload != nil {
				onReload(res)
			}
		}
	}
}

// Invalidate drops the cached listings and contents of the changed paths and
// reports whether any of them affects the configuration loaded into s.
func (a *App) Invalidate(s *session.Session, paths []string) bool {
	settings, err := a.Settings()
	if err != nil {
		return false
	}

	changed := false
	for _, path := range paths {
		a.dirs.Invalidate(path)
		a.dirs.Invalidate(filepath.Dir(path))
		if a.affects(s, settings, path) {
			a.logger.Debug("changed " + path)
			changed = true
		}
		a.files.Invalidate(path)
	}
	return changed
}

// affects reports whether path is a loaded config file whose content changed,
// or a new config file the project would pick up.
func (a *App) affects(s *session.Session, settings *config.Settings, path string) bool {
	if !hasExtension(settings.Extensions, filepath.Ext(path)) {
		return false
	}

	content, err := a.fs.ReadFile(path)
	if err != nil {
		return s.IsLoaded(path)
	}
	if s.IsLoaded(path) {
		entry, ok := a.files.Peek(path)
		return !ok || entry.Sum != rcfs.Sum(content)
	}
	return isCandidate(s, path)
}

// isCandidate reports whether FindFiles would collect path for the project of s.
func isCandidate(s *session.Session, path string) bool {
	configDir, err := s.ConfigDir()
	if err != nil || s.ProjectName() == "" {
		return false
	}
	rel, err := filepath.Rel(configDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)

	stem := strings.TrimSuffix(rel, filepath.Ext(rel))
	dir := filepath.ToSlash(filepath.Dir(rel))
	for _, prefix := range stages.Prefixes(s.ProjectName()) {
		if stem == prefix || dir == prefix {
			return true
		}
	}
	return false
}

func hasExtension(extensions []string, ext string) bool {
	for _, e := range extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// open creates a session for startDir wired to the App's caches and settings.
func (a *App) open(startDir string) (*session.Session, *recorder, error) {
	settings, err := a.Settings()
	if err != nil {
		return nil, nil, err
	}
	start, err := filepath.Abs(startDir)
	if err != nil {
		return nil, nil, zerr.With(zerr.Wrap(err, "failed to resolve start path"), "path", startDir)
	}

	rec := &recorder{logger: a.logger}
	s := session.New(start,
		session.WithConfigDir(settings.ConfigDir),
		session.WithCaches(a.dirs, a.files),
		session.WithExecOptions(settings.Executors),
		session.WithOnError(rec.record),
	)
	return s, rec, nil
}

// run executes one pipeline run over s and waits for it.
func (a *App) run(ctx context.Context, s *session.Session, rec *recorder) (*Result, error) {
	settings, err := a.Settings()
	if err != nil {
		return nil, err
	}
	chain, err := a.stages(settings)
	if err != nil {
		return nil, err
	}

	run := a.engine.Run(ctx, s, chain, s.StartDir())
	if err := run.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			a.engine.Stop(s)
		}
		return nil, zerr.Wrap(err, "failed to load config")
	}

	if settings.Persist {
		a.persist(s)
	}
	return &Result{Session: s, Failures: rec.take()}, nil
}

// persist writes the merged configuration of s back to disk on every change.
// The listener lives on the current Store and is dropped with it on Clear.
func (a *App) persist(s *session.Session) {
	s.Data().OnChange(func([]string, any) {
		if !executor.WriteJSON(s, a.files) {
			a.logger.Warn("config change of " + s.Root() + " was not persisted")
		}
	})
}

// stages builds the Walk, Detect, FindFiles and Execute chain for settings.
func (a *App) stages(settings *config.Settings) ([]pipeline.Stage, error) {
	walk, err := stages.NewWalk(stages.WalkOptions{Direction: stages.DirectionUp, FS: a.fs})
	if err != nil {
		return nil, err
	}

	markers, err := matcher.FromMarkers(a.dirs, settings.Markers)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	namer := a.namer
	a.mu.Unlock()
	detect := stages.NewDetect(stages.DetectOptions{
		Matcher: markers,
		OnMatch: func(s *session.Session, path string) {
			if s.SetRoot(path, namer(path)) {
				a.logger.Debug(fmt.Sprintf("project root %s (%s)", path, s.ProjectName()))
			}
		},
	})

	find, err := stages.NewFindFiles(stages.FindFilesOptions{Extensions: settings.Extensions, FS: a.fs})
	if err != nil {
		return nil, err
	}

	execute := stages.NewExecute(stages.ExecuteOptions{
		Router: a.execs.Router(settings.Extensions),
		Tracer: a.tracer,
	})

	return []pipeline.Stage{walk, detect, find, execute}, nil
}

// Close flushes pending writes and stops the file cache writer.
func (a *App) Close(ctx context.Context) error {
	err := a.files.Flush(ctx)
	a.files.Close()
	return err
}
