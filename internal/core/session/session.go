// Package session holds the shared state threaded through a configuration load.
package session

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/mitchellh/mapstructure"
	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/ports"
	"go.trai.ch/zerr"
)

// Executor applies one config file to a Session.
type Executor interface {
	// Execute applies the file at path. It returns an error instead of
	// swallowing failures.
	Execute(ctx context.Context, s *Session, path string) error
}

// ExecutorFunc adapts a plain function to an Executor.
type ExecutorFunc func(ctx context.Context, s *Session, path string) error

// Execute calls f(ctx, s, path).
func (f ExecutorFunc) Execute(ctx context.Context, s *Session, path string) error {
	return f(ctx, s, path)
}

// ExecOptions holds the per-extension execution options.
type ExecOptions struct {
	// Async dispatches the executor without blocking the Execute stage.
	Async bool `yaml:"async"`
}

// Closer is a queue that can be abandoned by Stop.
type Closer interface {
	Close()
}

// Session is the mutable, session-scoped record shared by every stage and
// cache call of a configuration load.
type Session struct {
	startDir      string
	configDir     string
	configDirFunc func() (string, error)
	execOptions   map[string]ExecOptions

	dirs  ports.DirectoryCache
	files ports.FileCache

	onLoad  func(*Session)
	onError func(err error, s *Session, path string)

	mu          sync.RWMutex
	root        string
	name        string
	data        *domain.Store
	loaded      map[string]bool
	writeTarget string
	run         *RunState
}

// RunState is the stop token of one pipeline run. Stopping it marks the run
// as stopped and closes its queues so blocked receivers observe end-of-stream.
type RunState struct {
	stopped atomic.Bool

	mu     sync.Mutex
	queues []Closer
}

// Stop marks the run as stopped and closes its queues. It is idempotent.
func (r *RunState) Stop() {
	r.stopped.Store(true)

	r.mu.Lock()
	queues := r.queues
	r.queues = nil
	r.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
}

// Stopped reports whether Stop was called for this run.
func (r *RunState) Stopped() bool {
	return r.stopped.Load()
}

type runStateKey struct{}

// WithRunState returns a copy of ctx carrying the stop token of a run.
func WithRunState(ctx context.Context, r *RunState) context.Context {
	return context.WithValue(ctx, runStateKey{}, r)
}

// RunStateFrom returns the stop token carried by ctx, or nil.
func RunStateFrom(ctx context.Context) *RunState {
	r, _ := ctx.Value(runStateKey{}).(*RunState)
	return r
}

// Option configures a Session.
type Option func(*Session)

// WithConfigDir sets a fixed config directory.
func WithConfigDir(dir string) Option {
	return func(s *Session) {
		s.configDir = dir
	}
}

// WithConfigDirFunc sets a function that produces the config directory on demand.
func WithConfigDirFunc(fn func() (string, error)) Option {
	return func(s *Session) {
		s.configDirFunc = fn
	}
}

// WithCaches attaches the directory and file caches.
func WithCaches(dirs ports.DirectoryCache, files ports.FileCache) Option {
	return func(s *Session) {
		s.dirs = dirs
		s.files = files
	}
}

// WithOnLoad sets the completion callback.
func WithOnLoad(fn func(*Session)) Option {
	return func(s *Session) {
		s.onLoad = fn
	}
}

// WithOnError sets the callback invoked for every failed config file.
func WithOnError(fn func(err error, s *Session, path string)) Option {
	return func(s *Session) {
		s.onError = fn
	}
}

// WithExecOptions sets the per-extension execution options.
func WithExecOptions(opts map[string]ExecOptions) Option {
	return func(s *Session) {
		s.execOptions = opts
	}
}

// New creates a Session starting at startDir.
func New(startDir string, opts ...Option) *Session {
	s := &Session{
		startDir: startDir,
		data:     domain.NewStore(),
		loaded:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartDir returns the directory the load starts from.
func (s *Session) StartDir() string {
	return s.startDir
}

// ConfigDir resolves the config directory.
func (s *Session) ConfigDir() (string, error) {
	if s.configDirFunc != nil {
		dir, err := s.configDirFunc()
		if err != nil {
			return "", domain.Wrap(err, domain.ErrConfigDirUnresolved)
		}
		if dir != "" {
			return dir, nil
		}
	}
	if s.configDir == "" {
		return "", domain.ErrConfigDirUnresolved
	}
	return s.configDir, nil
}

// DirectoryCache returns the attached directory cache, or nil.
func (s *Session) DirectoryCache() ports.DirectoryCache {
	return s.dirs
}

// FileCache returns the attached file cache, or nil.
func (s *Session) FileCache() ports.FileCache {
	return s.files
}

// ExecOptions returns the execution options for the given extension.
func (s *Session) ExecOptions(ext string) ExecOptions {
	return s.execOptions[ext]
}

// SetRoot records the project root and name. Only the first call of a run
// takes effect; it reports whether this call set the root.
func (s *Session) SetRoot(root, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root != "" {
		return false
	}
	s.root = root
	s.name = name
	return true
}

// Root returns the detected project root, or "" if none was detected.
func (s *Session) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// ProjectName returns the detected project name, or "".
func (s *Session) ProjectName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Data returns the merged configuration.
func (s *Session) Data() *domain.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// MarkLoaded records path as successfully applied.
func (s *Session) MarkLoaded(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded[path] = true
}

// IsLoaded reports whether path was already applied.
func (s *Session) IsLoaded(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[path]
}

// LoadedFiles returns the applied files in sorted order.
func (s *Session) LoadedFiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]string, 0, len(s.loaded))
	for p := range s.loaded {
		files = append(files, p)
	}
	slices.Sort(files)
	return files
}

// SetWriteTarget records the config file that writes should go to.
func (s *Session) SetWriteTarget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeTarget = path
}

// WriteTarget returns the recorded write target, or "".
func (s *Session) WriteTarget() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writeTarget
}

// BeginRun installs the stop token of a new run owning queues and returns it.
// Earlier runs keep their own tokens.
func (s *Session) BeginRun(queues []Closer) *RunState {
	r := &RunState{queues: queues}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = r
	return r
}

// Stop stops the current run. Stopping a session that never ran marks it
// stopped so a later stage observes it. It is idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	r := s.run
	if r == nil {
		r = &RunState{}
		s.run = r
	}
	s.mu.Unlock()

	r.Stop()
}

// Stopped reports whether the current run was stopped.
func (s *Session) Stopped() bool {
	s.mu.RLock()
	r := s.run
	s.mu.RUnlock()
	return r != nil && r.Stopped()
}

// StoppedIn reports whether the run carried by ctx was stopped, falling back
// to the current run when ctx carries none.
func (s *Session) StoppedIn(ctx context.Context) bool {
	if r := RunStateFrom(ctx); r != nil {
		return r.Stopped()
	}
	return s.Stopped()
}

// Clear resets the detected root, name, loaded set and write target and
// replaces the merged configuration with an empty Store.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.root = ""
	s.name = ""
	s.loaded = make(map[string]bool)
	s.writeTarget = ""
	s.data = domain.NewStore()
}

// NotifyLoaded invokes the completion callback, if any.
func (s *Session) NotifyLoaded() {
	if s.onLoad != nil {
		s.onLoad(s)
	}
}

// ReportError invokes the error callback, if any.
func (s *Session) ReportError(err error, path string) {
	if s.onError != nil {
		s.onError(err, s, path)
	}
}

// Decode decodes the merged configuration at the dotted key into target.
// An empty key decodes the whole configuration.
func (s *Session) Decode(key string, target any) error {
	var input any
	if key == "" {
		input = s.Data().Map()
	} else {
		v, ok := s.Data().GetDotted(key)
		if !ok {
			return domain.With(domain.ErrKeyNotFound, "key", key)
		}
		input = v
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return domain.Wrap(err, domain.ErrDecodeFailed)
	}
	if err := decoder.Decode(input); err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrDecodeFailed), "key", key)
	}
	return nil
}
