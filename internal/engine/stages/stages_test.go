package stages_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rootconf/internal/adapters/cache"
	"go.trai.ch/rootconf/internal/adapters/fs"
	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/ports"
	"go.trai.ch/rootconf/internal/core/ports/mocks"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/rootconf/internal/engine/pipeline"
	"go.trai.ch/rootconf/internal/engine/stages"
	"go.trai.ch/rootconf/internal/queue"
	"go.uber.org/mock/gomock"
)

// runStage feeds inputs followed by domain.Done to stage and returns every
// path it emitted.
func runStage(t *testing.T, s *session.Session, stage pipeline.Stage, inputs ...string) []string {
	t.Helper()

	in, out := queue.New[domain.Item](), queue.New[domain.Item]()
	for _, p := range inputs {
		in.Sender().Send(domain.NewItem(p))
	}
	in.Sender().Send(domain.Done)

	require.NoError(t, stage.Run(context.Background(), s, in.Receiver(), out.Sender()))
	out.Close()

	var paths []string
	for {
		item, ok := out.Receiver().Receive(context.Background())
		if !ok {
			return paths
		}
		require.False(t, item.IsDone(), "stages never forward the end-of-stream marker")
		paths = append(paths, item.Path)
	}
}

func TestWalk_NoMatcherEmitsEveryAncestor(t *testing.T) {
	t.Parallel()

	walk, err := stages.NewWalk(stages.WalkOptions{Direction: stages.DirectionUp})
	require.NoError(t, err)

	got := runStage(t, session.New("/a/b/c"), walk, "/a/b/c")
	assert.Equal(t, []string{"/a/b/c", "/a/b", "/a", "/"}, got)
}

func TestWalk_ConsumesSinglePath(t *testing.T) {
	t.Parallel()

	walk, err := stages.NewWalk(stages.WalkOptions{})
	require.NoError(t, err)

	got := runStage(t, session.New("/a"), walk, "/a", "/ignored/path")
	assert.Equal(t, []string{"/a", "/"}, got)
}

func TestWalk_FileStartsAtParent(t *testing.T) {
	t.Parallel()

	fsys := fs.NewMapFS(map[string]string{"/work/repo/main.go": "package main"})
	walk, err := stages.NewWalk(stages.WalkOptions{FS: fsys})
	require.NoError(t, err)

	got := runStage(t, session.New("/work/repo/main.go"), walk, "/work/repo/main.go")
	assert.Equal(t, []string{"/work/repo", "/work", "/"}, got)
}

func TestWalk_MatcherFilters(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	m := mocks.NewMockMatcher(ctrl)
	m.EXPECT().Match("/a/b").Return(false)
	m.EXPECT().Match("/a").Return(true)
	m.EXPECT().Match("/").Return(false)

	walk, err := stages.NewWalk(stages.WalkOptions{Matcher: m})
	require.NoError(t, err)

	assert.Equal(t, []string{"/a"}, runStage(t, session.New("/a/b"), walk, "/a/b"))
}

func TestWalk_UnsupportedDirection(t *testing.T) {
	t.Parallel()

	_, err := stages.NewWalk(stages.WalkOptions{Direction: "down"})
	assert.ErrorContains(t, err, domain.ErrUnsupportedDirection.Error())
}

func TestWalk_StoppedEmitsNothing(t *testing.T) {
	t.Parallel()

	walk, err := stages.NewWalk(stages.WalkOptions{})
	require.NoError(t, err)

	s := session.New("/a")
	s.Stop()
	assert.Empty(t, runStage(t, s, walk, "/a/b/c"))
}

func TestDetect_ForwardsEverythingAndReportsMatches(t *testing.T) {
	t.Parallel()

	var matched []string
	detect := stages.NewDetect(stages.DetectOptions{
		Matcher: ports.MatcherFunc(func(path string) bool { return path == "/work/repo" }),
		OnMatch: func(s *session.Session, path string) {
			matched = append(matched, path)
			s.SetRoot(path, "repo")
		},
	})

	s := session.New("/work/repo/pkg")
	got := runStage(t, s, detect, "/work/repo/pkg", "/work/repo", "/work", "/")

	assert.Equal(t, []string{"/work/repo/pkg", "/work/repo", "/work", "/"}, got)
	assert.Equal(t, []string{"/work/repo"}, matched)
	assert.Equal(t, "/work/repo", s.Root())
	assert.Equal(t, "repo", s.ProjectName())
}

func newCachedSession(t *testing.T, fsys ports.FileSystem, name string) *session.Session {
	t.Helper()

	log := mocks.NewMockLogger(gomock.NewController(t))
	log.EXPECT().Error(gomock.Any()).AnyTimes()
	files := cache.NewFileCache(fsys, log)
	t.Cleanup(files.Close)

	s := session.New("/work/"+name,
		session.WithConfigDir("/cfg"),
		session.WithCaches(cache.NewDirCache(fsys), files),
	)
	if name != "" {
		s.SetRoot("/work/"+name, name)
	}
	return s
}

func TestFindFiles_ExtensionPriority(t *testing.T) {
	t.Parallel()

	fsys := fs.NewMapFS(map[string]string{
		"/cfg/proj/b.vim":  "",
		"/cfg/proj/a.json": "{}",
		"/cfg/proj/a.lua":  "",
	})
	find, err := stages.NewFindFiles(stages.FindFilesOptions{})
	require.NoError(t, err)

	got := runStage(t, newCachedSession(t, fsys, "proj"), find, "/work/proj")
	assert.Equal(t, []string{"/cfg/proj/a.json", "/cfg/proj/a.lua", "/cfg/proj/b.vim"}, got)
}

func TestFindFiles_CumulativePrefixes(t *testing.T) {
	t.Parallel()

	fsys := fs.NewMapFS(map[string]string{
		"/cfg/github.com.json":            "{}",
		"/cfg/github.com/acme.lua":        "",
		"/cfg/github.com/acme/tool.vim":   "",
		"/cfg/github.com/acme/tool.json":  "{}",
		"/cfg/github.com/acme/tool/x.lua": "",
		"/cfg/github.com/acme/tool/y.txt": "",
		"/cfg/github.com/other.json":      "{}",
	})
	find, err := stages.NewFindFiles(stages.FindFilesOptions{})
	require.NoError(t, err)

	s := newCachedSession(t, fsys, "github.com/acme/tool")
	got := runStage(t, s, find, "/work/github.com/acme/tool", "/work/github.com/acme", "/work")

	assert.Equal(t, []string{
		"/cfg/github.com.json",
		"/cfg/github.com/acme/tool.json",
		"/cfg/github.com/other.json",
		"/cfg/github.com/acme.lua",
		"/cfg/github.com/acme/tool/x.lua",
		"/cfg/github.com/acme/tool.vim",
	}, got, "each file is emitted once per run even when several ancestors arrive")
}

func TestFindFiles_SkipsWithoutProject(t *testing.T) {
	t.Parallel()

	fsys := fs.NewMapFS(map[string]string{"/cfg/proj.json": "{}"})
	find, err := stages.NewFindFiles(stages.FindFilesOptions{})
	require.NoError(t, err)

	assert.Empty(t, runStage(t, newCachedSession(t, fsys, ""), find, "/work"))

	noConfigDir := session.New("/work/proj")
	noConfigDir.SetRoot("/work/proj", "proj")
	assert.Empty(t, runStage(t, noConfigDir, find, "/work/proj"))
}

func TestFindFiles_WithoutCacheUsesFS(t *testing.T) {
	t.Parallel()

	fsys := fs.NewMapFS(map[string]string{
		"/cfg/proj.toml":     "",
		"/cfg/proj/z.toml":   "",
		"/cfg/proj/skip.lua": "",
	})
	find, err := stages.NewFindFiles(stages.FindFilesOptions{Extensions: []string{".toml"}, FS: fsys})
	require.NoError(t, err)

	s := session.New("/work/proj", session.WithConfigDir("/cfg"))
	s.SetRoot("/work/proj", "proj")
	got := runStage(t, s, find, "/work/proj")
	assert.Equal(t, []string{"/cfg/proj.toml", "/cfg/proj/z.toml"}, got)
}

func TestNewFindFiles_InvalidExtension(t *testing.T) {
	t.Parallel()

	_, err := stages.NewFindFiles(stages.FindFilesOptions{Extensions: []string{"json"}})
	assert.ErrorContains(t, err, domain.ErrInvalidExtension.Error())
}

func TestSortByPriority(t *testing.T) {
	t.Parallel()

	paths := []string{"/c/b.vim", "/c/z.yaml", "/c/a.lua", "/c/b.json", "/c/a.json", "/c/a.cue"}
	stages.SortByPriority(paths)
	assert.Equal(t, []string{"/c/a.json", "/c/b.json", "/c/a.lua", "/c/b.vim", "/c/a.cue", "/c/z.yaml"}, paths)
}

func TestPrefixes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "a/b", "a/b/c"}, stages.Prefixes("a/b/c"))
	assert.Equal(t, []string{"a", "a/b"}, stages.Prefixes("/a//b/"))
	assert.Empty(t, stages.Prefixes(""))
}

type errorRecorder struct {
	mu     sync.Mutex
	errors map[string]int
	last   map[string]error
}

func (r *errorRecorder) record(err error, _ *session.Session, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errors == nil {
		r.errors = make(map[string]int)
		r.last = make(map[string]error)
	}
	r.errors[filepath.Base(path)]++
	r.last[filepath.Base(path)] = err
}

func TestExecute_RoutesAndReportsFailuresOnce(t *testing.T) {
	t.Parallel()

	rec := &errorRecorder{}
	s := session.New("/work", session.WithOnError(rec.record))

	var applied []string
	ok := session.ExecutorFunc(func(_ context.Context, _ *session.Session, path string) error {
		applied = append(applied, filepath.Base(path))
		return nil
	})
	errSyntax := errors.New("syntax error")
	failing := session.ExecutorFunc(func(context.Context, *session.Session, string) error {
		return errSyntax
	})
	panicking := session.ExecutorFunc(func(context.Context, *session.Session, string) error {
		panic("executor crashed")
	})

	execute := stages.NewExecute(stages.ExecuteOptions{Router: map[string]session.Executor{
		".json": ok,
		".lua":  failing,
		".vim":  panicking,
	}})

	runStage(t, s, execute, "/cfg/a.json", "/cfg/a.lua", "/cfg/a.vim", "/cfg/a.txt", "/cfg/b.json", "/cfg/a.json")

	assert.Equal(t, []string{"a.json", "b.json"}, applied, "loaded files are not applied twice")
	assert.Equal(t, map[string]int{"a.lua": 1, "a.vim": 1, "a.txt": 1}, rec.errors)
	assert.Equal(t, []string{"/cfg/a.json", "/cfg/b.json"}, s.LoadedFiles())

	assert.ErrorIs(t, rec.last["a.lua"], domain.ErrExecutorFailed)
	assert.ErrorIs(t, rec.last["a.lua"], errSyntax)
	assert.ErrorContains(t, rec.last["a.lua"], "executor failed: syntax error")
	assert.ErrorIs(t, rec.last["a.vim"], domain.ErrExecutorPanicked)
	assert.ErrorContains(t, rec.last["a.vim"], "executor crashed")
	assert.ErrorIs(t, rec.last["a.txt"], domain.ErrNoExecutor)
}

func TestExecute_StaleRunLeavesSessionAlone(t *testing.T) {
	t.Parallel()

	var applied []string
	exec := session.ExecutorFunc(func(_ context.Context, _ *session.Session, path string) error {
		applied = append(applied, path)
		return nil
	})
	execute := stages.NewExecute(stages.ExecuteOptions{Router: map[string]session.Executor{".json": exec}})

	s := session.New("/work")
	stale := s.BeginRun(nil)
	stale.Stop()
	s.BeginRun(nil)
	require.False(t, s.Stopped())

	in := queue.New[domain.Item]()
	in.Sender().Send(domain.NewItem("/cfg/a.json"))
	in.Sender().Send(domain.Done)

	ctx := session.WithRunState(context.Background(), stale)
	require.NoError(t, execute.Run(ctx, s, in.Receiver(), queue.Discard[domain.Item]()))

	assert.Empty(t, applied)
	assert.Empty(t, s.LoadedFiles())
}

func TestExecute_AsyncDoesNotBlockLoop(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		release := make(chan struct{})
		var mu sync.Mutex
		var order []string

		slow := session.ExecutorFunc(func(_ context.Context, _ *session.Session, path string) error {
			<-release
			mu.Lock()
			defer mu.Unlock()
			order = append(order, filepath.Base(path))
			return nil
		})
		fast := session.ExecutorFunc(func(_ context.Context, _ *session.Session, path string) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, filepath.Base(path))
			return nil
		})

		s := session.New("/work", session.WithExecOptions(map[string]session.ExecOptions{
			".lua": {Async: true},
		}))
		execute := stages.NewExecute(stages.ExecuteOptions{Router: map[string]session.Executor{
			".lua":  slow,
			".json": fast,
		}})

		in := queue.New[domain.Item]()
		in.Sender().Send(domain.NewItem("/cfg/a.lua"))
		in.Sender().Send(domain.NewItem("/cfg/b.json"))
		in.Sender().Send(domain.Done)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = execute.Run(context.Background(), s, in.Receiver(), queue.Discard[domain.Item]())
		}()

		synctest.Wait()
		mu.Lock()
		assert.Equal(t, []string{"b.json"}, order, "the sync file runs while the async one is pending")
		mu.Unlock()
		select {
		case <-done:
			t.Fatal("Run must wait for dispatched executors")
		default:
		}

		close(release)
		<-done
		assert.Equal(t, []string{"b.json", "a.lua"}, order)
		assert.True(t, s.IsLoaded("/cfg/a.lua"))
	})
}

func TestExecute_RecordsSpans(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	tracer := mocks.NewMockTracer(ctrl)
	span := mocks.NewMockSpan(ctrl)

	tracer.EXPECT().Start(gomock.Any(), "a.json").Return(context.Background(), span)
	span.EXPECT().SetAttribute("path", "/cfg/a.json")
	span.EXPECT().SetAttribute("extension", ".json")
	span.EXPECT().SetAttribute("async", false)
	span.EXPECT().RecordError(gomock.Any())
	span.EXPECT().End()

	s := session.New("/work", session.WithOnError(func(error, *session.Session, string) {}))
	execute := stages.NewExecute(stages.ExecuteOptions{
		Router: map[string]session.Executor{".json": session.ExecutorFunc(
			func(context.Context, *session.Session, string) error { return errors.New("bad") },
		)},
		Tracer: tracer,
	})

	runStage(t, s, execute, "/cfg/a.json")
	assert.False(t, s.IsLoaded("/cfg/a.json"))
}
