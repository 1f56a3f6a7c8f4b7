package cache_test

import (
	"context"
	"errors"
	iofs "io/fs"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rootconf/internal/adapters/cache"
	"go.trai.ch/rootconf/internal/adapters/fs"
	"go.trai.ch/rootconf/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

// countingFS records the I/O performed against an in-memory file system.
type countingFS struct {
	*fs.MapFS
	reads    atomic.Int32
	listings atomic.Int32
	failDir  atomic.Bool
}

func newCountingFS(files map[string]string) *countingFS {
	return &countingFS{MapFS: fs.NewMapFS(files)}
}

func (c *countingFS) ReadFile(path string) ([]byte, error) {
	c.reads.Add(1)
	return c.MapFS.ReadFile(path)
}

func (c *countingFS) ReadDir(path string, batch int, fn func([]iofs.DirEntry)) error {
	c.listings.Add(1)
	if c.failDir.Load() {
		return errors.New("listing failed")
	}
	return c.MapFS.ReadDir(path, batch, fn)
}

func quietLogger(t *testing.T) *mocks.MockLogger {
	t.Helper()
	log := mocks.NewMockLogger(gomock.NewController(t))
	log.EXPECT().Error(gomock.Any()).AnyTimes()
	return log
}

func TestDirCache_MtimeCoherence(t *testing.T) {
	t.Parallel()

	fsys := newCountingFS(map[string]string{
		"/cfg/a.json": "{}",
		"/cfg/b.lua":  "return {}",
		"/cfg/sub/":   "",
	})
	c := cache.NewDirCache(fsys)

	first, ok := c.Get("/cfg")
	require.True(t, ok)
	second, ok := c.Get("/cfg")
	require.True(t, ok)

	assert.Equal(t, int32(1), fsys.listings.Load())
	require.Len(t, first, 3)
	assert.Same(t, &first[0], &second[0])
	assert.Equal(t, "a.json", first[0].Name)
	assert.True(t, first[2].IsDir())

	entry, ok := c.Entry("/cfg")
	require.True(t, ok)
	info, err := fsys.Stat("/cfg")
	require.NoError(t, err)
	assert.Equal(t, info.ModTime().UnixNano(), entry.Mtime)
}

func TestDirCache_RelistsAfterMutation(t *testing.T) {
	t.Parallel()

	fsys := newCountingFS(map[string]string{"/cfg/a.json": "{}"})
	c := cache.NewDirCache(fsys)

	_, ok := c.Get("/cfg")
	require.True(t, ok)

	require.NoError(t, fsys.WriteFile("/cfg/c.vim", nil, 0o644))
	entries, ok := c.Get("/cfg")
	require.True(t, ok)
	assert.Len(t, entries, 2)
	assert.Equal(t, int32(2), fsys.listings.Load())
}

func TestDirCache_WithoutTrustMtime(t *testing.T) {
	t.Parallel()

	fsys := newCountingFS(map[string]string{"/cfg/a.json": "{}"})
	c := cache.NewDirCache(fsys, cache.WithTrustMtime(false))

	c.Get("/cfg")
	c.Get("/cfg")
	assert.Equal(t, int32(2), fsys.listings.Load())

	c.SetTrustMtime(true)
	c.Get("/cfg")
	assert.Equal(t, int32(2), fsys.listings.Load())
}

func TestDirCache_SoftFailures(t *testing.T) {
	t.Parallel()

	fsys := newCountingFS(map[string]string{"/cfg/a.json": "{}"})
	c := cache.NewDirCache(fsys)

	_, ok := c.Get("/missing")
	assert.False(t, ok)

	_, ok = c.Get("/cfg/a.json")
	assert.False(t, ok, "files are not directories")

	_, ok = c.Get("/cfg")
	require.True(t, ok)
	prior, _ := c.Entry("/cfg")

	require.NoError(t, fsys.WriteFile("/cfg/b.json", nil, 0o644))
	fsys.failDir.Store(true)
	_, ok = c.Get("/cfg")
	assert.False(t, ok)

	kept, ok := c.Entry("/cfg")
	require.True(t, ok)
	assert.Same(t, prior, kept, "a failed listing leaves the prior entry untouched")
}

func TestDirCache_InvalidateAndClear(t *testing.T) {
	t.Parallel()

	fsys := newCountingFS(map[string]string{"/cfg/a.json": "{}", "/other/b.json": "{}"})
	c := cache.NewDirCache(fsys)

	c.Get("/cfg")
	c.Get("/other")
	c.Invalidate("/cfg")
	_, ok := c.Entry("/cfg")
	assert.False(t, ok)
	_, ok = c.Entry("/other")
	assert.True(t, ok)

	c.ClearAll()
	_, ok = c.Entry("/other")
	assert.False(t, ok)
}

func TestDirCache_ConcurrentGet(t *testing.T) {
	t.Parallel()

	fsys := newCountingFS(map[string]string{"/cfg/a.json": "{}"})
	c := cache.NewDirCache(fsys)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			entries, ok := c.Get("/cfg")
			assert.True(t, ok)
			assert.Len(t, entries, 1)
		})
	}
	wg.Wait()
}

// gatedFS blocks the first directory listing until release is closed.
type gatedFS struct {
	*countingFS
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedFS) ReadDir(path string, batch int, fn func([]iofs.DirEntry)) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.started)
		<-g.release
	}
	return g.countingFS.ReadDir(path, batch, fn)
}

func TestDirCache_FillsAreScopedToMtime(t *testing.T) {
	t.Parallel()

	fsys := &gatedFS{
		countingFS: newCountingFS(map[string]string{"/cfg/a.json": "{}"}),
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	c := cache.NewDirCache(fsys)

	stale := make(chan int, 1)
	go func() {
		entries, _ := c.Get("/cfg")
		stale <- len(entries)
	}()
	<-fsys.started

	require.NoError(t, fsys.WriteFile("/cfg/b.json", nil, 0o644))
	info, err := fsys.Stat("/cfg")
	require.NoError(t, err)

	fresh := make(chan []string, 1)
	go func() {
		entries, _ := c.Get("/cfg")
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name)
		}
		fresh <- names
	}()

	select {
	case names := <-fresh:
		assert.Equal(t, []string{"a.json", "b.json"}, names)
	case <-time.After(5 * time.Second):
		t.Fatal("a listing for the newer mtime waited on the older fill")
	}

	close(fsys.release)
	<-stale

	entry, ok := c.Entry("/cfg")
	require.True(t, ok)
	assert.Equal(t, info.ModTime().UnixNano(), entry.Mtime, "the older fill does not replace the newer entry")
	assert.Equal(t, int32(2), fsys.listings.Load())
}

func TestFileCache_MtimeCoherence(t *testing.T) {
	t.Parallel()

	fsys := newCountingFS(map[string]string{"/cfg/a.json": `{"a":1}`})
	c := cache.NewFileCache(fsys, quietLogger(t))
	defer c.Close()

	first, ok := c.Get("/cfg/a.json")
	require.True(t, ok)
	second, ok := c.Get("/cfg/a.json")
	require.True(t, ok)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), fsys.reads.Load())
	assert.Equal(t, fs.Sum([]byte(`{"a":1}`)), first.Sum)

	require.NoError(t, fsys.WriteFile("/cfg/a.json", []byte(`{"a":2}`), 0o644))
	third, ok := c.Get("/cfg/a.json")
	require.True(t, ok)
	assert.Equal(t, `{"a":2}`, string(third.Content))
	assert.Equal(t, int32(2), fsys.reads.Load())
}

func TestFileCache_EvictsUnreadable(t *testing.T) {
	t.Parallel()

	fsys := newCountingFS(map[string]string{"/cfg/a.json": `{}`})
	c := cache.NewFileCache(fsys, quietLogger(t))
	defer c.Close()

	_, ok := c.Get("/cfg/a.json")
	require.True(t, ok)

	fsys.Remove("/cfg/a.json")
	_, ok = c.Get("/cfg/a.json")
	assert.False(t, ok)

	_, ok = c.Get("/cfg")
	assert.False(t, ok, "directories are not files")
}

func TestFileCache_WriteThenRead(t *testing.T) {
	t.Parallel()

	fsys := newCountingFS(nil)
	c := cache.NewFileCache(fsys, quietLogger(t))
	defer c.Close()

	require.True(t, c.Write("/cfg/acme/p.json", []byte(`{"k":"v"}`)))
	require.NoError(t, c.Flush(context.Background()))

	info, err := fsys.Stat("/cfg/acme/p.json")
	require.NoError(t, err)

	entry, ok := c.Get("/cfg/acme/p.json")
	require.True(t, ok)
	assert.Equal(t, `{"k":"v"}`, string(entry.Content))
	assert.GreaterOrEqual(t, entry.Mtime, info.ModTime().UnixNano())
	assert.Equal(t, int32(0), fsys.reads.Load(), "the writer publishes the entry without a re-read")
}

func TestFileCache_WritesKeepSubmissionOrder(t *testing.T) {
	t.Parallel()

	fsys := newCountingFS(nil)
	c := cache.NewFileCache(fsys, quietLogger(t))
	defer c.Close()

	for _, content := range []string{"1", "2", "3"} {
		require.True(t, c.Write("/cfg/p.json", []byte(content)))
	}
	require.NoError(t, c.Flush(context.Background()))

	data, err := fsys.ReadFile("/cfg/p.json")
	require.NoError(t, err)
	assert.Equal(t, "3", string(data))
}

func TestFileCache_FailedWriteIsLoggedAndLost(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fsys := mocks.NewMockFileSystem(ctrl)
	log := mocks.NewMockLogger(ctrl)

	fsys.EXPECT().MkdirAll("/cfg", gomock.Any()).Return(nil)
	fsys.EXPECT().WriteFile("/cfg/p.json", []byte("x"), gomock.Any()).Return(errors.New("disk full"))
	log.EXPECT().Error(gomock.Any()).Do(func(err error) {
		assert.ErrorContains(t, err, "disk full")
	})

	c := cache.NewFileCache(fsys, log)
	require.True(t, c.Write("/cfg/p.json", []byte("x")))
	require.NoError(t, c.Flush(context.Background()))
	c.Close()
}

func TestFileCache_CloseDrainsAndRejects(t *testing.T) {
	t.Parallel()

	fsys := newCountingFS(nil)
	c := cache.NewFileCache(fsys, quietLogger(t))

	require.True(t, c.Write("/cfg/p.json", []byte("queued")))
	c.Close()
	c.Close()

	data, err := fsys.ReadFile("/cfg/p.json")
	require.NoError(t, err)
	assert.Equal(t, "queued", string(data))

	assert.False(t, c.Write("/cfg/p.json", []byte("late")))
	assert.Error(t, c.Flush(context.Background()))
}

func TestFileCache_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	fsys := newCountingFS(nil)
	c := cache.NewFileCache(fsys, quietLogger(t))
	defer c.Close()

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Go(func() {
			c.Write("/cfg/p.json", []byte{byte('a' + i%26)})
		})
	}
	wg.Wait()
	require.NoError(t, c.Flush(context.Background()))

	entry, ok := c.Get("/cfg/p.json")
	require.True(t, ok)
	data, err := fsys.ReadFile("/cfg/p.json")
	require.NoError(t, err)
	assert.Equal(t, data, entry.Content)
}

func TestFileCache_PeekDoesNoIO(t *testing.T) {
	t.Parallel()

	fsys := newCountingFS(map[string]string{"/cfg/a.json": `{}`})
	c := cache.NewFileCache(fsys, quietLogger(t))
	defer c.Close()

	_, ok := c.Peek("/cfg/a.json")
	assert.False(t, ok)

	got, ok := c.Get("/cfg/a.json")
	require.True(t, ok)

	peeked, ok := c.Peek("/cfg/a.json")
	require.True(t, ok)
	assert.Same(t, got, peeked)
	assert.Equal(t, int32(1), fsys.reads.Load())
}
