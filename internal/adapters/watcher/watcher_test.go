package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.trai.ch/rootconf/internal/adapters/fs"
	"go.trai.ch/rootconf/internal/adapters/watcher"
	"go.trai.ch/rootconf/internal/core/ports"
	"go.trai.ch/rootconf/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func waitFor(t *testing.T, events <-chan ports.WatchEvent, path string) {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "event stream ended before %s was seen", path)
			if ev.Path == path {
				return
			}
		case <-timeout:
			t.Fatalf("no event for %s", path)
		}
	}
}

func TestWatcher_ReportsChanges(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	log := mocks.NewMockLogger(gomock.NewController(t))
	log.EXPECT().Error(gomock.Any()).AnyTimes()

	w := watcher.NewWatcher(fs.NewWalker(), log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx, root))
	t.Cleanup(func() { _ = w.Stop() })

	events := make(chan ports.WatchEvent, 64)
	go func() {
		defer close(events)
		for ev := range w.Events() {
			events <- ev
		}
	}()

	file := filepath.Join(root, "proj.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o600))
	waitFor(t, events, file)

	sub := filepath.Join(root, "proj")
	require.NoError(t, os.Mkdir(sub, 0o750))
	waitFor(t, events, sub)

	// Directories created after Start are watched too. The watch is added
	// asynchronously, so the write is repeated until it is observed.
	nested := filepath.Join(sub, "a.lua")
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	timeout := time.After(5 * time.Second)
	for {
		require.NoError(t, os.WriteFile(nested, []byte("return {}"), 0o600))
		select {
		case ev := <-events:
			if ev.Path == nested {
				return
			}
		case <-tick.C:
		case <-timeout:
			t.Fatalf("no event for %s", nested)
		}
	}
}

func TestWatcher_StopBeforeStart(t *testing.T) {
	t.Parallel()

	w := watcher.NewWatcher(fs.NewWalker(), mocks.NewMockLogger(gomock.NewController(t)))
	require.NoError(t, w.Stop())
}
