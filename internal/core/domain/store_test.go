package domain_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rootconf/internal/core/domain"
)

type change struct {
	path  []string
	value any
}

func record(s *domain.Store) (*[]change, func()) {
	var mu sync.Mutex
	var changes []change
	unsubscribe := s.OnChange(func(path []string, value any) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, change{path: path, value: value})
	})
	return &changes, unsubscribe
}

func TestStore_SetGetPreservesOrder(t *testing.T) {
	t.Parallel()

	s := domain.NewStore()
	s.Set("zeta", 1)
	s.Set("alpha", "a")
	s.Set("mid", true)
	s.Set("zeta", 2)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, s.Keys())
	assert.Equal(t, 3, s.Len())

	v, ok := s.Get("zeta")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStore_ListenersReceivePathAndValue(t *testing.T) {
	t.Parallel()

	s := domain.NewStore()
	changes, unsubscribe := record(s)

	s.Set("a", 1)
	s.SetDotted("editor.tab.width", 4)
	s.Delete("a")
	assert.False(t, s.Delete("a"))

	require.Len(t, *changes, 3)
	assert.Equal(t, change{path: []string{"a"}, value: 1}, (*changes)[0])
	assert.Equal(t, change{path: []string{"editor", "tab", "width"}, value: 4}, (*changes)[1])
	assert.Equal(t, change{path: []string{"a"}, value: nil}, (*changes)[2])

	unsubscribe()
	s.Set("b", 2)
	assert.Len(t, *changes, 3)
}

func TestStore_SubSharesListeners(t *testing.T) {
	t.Parallel()

	s := domain.NewStore()
	changes, _ := record(s)

	editor := s.Sub("editor")
	require.Len(t, *changes, 1)
	assert.Equal(t, change{path: []string{"editor"}, value: map[string]any{}}, (*changes)[0])

	editor.Set("theme", "dark")
	require.Len(t, *changes, 2)
	assert.Equal(t, change{path: []string{"editor", "theme"}, value: "dark"}, (*changes)[1])

	assert.Same(t, editor, s.Sub("editor"))
	assert.Len(t, *changes, 2)

	v, ok := s.GetDotted("editor.theme")
	require.True(t, ok)
	assert.Equal(t, "dark", v)
}

func TestStore_SetMapBecomesNestedStore(t *testing.T) {
	t.Parallel()

	s := domain.NewStore()
	s.Set("lsp", map[string]any{"gopls": map[string]any{"staticcheck": true}, "enabled": true})

	v, ok := s.GetIn([]string{"lsp", "gopls", "staticcheck"})
	require.True(t, ok)
	assert.Equal(t, true, v)

	assert.Equal(t, []string{"enabled", "gopls"}, s.Sub("lsp").Keys())
}

func TestStore_MergeDeep(t *testing.T) {
	t.Parallel()

	s := domain.NewStoreFrom(map[string]any{
		"editor": map[string]any{"theme": "dark", "font": "mono"},
		"list":   []any{1, 2},
	})
	s.Merge(map[string]any{
		"editor": map[string]any{"theme": "light"},
		"list":   []any{3},
		"new":    "x",
	})

	assert.Equal(t, map[string]any{
		"editor": map[string]any{"theme": "light", "font": "mono"},
		"list":   []any{3},
		"new":    "x",
	}, s.Map())
}

func TestStore_MergeStoreKeepsSourceOrder(t *testing.T) {
	t.Parallel()

	src := domain.NewStore()
	src.Set("b", 1)
	src.Set("a", 2)

	dst := domain.NewStore()
	dst.Set("c", 0)
	dst.MergeStore(src)

	assert.Equal(t, []string{"c", "b", "a"}, dst.Keys())
}

func TestStore_MergeReplacesScalarWithObject(t *testing.T) {
	t.Parallel()

	s := domain.NewStore()
	s.Set("a", 1)
	s.Merge(map[string]any{"a": map[string]any{"b": 2}})

	v, ok := s.GetDotted("a.b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestStore_MarshalJSONInsertionOrder(t *testing.T) {
	t.Parallel()

	s := domain.NewStore()
	s.Set("z", 1)
	s.Set("a", map[string]any{"y": "v", "b": []any{1, "two", map[string]any{"k": nil}}})

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"z":1,"a":{"b":[1,"two",{"k":null}],"y":"v"}}`, string(data))
	assert.Equal(t, `{"z":1,"a":{"b":[1,"two",{"k":null}],"y":"v"}}`, string(data))
}

func TestStore_ListenerMayReadStore(t *testing.T) {
	t.Parallel()

	s := domain.NewStore()
	var seen any
	s.OnChange(func(_ []string, _ any) {
		seen = s.Map()
	})
	s.Set("k", "v")

	assert.Equal(t, map[string]any{"k": "v"}, seen)
}

func TestStore_ConcurrentSet(t *testing.T) {
	t.Parallel()

	s := domain.NewStore()
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Go(func() {
			s.SetIn([]string{"n", string(rune('a' + i))}, i)
		})
	}
	wg.Wait()

	assert.Equal(t, 16, s.Sub("n").Len())
}

func TestSplitKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b"}, domain.SplitKey("a..b."))
	assert.Empty(t, domain.SplitKey(""))
}
