package domain

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"sync"
)

// ChangeListener is notified after a Store mutation.
// path is the full key path from the root Store; value is nil for deletions.
// Nested values are passed in their plain form (map[string]any, []any).
type ChangeListener func(path []string, value any)

// storeShared is the state shared by a root Store and all of its nested Stores.
type storeShared struct {
	mu        sync.RWMutex
	listeners map[uint64]ChangeListener
	nextID    uint64
}

// Store is an ordered, observable key/value tree holding merged configuration.
//
// Nested objects are represented as nested Stores that share the lock and the
// listener set of their root. Keys keep insertion order.
type Store struct {
	shared *storeShared
	prefix []string
	keys   []string
	values map[string]any // scalar, []any, or *Store
}

// orderedMap is a detached, ordered snapshot used while building Stores.
type orderedMap struct {
	keys   []string
	values map[string]any
}

// NewStore creates an empty root Store.
func NewStore() *Store {
	return &Store{
		shared: &storeShared{listeners: make(map[uint64]ChangeListener)},
		values: make(map[string]any),
	}
}

// NewStoreFrom creates a root Store populated from m. Keys are inserted in sorted order.
func NewStoreFrom(m map[string]any) *Store {
	s := NewStore()
	om := normalize(m).(*orderedMap)
	for _, k := range om.keys {
		s.keys = append(s.keys, k)
		s.values[k] = s.build(om.values[k], []string{k})
	}
	return s
}

// OnChange registers a listener and returns a function that removes it.
// Listeners are shared with every nested Store of the same root.
func (s *Store) OnChange(l ChangeListener) func() {
	s.shared.mu.Lock()
	id := s.shared.nextID
	s.shared.nextID++
	s.shared.listeners[id] = l
	s.shared.mu.Unlock()

	return func() {
		s.shared.mu.Lock()
		delete(s.shared.listeners, id)
		s.shared.mu.Unlock()
	}
}

// Set assigns value to key and notifies listeners.
// map[string]any and *Store values are copied into nested Stores.
func (s *Store) Set(key string, value any) {
	s.SetIn([]string{key}, value)
}

// SetIn assigns value at the given key path, creating nested Stores as needed,
// and notifies listeners once for the leaf.
func (s *Store) SetIn(path []string, value any) {
	if len(path) == 0 {
		return
	}
	norm := normalize(value)

	s.shared.mu.Lock()
	target := s
	for _, k := range path[:len(path)-1] {
		target = target.subLocked(k)
	}
	leaf := path[len(path)-1]
	target.putLocked(leaf, target.build(norm, append(slices.Clone(target.prefix), leaf)))
	full := append(slices.Clone(target.prefix), leaf)
	listeners := s.listenersLocked()
	s.shared.mu.Unlock()

	notify(listeners, full, plain(norm))
}

// SetDotted assigns value at a dot separated key path.
func (s *Store) SetDotted(key string, value any) {
	s.SetIn(SplitKey(key), value)
}

// Delete removes key and notifies listeners. It reports whether the key existed.
func (s *Store) Delete(key string) bool {
	s.shared.mu.Lock()
	if _, ok := s.values[key]; !ok {
		s.shared.mu.Unlock()
		return false
	}
	delete(s.values, key)
	s.keys = slices.DeleteFunc(s.keys, func(k string) bool { return k == key })
	full := append(slices.Clone(s.prefix), key)
	listeners := s.listenersLocked()
	s.shared.mu.Unlock()

	notify(listeners, full, nil)
	return true
}

// Sub returns the nested Store at key, creating an empty one if key is absent or not an object.
func (s *Store) Sub(key string) *Store {
	s.shared.mu.Lock()
	existing, ok := s.values[key].(*Store)
	if ok {
		s.shared.mu.Unlock()
		return existing
	}
	sub := s.subLocked(key)
	full := append(slices.Clone(s.prefix), key)
	listeners := s.listenersLocked()
	s.shared.mu.Unlock()

	notify(listeners, full, map[string]any{})
	return sub
}

// Get returns the plain value stored at key.
func (s *Store) Get(key string) (any, bool) {
	return s.GetIn([]string{key})
}

// GetIn returns the plain value stored at the given key path.
func (s *Store) GetIn(path []string) (any, bool) {
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()

	var cur any = s
	for _, k := range path {
		st, ok := cur.(*Store)
		if !ok {
			return nil, false
		}
		cur, ok = st.values[k]
		if !ok {
			return nil, false
		}
	}
	return plainValue(cur), true
}

// GetDotted returns the plain value stored at a dot separated key path.
func (s *Store) GetDotted(key string) (any, bool) {
	return s.GetIn(SplitKey(key))
}

// Keys returns the keys of this Store in insertion order.
func (s *Store) Keys() []string {
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()
	return slices.Clone(s.keys)
}

// Len returns the number of keys in this Store.
func (s *Store) Len() int {
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()
	return len(s.keys)
}

// Map returns a deep plain copy of the Store.
func (s *Store) Map() map[string]any {
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()
	return plainValue(s).(map[string]any)
}

// Merge deep-merges m into the Store. Keys are visited in sorted order.
func (s *Store) Merge(m map[string]any) {
	s.mergeOrdered(normalize(m).(*orderedMap), nil)
}

// MergeStore deep-merges src into the Store, visiting keys in src's insertion order.
func (s *Store) MergeStore(src *Store) {
	s.mergeOrdered(normalize(src).(*orderedMap), nil)
}

func (s *Store) mergeOrdered(src *orderedMap, path []string) {
	for _, k := range src.keys {
		v := src.values[k]
		keyPath := append(slices.Clone(path), k)
		if nested, ok := v.(*orderedMap); ok && s.isStoreAt(keyPath) {
			s.mergeOrdered(nested, keyPath)
			continue
		}
		s.SetIn(keyPath, v)
	}
}

func (s *Store) isStoreAt(path []string) bool {
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()

	var cur any = s
	for _, k := range path {
		st, ok := cur.(*Store)
		if !ok {
			return false
		}
		if cur, ok = st.values[k]; !ok {
			return false
		}
	}
	_, ok := cur.(*Store)
	return ok
}

// MarshalJSON encodes the Store as a JSON object, preserving key order.
func (s *Store) MarshalJSON() ([]byte, error) {
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()

	var buf bytes.Buffer
	if err := encodeValue(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Store) putLocked(key string, value any) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

func (s *Store) subLocked(key string) *Store {
	if existing, ok := s.values[key].(*Store); ok {
		return existing
	}
	sub := &Store{
		shared: s.shared,
		prefix: append(slices.Clone(s.prefix), key),
		values: make(map[string]any),
	}
	s.putLocked(key, sub)
	return sub
}

func (s *Store) listenersLocked() []ChangeListener {
	ids := make([]uint64, 0, len(s.shared.listeners))
	for id := range s.shared.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]ChangeListener, len(ids))
	for i, id := range ids {
		out[i] = s.shared.listeners[id]
	}
	return out
}

// build turns a normalized value into a value owned by this Store tree.
func (s *Store) build(v any, prefix []string) any {
	switch t := v.(type) {
	case *orderedMap:
		sub := &Store{shared: s.shared, prefix: prefix, values: make(map[string]any, len(t.keys))}
		for _, k := range t.keys {
			sub.keys = append(sub.keys, k)
			sub.values[k] = s.build(t.values[k], append(slices.Clone(prefix), k))
		}
		return sub
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return t
	}
}

func notify(listeners []ChangeListener, path []string, value any) {
	for _, l := range listeners {
		l(path, value)
	}
}

// normalize converts incoming values into detached ordered snapshots.
// It must be called without holding any Store lock.
func normalize(v any) any {
	switch t := v.(type) {
	case *Store:
		t.shared.mu.RLock()
		defer t.shared.mu.RUnlock()
		return snapshotLocked(t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		om := &orderedMap{keys: keys, values: make(map[string]any, len(t))}
		for _, k := range keys {
			om.values[k] = normalize(t[k])
		}
		return om
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return t
	}
}

func snapshotLocked(s *Store) *orderedMap {
	om := &orderedMap{keys: slices.Clone(s.keys), values: make(map[string]any, len(s.keys))}
	for _, k := range s.keys {
		switch t := s.values[k].(type) {
		case *Store:
			om.values[k] = snapshotLocked(t)
		default:
			om.values[k] = t
		}
	}
	return om
}

// plain converts a normalized value to plain Go maps and slices.
func plain(v any) any {
	switch t := v.(type) {
	case *orderedMap:
		m := make(map[string]any, len(t.keys))
		for _, k := range t.keys {
			m[k] = plain(t.values[k])
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return t
	}
}

// plainValue converts a Store-owned value to plain form. Callers hold the read lock.
func plainValue(v any) any {
	switch t := v.(type) {
	case *Store:
		m := make(map[string]any, len(t.keys))
		for _, k := range t.keys {
			m[k] = plainValue(t.values[k])
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	default:
		return t
	}
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case *Store:
		buf.WriteByte('{')
		for i, k := range t.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := encodeValue(buf, t.values[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(data)
		return nil
	}
}

// SplitKey splits a dot separated key path, dropping empty segments.
func SplitKey(key string) []string {
	parts := strings.Split(key, ".")
	return slices.DeleteFunc(parts, func(p string) bool { return p == "" })
}
