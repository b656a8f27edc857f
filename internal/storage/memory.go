package storage

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/google/btree"
)

// DefaultDegree is the B-tree degree used by NewMemoryStore.
const DefaultDegree = 32

// MemoryStore implements Mapping on top of an ordered B-tree.
// All methods are safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[item]
	degree int
}

type item struct {
	key   string
	value string
}

func itemLess(a, b item) bool {
	return a.key < b.key
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreDegree(DefaultDegree)
}

// NewMemoryStoreDegree creates an empty store whose tree uses the given degree.
// Degrees below 2 fall back to DefaultDegree.
func NewMemoryStoreDegree(degree int) *MemoryStore {
	if degree < 2 {
		degree = DefaultDegree
	}
	return &MemoryStore{
		tree:   btree.NewG(degree, itemLess),
		degree: degree,
	}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.tree.Get(item{key: key})
	if !ok {
		return "", false
	}
	return it.value, true
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.ReplaceOrInsert(item{key: key, value: value})
}

func (s *MemoryStore) Delete(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.tree.Delete(item{key: key})
	if !ok {
		return "", false
	}
	return it.value, true
}

// Count walks every entry, so it is linear in the size of the store.
func (s *MemoryStore) Count(value string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	s.tree.Ascend(func(it item) bool {
		if it.value == value {
			n++
		}
		return true
	})
	return n
}

// Len returns the number of entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// Range calls fn for every entry in key order until fn returns false.
// The store is read-locked for the whole walk; fn must not write to it.
func (s *MemoryStore) Range(fn func(key, value string) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.tree.Ascend(func(it item) bool {
		return fn(it.key, it.value)
	})
}

// Snapshot returns an independent copy of the store.
// The copy shares tree nodes lazily; writes to either side never show up
// in the other.
func (s *MemoryStore) Snapshot() *MemoryStore {
	// Clone swaps the copy-on-write context of the source, so it needs the
	// write lock even though no entry changes.
	s.mu.Lock()
	defer s.mu.Unlock()

	return &MemoryStore{
		tree:   s.tree.Clone(),
		degree: s.degree,
	}
}

// Merge makes the key set of s equal to the key set of src: every entry of
// src is written into s and every key of s missing from src is removed.
// The whole reconcile happens under one write lock, so other readers of s see
// either the state before or after it. src must not be s.
func (s *MemoryStore) Merge(src *MemoryStore) (written, removed int) {
	src.mu.RLock()
	defer src.mu.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []item
	s.tree.Ascend(func(it item) bool {
		if _, ok := src.tree.Get(it); !ok {
			stale = append(stale, it)
		}
		return true
	})
	for _, it := range stale {
		s.tree.Delete(it)
		removed++
	}

	src.tree.Ascend(func(it item) bool {
		if cur, ok := s.tree.Get(it); ok && cur.value == it.value {
			return true
		}
		s.tree.ReplaceOrInsert(it)
		written++
		return true
	})
	return written, removed
}

// Dump serializes the entire store state as a JSON object.
func (s *MemoryStore) Dump() ([]byte, error) {
	data := make(map[string]string)
	s.Range(func(key, value string) bool {
		data[key] = value
		return true
	})

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Restore replaces the store contents with a Dump image.
func (s *MemoryStore) Restore(data []byte) error {
	var kvs map[string]string
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&kvs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.Clear(false)
	for k, v := range kvs {
		s.tree.ReplaceOrInsert(item{key: k, value: v})
	}
	return nil
}
