package memstore

import (
	"container/list"
	"context"
	"strconv"
	"sync"

	"github.com/ryandielhenn/zephyrwiki/pkg/store"
)

type entry struct {
	key string
	row store.Row
}

type sheet struct {
	ll   *list.List
	data map[string]*list.Element
}

// Store is an in-process Backend. Rows live in insertion-ordered lists,
// one per (wiki, table) pair.
type Store struct {
	mu     sync.RWMutex
	sheets map[string]*sheet
	seq    uint64
}

func New() *Store {
	return &Store{sheets: make(map[string]*sheet)}
}

func (s *Store) Table(wikiID, name string) store.Table {
	return &table{s: s, name: wikiID + "/" + name}
}

func (s *Store) Close() error { return nil }

// Len reports the total number of rows across all tables.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sh := range s.sheets {
		n += sh.ll.Len()
	}
	return n
}

type table struct {
	s    *Store
	name string
}

func (t *table) Append(_ context.Context, row store.Row) (string, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	sh, ok := t.s.sheets[t.name]
	if !ok {
		sh = &sheet{ll: list.New(), data: make(map[string]*list.Element)}
		t.s.sheets[t.name] = sh
	}
	t.s.seq++
	key := strconv.FormatUint(t.s.seq, 10)
	sh.data[key] = sh.ll.PushBack(&entry{key: key, row: row.Clone()})
	return key, nil
}

func (t *table) Scan(_ context.Context) ([]store.Record, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	sh, ok := t.s.sheets[t.name]
	if !ok {
		return nil, nil
	}
	out := make([]store.Record, 0, sh.ll.Len())
	for el := sh.ll.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		out = append(out, store.Record{Key: e.key, Row: e.row.Clone()})
	}
	return out, nil
}

func (t *table) Update(_ context.Context, key string, row store.Row) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	el, ok := t.lookup(key)
	if !ok {
		return store.ErrRowNotFound
	}
	el.Value.(*entry).row = row.Clone()
	return nil
}

func (t *table) Delete(_ context.Context, key string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	el, ok := t.lookup(key)
	if !ok {
		return store.ErrRowNotFound
	}
	sh := t.s.sheets[t.name]
	delete(sh.data, key)
	sh.ll.Remove(el)
	return nil
}

// lookup must be called with the lock held.
func (t *table) lookup(key string) (*list.Element, bool) {
	sh, ok := t.s.sheets[t.name]
	if !ok {
		return nil, false
	}
	el, ok := sh.data[key]
	return el, ok
}
