// Package sandboxstore implements the process-wide cache of post-
// execution sandbox contexts: an insertion-ordered list plus an id→
// position map, trimmed under a global byte budget. Ported from the
// reference server's sandbox_store module (an index_list::IndexList
// wrapped in a HashMap) onto Go's container/list, which already gives
// the same O(1) "remove by handle" operation the Rust IndexList provides.
package sandboxstore

import (
	"container/list"
	"sync"
)

// Context is the capability sandboxstore needs from a reusable sandbox
// instance. *sandbox.Context satisfies it; tests use lighter fakes.
type Context interface {
	MemoryConsumed() uint64
}

// entry is the list payload: CORE-3's ReusableEntry.
type entry struct {
	id                     string
	initScript             *string
	ctx                    Context
	memoryConsumedAtInsert uint64
}

// Store is the process-wide, byte-budgeted cache of reusable sandbox
// contexts, keyed by id and qualified by init-script equality.
type Store struct {
	mu             sync.Mutex
	memoryLimit    *uint64
	memoryConsumed uint64
	list           *list.List
	index          map[string]*list.Element

	onEvict func(ctx Context)
}

// New constructs an empty store with no byte budget.
func New() *Store {
	return &Store{
		list:  list.New(),
		index: make(map[string]*list.Element),
	}
}

// OnEvict registers a callback invoked (under no lock) for every context
// the store drops — trimmed under the budget, superseded by a second Set
// for the same id, or discarded by a Get whose init script does not
// match — so the caller can release its wazero runtime.
func (s *Store) OnEvict(fn func(ctx Context)) {
	s.onEvict = fn
}

// MemoryConsumed observes the running sum of accounted bytes.
func (s *Store) MemoryConsumed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memoryConsumed
}

// Len reports the number of entries currently cached.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// Get removes the entry for id, if any, and returns its context only if
// its recorded init-script equals the requested one (absent == absent).
// Eager removal makes the returned context exclusively owned by the
// caller for the duration of its run — a mismatched init-script still
// removes and drops the stale entry, per CORE-4.6.
func (s *Store) Get(id string, initScript *string) Context {
	s.mu.Lock()
	elem, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.index, id)
	e := s.list.Remove(elem).(*entry)
	s.memoryConsumed -= e.memoryConsumedAtInsert
	s.mu.Unlock()

	if !initScriptsEqual(e.initScript, initScript) {
		s.dropEvicted(e.ctx)
		return nil
	}
	return e.ctx
}

// Set captures ctx.MemoryConsumed() at insertion time, appends to the
// tail of the list, and records the mapping — replacing and unlinking
// any prior entry for id so accounting stays exact (an Open Question the
// reference leaves ambiguous; this port always unlinks, per spec.md's
// guidance that implementations SHOULD do so). Then trims under budget.
func (s *Store) Set(id string, initScript *string, ctx Context) {
	memoryConsumed := ctx.MemoryConsumed()

	s.mu.Lock()
	if prior, ok := s.index[id]; ok {
		priorEntry := s.list.Remove(prior).(*entry)
		s.memoryConsumed -= priorEntry.memoryConsumedAtInsert
		delete(s.index, id)
		defer s.dropEvicted(priorEntry.ctx)
	}

	elem := s.list.PushBack(&entry{
		id:                     id,
		initScript:             initScript,
		ctx:                    ctx,
		memoryConsumedAtInsert: memoryConsumed,
	})
	s.index[id] = elem
	s.memoryConsumed += memoryConsumed

	evicted := s.trimLocked()
	s.mu.Unlock()

	for _, e := range evicted {
		s.dropEvicted(e.ctx)
	}
}

// SetMemoryLimit updates the store's byte budget and trims immediately.
// A nil limit means unbounded.
func (s *Store) SetMemoryLimit(limit *uint64) {
	s.mu.Lock()
	s.memoryLimit = limit
	evicted := s.trimLocked()
	s.mu.Unlock()

	for _, e := range evicted {
		s.dropEvicted(e.ctx)
	}
}

// trimLocked evicts from the head of the list while over budget. Must be
// called with s.mu held; returns the evicted entries for the caller to
// close outside the lock.
func (s *Store) trimLocked() []*entry {
	if s.memoryLimit == nil {
		return nil
	}
	var evicted []*entry
	for s.memoryConsumed > *s.memoryLimit {
		front := s.list.Front()
		if front == nil {
			panic("sandboxstore: over memory limit but there are no contexts to remove")
		}
		e := s.list.Remove(front).(*entry)
		s.memoryConsumed -= e.memoryConsumedAtInsert
		delete(s.index, e.id)
		evicted = append(evicted, e)
	}
	return evicted
}

func (s *Store) dropEvicted(ctx Context) {
	if s.onEvict != nil {
		s.onEvict(ctx)
	}
}

func initScriptsEqual(a, b *string) bool {
	if a == nil {
		return b == nil
	}
	if b == nil {
		return false
	}
	return *a == *b
}
