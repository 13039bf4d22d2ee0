package sandboxstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	bytes  uint64
	closed bool
}

func (f *fakeContext) MemoryConsumed() uint64 { return f.bytes }

func strPtr(s string) *string { return &s }

func TestGetMissReturnsNil(t *testing.T) {
	s := New()
	assert.Nil(t, s.Get("missing", nil))
}

// S6 — reuse with matching init.
func TestSetThenGetWithMatchingInitScript(t *testing.T) {
	s := New()
	ctx := &fakeContext{bytes: 10}
	init := strPtr("globalThis.x = 41")
	s.Set("A", init, ctx)

	got := s.Get("A", strPtr("globalThis.x = 41"))
	require.NotNil(t, got)
	assert.Same(t, ctx, got)

	// Eager removal: a second get for the same id finds nothing.
	assert.Nil(t, s.Get("A", init))
}

// S7 — reuse with mismatched init discards the stale entry.
func TestGetWithMismatchedInitScriptDiscards(t *testing.T) {
	var evicted []Context
	s := New()
	s.OnEvict(func(ctx Context) { evicted = append(evicted, ctx) })

	ctx := &fakeContext{bytes: 10}
	s.Set("A", strPtr("globalThis.x = 41"), ctx)

	got := s.Get("A", strPtr("globalThis.x = 100"))
	assert.Nil(t, got)
	require.Len(t, evicted, 1)
	assert.Same(t, ctx, evicted[0])

	// The stale entry is gone even though the init-script mismatched.
	assert.Nil(t, s.Get("A", strPtr("globalThis.x = 41")))
}

func TestAbsentInitScriptEqualsAbsent(t *testing.T) {
	s := New()
	ctx := &fakeContext{bytes: 5}
	s.Set("A", nil, ctx)
	got := s.Get("A", nil)
	assert.Same(t, ctx, got)
}

// Invariant 4: two successive sets under the same id leave only the
// later entry retrievable.
func TestSecondSetSupersedesFirst(t *testing.T) {
	var evicted []Context
	s := New()
	s.OnEvict(func(ctx Context) { evicted = append(evicted, ctx) })

	first := &fakeContext{bytes: 10}
	second := &fakeContext{bytes: 10}
	s.Set("k", nil, first)
	s.Set("k", nil, second)

	assert.Equal(t, 1, s.Len())
	got := s.Get("k", nil)
	assert.Same(t, second, got)
	require.Len(t, evicted, 1)
	assert.Same(t, first, evicted[0])
}

// Invariant 3: accounted bytes never exceed the budget at rest.
func TestAccountedBytesNeverExceedBudgetAtRest(t *testing.T) {
	s := New()
	budget := uint64(20)
	s.SetMemoryLimit(&budget)

	s.Set("a", nil, &fakeContext{bytes: 10})
	assert.LessOrEqual(t, s.MemoryConsumed(), budget)
	s.Set("b", nil, &fakeContext{bytes: 10})
	assert.LessOrEqual(t, s.MemoryConsumed(), budget)
	s.Set("c", nil, &fakeContext{bytes: 10})
	assert.LessOrEqual(t, s.MemoryConsumed(), budget)
}

// S8 — store eviction: budget 64, three 30-byte contexts inserted in
// order k1, k2, k3; after the third set, k1 is gone and k2/k3 survive.
func TestEvictionPreservesMostRecentlyInserted(t *testing.T) {
	s := New()
	budget := uint64(64)
	s.SetMemoryLimit(&budget)

	s.Set("k1", nil, &fakeContext{bytes: 30})
	s.Set("k2", nil, &fakeContext{bytes: 30})
	s.Set("k3", nil, &fakeContext{bytes: 30})

	assert.Nil(t, s.Get("k1", nil))
	assert.NotNil(t, s.Get("k2", nil))
	assert.NotNil(t, s.Get("k3", nil))
}

// Boundary 10: a set that would push accounted bytes over budget evicts
// from the head until under budget, preserving the just-inserted entry.
func TestSetEvictsFromHeadUntilUnderBudget(t *testing.T) {
	s := New()
	budget := uint64(25)
	s.SetMemoryLimit(&budget)

	s.Set("a", nil, &fakeContext{bytes: 10})
	s.Set("b", nil, &fakeContext{bytes: 10})
	s.Set("c", nil, &fakeContext{bytes: 10})

	assert.LessOrEqual(t, s.MemoryConsumed(), budget)
	assert.NotNil(t, s.Get("c", nil))
}

func TestSetMemoryLimitTrimsImmediately(t *testing.T) {
	s := New()
	s.Set("a", nil, &fakeContext{bytes: 50})
	s.Set("b", nil, &fakeContext{bytes: 50})

	budget := uint64(60)
	s.SetMemoryLimit(&budget)
	assert.LessOrEqual(t, s.MemoryConsumed(), budget)
}

func TestConcurrentGetSetDoesNotRace(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "k"
			s.Set(id, nil, &fakeContext{bytes: 1})
			s.Get(id, nil)
		}(i)
	}
	wg.Wait()
}
