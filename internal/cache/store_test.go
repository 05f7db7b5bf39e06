package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_MissingExcludesCachedAndInFlight(t *testing.T) {
	s := NewStore[string, int]()
	s.Merge(map[string]int{"E1": 1})
	require.Equal(t, []string{"K1"}, s.Claim([]string{"K1"}))

	// (K1 ∪ K2) minus cached minus in flight, no repeats, request order kept
	missing := s.Missing([]string{"K3", "E1", "K1", "K2", "K3"})
	assert.Equal(t, []string{"K3", "K2"}, missing)
}

func TestStore_ClaimIsExclusive(t *testing.T) {
	s := NewStore[string, string]()

	first := s.Claim([]string{"C1", "C2"})
	second := s.Claim([]string{"C1", "C2", "C3"})

	assert.Equal(t, []string{"C1", "C2"}, first)
	assert.Equal(t, []string{"C3"}, second)
	assert.True(t, s.InFlight("C1"))
	assert.True(t, s.Loading())
}

func TestStore_ConcurrentClaimsNeverOverlap(t *testing.T) {
	s := NewStore[string, bool]()
	keys := []string{"A", "B", "C", "D", "E"}

	var mu sync.Mutex
	claimed := make(map[string]int)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, k := range s.Claim(keys) {
				mu.Lock()
				claimed[k]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for _, k := range keys {
		assert.Equal(t, 1, claimed[k], "key %s claimed more than once", k)
	}
}

func TestStore_MergeIsAdditive(t *testing.T) {
	s := NewStore[string, string]()
	s.Claim([]string{"C1", "C2"})

	added := s.Merge(map[string]string{"C1": "first"})
	assert.Equal(t, 1, added)
	assert.False(t, s.InFlight("C1"))
	assert.True(t, s.InFlight("C2"), "unrelated in-flight keys are untouched")

	added = s.Merge(map[string]string{"C1": "second", "C3": "third"})
	assert.Equal(t, 1, added)

	v, ok := s.Get("C1")
	require.True(t, ok)
	assert.Equal(t, "first", v, "existing entries are never replaced")
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, map[string]string{"C1": "first", "C3": "third"}, s.Snapshot())
}

func TestStore_SettleAndRelease(t *testing.T) {
	s := NewStore[string, int]()
	s.Claim([]string{"gone", "retry"})

	s.Settle([]string{"gone"})
	s.Release([]string{"retry"})

	assert.False(t, s.Loading())
	assert.False(t, s.Has("gone"))
	assert.Equal(t, []string{"retry"}, s.Missing([]string{"gone", "retry"}),
		"settled keys are not requested again, released keys are")
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore[string, int]()
	s.Merge(map[string]int{"a": 1})

	snap := s.Snapshot()
	snap["b"] = 2

	assert.False(t, s.Has("b"))
}
