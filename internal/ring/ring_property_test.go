package ring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}
	return keys
}

func snapshot(t *testing.T, r *Ring, keys []string) map[string]string {
	t.Helper()
	owners := make(map[string]string, len(keys))
	for _, key := range keys {
		node, err := r.GetNode(key)
		require.NoError(t, err)
		owners[key] = node
	}
	return owners
}

// TestRing_Property_Determinism tests that the same membership produces the same owner mapping
func TestRing_Property_Determinism(t *testing.T) {
	weights := map[string]int{"n1": 1, "n2": 3, "n3": 2}

	ring1, err := NewWeighted(weights)
	require.NoError(t, err)
	ring2, err := NewWeighted(weights)
	require.NoError(t, err)

	// insertion order does not matter when points do not collide
	ring3 := NewRing(DefaultReplicas)
	require.NoError(t, ring3.AddNode("n3", 2))
	require.NoError(t, ring3.AddNode("n1", 1))
	require.NoError(t, ring3.AddNode("n2", 3))

	keys := sampleKeys(2000)
	want := snapshot(t, ring1, keys)
	assert.Equal(t, want, snapshot(t, ring2, keys))
	assert.Equal(t, want, snapshot(t, ring3, keys))
	assert.Equal(t, want, snapshot(t, ring1, keys), "repeated lookups must agree")
}

// TestRing_Property_Proportionality tests that key share follows weight share
func TestRing_Property_Proportionality(t *testing.T) {
	tests := []map[string]int{
		{"n1": 1, "n2": 1, "n3": 1, "n4": 1},
		{"heavy": 4, "light": 1},
		{"a": 1, "b": 2, "c": 3},
	}

	keys := sampleKeys(20000)
	for _, weights := range tests {
		t.Run(fmt.Sprint(weights), func(t *testing.T) {
			r, err := NewWeighted(weights)
			require.NoError(t, err)

			total := 0
			for _, w := range weights {
				total += w
			}

			counts := make(map[string]int)
			for _, owner := range snapshot(t, r, keys) {
				counts[owner]++
			}
			shares := r.Shares()

			for id, w := range weights {
				expected := float64(w) / float64(total)
				got := float64(counts[id]) / float64(len(keys))
				assert.InDelta(t, expected, got, 0.05, "sampled share of %s", id)
				assert.InDelta(t, expected, shares[id], 0.05, "keyspace share of %s", id)
			}
		})
	}
}

// TestRing_Property_MinimalDisruptionOnRemove tests that removal only moves keys of the removed node
func TestRing_Property_MinimalDisruptionOnRemove(t *testing.T) {
	r, err := NewWeighted(map[string]int{"n1": 1, "n2": 1, "n3": 1, "n4": 1})
	require.NoError(t, err)

	keys := sampleKeys(5000)
	before := snapshot(t, r, keys)

	r.RemoveNodes("n4")
	after := snapshot(t, r, keys)

	moved := 0
	for _, key := range keys {
		if before[key] == "n4" {
			assert.NotEqual(t, "n4", after[key])
			moved++
			continue
		}
		assert.Equal(t, before[key], after[key], "key %s moved although its owner stayed", key)
	}
	assert.Greater(t, moved, 0)
	assert.Less(t, float64(moved)/float64(len(keys)), 0.4)
}

// TestRing_Property_MinimalDisruptionOnAdd tests that adding a node only moves keys to that node
func TestRing_Property_MinimalDisruptionOnAdd(t *testing.T) {
	r, err := NewWeighted(map[string]int{"n1": 1, "n2": 1, "n3": 1})
	require.NoError(t, err)

	keys := sampleKeys(5000)
	before := snapshot(t, r, keys)

	require.NoError(t, r.AddNodes(map[string]int{"n4": 1}))
	after := snapshot(t, r, keys)

	for _, key := range keys {
		if after[key] != before[key] {
			assert.Equal(t, "n4", after[key], "key %s moved between old nodes", key)
		}
	}
}

// TestRing_Property_AddRemoveRoundTrip tests that removing an added node restores the mapping
func TestRing_Property_AddRemoveRoundTrip(t *testing.T) {
	r, err := NewFromList([]string{"n1", "n2", "n3"})
	require.NoError(t, err)

	keys := sampleKeys(2000)
	before := snapshot(t, r, keys)

	require.NoError(t, r.AddNode("n4", 2))
	r.RemoveNodes("n4")

	assert.Equal(t, before, snapshot(t, r, keys))
}

// TestRing_Property_AlwaysReturnsExistingNode tests that the ring always returns a registered node
func TestRing_Property_AlwaysReturnsExistingNode(t *testing.T) {
	r, err := NewFromList([]string{"n1", "n2", "n3"})
	require.NoError(t, err)
	r.RemoveNodes("n2")

	for _, owner := range snapshot(t, r, sampleKeys(1000)) {
		_, ok := r.Weight(owner)
		assert.True(t, ok, "owner %s is not registered", owner)
	}
}
