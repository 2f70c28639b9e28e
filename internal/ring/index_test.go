package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_InsertKeepsOrder(t *testing.T) {
	x := NewIndex()
	x.Insert(Point{Hash: 300, NodeID: "c"}, Point{Hash: 100, NodeID: "a"})
	x.Insert(Point{Hash: 200, NodeID: "b"})

	require.Equal(t, 3, x.Len())
	for i := 1; i < x.Len(); i++ {
		assert.Less(t, x.At(i-1).Hash, x.At(i).Hash)
	}
}

func TestIndex_CollisionLastWriterWins(t *testing.T) {
	x := NewIndex()
	x.Insert(Point{Hash: 100, NodeID: "a"}, Point{Hash: 200, NodeID: "a"})
	x.Insert(Point{Hash: 100, NodeID: "b"})

	require.Equal(t, 2, x.Len())
	owner, err := x.Nearest(100)
	require.NoError(t, err)
	assert.Equal(t, "b", owner)

	// within one batch the later point wins as well
	y := NewIndex()
	y.Insert(Point{Hash: 5, NodeID: "x"}, Point{Hash: 5, NodeID: "y"})
	require.Equal(t, 1, y.Len())
	assert.Equal(t, "y", y.At(0).NodeID)
}

func TestIndex_Nearest(t *testing.T) {
	x := NewIndex()
	x.Insert(
		Point{Hash: 100, NodeID: "a"},
		Point{Hash: 200, NodeID: "b"},
		Point{Hash: 300, NodeID: "c"},
	)

	tests := []struct {
		hash uint32
		want string
	}{
		{0, "a"},
		{100, "a"},
		{101, "b"},
		{200, "b"},
		{250, "c"},
		{300, "c"},
		{301, "a"}, // wraps
		{^uint32(0), "a"},
	}
	for _, tt := range tests {
		got, err := x.Nearest(tt.hash)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "hash %d", tt.hash)
	}
}

func TestIndex_Empty(t *testing.T) {
	x := NewIndex()
	_, err := x.Nearest(42)
	assert.ErrorIs(t, err, ErrEmptyRing)
	_, err = x.Search(42)
	assert.ErrorIs(t, err, ErrEmptyRing)
}

func TestIndex_RemoveIdempotent(t *testing.T) {
	x := NewIndex()
	x.Insert(
		Point{Hash: 1, NodeID: "a"},
		Point{Hash: 2, NodeID: "b"},
		Point{Hash: 3, NodeID: "a"},
	)

	assert.Equal(t, 2, x.Remove("a"))
	assert.Equal(t, 0, x.Remove("a"))
	assert.Equal(t, 0, x.Remove("missing"))
	require.Equal(t, 1, x.Len())
	assert.Equal(t, map[string]int{"b": 1}, x.Owners())
}

func TestIndex_Reset(t *testing.T) {
	x := NewIndex()
	x.Insert(Point{Hash: 1, NodeID: "a"})
	x.Reset()
	assert.Equal(t, 0, x.Len())
}
