package shard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_PutGet(t *testing.T) {
	s := NewInMemoryStore("node1")

	s.Put("key1", []byte("value1"), 0)
	v, ok := s.Get("key1")
	require.True(t, ok)
	assert.Equal(t, []byte("value1"), v)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestInMemoryStore_CopiesValues(t *testing.T) {
	s := NewInMemoryStore("node1")

	in := []byte("abc")
	s.Put("k", in, 0)
	in[0] = 'z'

	out, _ := s.Get("k")
	assert.Equal(t, []byte("abc"), out)

	out[1] = 'z'
	again, _ := s.Get("k")
	assert.Equal(t, []byte("abc"), again)
}

func TestInMemoryStore_Delete(t *testing.T) {
	s := NewInMemoryStore("node1")
	s.Put("k", []byte("v"), 0)

	assert.True(t, s.Delete("k"))
	assert.False(t, s.Delete("k"))
	assert.Equal(t, 0, s.Len())
}

func TestInMemoryStore_TTL(t *testing.T) {
	s := NewInMemoryStore("node1")
	s.Put("short", []byte("v"), time.Millisecond)
	s.Put("long", []byte("v"), time.Hour)

	time.Sleep(10 * time.Millisecond)

	_, ok := s.Get("short")
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"long"}, s.Keys())
	assert.Equal(t, 1, s.Purge())
	assert.Equal(t, 0, s.Purge())
}
