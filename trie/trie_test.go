package trie

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndGet(t *testing.T) {
	tr := NewTrie()
	tr.Insert("cache", 1)
	tr.Insert("cachet", 2)
	tr.Insert("card", 3)

	v, ok := tr.Get("cache")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = tr.Get("cachet")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = tr.Get("cach")
	assert.False(t, ok, "internal node is not a key")
	_, ok = tr.Get("missing")
	assert.False(t, ok)
}

func TestInsertOverwrites(t *testing.T) {
	tr := NewTrie()
	tr.Insert("key", "old")
	tr.Insert("key", "new")

	v, ok := tr.Get("key")
	require.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestInsertPrefixOfExistingKey(t *testing.T) {
	tr := NewTrie()
	tr.Insert("caching", 1)
	tr.Insert("cache", 2)
	tr.Insert("ca", 3)

	for key, want := range map[string]int{"caching": 1, "cache": 2, "ca": 3} {
		v, ok := tr.Get(key)
		require.True(t, ok, "key %s", key)
		assert.Equal(t, want, v)
	}
}

func TestDelete(t *testing.T) {
	tr := NewTrie()
	tr.Insert("shard", 1)
	tr.Insert("shadow", 2)

	tr.Delete("shard")
	_, ok := tr.Get("shard")
	assert.False(t, ok)

	v, ok := tr.Get("shadow")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	// deleting a missing key is a no-op
	tr.Delete("ghost")
}

func TestSearchPrefix(t *testing.T) {
	tr := NewTrie()
	for _, w := range []string{"cache", "cachet", "caching", "card", "shard"} {
		tr.Insert(w, nil)
	}

	assert.Equal(t, []string{"cache", "cachet", "caching"}, tr.SearchPrefix("cach", 0))
	assert.Equal(t, []string{"cache", "cachet", "caching", "card"}, tr.SearchPrefix("ca", 0))
	assert.Equal(t, []string{"cache", "cachet"}, tr.SearchPrefix("cach", 2))
	assert.Equal(t, []string{"shard"}, tr.SearchPrefix("shard", 0))
	assert.Empty(t, tr.SearchPrefix("zzz", 0))
}

func TestSearchPrefixMultibyte(t *testing.T) {
	tr := NewTrie()
	tr.Insert("渊协议", 1)
	tr.Insert("渊会", 2)

	got := tr.SearchPrefix("渊", 0)
	sort.Strings(got)
	assert.Equal(t, []string{"渊会", "渊协议"}, got)
}

func TestTraverse(t *testing.T) {
	tr := NewTrie()
	words := []string{"a", "ab", "abc", "b"}
	for i, w := range words {
		tr.Insert(w, i)
	}

	seen := make(map[string]any)
	tr.Traverse(func(key string, value any) {
		seen[key] = value
	})
	assert.Len(t, seen, len(words))
	assert.Equal(t, 2, seen["abc"])
}
