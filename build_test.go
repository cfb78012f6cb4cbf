package shardex

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordExtractor(t *testing.T) {
	we := NewWordExtractor()

	assert.Equal(t, []string{"quick", "brown", "fox"}, we.Extract("The quick brown fox"))
	assert.Equal(t, []string{"42"}, we.Extract(42))
	assert.Empty(t, we.Extract("   "))
	assert.Empty(t, we.Extract(nil))

	custom := NewWordExtractor("quick")
	assert.Equal(t, []string{"the", "brown", "fox"}, custom.Extract("The quick brown fox"))
}

func TestBuildFromWords(t *testing.T) {
	m := newTestManager(t)

	added, err := m.Build(context.Background(), []string{"alpha", "beta", "alpha"})
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.Equal(t, 2, m.index.Len())
	assert.Equal(t, uint64(2), m.GetWordFrequency("alpha"))
}

func TestBuildFromJSONString(t *testing.T) {
	m := newTestManager(t)

	added, err := m.Build(context.Background(), `[{"name":"alpha beta"},{"name":"gamma"}]`)
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.True(t, m.ContainsWord("gamma"))
}

func TestBuildFromReader(t *testing.T) {
	m := newTestManager(t)

	added, err := m.BuildFromReader(context.Background(), strings.NewReader(`[{"title":"shard index","count":7}]`))
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.True(t, m.ContainsWord("shard"))
	assert.True(t, m.ContainsWord("7"))
}

func TestBuildFromReaderRejectsNonArray(t *testing.T) {
	m := newTestManager(t)
	_, err := m.BuildFromReader(context.Background(), strings.NewReader(`{"not":"an array"}`))
	require.Error(t, err)
}

func TestBuildFromFile(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"word":"persisted"}]`), 0644))

	added, err := m.Build(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.True(t, m.ContainsWord("persisted"))
}

func TestBuildFromStructs(t *testing.T) {
	m := newTestManager(t)
	type record struct {
		Name string `json:"name"`
	}

	added, err := m.Build(context.Background(), []record{{Name: "epsilon"}, {Name: "zeta"}})
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.True(t, m.ContainsWord("epsilon"))
}

func TestBuildRequestDispatch(t *testing.T) {
	m := newTestManager(t)

	added, err := m.Build(context.Background(), BuildRequest{Words: []string{"eta"}})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	added, err = m.Build(context.Background(), BuildRequest{Data: []map[string]any{{"k": "theta"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	_, err = m.Build(context.Background(), BuildRequest{})
	require.Error(t, err)
}

func TestBuildUnsupportedInput(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Build(context.Background(), 12.5)
	require.Error(t, err)
}

func TestBuildHonorsContextCancellation(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Build(ctx, []string{"after", "cancel"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildFromDatabaseValidation(t *testing.T) {
	m := newTestManager(t)

	_, err := m.BuildFromDatabase(context.Background(), DBRequest{})
	require.Error(t, err)

	_, err = m.BuildFromDatabase(context.Background(), DBRequest{Query: ""})
	require.Error(t, err)
}
