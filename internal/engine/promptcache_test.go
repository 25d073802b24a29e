package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptIDDeterministic(t *testing.T) {
	a := PromptID("/voices/alice.wav")
	b := PromptID("/voices/alice.wav")
	assert.Equal(t, a, b)
	assert.Len(t, a, 12)
	assert.NotEqual(t, a, PromptID("/voices/bob.wav"))
}

func TestPromptCachePutLookup(t *testing.T) {
	c := NewClonePromptCache()
	c.Put("abc", "prompt-data", "/voices/alice.wav")

	got, err := c.Lookup("abc")
	require.NoError(t, err)
	assert.Equal(t, "prompt-data", got)
}

func TestPromptCacheMissingIDFailsHard(t *testing.T) {
	c := NewClonePromptCache()
	got, err := c.Lookup("nope")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Nil(t, got, "a miss must never yield a usable zero value")
}

func TestPromptCacheOverwrite(t *testing.T) {
	c := NewClonePromptCache()
	c.Put("id", "old", "a.wav")
	c.Put("id", "new", "b.wav")

	got, err := c.Lookup("id")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
	assert.Equal(t, 1, c.Len())
}

func TestPromptCacheIDsSorted(t *testing.T) {
	c := NewClonePromptCache()
	c.Put("zeta", "p1", "")
	c.Put("alpha", "p2", "")
	c.Put("mid", "p3", "")
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, c.IDs())
}
