package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/linkstash/internal/config"
	"github.com/example/linkstash/internal/logger"
	"github.com/example/linkstash/internal/store"
)

func TestNewDisabledWithoutAddr(t *testing.T) {
	c, err := New(&config.Config{}, logger.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNilCacheIsInert(t *testing.T) {
	var c *BookmarkCache
	ctx := context.Background()

	list, hit := c.GetList(ctx, "u1")
	assert.Nil(t, list)
	assert.False(t, hit)

	// Must not panic.
	c.SetList(ctx, "u1", c.Generation("u1"), []store.Bookmark{{ID: "b1"}})
	c.Invalidate(ctx, "u1")
	assert.Equal(t, uint64(0), c.Generation("u1"))
	assert.NoError(t, c.Close())
}

func TestKeyIsScopedPerUser(t *testing.T) {
	assert.Equal(t, "linkstash:bookmarks:u1", key("u1"))
	assert.NotEqual(t, key("u1"), key("u2"))
}

func TestGenerationsBumpPerUser(t *testing.T) {
	var g generations

	assert.Equal(t, uint64(0), g.load("u1"))

	g.bump("u1")
	g.bump("u1")
	g.bump("u2")

	assert.Equal(t, uint64(2), g.load("u1"))
	assert.Equal(t, uint64(1), g.load("u2"))
}

func TestGenerationsMatchRunsOnlyWhenCurrent(t *testing.T) {
	var g generations

	gen := g.load("u1")
	ran := false
	assert.True(t, g.matches("u1", gen, func() { ran = true }))
	assert.True(t, ran)

	// A bump after the load supersedes the captured generation.
	g.bump("u1")
	ran = false
	assert.False(t, g.matches("u1", gen, func() { ran = true }))
	assert.False(t, ran, "superseded write must not run")

	assert.True(t, g.matches("u1", g.load("u1"), func() {}))
}
