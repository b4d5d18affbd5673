package wikitrivia

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolDiscardsUnlabeledEntities(t *testing.T) {
	g := newFakeGraph()
	g.addEntity("Q6256", "Q142", "France")
	g.addEntity("Q6256", "Q183", "Q183") // label service echoed the id back
	g.addEntity("Q6256", "Q29", "")

	pool := NewEntityPool(g, "Q6256", testLanguages, 10, 3)
	require.True(t, pool.Grow(context.Background()))

	assert.Equal(t, 1, pool.Size())
	entity, ok := pool.Next()
	require.True(t, ok)
	assert.Equal(t, "France", entity.Label)
}

func TestPoolNextAndGrowSequencing(t *testing.T) {
	g := newFakeGraph()
	populateCountries(g, 4)

	// Batch size 2 forces multiple growths to see everything.
	pool := NewEntityPool(g, "Q6256", testLanguages, 2, 5)

	_, ok := pool.Next()
	assert.False(t, ok, "empty pool should signal before first growth")

	require.True(t, pool.Grow(context.Background()))
	assert.Equal(t, 2, pool.Remaining())

	first, ok := pool.Next()
	require.True(t, ok)
	assert.Equal(t, "Q142", first.ID)

	second, ok := pool.Next()
	require.True(t, ok)
	assert.Equal(t, "Q183", second.ID)

	_, ok = pool.Next()
	assert.False(t, ok)

	require.True(t, pool.Grow(context.Background()))
	third, ok := pool.Next()
	require.True(t, ok)
	assert.Equal(t, "Q29", third.ID)

	// Consumed entities stay visible as distractor material.
	assert.Len(t, pool.Snapshot(), 4)
}

func TestPoolGrowthCap(t *testing.T) {
	g := newFakeGraph()
	populateCountries(g, 6)

	pool := NewEntityPool(g, "Q6256", testLanguages, 1, 2)
	assert.True(t, pool.Grow(context.Background()))
	assert.True(t, pool.Grow(context.Background()))
	assert.False(t, pool.Grow(context.Background()), "growth past the cap must be refused")
	assert.Equal(t, 2, pool.Size())
}

func TestPoolGrowStopsWhenSourceDriesUp(t *testing.T) {
	g := newFakeGraph()
	populateCountries(g, 2)

	pool := NewEntityPool(g, "Q6256", testLanguages, 10, 5)
	assert.True(t, pool.Grow(context.Background()))
	assert.False(t, pool.Grow(context.Background()), "a fetch yielding nothing new means exhaustion")
	assert.Equal(t, 2, pool.Size())
}

func TestPoolDegradesGraphErrorsToEmpty(t *testing.T) {
	g := newFakeGraph()
	g.entityErr = assert.AnError

	pool := NewEntityPool(g, "Q6256", testLanguages, 10, 3)
	assert.False(t, pool.Grow(context.Background()), "a failed fetch adds nothing")
	assert.Equal(t, 0, pool.Size())
}
