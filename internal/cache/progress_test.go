package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type view struct {
	Rate   int      `json:"rate"`
	Labels []string `json:"labels"`
}

func TestProgressCacheRoundTrip(t *testing.T) {
	c := NewProgressCache(0, time.Minute)

	var got view
	assert.False(t, c.Get(KindProgress, "client-1", &got))

	c.Set(KindProgress, "client-1", 0, view{Rate: 75, Labels: []string{"a"}})
	require.True(t, c.Get(KindProgress, "client-1", &got))
	assert.Equal(t, view{Rate: 75, Labels: []string{"a"}}, got)

	// Kinds and clients are separate keys.
	assert.False(t, c.Get(KindAchievements, "client-1", &got))
	assert.False(t, c.Get(KindProgress, "client-2", &got))
}

func TestProgressCacheInvalidateDropsEveryKind(t *testing.T) {
	c := NewProgressCache(0, 0)
	c.Set(KindProgress, "c", 0, view{Rate: 1})
	c.Set(KindAchievements, "c", 0, []string{"first_workout"})
	c.Set(KindProgress, "other", 0, view{Rate: 2})

	c.Invalidate("c")

	var v view
	var list []string
	assert.False(t, c.Get(KindProgress, "c", &v))
	assert.False(t, c.Get(KindAchievements, "c", &list))
	assert.True(t, c.Get(KindProgress, "other", &v))
	assert.Equal(t, 2, v.Rate)
}

func TestProgressCacheUndecodableEntryIsAMiss(t *testing.T) {
	c := NewProgressCache(0, 0)
	c.Set(KindProgress, "c", 0, "not an object")

	var v view
	assert.False(t, c.Get(KindProgress, "c", &v))

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(0), misses)
}

func TestProgressCacheDropsViewsReadBeforeInvalidate(t *testing.T) {
	c := NewProgressCache(0, 0)

	gen := c.Generation("c")
	c.Invalidate("c")
	c.Set(KindProgress, "c", gen, view{Rate: 10})

	var v view
	assert.False(t, c.Get(KindProgress, "c", &v), "view built before the write must not be stored")

	c.Set(KindProgress, "c", c.Generation("c"), view{Rate: 20})
	require.True(t, c.Get(KindProgress, "c", &v))
	assert.Equal(t, 20, v.Rate)

	// Other clients keep their own counters.
	c.Set(KindProgress, "other", 0, view{Rate: 30})
	assert.True(t, c.Get(KindProgress, "other", &v))
}
