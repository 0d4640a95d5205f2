package compaction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextRun(t *testing.T) {
	t.Run("today if schedule has not passed yet", func(t *testing.T) {
		now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
		next := nextRun(now, "23:00")
		assert.Equal(t, time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC), next)
	})

	t.Run("tomorrow if schedule already passed", func(t *testing.T) {
		now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
		next := nextRun(now, "00:00")
		assert.Equal(t, time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC), next)
	})

	t.Run("malformed schedule falls back to midnight", func(t *testing.T) {
		now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
		next := nextRun(now, "garbage")
		assert.Equal(t, time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC), next)
	})
}

func TestClusterByCosine(t *testing.T) {
	near := func(id string) candidate { return candidate{id: id, vector: []float32{1, 0, 0}} }
	far := candidate{id: "far", vector: []float32{0, 1, 0}}

	clusters := clusterByCosine([]candidate{near("a"), near("b"), far}, 0.9)

	assert.Len(t, clusters, 2)
	var sizes []int
	for _, c := range clusters {
		sizes = append(sizes, len(c))
	}
	assert.ElementsMatch(t, []int{2, 1}, sizes)
}

func TestClusterByCosineEmptyInput(t *testing.T) {
	assert.Empty(t, clusterByCosine(nil, 0.9))
}

func TestUnionTags(t *testing.T) {
	got := unionTags([]string{"finance", "habits"}, []string{"habits", "learning"})
	assert.Equal(t, []string{"finance", "habits", "learning"}, got)
}

func TestContainsTag(t *testing.T) {
	assert.True(t, containsTag([]string{"a", "b"}, "b"))
	assert.False(t, containsTag([]string{"a", "b"}, "c"))
	assert.False(t, containsTag(nil, "a"))
}

func TestStringSlice(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, stringSlice([]interface{}{"a", "b"}))
	assert.Nil(t, stringSlice("not a slice"))
	assert.Nil(t, stringSlice(nil))
}

func TestParseTimestampFallsBackToNow(t *testing.T) {
	valid := "2026-07-30T10:00:00Z"
	got := parseTimestamp(valid)
	assert.Equal(t, valid, got.Format(time.RFC3339))

	before := time.Now().UTC()
	got = parseTimestamp("not a timestamp")
	assert.True(t, !got.Before(before))
}
