package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetectPersona(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"can you be my accountability coach this week", "coach"},
		{"help me build a better habit around sleep", "coach"},
		{"how should I rebalance my investment portfolio", "advisor"},
		{"what's a good financial advisor look for", "advisor"},
		{"what did I have for lunch yesterday", ""},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.want, detectPersona(tc.query))
		})
	}
}

func TestImportanceOf(t *testing.T) {
	assert.Equal(t, 0.8, importanceOf(nil))
	assert.Equal(t, 0.3, importanceOf(map[string]any{"importance": 0.3}))
	assert.Equal(t, 0.7, importanceOf(map[string]any{"importance_score": 0.7}))
	assert.Equal(t, 0.8, importanceOf(map[string]any{"importance": "high"}))
}

func TestEmotionalAlignmentOf(t *testing.T) {
	assert.Equal(t, 0.5, emotionalAlignmentOf(nil))
	assert.Equal(t, 0.5, emotionalAlignmentOf(map[string]any{}))
	assert.InDelta(t, 1.0, emotionalAlignmentOf(map[string]any{"emotional_valence": 1.0}), 1e-9)
	assert.InDelta(t, 1.0, emotionalAlignmentOf(map[string]any{"emotional_valence": -1.0}), 1e-9)
	assert.InDelta(t, 0.5, emotionalAlignmentOf(map[string]any{"emotional_valence": 0.0}), 1e-9)
}

// TestSortHitsDeterministicTieBreak exercises the fixed ordering rule:
// score desc, then timestamp desc, then id asc (spec.md §8 property 6).
func TestSortHitsDeterministicTieBreak(t *testing.T) {
	t0 := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	hits := []Hit{
		{MemoryID: "mem_b", Score: 0.5, Timestamp: t0},
		{MemoryID: "mem_a", Score: 0.9, Timestamp: t0},
		{MemoryID: "mem_c", Score: 0.9, Timestamp: t0.Add(time.Hour)},
		{MemoryID: "mem_d", Score: 0.9, Timestamp: t0},
	}
	sortHits(hits)

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.MemoryID
	}
	assert.Equal(t, []string{"mem_c", "mem_a", "mem_d", "mem_b"}, ids)
}

// TestSortHitsStableAndRepeatable checks that running the same sort
// twice over equal inputs always yields the same order.
func TestSortHitsStableAndRepeatable(t *testing.T) {
	t0 := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	build := func() []Hit {
		return []Hit{
			{MemoryID: "mem_z", Score: 0.7, Timestamp: t0},
			{MemoryID: "mem_y", Score: 0.7, Timestamp: t0},
			{MemoryID: "mem_x", Score: 0.8, Timestamp: t0},
		}
	}
	first := build()
	sortHits(first)
	second := build()
	sortHits(second)
	assert.Equal(t, first, second)
}
