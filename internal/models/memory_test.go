package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStoredInFlagsRoundTrip(t *testing.T) {
	m := &Memory{}
	flags := StoredIn{Episodic: true, Emotional: false, Procedural: true, Portfolio: false}
	m.SetStoredInFlags(flags)
	assert.Equal(t, flags, m.StoredInFlags())
	assert.True(t, m.StoredInFlags().Any())
}

func TestMemoryStoredInFlagsDefaultsWhenAbsent(t *testing.T) {
	m := &Memory{}
	assert.Equal(t, StoredIn{}, m.StoredInFlags())
	assert.False(t, m.StoredInFlags().Any())
}

func TestStoredInFromMetadata(t *testing.T) {
	t.Run("nil metadata", func(t *testing.T) {
		assert.Equal(t, StoredIn{}, StoredInFromMetadata(nil))
	})

	t.Run("partial metadata", func(t *testing.T) {
		meta := map[string]interface{}{"stored_in_episodic": true}
		got := StoredInFromMetadata(meta)
		assert.Equal(t, StoredIn{Episodic: true}, got)
	})

	t.Run("non-bool values ignored", func(t *testing.T) {
		meta := map[string]interface{}{"stored_in_portfolio": "yes"}
		assert.Equal(t, StoredIn{}, StoredInFromMetadata(meta))
	})
}

func TestStoredInAny(t *testing.T) {
	assert.False(t, StoredIn{}.Any())
	assert.True(t, StoredIn{Portfolio: true}.Any())
}
