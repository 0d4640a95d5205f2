package relstore_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
)

func TestProfileManualOverrideForcesMaxConfidence(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	userID := "user_" + uuid.NewString()[:8]

	profile, err := store.UpsertProfileFields(ctx, userID, []models.ProfileUpdate{{
		Category: models.CategoryBasics, FieldName: "home_city", FieldValue: "Austin",
		ValueType: "string", SourceType: models.SourceInferred, ManualOverride: true,
	}}, timeNow())
	require.NoError(t, err)
	assert.Equal(t, 1, profile.PopulatedFields)

	scores, err := store.ConfidenceScores(ctx, userID)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 100.0, scores[0].OverallConfidence, "a manual override sets confidence to 100 regardless of source type (spec.md §4.5)")
}

func TestProfileCompletenessTracksPopulatedFields(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	userID := "user_" + uuid.NewString()[:8]

	_, err := store.UpsertProfileFields(ctx, userID, []models.ProfileUpdate{
		{Category: models.CategoryBasics, FieldName: "home_city", FieldValue: "Austin", ValueType: "string", SourceType: models.SourceExplicit},
		{Category: models.CategoryGoals, FieldName: "primary_goal", FieldValue: "run a marathon", ValueType: "string", SourceType: models.SourceExplicit},
	}, timeNow())
	require.NoError(t, err)

	profile, err := store.Profile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, profile.PopulatedFields)
	assert.Equal(t, models.TotalProfileFields, profile.TotalFields)
	assert.InDelta(t, float64(2)/float64(models.TotalProfileFields)*100, profile.CompletenessPct, 0.01)
}

func TestProfileFieldsByCategory(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	userID := "user_" + uuid.NewString()[:8]

	_, err := store.UpsertProfileFields(ctx, userID, []models.ProfileUpdate{
		{Category: models.CategoryInterests, FieldName: "hobby", FieldValue: "climbing", ValueType: "string", SourceType: models.SourceExplicit},
	}, timeNow())
	require.NoError(t, err)

	fields, err := store.ProfileFieldsByCategory(ctx, userID, models.CategoryInterests)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "climbing", fields[0].FieldValue)

	empty, err := store.ProfileFieldsByCategory(ctx, userID, models.CategoryBackground)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestProfileDelete(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	userID := "user_" + uuid.NewString()[:8]

	_, err := store.UpsertProfileFields(ctx, userID, []models.ProfileUpdate{
		{Category: models.CategoryBasics, FieldName: "home_city", FieldValue: "Austin", ValueType: "string", SourceType: models.SourceExplicit},
	}, timeNow())
	require.NoError(t, err)

	require.NoError(t, store.DeleteProfile(ctx, userID))

	_, err = store.Profile(ctx, userID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
