package intents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
)

func testConfig() Config {
	return Config{
		MaxActivePerUser: 25, MinCronIntervalSeconds: 60, MaxCronFiresPerDay: 96,
		MinIntervalMinutes: 5, ClaimTimeout: 5 * time.Minute, PollInterval: 30 * time.Second,
	}
}

// Create validates the schedule before ever touching the store, so a
// nil *relstore.Store is safe for these cases.
func TestCreateRejectsInvalidSchedules(t *testing.T) {
	svc := New(nil, testConfig(), nil)

	t.Run("cron missing expression", func(t *testing.T) {
		_, err := svc.Create(context.Background(), CreateInput{
			UserID: "u1", TriggerType: models.TriggerCron, TriggerSchedule: map[string]any{},
		})
		require.Error(t, err)
		assert.True(t, apperr.IsValidationError(err))
	})

	t.Run("cron fires too often", func(t *testing.T) {
		_, err := svc.Create(context.Background(), CreateInput{
			UserID: "u1", TriggerType: models.TriggerCron,
			TriggerSchedule: map[string]any{"expression": "* * * * *"},
		})
		require.Error(t, err)
		assert.True(t, apperr.IsValidationError(err))
	})

	t.Run("interval below minimum", func(t *testing.T) {
		_, err := svc.Create(context.Background(), CreateInput{
			UserID: "u1", TriggerType: models.TriggerInterval,
			TriggerSchedule: map[string]any{"minutes": 1.0},
		})
		require.Error(t, err)
		assert.True(t, apperr.IsValidationError(err))
	})

	t.Run("valid daily cron passes validation", func(t *testing.T) {
		err := svc.validateSchedule(models.TriggerCron, map[string]any{"expression": "0 9 * * *"}, nil)
		assert.NoError(t, err)
	})
}

func TestFirstNextCheck(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	t.Run("interval", func(t *testing.T) {
		next, err := firstNextCheck(models.TriggerInterval, map[string]any{"minutes": 15.0}, now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(15*time.Minute), next)
	})

	t.Run("once", func(t *testing.T) {
		at := now.Add(2 * time.Hour)
		next, err := firstNextCheck(models.TriggerOnce, map[string]any{"at": at.Format(time.RFC3339)}, now)
		require.NoError(t, err)
		assert.True(t, next.Equal(at))
	})

	t.Run("price trigger starts checking immediately", func(t *testing.T) {
		next, err := firstNextCheck(models.TriggerPrice, map[string]any{}, now)
		require.NoError(t, err)
		assert.Equal(t, now, next)
	})
}

func TestNextCheckForFailureBackoff(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	intent := models.ScheduledIntent{TriggerType: models.TriggerOnce}

	next, err := nextCheckFor(intent, models.ExecFailed, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), *next)

	next, err = nextCheckFor(intent, models.ExecConditionNotMet, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Minute), *next)

	next, err = nextCheckFor(intent, models.ExecSuccess, now)
	require.NoError(t, err)
	assert.Nil(t, next, "a once-trigger has no further next_check after success")
}

func TestShouldDisable(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	t.Run("once trigger disables on success so next_check=null implies enabled=false", func(t *testing.T) {
		intent := models.ScheduledIntent{TriggerType: models.TriggerOnce}
		assert.True(t, shouldDisable(intent, models.ExecSuccess, 1, now))
	})

	t.Run("cron trigger stays enabled on success", func(t *testing.T) {
		intent := models.ScheduledIntent{TriggerType: models.TriggerCron}
		assert.False(t, shouldDisable(intent, models.ExecSuccess, 1, now))
	})

	t.Run("max executions reached disables regardless of trigger type", func(t *testing.T) {
		intent := models.ScheduledIntent{TriggerType: models.TriggerInterval, MaxExecutions: 3}
		assert.True(t, shouldDisable(intent, models.ExecSuccess, 3, now))
		assert.False(t, shouldDisable(intent, models.ExecSuccess, 2, now))
	})

	t.Run("expired intent disables even on a failed fire", func(t *testing.T) {
		expired := now.Add(-time.Minute)
		intent := models.ScheduledIntent{TriggerType: models.TriggerCron, ExpiresAt: &expired}
		assert.True(t, shouldDisable(intent, models.ExecFailed, 0, now))
	})

	t.Run("non-success status does not disable an interval trigger", func(t *testing.T) {
		intent := models.ScheduledIntent{TriggerType: models.TriggerInterval}
		assert.False(t, shouldDisable(intent, models.ExecFailed, 0, now))
	})
}
