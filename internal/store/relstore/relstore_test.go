package relstore_test

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
	"github.com/ankitaa186/agentic-memories-sub002/internal/database"
	"github.com/ankitaa186/agentic-memories-sub002/internal/database/testdb"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/relstore"
)

func timeNow() time.Time { return time.Now().UTC() }

func openStore(t *testing.T) (*relstore.Store, *sql.DB) {
	t.Helper()
	cfg := testdb.Open(t)
	db, err := database.NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return relstore.New(db), db
}

func TestHoldingCRUD(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	userID := "user_" + uuid.NewString()[:8]
	now := time.Now().UTC()

	h := models.PortfolioHolding{
		UserID: userID, Ticker: "AAPL", Shares: 10, AvgPrice: 150.25,
		AssetName: "Apple Inc.", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.UpsertHolding(ctx, h))

	got, err := store.Holding(ctx, userID, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Shares)
	assert.InDelta(t, 150.25, got.AvgPrice, 1e-6)

	h.Shares = 15
	require.NoError(t, store.UpsertHolding(ctx, h))
	got, err = store.Holding(ctx, userID, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 15.0, got.Shares)

	all, err := store.HoldingsByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteHolding(ctx, userID, "AAPL"))
	_, err = store.Holding(ctx, userID, "AAPL")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestIntentClaimIsExclusive(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	userID := "user_" + uuid.NewString()[:8]
	dueAt := now.Add(-time.Minute)

	intent := models.ScheduledIntent{
		ID: "intent_" + uuid.NewString()[:8], UserID: userID, IntentName: "daily check-in",
		TriggerType: models.TriggerCron, TriggerSchedule: map[string]any{"cron": "0 9 * * *"},
		ActionContext: "say good morning", Enabled: true, NextCheck: &dueAt,
		CreatedAt: now,
	}
	require.NoError(t, store.CreateIntent(ctx, intent))

	const workers = 8
	var claimed int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := store.Claim(ctx, intent.ID, now); err == nil {
				atomic.AddInt32(&claimed, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, claimed, "exactly one concurrent claimant should win (spec.md §8 property 5)")
}

func TestIntentPendingRespectsNextCheck(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	userID := "user_" + uuid.NewString()[:8]
	pastCheck := now.Add(-time.Minute)
	futureCheck := now.Add(time.Hour)

	due := models.ScheduledIntent{
		ID: "intent_" + uuid.NewString()[:8], UserID: userID, IntentName: "due",
		TriggerType: models.TriggerOnce, Enabled: true, NextCheck: &pastCheck, CreatedAt: now,
	}
	notDue := models.ScheduledIntent{
		ID: "intent_" + uuid.NewString()[:8], UserID: userID, IntentName: "not due",
		TriggerType: models.TriggerOnce, Enabled: true, NextCheck: &futureCheck, CreatedAt: now,
	}
	require.NoError(t, store.CreateIntent(ctx, due))
	require.NoError(t, store.CreateIntent(ctx, notDue))

	rows, err := store.Pending(ctx, userID, 10, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, due.ID, rows[0].Intent.ID)
}
