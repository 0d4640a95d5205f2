package relstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
)

// ErrAlreadyClaimed is returned by Claim when the row is locked by
// another worker's live claim window (spec.md §4.9 409 case).
var ErrAlreadyClaimed = errors.New("intent already claimed")

// CreateIntent inserts a new scheduled intent. Cap and schedule validation
// happens in internal/intents before this is called.
func (s *Store) CreateIntent(ctx context.Context, in models.ScheduledIntent) error {
	schedule, err := json.Marshal(in.TriggerSchedule)
	if err != nil {
		return fmt.Errorf("%w: marshal trigger_schedule: %v", apperr.ErrStorage, err)
	}
	condition, err := json.Marshal(in.TriggerCondition)
	if err != nil {
		return fmt.Errorf("%w: marshal trigger_condition: %v", apperr.ErrStorage, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheduled_intents
			(intent_id, user_id, intent_name, trigger_type, trigger_schedule, trigger_condition,
			 action_context, action_priority, enabled, expires_at, max_executions, execution_count,
			 next_check, cooldown_hours, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,0,$12,$13,$14)
	`, in.ID, in.UserID, in.IntentName, in.TriggerType, schedule, condition,
		in.ActionContext, in.ActionPriority, in.Enabled, in.ExpiresAt, nullIfZero(in.MaxExecutions),
		in.NextCheck, in.CooldownHours, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: create intent: %v", apperr.ErrStorage, err)
	}
	return nil
}

// CountActiveIntents returns the number of enabled intents for the cap check.
func (s *Store) CountActiveIntents(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM scheduled_intents WHERE user_id = $1 AND enabled = true
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count active intents: %v", apperr.ErrStorage, err)
	}
	return n, nil
}

// ListIntents lists every intent for a user, newest first.
func (s *Store) ListIntents(ctx context.Context, userID string) ([]models.ScheduledIntent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT intent_id, user_id, intent_name, trigger_type, trigger_schedule, trigger_condition,
		       COALESCE(action_context, ''), action_priority, enabled, expires_at, max_executions,
		       execution_count, next_check, last_checked, last_executed, COALESCE(last_execution_status, ''),
		       COALESCE(last_message_id, ''), claimed_at, last_condition_fire_at, cooldown_hours, created_at
		FROM scheduled_intents WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list intents: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.ScheduledIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, intent)
	}
	return out, rows.Err()
}

// GetIntent fetches one intent, or apperr.ErrNotFound.
func (s *Store) GetIntent(ctx context.Context, id string) (models.ScheduledIntent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT intent_id, user_id, intent_name, trigger_type, trigger_schedule, trigger_condition,
		       COALESCE(action_context, ''), action_priority, enabled, expires_at, max_executions,
		       execution_count, next_check, last_checked, last_executed, COALESCE(last_execution_status, ''),
		       COALESCE(last_message_id, ''), claimed_at, last_condition_fire_at, cooldown_hours, created_at
		FROM scheduled_intents WHERE intent_id = $1
	`, id)
	intent, err := scanIntent(row)
	if err == sql.ErrNoRows {
		return models.ScheduledIntent{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.ScheduledIntent{}, err
	}
	return intent, nil
}

// DeleteIntent removes an intent (cascades its executions).
func (s *Store) DeleteIntent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_intents WHERE intent_id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete intent: %v", apperr.ErrStorage, err)
	}
	return nil
}

// PendingIntentRow is one row from Pending, carrying the transparency
// flag spec.md §4.9 requires even though Pending is read-only.
type PendingIntentRow struct {
	Intent    models.ScheduledIntent
	InCooldown bool
}

// Pending lists intents ready to be claimed: enabled, due, not currently
// claimed within the live window. It is read-only — claim() performs the
// actual row lock.
func (s *Store) Pending(ctx context.Context, userID string, limit int, now time.Time) ([]PendingIntentRow, error) {
	claimCutoff := now.Add(-models.ClaimTimeout)

	query := `
		SELECT intent_id, user_id, intent_name, trigger_type, trigger_schedule, trigger_condition,
		       COALESCE(action_context, ''), action_priority, enabled, expires_at, max_executions,
		       execution_count, next_check, last_checked, last_executed, COALESCE(last_execution_status, ''),
		       COALESCE(last_message_id, ''), claimed_at, last_condition_fire_at, cooldown_hours, created_at
		FROM scheduled_intents
		WHERE enabled = true AND next_check <= $1 AND (claimed_at IS NULL OR claimed_at < $2)`
	args := []interface{}{now, claimCutoff}
	if userID != "" {
		query += " AND user_id = $3"
		args = append(args, userID)
	}
	query += " ORDER BY next_check ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query pending intents: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var out []PendingIntentRow
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, PendingIntentRow{
			Intent:     intent,
			InCooldown: inCooldown(intent, now),
		})
	}
	return out, rows.Err()
}

func inCooldown(intent models.ScheduledIntent, now time.Time) bool {
	if intent.LastConditionFireAt == nil || intent.CooldownHours <= 0 {
		return false
	}
	return now.Before(intent.LastConditionFireAt.Add(time.Duration(intent.CooldownHours) * time.Hour))
}

// Claim atomically claims one intent with SELECT ... FOR UPDATE SKIP
// LOCKED, grounded on tarsy pkg/queue/worker.go's claimNextSession. It
// returns apperr.ErrNotFound if the id doesn't exist, and
// ErrAlreadyClaimed if a live claim window is already held — the two
// cases the caller maps to 404 and 409 respectively.
func (s *Store) Claim(ctx context.Context, id string, now time.Time) (models.ScheduledIntent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ScheduledIntent{}, fmt.Errorf("%w: begin claim tx: %v", apperr.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	claimCutoff := now.Add(-models.ClaimTimeout)
	row := tx.QueryRowContext(ctx, `
		SELECT intent_id, user_id, intent_name, trigger_type, trigger_schedule, trigger_condition,
		       COALESCE(action_context, ''), action_priority, enabled, expires_at, max_executions,
		       execution_count, next_check, last_checked, last_executed, COALESCE(last_execution_status, ''),
		       COALESCE(last_message_id, ''), claimed_at, last_condition_fire_at, cooldown_hours, created_at
		FROM scheduled_intents WHERE intent_id = $1 FOR UPDATE SKIP LOCKED
	`, id)
	intent, err := scanIntent(row)
	if err == sql.ErrNoRows {
		// Either missing entirely, or locked by a concurrent claimant —
		// disambiguate with a lock-free existence check.
		var exists bool
		if checkErr := s.db.QueryRowContext(ctx, `SELECT true FROM scheduled_intents WHERE intent_id = $1`, id).Scan(&exists); checkErr == sql.ErrNoRows {
			return models.ScheduledIntent{}, apperr.ErrNotFound
		}
		return models.ScheduledIntent{}, ErrAlreadyClaimed
	}
	if err != nil {
		return models.ScheduledIntent{}, err
	}
	if intent.ClaimedAt != nil && intent.ClaimedAt.After(claimCutoff) {
		return models.ScheduledIntent{}, ErrAlreadyClaimed
	}

	if _, err := tx.ExecContext(ctx, `UPDATE scheduled_intents SET claimed_at = $2 WHERE intent_id = $1`, id, now); err != nil {
		return models.ScheduledIntent{}, fmt.Errorf("%w: set claimed_at: %v", apperr.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return models.ScheduledIntent{}, fmt.Errorf("%w: commit claim: %v", apperr.ErrStorage, err)
	}

	intent.ClaimedAt = &now
	return intent, nil
}

// FireResult carries the outcome recorded by Fire.
type FireResult struct {
	Status     models.ExecutionStatus
	GateResult string
	Error      string
	NextCheck  *time.Time // computed by internal/intents per the next_check table, nil means null/disabled
	Disable    bool
}

// Fire records an execution outcome: always updates last_checked, sets
// last_executed/increments execution_count on success, clears claimed_at,
// applies the caller-computed next_check, and always appends an
// intent_executions audit row (spec.md §4.9).
func (s *Store) Fire(ctx context.Context, id string, result FireResult, startedAt, finishedAt time.Time) (models.ScheduledIntent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ScheduledIntent{}, fmt.Errorf("%w: begin fire tx: %v", apperr.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE scheduled_intents SET
			last_checked = $2,
			last_execution_status = $3,
			claimed_at = NULL,
			next_check = $4`
	args := []interface{}{id, finishedAt, result.Status, result.NextCheck}
	if result.Status == models.ExecSuccess {
		query += `, last_executed = $2, execution_count = execution_count + 1`
	}
	if result.Disable {
		query += `, enabled = false`
	}
	query += ` WHERE intent_id = $1`

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return models.ScheduledIntent{}, fmt.Errorf("%w: update intent on fire: %v", apperr.ErrStorage, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO intent_executions (id, intent_id, started_at, finished_at, status, gate_result, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, uuid.NewString(), id, startedAt, finishedAt, result.Status, nullIfEmpty(result.GateResult), nullIfEmpty(result.Error)); err != nil {
		return models.ScheduledIntent{}, fmt.Errorf("%w: append execution: %v", apperr.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return models.ScheduledIntent{}, fmt.Errorf("%w: commit fire: %v", apperr.ErrStorage, err)
	}
	return s.GetIntent(ctx, id)
}

// History lists execution audit rows for one intent, newest first.
func (s *Store) History(ctx context.Context, intentID string) ([]models.IntentExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, intent_id, started_at, finished_at, status, COALESCE(gate_result, ''), COALESCE(error, '')
		FROM intent_executions WHERE intent_id = $1 ORDER BY started_at DESC
	`, intentID)
	if err != nil {
		return nil, fmt.Errorf("%w: list executions: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.IntentExecution
	for rows.Next() {
		var e models.IntentExecution
		if err := rows.Scan(&e.ID, &e.IntentID, &e.StartedAt, &e.FinishedAt, &e.Status, &e.GateResult, &e.Error); err != nil {
			return nil, fmt.Errorf("%w: scan execution: %v", apperr.ErrStorage, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntent(row rowScanner) (models.ScheduledIntent, error) {
	var (
		intent          models.ScheduledIntent
		schedule, cond  []byte
		maxExec         sql.NullInt64
	)
	err := row.Scan(
		&intent.ID, &intent.UserID, &intent.IntentName, &intent.TriggerType, &schedule, &cond,
		&intent.ActionContext, &intent.ActionPriority, &intent.Enabled, &intent.ExpiresAt, &maxExec,
		&intent.ExecutionCount, &intent.NextCheck, &intent.LastChecked, &intent.LastExecuted,
		&intent.LastExecutionStatus, &intent.LastMessageID, &intent.ClaimedAt, &intent.LastConditionFireAt,
		&intent.CooldownHours, &intent.CreatedAt,
	)
	if err != nil {
		return models.ScheduledIntent{}, err
	}
	if len(schedule) > 0 {
		_ = json.Unmarshal(schedule, &intent.TriggerSchedule)
	}
	if len(cond) > 0 {
		_ = json.Unmarshal(cond, &intent.TriggerCondition)
	}
	if maxExec.Valid {
		intent.MaxExecutions = int(maxExec.Int64)
	}
	return intent, nil
}

func nullIfZero(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
