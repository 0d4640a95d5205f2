package relstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
)

// pgUniqueViolation is Postgres's unique_violation SQLSTATE.
const pgUniqueViolation = "23505"

// SetHookConsent upserts a per-user, per-hook consent record.
func (s *Store) SetHookConsent(ctx context.Context, c models.HookConsent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hook_consents (user_id, hook_type, consented, granted_at, revoked_at, external_account_ref)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id, hook_type) DO UPDATE SET
			consented = EXCLUDED.consented,
			granted_at = EXCLUDED.granted_at,
			revoked_at = EXCLUDED.revoked_at,
			external_account_ref = EXCLUDED.external_account_ref
	`, c.UserID, c.HookType, c.Consented, c.GrantedAt, c.RevokedAt, nullIfEmpty(c.ExternalAccountRef))
	if err != nil {
		return fmt.Errorf("%w: set hook consent: %v", apperr.ErrStorage, err)
	}
	return nil
}

// HookConsent fetches one consent row, or apperr.ErrNotFound.
func (s *Store) HookConsent(ctx context.Context, userID string, hookType models.HookType) (models.HookConsent, error) {
	var c models.HookConsent
	var ref sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, hook_type, consented, granted_at, revoked_at, external_account_ref
		FROM hook_consents WHERE user_id = $1 AND hook_type = $2
	`, userID, hookType).Scan(&c.UserID, &c.HookType, &c.Consented, &c.GrantedAt, &c.RevokedAt, &ref)
	if err == sql.ErrNoRows {
		return models.HookConsent{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.HookConsent{}, fmt.Errorf("%w: hook consent lookup: %v", apperr.ErrStorage, err)
	}
	c.ExternalAccountRef = ref.String
	return c, nil
}

// ConsentedUsers lists every user_id with an active (non-revoked)
// consent for hookType, for the poller to iterate.
func (s *Store) ConsentedUsers(ctx context.Context, hookType models.HookType) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM hook_consents WHERE hook_type = $1 AND consented = true AND revoked_at IS NULL
	`, hookType)
	if err != nil {
		return nil, fmt.Errorf("%w: list consented users: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("%w: scan consented user: %v", apperr.ErrStorage, err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// MarkHookEventProcessed records sourceMessageID as handled, returning
// apperr.ErrAlreadyExists if it was already recorded (the dedup check
// C13 runs before handing an event to ingestion).
func (s *Store) MarkHookEventProcessed(ctx context.Context, userID string, hookType models.HookType, sourceMessageID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_hook_events (user_id, hook_type, source_message_id, processed_at)
		VALUES ($1,$2,$3,$4)
	`, userID, hookType, sourceMessageID, time.Now().UTC())
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return apperr.ErrAlreadyExists
	}
	return fmt.Errorf("%w: mark hook event processed: %v", apperr.ErrStorage, err)
}
