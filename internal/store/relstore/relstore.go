// Package relstore implements C5: procedural skills, portfolio
// sub-tables, profile tables, scheduled intents, and hook consent rows,
// all against the Postgres tables whose DDL mirrors ent/schema.
//
// Query shape (transactions, FOR UPDATE SKIP LOCKED claiming) is grounded
// on tarsy pkg/queue/worker.go's claimNextSession.
package relstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
)

// Store wraps the shared *sql.DB for every C5 table.
type Store struct {
	db *sql.DB
}

// New returns a Store over db.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertSkill inserts or updates a procedural skill row keyed on id.
func (s *Store) UpsertSkill(ctx context.Context, skill models.ProceduralSkill) error {
	prereqs, err := json.Marshal(skill.Prerequisites)
	if err != nil {
		return fmt.Errorf("%w: marshal prerequisites: %v", apperr.ErrStorage, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO procedural_skills
			(mem_id, user_id, skill_name, proficiency_level, prerequisites, practice_count, success_rate, last_practiced)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (mem_id) DO UPDATE SET
			skill_name = EXCLUDED.skill_name,
			proficiency_level = EXCLUDED.proficiency_level,
			prerequisites = EXCLUDED.prerequisites,
			practice_count = EXCLUDED.practice_count,
			success_rate = EXCLUDED.success_rate,
			last_practiced = EXCLUDED.last_practiced
	`, skill.ID, skill.UserID, skill.SkillName, skill.ProficiencyLevel, prereqs,
		skill.PracticeCount, skill.SuccessRate, skill.LastPracticed)
	if err != nil {
		return fmt.Errorf("%w: upsert skill: %v", apperr.ErrStorage, err)
	}
	return nil
}

// AppendProgression records a proficiency-level transition.
func (s *Store) AppendProgression(ctx context.Context, p models.SkillProgression) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO skill_progressions (id, skill_id, from_level, to_level, "timestamp", note)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.SkillID, p.FromLevel, p.ToLevel, p.Timestamp, p.Note)
	if err != nil {
		return fmt.Errorf("%w: append progression: %v", apperr.ErrStorage, err)
	}
	return nil
}

// SkillByName fetches a user's skill row by name, or apperr.ErrNotFound.
func (s *Store) SkillByName(ctx context.Context, userID, skillName string) (models.ProceduralSkill, error) {
	var sk models.ProceduralSkill
	var prereqs []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT mem_id, user_id, skill_name, proficiency_level, prerequisites, practice_count, success_rate, last_practiced
		FROM procedural_skills WHERE user_id = $1 AND skill_name = $2
	`, userID, skillName).Scan(&sk.ID, &sk.UserID, &sk.SkillName, &sk.ProficiencyLevel, &prereqs,
		&sk.PracticeCount, &sk.SuccessRate, &sk.LastPracticed)
	if err == sql.ErrNoRows {
		return models.ProceduralSkill{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.ProceduralSkill{}, fmt.Errorf("%w: skill lookup: %v", apperr.ErrStorage, err)
	}
	if len(prereqs) > 0 {
		if err := json.Unmarshal(prereqs, &sk.Prerequisites); err != nil {
			return models.ProceduralSkill{}, fmt.Errorf("%w: unmarshal prerequisites: %v", apperr.ErrStorage, err)
		}
	}
	return sk, nil
}

// SkillsByUser lists every procedural skill row for userID, for
// structured retrieval's procedural-lookup branch.
func (s *Store) SkillsByUser(ctx context.Context, userID string) ([]models.ProceduralSkill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mem_id, user_id, skill_name, proficiency_level, prerequisites, practice_count, success_rate, last_practiced
		FROM procedural_skills WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list skills: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.ProceduralSkill
	for rows.Next() {
		var sk models.ProceduralSkill
		var prereqs []byte
		if err := rows.Scan(&sk.ID, &sk.UserID, &sk.SkillName, &sk.ProficiencyLevel, &prereqs,
			&sk.PracticeCount, &sk.SuccessRate, &sk.LastPracticed); err != nil {
			return nil, fmt.Errorf("%w: scan skill: %v", apperr.ErrStorage, err)
		}
		if len(prereqs) > 0 {
			_ = json.Unmarshal(prereqs, &sk.Prerequisites)
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

// DeleteSkill removes a skill row (and cascades its progressions).
func (s *Store) DeleteSkill(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM procedural_skills WHERE mem_id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete skill: %v", apperr.ErrStorage, err)
	}
	return nil
}

// UpsertHolding sets a ticker position's shares and avg_price to the
// given values (overwriting, not adding to, any existing row), creating
// the row on first touch.
func (s *Store) UpsertHolding(ctx context.Context, h models.PortfolioHolding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolio_holdings (user_id, ticker, shares, avg_price, asset_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, ticker) DO UPDATE SET
			shares = EXCLUDED.shares, avg_price = EXCLUDED.avg_price, updated_at = EXCLUDED.updated_at
	`, h.UserID, h.Ticker, h.Shares, h.AvgPrice, h.AssetName, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: upsert holding: %v", apperr.ErrStorage, err)
	}
	return nil
}

// HoldingsByUser lists every position a user holds, for portfolio summary.
func (s *Store) HoldingsByUser(ctx context.Context, userID string) ([]models.PortfolioHolding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, ticker, shares, avg_price, asset_name, created_at, updated_at
		FROM portfolio_holdings WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list holdings: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.PortfolioHolding
	for rows.Next() {
		var h models.PortfolioHolding
		if err := rows.Scan(&h.UserID, &h.Ticker, &h.Shares, &h.AvgPrice, &h.AssetName, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan holding: %v", apperr.ErrStorage, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Holding fetches one (user_id, ticker) position, or apperr.ErrNotFound.
func (s *Store) Holding(ctx context.Context, userID, ticker string) (models.PortfolioHolding, error) {
	var h models.PortfolioHolding
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, ticker, shares, avg_price, asset_name, created_at, updated_at
		FROM portfolio_holdings WHERE user_id = $1 AND ticker = $2
	`, userID, ticker).Scan(&h.UserID, &h.Ticker, &h.Shares, &h.AvgPrice, &h.AssetName, &h.CreatedAt, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.PortfolioHolding{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.PortfolioHolding{}, fmt.Errorf("%w: holding lookup: %v", apperr.ErrStorage, err)
	}
	return h, nil
}

// DeleteHolding removes a position entirely.
func (s *Store) DeleteHolding(ctx context.Context, userID, ticker string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM portfolio_holdings WHERE user_id = $1 AND ticker = $2`, userID, ticker)
	if err != nil {
		return fmt.Errorf("%w: delete holding: %v", apperr.ErrStorage, err)
	}
	return nil
}

// AppendTransaction records an append-only buy/sell event.
func (s *Store) AppendTransaction(ctx context.Context, t models.PortfolioTransaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolio_transactions (id, user_id, ticker, side, shares, price, "timestamp")
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.UserID, t.Ticker, t.Side, t.Shares, t.Price, t.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: append transaction: %v", apperr.ErrStorage, err)
	}
	return nil
}

// InsertSnapshot records a point-in-time portfolio valuation.
func (s *Store) InsertSnapshot(ctx context.Context, snap models.PortfolioSnapshot) error {
	holdings, err := json.Marshal(snap.Holdings)
	if err != nil {
		return fmt.Errorf("%w: marshal holdings: %v", apperr.ErrStorage, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO portfolio_snapshots (user_id, snapshot_timestamp, total_value, holdings)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, snapshot_timestamp) DO UPDATE SET
			total_value = EXCLUDED.total_value, holdings = EXCLUDED.holdings
	`, snap.UserID, snap.SnapshotTimestamp, snap.TotalValue, holdings)
	if err != nil {
		return fmt.Errorf("%w: insert snapshot: %v", apperr.ErrStorage, err)
	}
	return nil
}

// SetPreference upserts a single typed preference.
func (s *Store) SetPreference(ctx context.Context, p models.PortfolioPreference) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolio_preferences (user_id, key, value, value_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value, value_type = EXCLUDED.value_type
	`, p.UserID, p.Key, p.Value, p.ValueType)
	if err != nil {
		return fmt.Errorf("%w: set preference: %v", apperr.ErrStorage, err)
	}
	return nil
}
