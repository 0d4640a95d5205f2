// Package timestore implements C4: episodic events, emotional states,
// and portfolio snapshots, all queried by a (user_id, timestamp) range —
// the time-partitioned store spec.md §3 calls out separately from the
// general-purpose relational tables in C5.
package timestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
)

// Store wraps the shared *sql.DB for every time-partitioned table.
type Store struct {
	db *sql.DB
}

// New returns a Store over db.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertEpisodicEvent writes one episodic row.
func (s *Store) InsertEpisodicEvent(ctx context.Context, e models.EpisodicEvent) error {
	location, err := json.Marshal(e.Location)
	if err != nil {
		return fmt.Errorf("%w: marshal location: %v", apperr.ErrStorage, err)
	}
	participants, err := json.Marshal(e.Participants)
	if err != nil {
		return fmt.Errorf("%w: marshal participants: %v", apperr.ErrStorage, err)
	}
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("%w: marshal tags: %v", apperr.ErrStorage, err)
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %v", apperr.ErrStorage, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO episodic_events
			(mem_id, user_id, event_timestamp, event_type, content, location, participants,
			 emotional_valence, emotional_arousal, importance_score, tags, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, e.ID, e.UserID, e.EventTimestamp, nullIfEmpty(e.EventType), e.Content, location, participants,
		e.EmotionalValence, e.EmotionalArousal, e.ImportanceScore, tags, metadata)
	if err != nil {
		return fmt.Errorf("%w: insert episodic event: %v", apperr.ErrStorage, err)
	}
	return nil
}

// EpisodicEventsInWindow returns episodic rows for userID whose
// event_timestamp falls in [from, to], newest first — the time-bounded
// hybrid-retrieval query from spec.md §4.6.
func (s *Store) EpisodicEventsInWindow(ctx context.Context, userID string, from, to time.Time) ([]models.EpisodicEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mem_id, user_id, event_timestamp, COALESCE(event_type, ''), content, location, participants,
		       emotional_valence, emotional_arousal, importance_score, tags, metadata
		FROM episodic_events
		WHERE user_id = $1 AND event_timestamp BETWEEN $2 AND $3
		ORDER BY event_timestamp DESC
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: query episodic window: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.EpisodicEvent
	for rows.Next() {
		var e models.EpisodicEvent
		var location, participants, tags, metadata []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventTimestamp, &e.EventType, &e.Content, &location,
			&participants, &e.EmotionalValence, &e.EmotionalArousal, &e.ImportanceScore, &tags, &metadata); err != nil {
			return nil, fmt.Errorf("%w: scan episodic event: %v", apperr.ErrStorage, err)
		}
		_ = json.Unmarshal(location, &e.Location)
		_ = json.Unmarshal(participants, &e.Participants)
		_ = json.Unmarshal(tags, &e.Tags)
		_ = json.Unmarshal(metadata, &e.Metadata)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEpisodicEvent removes an episodic row by id.
func (s *Store) DeleteEpisodicEvent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM episodic_events WHERE mem_id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete episodic event: %v", apperr.ErrStorage, err)
	}
	return nil
}

// InsertEmotionalState writes one emotional-tracking row.
func (s *Store) InsertEmotionalState(ctx context.Context, e models.EmotionalState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emotional_states
			(mem_id, user_id, "timestamp", emotional_state, valence, arousal, dominance, context,
			 trigger_event, intensity, duration_minutes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, e.ID, e.UserID, e.Timestamp, e.EmotionalState, e.Valence, e.Arousal, e.Dominance,
		nullIfEmpty(e.Context), nullIfEmpty(e.TriggerEvent), e.Intensity, nullIfZero(e.DurationMinutes))
	if err != nil {
		return fmt.Errorf("%w: insert emotional state: %v", apperr.ErrStorage, err)
	}
	return nil
}

// EmotionalStatesInWindow returns emotional rows in [from, to], newest first.
func (s *Store) EmotionalStatesInWindow(ctx context.Context, userID string, from, to time.Time) ([]models.EmotionalState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mem_id, user_id, "timestamp", emotional_state, valence, arousal, dominance,
		       COALESCE(context, ''), COALESCE(trigger_event, ''), intensity, COALESCE(duration_minutes, 0)
		FROM emotional_states
		WHERE user_id = $1 AND "timestamp" BETWEEN $2 AND $3
		ORDER BY "timestamp" DESC
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: query emotional window: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.EmotionalState
	for rows.Next() {
		var e models.EmotionalState
		if err := rows.Scan(&e.ID, &e.UserID, &e.Timestamp, &e.EmotionalState, &e.Valence, &e.Arousal,
			&e.Dominance, &e.Context, &e.TriggerEvent, &e.Intensity, &e.DurationMinutes); err != nil {
			return nil, fmt.Errorf("%w: scan emotional state: %v", apperr.ErrStorage, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEmotionalState removes an emotional row by id.
func (s *Store) DeleteEmotionalState(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM emotional_states WHERE mem_id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete emotional state: %v", apperr.ErrStorage, err)
	}
	return nil
}

// LatestSnapshot returns the most recent portfolio snapshot for userID,
// or apperr.ErrNotFound.
func (s *Store) LatestSnapshot(ctx context.Context, userID string) (models.PortfolioSnapshot, error) {
	var snap models.PortfolioSnapshot
	var holdings []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, snapshot_timestamp, total_value, holdings
		FROM portfolio_snapshots WHERE user_id = $1
		ORDER BY snapshot_timestamp DESC LIMIT 1
	`, userID).Scan(&snap.UserID, &snap.SnapshotTimestamp, &snap.TotalValue, &holdings)
	if err == sql.ErrNoRows {
		return models.PortfolioSnapshot{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.PortfolioSnapshot{}, fmt.Errorf("%w: latest snapshot: %v", apperr.ErrStorage, err)
	}
	_ = json.Unmarshal(holdings, &snap.Holdings)
	return snap, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
