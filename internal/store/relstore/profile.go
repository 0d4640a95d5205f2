package relstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
)

// UpsertProfileFields applies each update in its own transaction: insert
// user_profiles if missing, upsert profile_fields, append profile_sources,
// recompute profile_confidence_scores for that field from all its
// sources, then recompute completeness (spec.md §4.5).
func (s *Store) UpsertProfileFields(ctx context.Context, userID string, updates []models.ProfileUpdate, now time.Time) (models.UserProfile, error) {
	var profile models.UserProfile
	for _, u := range updates {
		if err := s.upsertOneProfileField(ctx, userID, u, now); err != nil {
			return models.UserProfile{}, err
		}
	}

	profile, err := s.recomputeCompleteness(ctx, userID, now)
	if err != nil {
		return models.UserProfile{}, err
	}
	return profile, nil
}

func (s *Store) upsertOneProfileField(ctx context.Context, userID string, u models.ProfileUpdate, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin profile tx: %v", apperr.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, completeness_pct, total_fields, populated_fields, created_at, last_updated)
		VALUES ($1, 0, $2, 0, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, models.TotalProfileFields, now); err != nil {
		return fmt.Errorf("%w: ensure user_profiles: %v", apperr.ErrStorage, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profile_fields (user_id, category, field_name, field_value, value_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, category, field_name) DO UPDATE SET
			field_value = EXCLUDED.field_value, value_type = EXCLUDED.value_type
	`, userID, u.Category, u.FieldName, u.FieldValue, valueTypeOrDefault(u.ValueType)); err != nil {
		return fmt.Errorf("%w: upsert profile_field: %v", apperr.ErrStorage, err)
	}

	sourceType := u.SourceType
	if u.ManualOverride {
		sourceType = models.SourceExplicit
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profile_sources (id, user_id, category, field_name, source_memory_id, source_type, extracted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), userID, u.Category, u.FieldName, nullIfEmpty(u.SourceMemoryID), sourceType, now); err != nil {
		return fmt.Errorf("%w: append profile_source: %v", apperr.ErrStorage, err)
	}

	score, err := computeConfidence(ctx, tx, userID, u.Category, u.FieldName, now)
	if err != nil {
		return err
	}
	if u.ManualOverride {
		score.OverallConfidence = 100
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profile_confidence_scores
			(user_id, category, field_name, overall_confidence, frequency, recency, explicitness, source_diversity, mention_count, last_mentioned)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, category, field_name) DO UPDATE SET
			overall_confidence = EXCLUDED.overall_confidence,
			frequency = EXCLUDED.frequency,
			recency = EXCLUDED.recency,
			explicitness = EXCLUDED.explicitness,
			source_diversity = EXCLUDED.source_diversity,
			mention_count = EXCLUDED.mention_count,
			last_mentioned = EXCLUDED.last_mentioned
	`, userID, u.Category, u.FieldName, score.OverallConfidence, score.Frequency, score.Recency,
		score.Explicitness, score.SourceDiversity, score.MentionCount, score.LastMentioned); err != nil {
		return fmt.Errorf("%w: upsert confidence score: %v", apperr.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit profile tx: %v", apperr.ErrStorage, err)
	}
	return nil
}

// computeConfidence derives the four weighted components and the
// overall_confidence from every source row currently on file:
// frequency = min(count/10,1)*100, recency = max(1-age_days/30,0)*100
// relative to the latest source, explicitness = mean(source_type_score)*100,
// source_diversity = min(distinct(source_memory_id)/5,1)*100, overall =
// 0.30*frequency + 0.25*recency + 0.25*explicitness + 0.20*diversity.
func computeConfidence(ctx context.Context, tx *sql.Tx, userID string, category models.ProfileCategory, fieldName string, now time.Time) (models.ProfileConfidenceScore, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT source_memory_id, source_type, extracted_at
		FROM profile_sources
		WHERE user_id = $1 AND category = $2 AND field_name = $3
		ORDER BY extracted_at ASC
	`, userID, category, fieldName)
	if err != nil {
		return models.ProfileConfidenceScore{}, fmt.Errorf("%w: load profile_sources: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var (
		count        int
		scoreSum     float64
		distinctMems = map[string]struct{}{}
		latest       time.Time
	)
	for rows.Next() {
		var memID sql.NullString
		var srcType models.SourceType
		var extractedAt time.Time
		if err := rows.Scan(&memID, &srcType, &extractedAt); err != nil {
			return models.ProfileConfidenceScore{}, fmt.Errorf("%w: scan profile_source: %v", apperr.ErrStorage, err)
		}
		count++
		scoreSum += srcType.Score()
		if memID.Valid && memID.String != "" {
			distinctMems[memID.String] = struct{}{}
		}
		if extractedAt.After(latest) {
			latest = extractedAt
		}
	}
	if err := rows.Err(); err != nil {
		return models.ProfileConfidenceScore{}, fmt.Errorf("%w: iterate profile_sources: %v", apperr.ErrStorage, err)
	}

	frequency := math.Min(float64(count)/10, 1) * 100
	ageDays := now.Sub(latest).Hours() / 24
	recency := math.Max(1-ageDays/30, 0) * 100
	explicitness := 0.0
	if count > 0 {
		explicitness = (scoreSum / float64(count)) * 100
	}
	diversity := math.Min(float64(len(distinctMems))/5, 1) * 100
	overall := 0.30*frequency + 0.25*recency + 0.25*explicitness + 0.20*diversity

	return models.ProfileConfidenceScore{
		UserID:            userID,
		Category:          category,
		FieldName:         fieldName,
		OverallConfidence: overall,
		Frequency:         frequency,
		Recency:           recency,
		Explicitness:      explicitness,
		SourceDiversity:   diversity,
		MentionCount:      count,
		LastMentioned:     latest,
	}, nil
}

func (s *Store) recomputeCompleteness(ctx context.Context, userID string, now time.Time) (models.UserProfile, error) {
	var populated int
	if err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM profile_fields WHERE user_id = $1
	`, userID).Scan(&populated); err != nil {
		return models.UserProfile{}, fmt.Errorf("%w: count profile_fields: %v", apperr.ErrStorage, err)
	}

	pct := math.Round(float64(populated)/float64(models.TotalProfileFields)*100*100) / 100

	var profile models.UserProfile
	err := s.db.QueryRowContext(ctx, `
		UPDATE user_profiles SET completeness_pct = $2, populated_fields = $3, last_updated = $4
		WHERE user_id = $1
		RETURNING user_id, completeness_pct, total_fields, populated_fields, created_at, last_updated
	`, userID, pct, populated, now).Scan(&profile.UserID, &profile.CompletenessPct, &profile.TotalFields,
		&profile.PopulatedFields, &profile.CreatedAt, &profile.LastUpdated)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("%w: update completeness: %v", apperr.ErrStorage, err)
	}
	return profile, nil
}

// Profile fetches the summary row, or apperr.ErrNotFound.
func (s *Store) Profile(ctx context.Context, userID string) (models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, completeness_pct, total_fields, populated_fields, created_at, last_updated
		FROM user_profiles WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.CompletenessPct, &p.TotalFields, &p.PopulatedFields, &p.CreatedAt, &p.LastUpdated)
	if err == sql.ErrNoRows {
		return models.UserProfile{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("%w: profile lookup: %v", apperr.ErrStorage, err)
	}
	return p, nil
}

// ProfileFieldsByCategory returns every field in one category.
func (s *Store) ProfileFieldsByCategory(ctx context.Context, userID string, category models.ProfileCategory) ([]models.ProfileField, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, category, field_name, field_value, value_type
		FROM profile_fields WHERE user_id = $1 AND category = $2
	`, userID, category)
	if err != nil {
		return nil, fmt.Errorf("%w: list profile_fields: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var fields []models.ProfileField
	for rows.Next() {
		var f models.ProfileField
		if err := rows.Scan(&f.UserID, &f.Category, &f.FieldName, &f.FieldValue, &f.ValueType); err != nil {
			return nil, fmt.Errorf("%w: scan profile_field: %v", apperr.ErrStorage, err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// DeleteProfile removes the profile and every cascaded field/score/source.
func (s *Store) DeleteProfile(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%w: delete profile: %v", apperr.ErrStorage, err)
	}
	return nil
}

// ProfileAudit returns every source row across all fields, most recent first.
func (s *Store) ProfileAudit(ctx context.Context, userID string) ([]models.ProfileSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, category, field_name, COALESCE(source_memory_id, ''), source_type, extracted_at
		FROM profile_sources WHERE user_id = $1 ORDER BY extracted_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list profile_sources: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var sources []models.ProfileSource
	for rows.Next() {
		var src models.ProfileSource
		if err := rows.Scan(&src.ID, &src.UserID, &src.Category, &src.FieldName, &src.SourceMemoryID, &src.SourceType, &src.ExtractedAt); err != nil {
			return nil, fmt.Errorf("%w: scan profile_source: %v", apperr.ErrStorage, err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// ConfidenceScores returns every computed confidence score on file for userID.
func (s *Store) ConfidenceScores(ctx context.Context, userID string) ([]models.ProfileConfidenceScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, category, field_name, overall_confidence, frequency, recency, explicitness, source_diversity, mention_count, last_mentioned
		FROM profile_confidence_scores WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list confidence scores: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.ProfileConfidenceScore
	for rows.Next() {
		var c models.ProfileConfidenceScore
		if err := rows.Scan(&c.UserID, &c.Category, &c.FieldName, &c.OverallConfidence, &c.Frequency,
			&c.Recency, &c.Explicitness, &c.SourceDiversity, &c.MentionCount, &c.LastMentioned); err != nil {
			return nil, fmt.Errorf("%w: scan confidence score: %v", apperr.ErrStorage, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func valueTypeOrDefault(vt string) string {
	if vt == "" {
		return "string"
	}
	return vt
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
