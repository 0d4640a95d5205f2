package models

import "time"

// ProfileCategory is the closed vocabulary of profile field categories.
type ProfileCategory string

const (
	CategoryBasics      ProfileCategory = "basics"
	CategoryPreferences ProfileCategory = "preferences"
	CategoryGoals       ProfileCategory = "goals"
	CategoryInterests   ProfileCategory = "interests"
	CategoryBackground  ProfileCategory = "background"
)

// AllCategories enumerates the fixed category set used for the
// completeness denominator (spec.md §3: total_fields = 25 = 5 fields x 5
// categories).
var AllCategories = []ProfileCategory{
	CategoryBasics, CategoryPreferences, CategoryGoals, CategoryInterests, CategoryBackground,
}

// FieldsPerCategory is the MVP schema constant.
const FieldsPerCategory = 5

// TotalProfileFields is the completeness denominator.
var TotalProfileFields = len(AllCategories) * FieldsPerCategory

// SourceType is the closed vocabulary for where a profile value came from.
type SourceType string

const (
	SourceExplicit SourceType = "explicit"
	SourceImplicit SourceType = "implicit"
	SourceInferred SourceType = "inferred"
)

// sourceTypeScore implements the explicitness component map from
// spec.md §4.5.
var sourceTypeScore = map[SourceType]float64{
	SourceExplicit: 1.0,
	SourceImplicit: 0.7,
	SourceInferred: 0.4,
}

// Score returns the explicitness contribution of one source, or 0 for
// an unrecognized source type.
func (s SourceType) Score() float64 {
	return sourceTypeScore[s]
}

// UserProfile is the summary row.
type UserProfile struct {
	UserID           string    `json:"user_id"`
	CompletenessPct  float64   `json:"completeness_pct"`
	TotalFields      int       `json:"total_fields"`
	PopulatedFields  int       `json:"populated_fields"`
	CreatedAt        time.Time `json:"created_at"`
	LastUpdated      time.Time `json:"last_updated"`
}

// ProfileField is one (category, field_name) value.
type ProfileField struct {
	UserID     string          `json:"user_id"`
	Category   ProfileCategory `json:"category"`
	FieldName  string          `json:"field_name"`
	FieldValue string          `json:"field_value"`
	ValueType  string          `json:"value_type"` // string|number|bool|list|json
}

// ProfileConfidenceScore is the computed confidence for one field.
type ProfileConfidenceScore struct {
	UserID            string    `json:"user_id"`
	Category          ProfileCategory `json:"category"`
	FieldName         string    `json:"field_name"`
	OverallConfidence float64   `json:"overall_confidence"`
	Frequency         float64   `json:"frequency"`
	Recency           float64   `json:"recency"`
	Explicitness      float64   `json:"explicitness"`
	SourceDiversity   float64   `json:"source_diversity"`
	MentionCount      int       `json:"mention_count"`
	LastMentioned     time.Time `json:"last_mentioned"`
}

// ProfileSource is one audit-trail row backing a field value.
type ProfileSource struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Category       ProfileCategory `json:"category"`
	FieldName      string          `json:"field_name"`
	SourceMemoryID string          `json:"source_memory_id,omitempty"`
	SourceType     SourceType      `json:"source_type"`
	ExtractedAt    time.Time       `json:"extracted_at"`
}

// ProfileUpdate is one field update proposed by extraction or the API.
type ProfileUpdate struct {
	Category       ProfileCategory `json:"category"`
	FieldName      string          `json:"field_name"`
	FieldValue     string          `json:"field_value"`
	ValueType      string          `json:"value_type,omitempty"`
	Confidence     int             `json:"confidence"` // 0-100, extraction scale
	SourceType     SourceType      `json:"source_type"`
	SourceMemoryID string          `json:"source_memory_id,omitempty"`
	// ManualOverride, when true, sets confidence=100 per spec.md §4.5
	// ("Manual edits via API set confidence = 100 by definition").
	ManualOverride bool `json:"-"`
}
