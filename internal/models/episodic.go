package models

import "time"

// EpisodicEvent is the time-partitioned row created only when ingestion
// produces an event with a temporal anchor (spec.md §3).
type EpisodicEvent struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	EventTimestamp   time.Time      `json:"event_timestamp"`
	EventType        string         `json:"event_type,omitempty"`
	Content          string         `json:"content"`
	Location         map[string]any `json:"location,omitempty"`
	Participants     []string       `json:"participants,omitempty"`
	EmotionalValence float64        `json:"emotional_valence"`
	EmotionalArousal float64        `json:"emotional_arousal"`
	ImportanceScore  float64        `json:"importance_score"`
	Tags             []string       `json:"tags,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// EmotionalState is the time-partitioned row for emotional tracking.
type EmotionalState struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Timestamp       time.Time `json:"timestamp"`
	EmotionalState  string    `json:"emotional_state"`
	Valence         float64   `json:"valence"`
	Arousal         float64   `json:"arousal"`
	Dominance       float64   `json:"dominance"`
	Context         string    `json:"context,omitempty"`
	TriggerEvent    string    `json:"trigger_event,omitempty"`
	Intensity       float64   `json:"intensity"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
}
