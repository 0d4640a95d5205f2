package models

import "time"

// Turn is one message in a conversation's bounded transcript window.
type Turn struct {
	Role      string    `json:"role"` // user | assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Injection is a memory surfaced into a conversation turn (spec.md §4.7).
type Injection struct {
	MemoryID string         `json:"memory_id"`
	Content  string         `json:"content"`
	Source   string         `json:"source"` // semantic | temporal | structured | persona
	Channel  string         `json:"channel,omitempty"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ConversationState is fresh -> warm -> idle, never closed (spec.md §4.7).
type ConversationState string

const (
	ConversationFresh ConversationState = "fresh"
	ConversationWarm  ConversationState = "warm"
	ConversationIdle  ConversationState = "idle"
)

// TurnWindow is the bounded transcript window size.
const TurnWindow = 20

// InjectionCooldown is how long a memory id stays suppressed after being
// injected into a given conversation.
const InjectionCooldown = 10 * time.Minute

// SemanticOverlapThreshold suppresses an injection whose content
// cosine-overlaps a prior injection by at least this much.
const SemanticOverlapThreshold = 0.9

// DefaultMaxInjectionsPerTurn caps injections per turn.
const DefaultMaxInjectionsPerTurn = 3

// DefaultIngestEveryNTurns is how often the orchestrator enqueues an
// ingestion job from the rolling window.
const DefaultIngestEveryNTurns = 4

// ProfileQuestionCooldown suppresses a second profile-gap question in the
// same conversation/user for 24h.
const ProfileQuestionCooldown = 24 * time.Hour

// ConversationIdleAfter is how long without activity before conversation
// state (and eventually actor) is garbage collected.
const ConversationIdleAfter = 24 * time.Hour
