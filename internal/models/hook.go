package models

import "time"

// HookType is the closed vocabulary of C13 connectors.
type HookType string

const (
	HookEmail    HookType = "email"
	HookCalendar HookType = "calendar"
)

// HookConsent is the per-user, per-hook consent record (spec.md §4.10).
// Not explicitly tabled in spec.md §3 but required by C13's contract.
type HookConsent struct {
	UserID            string     `json:"user_id"`
	HookType          HookType   `json:"hook_type"`
	Consented         bool       `json:"consented"`
	GrantedAt         time.Time  `json:"granted_at"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
	ExternalAccountRef string    `json:"external_account_ref,omitempty"`
}

// HookEvent is a normalized inbound event handed to ingestion, produced
// by either a poller or a webhook handler.
type HookEvent struct {
	UserID          string    `json:"user_id"`
	HookType        HookType  `json:"hook_type"`
	SourceMessageID string    `json:"source_message_id"`
	OccurredAt      time.Time `json:"occurred_at"`
	Text            string    `json:"text"`
}
