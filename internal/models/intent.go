package models

import "time"

// TriggerType is the closed vocabulary of scheduled-intent triggers.
type TriggerType string

const (
	TriggerCron     TriggerType = "cron"
	TriggerInterval TriggerType = "interval"
	TriggerOnce     TriggerType = "once"
	TriggerPrice    TriggerType = "price"
	TriggerSilence  TriggerType = "silence"
	TriggerEvent    TriggerType = "event"
	TriggerCalendar TriggerType = "calendar"
	TriggerNews     TriggerType = "news"
)

// ExecutionStatus is the outcome recorded by fire() and used to drive the
// next_check table in spec.md §4.9.
type ExecutionStatus string

const (
	ExecSuccess         ExecutionStatus = "success"
	ExecConditionNotMet ExecutionStatus = "condition_not_met"
	ExecGateBlocked     ExecutionStatus = "gate_blocked"
	ExecFailed          ExecutionStatus = "failed"
)

// ScheduledIntent is a user-scheduled proactive trigger (spec.md §3).
type ScheduledIntent struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"user_id"`
	IntentName         string         `json:"intent_name"`
	TriggerType        TriggerType    `json:"trigger_type"`
	TriggerSchedule    map[string]any `json:"trigger_schedule,omitempty"`
	TriggerCondition   map[string]any `json:"trigger_condition,omitempty"`
	ActionContext      string         `json:"action_context,omitempty"`
	ActionPriority     int            `json:"action_priority"`
	Enabled            bool           `json:"enabled"`
	ExpiresAt          *time.Time     `json:"expires_at,omitempty"`
	MaxExecutions      int            `json:"max_executions,omitempty"`
	ExecutionCount     int            `json:"execution_count"`
	NextCheck          *time.Time     `json:"next_check,omitempty"`
	LastChecked        *time.Time     `json:"last_checked,omitempty"`
	LastExecuted       *time.Time     `json:"last_executed,omitempty"`
	LastExecutionStatus ExecutionStatus `json:"last_execution_status,omitempty"`
	LastMessageID      string         `json:"last_message_id,omitempty"`
	ClaimedAt          *time.Time     `json:"claimed_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	LastConditionFireAt *time.Time    `json:"-"`
	CooldownHours      int            `json:"-"`
}

// IntentExecution is one append-only audit row per fire attempt.
type IntentExecution struct {
	ID          string          `json:"id"`
	IntentID    string          `json:"intent_id"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Status      ExecutionStatus `json:"status"`
	GateResult  string          `json:"gate_result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// MaxActiveIntentsPerUser is the per-user cap on enabled intents.
const MaxActiveIntentsPerUser = 25

// MinCronIntervalSeconds and MaxCronFiresPerDay bound cron schedules.
const (
	MinCronIntervalSeconds = 60
	MaxCronFiresPerDay     = 96
)

// MinIntervalMinutes bounds interval-trigger schedules.
const MinIntervalMinutes = 5

// ClaimTimeout is how long a claim holds before another worker may
// re-claim (crashed-worker recovery).
const ClaimTimeout = 5 * time.Minute
