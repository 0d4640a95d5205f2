// Package intents implements C12: validated CRUD over scheduled
// intents plus the claim/fire poll loop, grounded on beeper-ai-bridge's
// cron next-run computation (its ComputeNextRunAtMs, ported here from
// int64 millis to time.Time and from its at/every/cron vocabulary to
// spec.md's trigger_type vocabulary) and on tarsy's queue.Worker claim
// loop shape for the poller itself.
package intents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/relstore"
)

// Config bundles C12's caps and poll cadence, loaded from
// internal/config.IntentsConfig.
type Config struct {
	MaxActivePerUser       int
	MinCronIntervalSeconds int
	MaxCronFiresPerDay     int
	MinIntervalMinutes     int
	ClaimTimeout           time.Duration
	PollInterval           time.Duration
}

// Executor runs a claimed intent's action and reports how it went.
// cmd/memoryd supplies the concrete implementation (it is the only
// caller who knows how to turn action_context into a delivered message).
type Executor interface {
	Execute(ctx context.Context, intent models.ScheduledIntent) (status models.ExecutionStatus, gateResult string, execErr error)
}

// Service is C12's CRUD + poll-loop surface.
type Service struct {
	rel      *relstore.Store
	cfg      Config
	executor Executor

	stop chan struct{}
}

// New constructs a Service.
func New(rel *relstore.Store, cfg Config, executor Executor) *Service {
	return &Service{rel: rel, cfg: cfg, executor: executor, stop: make(chan struct{})}
}

// CreateInput is the validated shape Create accepts.
type CreateInput struct {
	UserID           string
	IntentName       string
	TriggerType      models.TriggerType
	TriggerSchedule  map[string]any
	TriggerCondition map[string]any
	ActionContext    string
	ActionPriority   int
	ExpiresAt        *time.Time
	MaxExecutions    int
	CooldownHours    int
}

// Create validates in against spec.md §4.9's caps and schedule rules,
// computes the initial next_check, and persists the new intent.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.ScheduledIntent, error) {
	if err := s.validateSchedule(in.TriggerType, in.TriggerSchedule, in.ExpiresAt); err != nil {
		return models.ScheduledIntent{}, err
	}

	active, err := s.rel.CountActiveIntents(ctx, in.UserID)
	if err != nil {
		return models.ScheduledIntent{}, err
	}
	if active >= s.cfg.MaxActivePerUser {
		return models.ScheduledIntent{}, fmt.Errorf("%w: %d active intents already exist (max %d)", apperr.ErrConflict, active, s.cfg.MaxActivePerUser)
	}

	now := time.Now().UTC()
	next, err := firstNextCheck(in.TriggerType, in.TriggerSchedule, now)
	if err != nil {
		return models.ScheduledIntent{}, err
	}

	intent := models.ScheduledIntent{
		ID: "intent_" + uuid.NewString(), UserID: in.UserID, IntentName: in.IntentName,
		TriggerType: in.TriggerType, TriggerSchedule: in.TriggerSchedule, TriggerCondition: in.TriggerCondition,
		ActionContext: in.ActionContext, ActionPriority: in.ActionPriority, Enabled: true,
		ExpiresAt: in.ExpiresAt, MaxExecutions: in.MaxExecutions, NextCheck: &next,
		CooldownHours: in.CooldownHours, CreatedAt: now,
	}
	if err := s.rel.CreateIntent(ctx, intent); err != nil {
		return models.ScheduledIntent{}, err
	}
	return intent, nil
}

// List returns every intent for userID.
func (s *Service) List(ctx context.Context, userID string) ([]models.ScheduledIntent, error) {
	return s.rel.ListIntents(ctx, userID)
}

// Get fetches one intent, enforcing the same-user ownership invariant.
func (s *Service) Get(ctx context.Context, id, userID string) (models.ScheduledIntent, error) {
	intent, err := s.rel.GetIntent(ctx, id)
	if err != nil {
		return models.ScheduledIntent{}, err
	}
	if intent.UserID != userID {
		return models.ScheduledIntent{}, apperr.ErrUnauthorizedCrossUser
	}
	return intent, nil
}

// Update replaces the mutable fields of an intent with in, re-validating
// the schedule and recomputing next_check.
func (s *Service) Update(ctx context.Context, id, userID string, in CreateInput) (models.ScheduledIntent, error) {
	existing, err := s.Get(ctx, id, userID)
	if err != nil {
		return models.ScheduledIntent{}, err
	}
	if err := s.validateSchedule(in.TriggerType, in.TriggerSchedule, in.ExpiresAt); err != nil {
		return models.ScheduledIntent{}, err
	}
	now := time.Now().UTC()
	next, err := firstNextCheck(in.TriggerType, in.TriggerSchedule, now)
	if err != nil {
		return models.ScheduledIntent{}, err
	}
	if err := s.rel.DeleteIntent(ctx, id); err != nil {
		return models.ScheduledIntent{}, err
	}
	existing.IntentName = in.IntentName
	existing.TriggerType = in.TriggerType
	existing.TriggerSchedule = in.TriggerSchedule
	existing.TriggerCondition = in.TriggerCondition
	existing.ActionContext = in.ActionContext
	existing.ActionPriority = in.ActionPriority
	existing.ExpiresAt = in.ExpiresAt
	existing.MaxExecutions = in.MaxExecutions
	existing.CooldownHours = in.CooldownHours
	existing.NextCheck = &next
	existing.ExecutionCount = 0
	if err := s.rel.CreateIntent(ctx, existing); err != nil {
		return models.ScheduledIntent{}, err
	}
	return existing, nil
}

// Delete removes an intent the caller owns.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	return s.rel.DeleteIntent(ctx, id)
}

// Pending lists intents ready to be claimed for userID (or every user
// when userID is "").
func (s *Service) Pending(ctx context.Context, userID string, limit int) ([]relstore.PendingIntentRow, error) {
	return s.rel.Pending(ctx, userID, limit, time.Now().UTC())
}

// Claim atomically claims one intent for execution.
func (s *Service) Claim(ctx context.Context, id string) (models.ScheduledIntent, error) {
	return s.rel.Claim(ctx, id, time.Now().UTC())
}

// Fire runs the claimed intent's action via Executor and records the
// outcome, computing next_check from spec.md §4.9's deterministic table.
func (s *Service) Fire(ctx context.Context, intent models.ScheduledIntent) (models.ScheduledIntent, error) {
	started := time.Now().UTC()
	status, gateResult, execErr := s.executor.Execute(ctx, intent)
	finished := time.Now().UTC()

	result := relstore.FireResult{Status: status, GateResult: gateResult}
	if execErr != nil {
		result.Error = execErr.Error()
	}

	next, err := nextCheckFor(intent, status, finished)
	result.NextCheck = next

	newCount := intent.ExecutionCount
	if status == models.ExecSuccess {
		newCount++
	}
	result.Disable = shouldDisable(intent, status, newCount, finished)
	if err != nil {
		return models.ScheduledIntent{}, err
	}

	return s.rel.Fire(ctx, intent.ID, result, started, finished)
}

// History lists the audit trail for one intent.
func (s *Service) History(ctx context.Context, intentID string) ([]models.IntentExecution, error) {
	return s.rel.History(ctx, intentID)
}

// Start runs the claim-and-fire poll loop until Stop is called,
// grounded on tarsy's queue.Worker ticker shape.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.pollOnce(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop halts the poll loop.
func (s *Service) Stop() {
	close(s.stop)
}

func (s *Service) pollOnce(ctx context.Context) {
	pending, err := s.Pending(ctx, "", 100)
	if err != nil {
		return
	}
	for _, p := range pending {
		if p.InCooldown {
			continue
		}
		claimed, err := s.Claim(ctx, p.Intent.ID)
		if err != nil {
			continue
		}
		_, _ = s.Fire(ctx, claimed)
	}
}

// validateSchedule enforces spec.md §4.9's cap/rate rules: cron
// intervals >= MinCronIntervalSeconds and <= MaxCronFiresPerDay,
// interval triggers >= MinIntervalMinutes, "once" must target a future
// time.
func (s *Service) validateSchedule(t models.TriggerType, schedule map[string]any, expiresAt *time.Time) error {
	switch t {
	case models.TriggerCron:
		expr, _ := schedule["expression"].(string)
		if expr == "" {
			return apperr.NewValidationError("trigger_schedule", "cron trigger requires trigger_schedule.expression")
		}
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return apperr.NewValidationError("trigger_schedule", fmt.Sprintf("invalid cron expression: %v", err))
		}
		now := time.Now().UTC()
		first := sched.Next(now)
		second := sched.Next(first)
		if second.Sub(first) < time.Duration(s.cfg.MinCronIntervalSeconds)*time.Second {
			return apperr.NewValidationError("trigger_schedule", fmt.Sprintf("cron fires more often than every %ds", s.cfg.MinCronIntervalSeconds))
		}
		dayStart := now.Truncate(24 * time.Hour)
		fires := countFiresInDay(sched, dayStart)
		if fires > s.cfg.MaxCronFiresPerDay {
			return apperr.NewValidationError("trigger_schedule", fmt.Sprintf("cron fires more than %d times/day", s.cfg.MaxCronFiresPerDay))
		}
	case models.TriggerInterval:
		minutes, _ := schedule["minutes"].(float64)
		if int(minutes) < s.cfg.MinIntervalMinutes {
			return apperr.NewValidationError("trigger_schedule", fmt.Sprintf("interval must be at least %d minutes", s.cfg.MinIntervalMinutes))
		}
	case models.TriggerOnce:
		at, _ := schedule["at"].(string)
		ts, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return apperr.NewValidationError("trigger_schedule", "once trigger requires trigger_schedule.at as RFC3339")
		}
		if !ts.After(time.Now().UTC()) {
			return apperr.NewValidationError("trigger_schedule", "once trigger must target a future time")
		}
	}
	return nil
}

func countFiresInDay(sched cron.Schedule, dayStart time.Time) int {
	count := 0
	next := dayStart
	dayEnd := dayStart.Add(24 * time.Hour)
	for {
		next = sched.Next(next)
		if !next.Before(dayEnd) {
			break
		}
		count++
		if count > 10000 {
			break
		}
	}
	return count
}

// firstNextCheck computes the initial next_check at creation time.
func firstNextCheck(t models.TriggerType, schedule map[string]any, now time.Time) (time.Time, error) {
	switch t {
	case models.TriggerCron:
		expr, _ := schedule["expression"].(string)
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return time.Time{}, apperr.NewValidationError("trigger_schedule", fmt.Sprintf("invalid cron expression: %v", err))
		}
		return sched.Next(now), nil
	case models.TriggerInterval:
		minutes, _ := schedule["minutes"].(float64)
		return now.Add(time.Duration(minutes) * time.Minute), nil
	case models.TriggerOnce:
		at, _ := schedule["at"].(string)
		ts, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return time.Time{}, err
		}
		return ts, nil
	default:
		// price/silence/event/calendar/news: condition-gated, start
		// checking immediately.
		return now, nil
	}
}

// nextCheckFor implements spec.md §4.9's next_check state table:
// cron -> croniter.next, interval -> now+interval, once -> disabled
// with no further check, every other trigger type (price, event,
// silence, calendar, news) -> now+5min on success, condition_not_met/
// gate_blocked -> now+5min, failed -> now+15min. The 5min for
// condition triggers is fixed; no per-intent check interval is read.
func nextCheckFor(intent models.ScheduledIntent, status models.ExecutionStatus, now time.Time) (*time.Time, error) {
	switch status {
	case models.ExecFailed:
		t := now.Add(15 * time.Minute)
		return &t, nil
	case models.ExecConditionNotMet, models.ExecGateBlocked:
		t := now.Add(5 * time.Minute)
		return &t, nil
	}

	switch intent.TriggerType {
	case models.TriggerCron:
		expr, _ := intent.TriggerSchedule["expression"].(string)
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, apperr.NewValidationError("trigger_schedule", fmt.Sprintf("invalid cron expression on fire: %v", err))
		}
		t := sched.Next(now)
		return &t, nil
	case models.TriggerInterval:
		minutes, _ := intent.TriggerSchedule["minutes"].(float64)
		t := now.Add(time.Duration(minutes) * time.Minute)
		return &t, nil
	case models.TriggerOnce:
		return nil, nil
	default:
		t := now.Add(5 * time.Minute)
		return &t, nil
	}
}

// shouldDisable decides whether a fire's outcome should disable the
// intent: its execution budget is exhausted, it has expired, or it's a
// once-trigger that just ran successfully and so has nothing left to
// check. An enabled intent with no further next_check would otherwise
// sit forever with next_check=null, violating the invariant that
// next_check is null iff enabled is false.
func shouldDisable(intent models.ScheduledIntent, status models.ExecutionStatus, newCount int, finished time.Time) bool {
	if status != models.ExecSuccess {
		return intent.ExpiresAt != nil && !finished.Before(*intent.ExpiresAt)
	}
	if intent.MaxExecutions > 0 && newCount >= intent.MaxExecutions {
		return true
	}
	if intent.TriggerType == models.TriggerOnce {
		return true
	}
	return intent.ExpiresAt != nil && !finished.Before(*intent.ExpiresAt)
}
