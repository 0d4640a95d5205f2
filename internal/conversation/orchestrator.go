// Package conversation implements C10: one goroutine per live
// conversation_id, owning a buffered inbound channel — the actor-per-
// conversation model named in spec.md §9, the same one-goroutine-per-
// unit-of-work shape as tarsy's queue.Worker, scaled from a fixed pool
// down to one actor per conversation.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ankitaa186/agentic-memories-sub002/internal/ingest"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
	"github.com/ankitaa186/agentic-memories-sub002/internal/profile"
	"github.com/ankitaa186/agentic-memories-sub002/internal/retrieval"
	"github.com/ankitaa186/agentic-memories-sub002/internal/vecmath"
)

// Config bundles C10's policy knobs, loaded from
// internal/config.ConversationConfig.
type Config struct {
	TurnWindow               int
	InjectionCooldown        time.Duration
	SemanticOverlapThreshold float64
	MaxInjectionsPerTurn     int
	ProfileQuestionCooldown  time.Duration
	IdleAfter                time.Duration
	IngestEveryNTurns        int
}

// TurnResult is what HandleTurn returns to the caller (the HTTP layer's
// /v1/orchestrator/message handler).
type TurnResult struct {
	Injections     []models.Injection `json:"injections"`
	ProfileSummary string              `json:"profile_summary,omitempty"`
	GapQuestion    string              `json:"gap_question,omitempty"`
}

type turnRequest struct {
	turn  models.Turn
	query string
	reply chan turnReply
}

type turnReply struct {
	result TurnResult
	err    error
}

type actor struct {
	id     string
	userID string

	history              []models.Turn
	cooldowns            map[string]time.Time
	lastInjectionVectors map[string][]float32
	turnCount            int
	state                models.ConversationState
	lastActivity         time.Time
	lastProfileQuestion  time.Time
	seenProfileOnce      bool

	inbox chan turnRequest
	done  chan struct{}
}

// Orchestrator owns every live conversation actor.
type Orchestrator struct {
	actors sync.Map // conversationID -> *actor

	retriever *retrieval.Engine
	ingest    *ingest.Pipeline
	profiles  *profile.Service
	cfg       Config

	stopReaper chan struct{}
}

// New constructs an Orchestrator and starts its idle-conversation reaper.
func New(retriever *retrieval.Engine, ing *ingest.Pipeline, profiles *profile.Service, cfg Config) *Orchestrator {
	o := &Orchestrator{
		retriever: retriever, ingest: ing, profiles: profiles, cfg: cfg,
		stopReaper: make(chan struct{}),
	}
	go o.reapLoop()
	return o
}

// Stop halts the reaper and every live actor goroutine.
func (o *Orchestrator) Stop() {
	close(o.stopReaper)
	o.actors.Range(func(_, v interface{}) bool {
		close(v.(*actor).done)
		return true
	})
}

// HandleTurn appends turn to conversationID's transcript, retrieves and
// filters candidate injections through the cooldown/overlap/cap policy,
// and — every IngestEveryNTurns — enqueues an ingestion job (spec.md §4.7).
func (o *Orchestrator) HandleTurn(ctx context.Context, conversationID, userID string, turn models.Turn) (TurnResult, error) {
	a := o.actorFor(conversationID, userID)

	reply := make(chan turnReply, 1)
	select {
	case a.inbox <- turnRequest{turn: turn, reply: reply}:
	case <-ctx.Done():
		return TurnResult{}, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.result, r.err
	case <-ctx.Done():
		return TurnResult{}, ctx.Err()
	}
}

func (o *Orchestrator) actorFor(conversationID, userID string) *actor {
	if v, ok := o.actors.Load(conversationID); ok {
		return v.(*actor)
	}
	a := &actor{
		id: conversationID, userID: userID,
		cooldowns:            map[string]time.Time{},
		lastInjectionVectors: map[string][]float32{},
		state:                models.ConversationFresh,
		lastActivity:         time.Now(),
		inbox:                make(chan turnRequest, 8),
		done:                 make(chan struct{}),
	}
	actual, loaded := o.actors.LoadOrStore(conversationID, a)
	if loaded {
		return actual.(*actor)
	}
	go o.run(a)
	return a
}

func (o *Orchestrator) run(a *actor) {
	for {
		select {
		case req := <-a.inbox:
			result, err := o.processTurn(context.Background(), a, req.turn)
			req.reply <- turnReply{result: result, err: err}
		case <-a.done:
			return
		}
	}
}

func (o *Orchestrator) processTurn(ctx context.Context, a *actor, turn models.Turn) (TurnResult, error) {
	now := time.Now()
	prevActivity := a.lastActivity
	a.lastActivity = now
	a.turnCount++
	a.history = append(a.history, turn)
	if len(a.history) > o.cfg.TurnWindow {
		a.history = a.history[len(a.history)-o.cfg.TurnWindow:]
	}
	a.state = conversationState(a.turnCount, o.cfg.IdleAfter, now, prevActivity)

	query := buildQuery(a.history)
	hits, _, err := o.retriever.Hybrid(ctx, a.userID, query, 30*24*time.Hour, o.cfg.MaxInjectionsPerTurn*4, nil)
	if err != nil {
		return TurnResult{}, err
	}

	var injections []models.Injection
	for _, h := range hits {
		if len(injections) >= o.cfg.MaxInjectionsPerTurn {
			break
		}
		if expiry, ok := a.cooldowns[h.MemoryID]; ok && now.Before(expiry) {
			continue
		}
		if overlapsRecent(h, a.lastInjectionVectors, o.cfg.SemanticOverlapThreshold) {
			continue
		}
		inj := models.Injection{
			MemoryID: h.MemoryID, Content: h.Content, Source: h.Source, Score: h.Score, Metadata: h.Metadata,
		}
		injections = append(injections, inj)
		a.cooldowns[h.MemoryID] = now.Add(o.cfg.InjectionCooldown)
		a.lastInjectionVectors[h.MemoryID] = h.Vector
	}

	result := TurnResult{Injections: injections}

	if !a.seenProfileOnce {
		a.seenProfileOnce = true
		if summary, err := o.profiles.Summary(ctx, a.userID, 10); err == nil && summary != "" {
			result.ProfileSummary = summary
		}
		if gap := gapQuestion(ctx, o.profiles, a.userID); gap != "" && now.Sub(a.lastProfileQuestion) > o.cfg.ProfileQuestionCooldown {
			result.GapQuestion = gap
			a.lastProfileQuestion = now
		}
	}

	if o.cfg.IngestEveryNTurns > 0 && a.turnCount%o.cfg.IngestEveryNTurns == 0 {
		window := append([]models.Turn(nil), a.history...)
		go func() {
			_, _ = o.ingest.Run(context.Background(), a.userID, window)
		}()
	}

	return result, nil
}

func buildQuery(history []models.Turn) string {
	if len(history) == 0 {
		return ""
	}
	latest := history[len(history)-1].Content
	start := len(history) - 4
	if start < 0 {
		start = 0
	}
	summary := ""
	for _, t := range history[start:] {
		summary += t.Content + " "
	}
	return fmt.Sprintf("%s\n%s", latest, summary)
}

func overlapsRecent(h retrieval.Hit, recent map[string][]float32, threshold float64) bool {
	if len(h.Vector) == 0 {
		return false
	}
	for _, v := range recent {
		if vecmath.Cosine(h.Vector, v) >= threshold {
			return true
		}
	}
	return false
}

func conversationState(turnCount int, idleAfter time.Duration, now, lastActivity time.Time) models.ConversationState {
	if now.Sub(lastActivity) > idleAfter {
		return models.ConversationIdle
	}
	if turnCount <= 1 {
		return models.ConversationFresh
	}
	return models.ConversationWarm
}

// gapQuestion returns one question for a missing high-value profile
// field, or "" if the profile is complete enough that none stands out.
// spec.md §4.7 leaves the exact gap-detection heuristic unspecified;
// this picks the first category with zero populated fields.
func gapQuestion(ctx context.Context, profiles *profile.Service, userID string) string {
	snap, err := profiles.Snapshot(ctx, userID)
	if err != nil {
		return ""
	}
	for _, cat := range models.AllCategories {
		if len(snap.Fields[cat]) == 0 {
			return fmt.Sprintf("I don't know much about your %s yet — want to share?", cat)
		}
	}
	return ""
}

func (o *Orchestrator) reapLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.reapIdle()
		case <-o.stopReaper:
			return
		}
	}
}

func (o *Orchestrator) reapIdle() {
	now := time.Now()
	o.actors.Range(func(k, v interface{}) bool {
		a := v.(*actor)
		if now.Sub(a.lastActivity) > o.cfg.IdleAfter {
			close(a.done)
			o.actors.Delete(k)
		}
		return true
	})
}
