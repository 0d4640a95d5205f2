// Package compaction implements C11: a daily decay-and-merge pass over
// each user's long-tail memories. The ticker-driven daily scheduler and
// its Start/Stop shape follow tarsy's pkg/cleanup.Service background
// loop, scaled from a fixed interval to "next UTC midnight".
package compaction

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
	"github.com/ankitaa186/agentic-memories-sub002/internal/gateway"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
	"github.com/ankitaa186/agentic-memories-sub002/internal/orchestrator"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/cache"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/vectorstore"
	"github.com/ankitaa186/agentic-memories-sub002/internal/vecmath"
)

// minAge and maxCandidates are spec.md §4.8's candidate-loading bounds:
// memories older than 7 days, capped at 1000 per run, oldest first.
const (
	minAge        = 7 * 24 * time.Hour
	maxCandidates = 1000
	scrollBatch   = 4000 // client-side age filter needs a wider pull than maxCandidates
)

// Config bundles C11's policy knobs, loaded from internal/config.CompactionConfig.
type Config struct {
	ScheduleUTC       string // "HH:MM", daily run time
	DecayHalfLifeDays float64
	DropThreshold     float64
	ClusterCosineMin  float64
	MinClusterSize    int
	DryRun            bool
}

// Summary is what one user's Compact run produced.
type Summary struct {
	UserID     string `json:"user_id"`
	Candidates int    `json:"candidates"`
	Dropped    int    `json:"dropped"`
	Merged     int    `json:"merged"`
	Clusters   int    `json:"clusters"`
}

// Engine runs C11 on demand (Compact) or on its own daily schedule (Start).
type Engine struct {
	vectors      *vectorstore.Store
	orchestrator *orchestrator.Orchestrator
	embedder     *gateway.Embedder
	llm          *gateway.LLM
	cache        *cache.Store
	cfg          Config

	stop chan struct{}
}

// New constructs an Engine.
func New(vectors *vectorstore.Store, orch *orchestrator.Orchestrator, embedder *gateway.Embedder, llm *gateway.LLM, c *cache.Store, cfg Config) *Engine {
	return &Engine{vectors: vectors, orchestrator: orch, embedder: embedder, llm: llm, cache: c, cfg: cfg, stop: make(chan struct{})}
}

// Start runs the daily scheduler loop until Stop is called, waking at
// cfg.ScheduleUTC each day and compacting every user active in the
// preceding 24h (spec.md §4.8's recent_users:{YYYYMMDD} activity set).
func (e *Engine) Start(ctx context.Context) {
	for {
		wait := time.Until(nextRun(time.Now().UTC(), e.cfg.ScheduleUTC))
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			e.runAll(ctx, time.Now().UTC().AddDate(0, 0, -1))
		case <-e.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// Stop halts the scheduler loop.
func (e *Engine) Stop() {
	close(e.stop)
}

// nextRun computes the next UTC instant at which "HH:MM" occurs,
// strictly after now.
func nextRun(now time.Time, hhmm string) time.Time {
	var hour, minute int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &hour, &minute); err != nil {
		hour, minute = 0, 0
	}
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// runAll compacts every user recorded active on day.
func (e *Engine) runAll(ctx context.Context, day time.Time) []Summary {
	users, err := e.cache.ActiveUsers(ctx, day)
	if err != nil {
		return nil
	}
	summaries := make([]Summary, 0, len(users))
	for _, userID := range users {
		s, err := e.Compact(ctx, userID)
		if err != nil {
			continue
		}
		summaries = append(summaries, s)
	}
	return summaries
}

type candidate struct {
	id          string
	vector      []float32
	content     string
	importance  float64
	confidence  float64
	timestamp   time.Time
	personaTags []string
	critical    bool
}

// Compact runs the full candidate-load -> decay -> drop -> cluster ->
// golden-record-merge pipeline for one user (spec.md §4.8).
func (e *Engine) Compact(ctx context.Context, userID string) (Summary, error) {
	summary := Summary{UserID: userID}

	candidates, err := e.loadCandidates(ctx, userID)
	if err != nil {
		return summary, err
	}
	summary.Candidates = len(candidates)
	if len(candidates) == 0 {
		return summary, nil
	}

	now := time.Now().UTC()
	var kept []candidate
	var dropIDs []string
	for _, c := range candidates {
		ageDays := now.Sub(c.timestamp).Hours() / 24
		decayed := c.importance * math.Exp(-ageDays/e.cfg.DecayHalfLifeDays)
		if decayed < e.cfg.DropThreshold && !c.critical {
			dropIDs = append(dropIDs, c.id)
			continue
		}
		c.importance = decayed
		kept = append(kept, c)
	}
	summary.Dropped = len(dropIDs)

	clusters := clusterByCosine(kept, e.cfg.ClusterCosineMin)
	summary.Clusters = len(clusters)

	var mergedOriginals []string
	for _, cluster := range clusters {
		if len(cluster) < e.cfg.MinClusterSize {
			continue
		}
		if err := e.mergeCluster(ctx, userID, cluster); err != nil {
			continue
		}
		for _, c := range cluster {
			mergedOriginals = append(mergedOriginals, c.id)
		}
		summary.Merged++
	}

	if e.cfg.DryRun {
		return summary, nil
	}

	for _, id := range append(dropIDs, mergedOriginals...) {
		_, _ = e.orchestrator.Delete(ctx, id, userID)
	}
	for _, c := range kept {
		if contains(mergedOriginals, c.id) {
			continue
		}
		_ = e.persistDecay(ctx, c)
	}

	return summary, nil
}

// loadCandidates pulls every record in userID's partition, filters to
// those older than minAge, sorts oldest-first, and caps at maxCandidates.
func (e *Engine) loadCandidates(ctx context.Context, userID string) ([]candidate, error) {
	raw, err := e.vectors.Scroll(ctx, vectorstore.Filter{UserID: userID}, scrollBatch, true)
	if err != nil {
		return nil, fmt.Errorf("%w: load compaction candidates: %v", apperr.ErrStorage, err)
	}

	now := time.Now().UTC()
	out := make([]candidate, 0, len(raw))
	for _, r := range raw {
		ts := parseTimestamp(r.Metadata["timestamp"])
		if now.Sub(ts) < minAge {
			continue
		}
		content, _ := r.Metadata["content"].(string)
		importance, _ := r.Metadata["importance"].(float64)
		if importance == 0 {
			importance = 0.8
		}
		confidence, _ := r.Metadata["confidence"].(float64)
		tags := stringSlice(r.Metadata["persona_tags"])
		out = append(out, candidate{
			id: r.ID, vector: r.Vector, content: content,
			importance: importance, confidence: confidence, timestamp: ts,
			personaTags: tags, critical: containsTag(tags, "critical"),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].timestamp.Before(out[j].timestamp) })
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out, nil
}

// clusterByCosine groups candidates by simple greedy seed clustering: a
// candidate joins the first cluster whose seed (its first member) is
// within threshold cosine similarity of it, else it seeds a new cluster.
func clusterByCosine(items []candidate, threshold float64) [][]candidate {
	var clusters [][]candidate
	for _, c := range items {
		placed := false
		for i, cluster := range clusters {
			if vecmath.Cosine(c.vector, cluster[0].vector) >= threshold {
				clusters[i] = append(clusters[i], c)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []candidate{c})
		}
	}
	return clusters
}

// mergeCluster asks the LLM to fold a cluster of near-duplicate
// memories into one golden record, re-embeds it, stores it, and leaves
// cluster's originals to be deleted by the caller.
func (e *Engine) mergeCluster(ctx context.Context, userID string, cluster []candidate) error {
	prompt := "Merge these related memories into one concise, deduplicated statement that preserves every distinct fact:\n"
	for _, c := range cluster {
		prompt += "- " + c.content + "\n"
	}
	merged, err := e.llm.Complete(ctx, "You merge related personal memories into a single golden record.", prompt)
	if err != nil {
		return err
	}

	vec, err := e.embedder.Embed(ctx, merged)
	if err != nil {
		return err
	}

	best := cluster[0]
	var mergedIDs []string
	var tags []string
	earliest := cluster[0].timestamp
	for _, c := range cluster {
		mergedIDs = append(mergedIDs, c.id)
		tags = unionTags(tags, c.personaTags)
		if c.confidence > best.confidence {
			best = c
		}
		if c.timestamp.Before(earliest) {
			earliest = c.timestamp
		}
	}

	id := models.NewMemoryID()
	record := vectorstore.Record{
		ID:     id,
		Vector: vec,
		Metadata: map[string]interface{}{
			"content":     merged,
			"user_id":     userID,
			"confidence":  best.confidence,
			"importance":  best.importance,
			"timestamp":   earliest.Format(time.RFC3339),
			"persona_tags": tags,
			"merged_from": mergedIDs,
		},
	}
	return e.vectors.Upsert(ctx, record)
}

func (e *Engine) persistDecay(ctx context.Context, c candidate) error {
	return e.vectors.Upsert(ctx, vectorstore.Record{
		ID:     c.id,
		Vector: c.vector,
		Metadata: map[string]interface{}{
			"content":      c.content,
			"importance":   c.importance,
			"confidence":   c.confidence,
			"timestamp":    c.timestamp.Format(time.RFC3339),
			"persona_tags": c.personaTags,
		},
	})
}

func parseTimestamp(v interface{}) time.Time {
	s, _ := v.(string)
	if s == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func unionTags(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range append(append([]string{}, a...), b...) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
