// Package retrieval implements C9: simple, hybrid, persona-aware,
// structured, and narrative retrieval over the union of C3 (vector), C4
// (time-partitioned), and C5 (relational) stores.
//
// Ranking and the fixed tie-break are grounded directly on spec.md §4.6;
// the actor shape mirrors tarsy's read-path handlers (plain method calls
// over injected store clients, no extra indirection layer).
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
	"github.com/ankitaa186/agentic-memories-sub002/internal/gateway"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/relstore"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/timestore"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/vectorstore"
)

// Weights are the four ranking coefficients from spec.md §4.6. A persona
// override replaces the whole set, never blends with the default.
type Weights struct {
	Semantic   float64
	Time       float64
	Importance float64
	Emotional  float64
}

// personaWeights are the fixed overrides for the closed persona
// vocabulary named in spec.md §4.6 ("casual/coach/advisor/..."). Coach
// leans on recency (accountability check-ins), advisor leans on
// importance (financial/health stakes), casual is closest to the default.
var personaWeights = map[string]Weights{
	"casual":  {Semantic: 0.45, Time: 0.25, Importance: 0.2, Emotional: 0.1},
	"coach":   {Semantic: 0.3, Time: 0.35, Importance: 0.25, Emotional: 0.1},
	"advisor": {Semantic: 0.35, Time: 0.15, Importance: 0.4, Emotional: 0.1},
}

// categories is the fixed structured-retrieval bucket set from spec.md §4.6.
var categories = []string{
	"emotions", "behaviors", "personal", "professional", "habits",
	"skills_tools", "projects", "relationships", "learning_journal", "finance", "other",
}

// Hit is one ranked retrieval result, source-tagged for explainability.
type Hit struct {
	MemoryID  string         `json:"memory_id"`
	Content   string         `json:"content"`
	Score     float64        `json:"score"`
	Source    string         `json:"source"` // semantic | episodic | structured
	Layer     string         `json:"layer,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Vector    []float32      `json:"-"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Explainability lists the weights actually applied and each hit's
// originating source, per spec.md §4.6's persona-aware contract.
type Explainability struct {
	Persona string            `json:"persona,omitempty"`
	Weights Weights           `json:"weights"`
	Sources map[string]string `json:"sources"` // memory_id -> source
}

// Engine wires every backing store plus the LLM gateway for the
// structured and narrative passes.
type Engine struct {
	vectors      *vectorstore.Store
	times        *timestore.Store
	rel          *relstore.Store
	embedder     *gateway.Embedder
	llm          *gateway.LLM
	defaultW     Weights
	halfLifeDays float64
	defaultTopK  int
}

// New constructs an Engine. halfLifeDays and defaultW come from
// internal/config's RetrievalConfig.
func New(vectors *vectorstore.Store, times *timestore.Store, rel *relstore.Store, embedder *gateway.Embedder, llm *gateway.LLM, defaultW Weights, halfLifeDays float64, defaultTopK int) *Engine {
	return &Engine{
		vectors: vectors, times: times, rel: rel, embedder: embedder, llm: llm,
		defaultW: defaultW, halfLifeDays: halfLifeDays, defaultTopK: defaultTopK,
	}
}

// Simple is cosine-ANN over the vector store with metadata filters,
// stable-scored in [0,1].
func (e *Engine) Simple(ctx context.Context, userID, query string, topK int, filter vectorstore.Filter) ([]Hit, error) {
	if topK <= 0 {
		topK = e.defaultTopK
	}
	filter.UserID = userID

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	raw, err := e.vectors.Query(ctx, vec, topK, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Hit, len(raw))
	for i, r := range raw {
		out[i] = hitFromVector(r)
	}
	sortHits(out)
	return out, nil
}

// Hybrid unions semantic, time-bounded episodic, and structured
// (procedural/portfolio) hits, dedups by id, and ranks by
// w_sem*semantic + w_time*time_decay + w_imp*importance + w_emo*emotional_alignment.
func (e *Engine) Hybrid(ctx context.Context, userID, query string, window time.Duration, topK int, weights *Weights) ([]Hit, Explainability, error) {
	if topK <= 0 {
		topK = e.defaultTopK
	}
	w := e.defaultW
	if weights != nil {
		w = *weights
	}

	candidates, sources, err := e.collectCandidates(ctx, userID, query, window, topK)
	if err != nil {
		return nil, Explainability{}, err
	}

	now := time.Now()
	for i := range candidates {
		h := &candidates[i]
		ageDays := now.Sub(h.Timestamp).Hours() / 24
		timeDecay := math.Exp(-ageDays / e.halfLifeDays)
		importance := importanceOf(h.Metadata)
		emotional := emotionalAlignmentOf(h.Metadata)
		semantic := h.Score
		h.Score = w.Semantic*semantic + w.Time*timeDecay + w.Importance*importance + w.Emotional*emotional
	}

	sortHits(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	explain := Explainability{Weights: w, Sources: sources}
	return candidates, explain, nil
}

// PersonaAware runs Hybrid with a persona-selected weight override. An
// explicit persona wins; otherwise one is guessed from the query text by
// simple keyword match, falling back to the default weights.
func (e *Engine) PersonaAware(ctx context.Context, userID, query, persona string, topK int) ([]Hit, Explainability, error) {
	if persona == "" {
		persona = detectPersona(query)
	}
	w := e.defaultW
	if pw, ok := personaWeights[persona]; ok {
		w = pw
	} else {
		persona = ""
	}
	hits, explain, err := e.Hybrid(ctx, userID, query, 30*24*time.Hour, topK, &w)
	explain.Persona = persona
	return hits, explain, err
}

func detectPersona(query string) string {
	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "coach"), strings.Contains(lower, "accountab"), strings.Contains(lower, "habit"):
		return "coach"
	case strings.Contains(lower, "advis"), strings.Contains(lower, "invest"), strings.Contains(lower, "portfolio"), strings.Contains(lower, "financ"):
		return "advisor"
	default:
		return ""
	}
}

// structuredSchema is the forced JSON shape for the category-bucketing
// call: one {memory_id, category} assignment per input memory.
var structuredSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"assignments": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"memory_id": {Type: "string"},
					"category":  {Type: "string", Enum: categoryEnum()},
				},
				Required: []string{"memory_id", "category"},
			},
		},
	},
	Required: []string{"assignments"},
}

func categoryEnum() []any {
	out := make([]any, len(categories))
	for i, c := range categories {
		out[i] = c
	}
	return out
}

// Structured re-buckets hits into the fixed category set via one LLM
// call. Items the model has no confident bucket for fall into "other".
// Empty input returns empty categories rather than calling the LLM.
func (e *Engine) Structured(ctx context.Context, hits []Hit) (map[string][]Hit, error) {
	buckets := map[string][]Hit{}
	if len(hits) == 0 {
		return buckets, nil
	}

	byID := make(map[string]Hit, len(hits))
	prompt := "Sort these memory ids into categories. Categories: "
	for _, c := range categories {
		prompt += c + ", "
	}
	prompt += "\nMemories:\n"
	for _, h := range hits {
		byID[h.MemoryID] = h
		prompt += fmt.Sprintf("- %s: %s\n", h.MemoryID, h.Content)
	}

	var dest struct {
		Assignments []struct {
			MemoryID string `json:"memory_id"`
			Category string `json:"category"`
		} `json:"assignments"`
	}
	err := e.llm.CompleteJSON(ctx,
		"You sort memories into a fixed category set. Use \"other\" when no category confidently fits. Respond with JSON only.",
		prompt, structuredSchema, "memory_categories", &dest)
	if err != nil {
		// never poison the response on LLM failure: fall everything into other
		buckets["other"] = hits
		return buckets, nil
	}

	placed := map[string]bool{}
	for _, a := range dest.Assignments {
		if h, ok := byID[a.MemoryID]; ok {
			buckets[a.Category] = append(buckets[a.Category], h)
			placed[a.MemoryID] = true
		}
	}
	for _, h := range hits {
		if !placed[h.MemoryID] {
			buckets["other"] = append(buckets["other"], h)
		}
	}
	return buckets, nil
}

// Narrative weaves a ranked, deduped hit set into coherent prose, folding
// in the cached profile summary (top 10 fields) when available. Empty
// input returns an empty string rather than an error.
func (e *Engine) Narrative(ctx context.Context, hits []Hit, profileSummary string) (string, error) {
	if len(hits) == 0 {
		return "", nil
	}
	prompt := "Weave these memories into a short, coherent narrative paragraph.\n"
	if profileSummary != "" {
		prompt += "User profile summary:\n" + profileSummary + "\n\n"
	}
	prompt += "Memories (most relevant first):\n"
	for _, h := range hits {
		prompt += "- " + h.Content + "\n"
	}
	return e.llm.Complete(ctx, "You write a brief, factual narrative summary from the given memories. Do not invent details.", prompt)
}

// ContextCandidates returns up to limit of a user's existing memories
// ranked by recency + relevance, with no query embedding — the cheap
// existing-context input to C8's extraction prompt (not a user-facing
// retrieval, spec.md §4.4).
func (e *Engine) ContextCandidates(ctx context.Context, userID string, limit int) ([]Hit, error) {
	raw, err := e.vectors.Scroll(ctx, vectorstore.Filter{UserID: userID}, limit*4, false)
	if err != nil {
		return nil, err
	}
	out := make([]Hit, len(raw))
	now := time.Now()
	for i, r := range raw {
		h := hitFromVector(r)
		ageDays := now.Sub(h.Timestamp).Hours() / 24
		timeDecay := math.Exp(-ageDays / e.halfLifeDays)
		h.Score = 0.5*timeDecay + 0.5*importanceOf(h.Metadata)
		out[i] = h
	}
	sortHits(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (e *Engine) collectCandidates(ctx context.Context, userID, query string, window time.Duration, topK int) ([]Hit, map[string]string, error) {
	byID := map[string]Hit{}
	sources := map[string]string{}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	semHits, err := e.vectors.Query(ctx, vec, topK*2, vectorstore.Filter{UserID: userID})
	if err != nil {
		return nil, nil, err
	}
	for _, h := range semHits {
		hit := hitFromVector(h)
		hit.Source = "semantic"
		byID[hit.MemoryID] = hit
		sources[hit.MemoryID] = "semantic"
	}

	now := time.Now()
	episodic, err := e.times.EpisodicEventsInWindow(ctx, userID, now.Add(-window), now)
	if err != nil {
		return nil, nil, err
	}
	for _, ev := range episodic {
		if _, ok := byID[ev.ID]; ok {
			continue
		}
		byID[ev.ID] = Hit{
			MemoryID: ev.ID, Content: ev.Content, Score: 0.6, Source: "episodic",
			Timestamp: ev.EventTimestamp,
			Metadata: map[string]any{
				"importance_score":  ev.ImportanceScore,
				"emotional_valence": ev.EmotionalValence,
			},
		}
		sources[ev.ID] = "episodic"
	}

	skills, err := e.rel.SkillsByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	for _, sk := range skills {
		if _, ok := byID[sk.ID]; ok {
			continue
		}
		ts := now
		if sk.LastPracticed != nil {
			ts = *sk.LastPracticed
		}
		byID[sk.ID] = Hit{
			MemoryID: sk.ID, Content: fmt.Sprintf("%s (%s)", sk.SkillName, sk.ProficiencyLevel),
			Score: 0.5, Source: "structured", Timestamp: ts,
			Metadata: map[string]any{"importance_score": 0.5},
		}
		sources[sk.ID] = "structured"
	}

	if snap, err := e.times.LatestSnapshot(ctx, userID); err == nil {
		byID[snap.UserID+"_snapshot"] = Hit{
			MemoryID: snap.UserID + "_snapshot",
			Content:  fmt.Sprintf("Portfolio value: %.2f", snap.TotalValue),
			Score:    0.5, Source: "structured", Timestamp: snap.SnapshotTimestamp,
			Metadata: map[string]any{"importance_score": 0.6},
		}
		sources[snap.UserID+"_snapshot"] = "structured"
	} else if err != apperr.ErrNotFound {
		return nil, nil, err
	}

	out := make([]Hit, 0, len(byID))
	for _, h := range byID {
		out = append(out, h)
	}
	return out, sources, nil
}

func hitFromVector(r vectorstore.Hit) Hit {
	h := Hit{MemoryID: r.ID, Score: float64(r.Score), Source: "semantic", Vector: r.Vector, Metadata: r.Metadata}
	if content, ok := r.Metadata["content"].(string); ok {
		h.Content = content
	}
	if layer, ok := r.Metadata["layer"].(string); ok {
		h.Layer = layer
	}
	if ts, ok := r.Metadata["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			h.Timestamp = parsed
		}
	}
	return h
}

func importanceOf(metadata map[string]any) float64 {
	if metadata == nil {
		return models.DefaultImportance
	}
	if v, ok := metadata["importance"].(float64); ok {
		return v
	}
	if v, ok := metadata["importance_score"].(float64); ok {
		return v
	}
	return models.DefaultImportance
}

// emotionalAlignmentOf is an open question spec.md leaves undefined in
// detail: resolved here as the normalized absolute emotional valence
// carried on the hit's metadata, falling back to a neutral 0.5 when the
// memory has no emotional signal at all.
func emotionalAlignmentOf(metadata map[string]any) float64 {
	if metadata == nil {
		return 0.5
	}
	if v, ok := metadata["emotional_valence"].(float64); ok {
		return (math.Abs(v) + 1) / 2
	}
	return 0.5
}

// sortHits applies the fixed tie-break: score descending, then timestamp
// descending, then id lexicographic ascending (spec.md §4.6).
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].Timestamp.Equal(hits[j].Timestamp) {
			return hits[i].Timestamp.After(hits[j].Timestamp)
		}
		return hits[i].MemoryID < hits[j].MemoryID
	})
}

