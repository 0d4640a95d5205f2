package ingest

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
	"github.com/ankitaa186/agentic-memories-sub002/internal/gateway"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
	"github.com/ankitaa186/agentic-memories-sub002/internal/orchestrator"
	"github.com/ankitaa186/agentic-memories-sub002/internal/profile"
	"github.com/ankitaa186/agentic-memories-sub002/internal/retrieval"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/vectorstore"
	"github.com/ankitaa186/agentic-memories-sub002/internal/vecmath"
)

// contextLimit is "top <= 20" from spec.md §4.4's init stage.
const contextLimit = 20

// BackendStatus summarizes one backend's outcome for one memory: "ok" or
// an error string.
type BackendStatus map[string]string

// Result is what finalize returns: spec.md §4.4's
// {memories_created, ids, summary, per-backend status}.
type Result struct {
	MemoriesCreated int                      `json:"memories_created"`
	IDs             []string                 `json:"ids"`
	Summary         string                   `json:"summary"`
	PerBackend      map[string]BackendStatus `json:"per_backend"`
}

// Pipeline runs the fixed C8 state machine.
type Pipeline struct {
	embedder     *gateway.Embedder
	llm          *gateway.LLM
	vectors      *vectorstore.Store
	retriever    *retrieval.Engine
	orchestrator *orchestrator.Orchestrator
	profiles     profile.Upserter

	dedupThreshold    float64
	extractionTimeout time.Duration
}

// New constructs a Pipeline. dedupThreshold and extractionTimeout come
// from internal/config's IngestionConfig.
func New(embedder *gateway.Embedder, llm *gateway.LLM, vectors *vectorstore.Store, retriever *retrieval.Engine,
	orch *orchestrator.Orchestrator, profiles profile.Upserter, dedupThreshold float64, extractionTimeout time.Duration) *Pipeline {
	return &Pipeline{
		embedder: embedder, llm: llm, vectors: vectors, retriever: retriever,
		orchestrator: orch, profiles: profiles,
		dedupThreshold: dedupThreshold, extractionTimeout: extractionTimeout,
	}
}

// Run executes init -> extract_all -> classify_and_enrich ->
// build_objects -> store_all -> finalize over transcript for userID.
func (p *Pipeline) Run(ctx context.Context, userID string, transcript []models.Turn) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.extractionTimeout)
	defer cancel()

	existing, existingVectors, err := p.init(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	extracted, err := p.extractAll(ctx, transcript, existing)
	if err != nil {
		// never poison the stores: zero memories, proceed to finalize.
		return p.finalize(nil, nil), nil
	}

	memories, episodics, emotionals, skills, portfolios, err := p.classifyAndEnrich(ctx, userID, extracted.Memories, existingVectors)
	if err != nil {
		return Result{}, err
	}

	results := make(map[string]orchestrator.Result, len(memories))
	ids := make([]string, 0, len(memories))
	for i, mem := range memories {
		req := orchestrator.WriteRequest{
			Memory:    mem,
			Episodic:  episodics[i],
			Emotional: emotionals[i],
			Skill:     skills[i],
			Portfolio: portfolios[i],
		}
		res, err := p.orchestrator.Store(ctx, req)
		if err != nil {
			results[mem.ID] = res
			continue
		}
		results[mem.ID] = res
		ids = append(ids, mem.ID)
	}

	if len(extracted.ProfileUpdates) > 0 && p.profiles != nil {
		updates := make([]models.ProfileUpdate, 0, len(extracted.ProfileUpdates))
		for _, u := range extracted.ProfileUpdates {
			updates = append(updates, models.ProfileUpdate{
				Category:   models.ProfileCategory(u.Category),
				FieldName:  u.FieldName,
				FieldValue: u.FieldValue,
				Confidence: u.Confidence,
				SourceType: models.SourceType(u.SourceType),
			})
		}
		if _, err := p.profiles.UpsertFields(ctx, userID, updates); err != nil {
			return Result{}, fmt.Errorf("%w: profile updates: %v", apperr.ErrStorage, err)
		}
	}

	return p.finalize(ids, results), nil
}

type dedupCandidate struct {
	ID      string
	Vector  []float32
	Content string
}

// init loads the bounded existing-memory context: top <= 20 by recency +
// relevance, plus their embeddings for the client-side dedup check in
// classify_and_enrich.
func (p *Pipeline) init(ctx context.Context, userID string) ([]retrieval.Hit, []dedupCandidate, error) {
	hits, err := p.retriever.ContextCandidates(ctx, userID, contextLimit)
	if err != nil {
		return nil, nil, err
	}

	raw, err := p.vectors.Scroll(ctx, vectorstore.Filter{UserID: userID}, contextLimit, true)
	if err != nil {
		return nil, nil, err
	}
	candidates := make([]dedupCandidate, 0, len(raw))
	for _, r := range raw {
		content, _ := r.Metadata["content"].(string)
		candidates = append(candidates, dedupCandidate{ID: r.ID, Vector: r.Vector, Content: content})
	}
	return hits, candidates, nil
}

// extractAll makes the single combined LLM call, passing the existing
// context so the prompt can suppress duplicates.
func (p *Pipeline) extractAll(ctx context.Context, transcript []models.Turn, existing []retrieval.Hit) (extractResult, error) {
	var sb strings.Builder
	sb.WriteString("Conversation:\n")
	for _, t := range transcript {
		fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
	}
	if len(existing) > 0 {
		sb.WriteString("\nExisting memories (do not duplicate):\n")
		for _, h := range existing {
			fmt.Fprintf(&sb, "- %s\n", h.Content)
		}
	}

	var dest extractResult
	if err := p.llm.CompleteJSON(ctx, extractionSystemPrompt, sb.String(), extractSchema, "memory_extraction", &dest); err != nil {
		return extractResult{}, err
	}
	return dest, nil
}

// classifyAndEnrich assigns each extracted memory to its storage
// destinations based on which typed fields are present, computes
// embeddings via C1, and drops anything that semantically entails an
// existing memory at cosine >= dedupThreshold (spec.md §4.4, testable
// property 7's idempotence guarantee).
func (p *Pipeline) classifyAndEnrich(ctx context.Context, userID string, extracted []extractedMemory, existing []dedupCandidate) (
	[]*models.Memory, []*models.EpisodicEvent, []*models.EmotionalState, []*models.ProceduralSkill, []*models.PortfolioEventIn, error,
) {
	if len(extracted) == 0 {
		return nil, nil, nil, nil, nil, nil
	}

	texts := make([]string, len(extracted))
	for i, m := range extracted {
		texts[i] = m.Content
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	var memories []*models.Memory
	var episodics []*models.EpisodicEvent
	var emotionals []*models.EmotionalState
	var skills []*models.ProceduralSkill
	var portfolios []*models.PortfolioEventIn

	now := time.Now().UTC()
	for i, m := range extracted {
		vec := vectors[i]
		if isDuplicate(vec, existing, p.dedupThreshold) {
			continue
		}

		id := models.NewMemoryID()
		mem := &models.Memory{
			ID:          id,
			UserID:      userID,
			Content:     m.Content,
			Layer:       models.Layer(m.Layer),
			Type:        models.MemoryType(orDefault(m.Type, string(models.TypeImplicit))),
			Importance:  models.DefaultImportance,
			Confidence:  orDefaultFloat(m.Confidence, models.DefaultConfidence),
			Embedding:   vec,
			Timestamp:   resolveTimestamp(m, now),
			PersonaTags: capTags(m.Tags, models.MaxPersonaTags),
			Metadata: map[string]any{
				"content":   m.Content,
				"layer":     string(m.Layer),
				"timestamp": resolveTimestamp(m, now).Format(time.RFC3339),
				"entities":  m.Entities,
			},
		}

		var episodic *models.EpisodicEvent
		if m.EventTimestamp != "" {
			ts, perr := time.Parse(time.RFC3339, m.EventTimestamp)
			if perr != nil {
				ts = now
			}
			episodic = &models.EpisodicEvent{
				ID: id, UserID: userID, EventTimestamp: ts, Content: m.Content,
				Location: m.Location, Participants: m.Participants,
				EmotionalValence: m.Valence, EmotionalArousal: m.Arousal,
				ImportanceScore: mem.Importance, Tags: m.Tags,
			}
		}

		var emotional *models.EmotionalState
		if m.EmotionalState != "" {
			emotional = &models.EmotionalState{
				ID: id, UserID: userID, Timestamp: now, EmotionalState: m.EmotionalState,
				Valence: m.Valence, Arousal: m.Arousal, Dominance: m.Dominance, Intensity: math.Abs(m.Valence),
			}
		}

		var skill *models.ProceduralSkill
		if m.SkillName != "" {
			skill = &models.ProceduralSkill{
				ID: id, UserID: userID, SkillName: m.SkillName,
				ProficiencyLevel: models.ProficiencyLevel(orDefault(m.ProficiencyLevel, string(models.ProficiencyBeginner))),
				PracticeCount:    1, LastPracticed: &now,
			}
		}

		var port *models.PortfolioEventIn
		if m.Portfolio != nil && m.Portfolio.Ticker != "" {
			port = &models.PortfolioEventIn{
				Ticker: m.Portfolio.Ticker, Side: m.Portfolio.Side, Shares: m.Portfolio.Shares,
				Price: m.Portfolio.Price, AssetName: m.Portfolio.AssetName,
			}
		}

		memories = append(memories, mem)
		episodics = append(episodics, episodic)
		emotionals = append(emotionals, emotional)
		skills = append(skills, skill)
		portfolios = append(portfolios, port)
	}

	return memories, episodics, emotionals, skills, portfolios, nil
}

func (p *Pipeline) finalize(ids []string, results map[string]orchestrator.Result) Result {
	perBackend := make(map[string]BackendStatus, len(results))
	for memID, res := range results {
		status := BackendStatus{}
		for backend, err := range res {
			if err == nil {
				status[backend] = "ok"
			} else {
				status[backend] = err.Error()
			}
		}
		perBackend[memID] = status
	}
	return Result{
		MemoriesCreated: len(ids),
		IDs:             ids,
		Summary:         fmt.Sprintf("%d memories created", len(ids)),
		PerBackend:      perBackend,
	}
}

func isDuplicate(vec []float32, existing []dedupCandidate, threshold float64) bool {
	for _, c := range existing {
		if vecmath.Cosine(vec, c.Vector) >= threshold {
			return true
		}
	}
	return false
}

func resolveTimestamp(m extractedMemory, fallback time.Time) time.Time {
	if m.TimestampType == "none" || m.Timestamp == "" {
		return fallback
	}
	ts, err := time.Parse(time.RFC3339, m.Timestamp)
	if err != nil {
		return fallback
	}
	return ts
}

func capTags(tags []string, max int) []string {
	if len(tags) > max {
		return tags[:max]
	}
	return tags
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orDefaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

