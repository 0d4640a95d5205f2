// Package profile is the service-layer seam in front of relstore's
// profile tables: it owns cache invalidation and the read-through
// assembly of a complete profile snapshot, leaving confidence
// computation itself inside relstore where the update transaction lives.
//
// The "proposal/approval workflow" spec.md §9 leaves as an open question
// is deferred here behind the Upserter interface: UpsertFields currently
// writes straight through (direct write wins, per §4.5), but callers
// depend on the interface rather than *Service so a future approval gate
// can be substituted without touching C8 or the API layer.
package profile

import (
	"context"
	"sort"
	"time"

	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/cache"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/relstore"
)

// Upserter is the write-side seam C8 and the API layer depend on.
type Upserter interface {
	UpsertFields(ctx context.Context, userID string, updates []models.ProfileUpdate) (models.UserProfile, error)
}

// Snapshot is the complete, cache-friendly profile view.
type Snapshot struct {
	Profile    models.UserProfile                    `json:"profile"`
	Fields     map[models.ProfileCategory][]models.ProfileField `json:"fields"`
	Confidence []models.ProfileConfidenceScore       `json:"confidence"`
}

// Service wraps relstore's profile tables with cache-aside reads and
// namespace-bump invalidation on every write.
type Service struct {
	rel   *relstore.Store
	cache *cache.Store
}

// New constructs a Service.
func New(rel *relstore.Store, c *cache.Store) *Service {
	return &Service{rel: rel, cache: c}
}

// UpsertFields applies updates then invalidates the cached snapshot.
func (s *Service) UpsertFields(ctx context.Context, userID string, updates []models.ProfileUpdate) (models.UserProfile, error) {
	p, err := s.rel.UpsertProfileFields(ctx, userID, updates, time.Now().UTC())
	if err != nil {
		return models.UserProfile{}, err
	}
	if err := s.cache.InvalidateProfile(ctx, userID); err != nil {
		return p, err
	}
	return p, nil
}

// Snapshot returns the complete profile view, serving from cache when
// present and populating the cache on a miss (spec.md §4.5: 300s TTL
// under the current namespace).
func (s *Service) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	var cached Snapshot
	if err := s.cache.GetProfile(ctx, userID, &cached); err == nil {
		return cached, nil
	}

	p, err := s.rel.Profile(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	fields := map[models.ProfileCategory][]models.ProfileField{}
	for _, cat := range models.AllCategories {
		fs, err := s.rel.ProfileFieldsByCategory(ctx, userID, cat)
		if err != nil {
			return Snapshot{}, err
		}
		if len(fs) > 0 {
			fields[cat] = fs
		}
	}

	confidence, err := s.rel.ConfidenceScores(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Profile: p, Fields: fields, Confidence: confidence}
	_ = s.cache.SetProfile(ctx, userID, snap)
	return snap, nil
}

// Summary renders the top-N fields by confidence as a compact string for
// injection into a conversation's system context (spec.md §4.7, "≤ 500
// tokens"; n is left to the caller, spec.md §4.6 uses 10 for the
// narrative pass's cached summary input).
func (s *Service) Summary(ctx context.Context, userID string, n int) (string, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return "", err
	}
	scores := append([]models.ProfileConfidenceScore(nil), snap.Confidence...)
	sort.Slice(scores, func(i, j int) bool { return scores[i].OverallConfidence > scores[j].OverallConfidence })
	if len(scores) > n {
		scores = scores[:n]
	}

	byKey := map[string]models.ProfileField{}
	for _, fs := range snap.Fields {
		for _, f := range fs {
			byKey[string(f.Category)+"."+f.FieldName] = f
		}
	}

	summary := ""
	for _, sc := range scores {
		f, ok := byKey[string(sc.Category)+"."+sc.FieldName]
		if !ok {
			continue
		}
		summary += f.FieldName + ": " + f.FieldValue + "\n"
	}
	return summary, nil
}

// Audit returns the full source trail for userID.
func (s *Service) Audit(ctx context.Context, userID string) ([]models.ProfileSource, error) {
	return s.rel.ProfileAudit(ctx, userID)
}

// Delete removes a profile and invalidates its cache.
func (s *Service) Delete(ctx context.Context, userID string) error {
	if err := s.rel.DeleteProfile(ctx, userID); err != nil {
		return err
	}
	return s.cache.InvalidateProfile(ctx, userID)
}
