// Package vectorstore implements C3: a user-partitioned vector index
// with metadata filters over a Qdrant-compatible REST API.
//
// No official Chroma or Qdrant Go client exists anywhere in the example
// corpus this service was grounded on; scalytics-KafClaw solves the same
// problem with a hand-rolled net/http REST client against a Qdrant-shaped
// collections/points API, so that is the idiom adopted here rather than
// a stdlib fallback of convenience.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
)

const embeddingDimension = 3072 // text-embedding-3-large, per spec's Memory.embedding field

// Record is one vector-store row: an id, its embedding, and the
// metadata the query filters operate over.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]interface{}
}

// Hit is a scored query result. Vector is only populated when the
// caller asked for it (Scroll's withVector argument).
type Hit struct {
	ID       string
	Score    float32
	Vector   []float32
	Metadata map[string]interface{}
}

// Filter narrows a query or delete to a subset of the collection.
// Empty fields are not applied.
type Filter struct {
	UserID      string
	Layer       string
	Type        string
	Tags        []string
	StoredInKey string // e.g. "stored_in_episodic" — filters to true iff set
}

func (f Filter) toWhere() map[string]interface{} {
	where := map[string]interface{}{}
	var clauses []map[string]interface{}
	if f.UserID != "" {
		clauses = append(clauses, map[string]interface{}{"user_id": f.UserID})
	}
	if f.Layer != "" {
		clauses = append(clauses, map[string]interface{}{"layer": f.Layer})
	}
	if f.Type != "" {
		clauses = append(clauses, map[string]interface{}{"type": f.Type})
	}
	if f.StoredInKey != "" {
		clauses = append(clauses, map[string]interface{}{f.StoredInKey: true})
	}
	for _, tag := range f.Tags {
		clauses = append(clauses, map[string]interface{}{"persona_tags": map[string]interface{}{"$contains": tag}})
	}
	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		where["$and"] = clauses
		return where
	}
}

// Store is a client for a single named collection.
type Store struct {
	baseURL    string
	collection string
	client     *http.Client
}

// New returns a Store against baseURL/collection. Per spec.md §8 S1 the
// collection/backend name surfaced to callers is "chromadb" even though
// the wire shape here is Qdrant-REST-compatible.
func New(baseURL, collection string, timeout time.Duration) *Store {
	return &Store{
		baseURL:    baseURL,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection if it does not already exist.
func (s *Store) EnsureCollection(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodGet, "/collections/"+s.collection, nil)
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil
		}
	}

	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     embeddingDimension,
			"distance": "Cosine",
		},
	}
	resp, err = s.do(ctx, http.MethodPut, "/collections/"+s.collection, body)
	if err != nil {
		return fmt.Errorf("%w: create collection: %v", apperr.ErrStorage, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: create collection: %s", apperr.ErrStorage, readErrBody(resp))
	}
	return nil
}

// Upsert writes or overwrites a single record.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	body := map[string]interface{}{
		"points": []map[string]interface{}{
			{
				"id":      rec.ID,
				"vector":  rec.Vector,
				"payload": rec.Metadata,
			},
		},
	}
	resp, err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", s.collection), body)
	if err != nil {
		return fmt.Errorf("%w: upsert: %v", apperr.ErrStorage, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: upsert: %s", apperr.ErrStorage, readErrBody(resp))
	}
	return nil
}

// Query runs a cosine-ANN search over vector, bounded to limit hits and
// narrowed by filter.
func (s *Store) Query(ctx context.Context, vector []float32, limit int, filter Filter) ([]Hit, error) {
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}
	if where := filter.toWhere(); where != nil {
		body["filter"] = where
	}

	resp, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", s.collection), body)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", apperr.ErrStorage, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: query: %s", apperr.ErrStorage, readErrBody(resp))
	}

	var decoded struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float32                `json:"score"`
			Vector  []float32              `json:"vector"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode query response: %v", apperr.ErrStorage, err)
	}

	hits := make([]Hit, len(decoded.Result))
	for i, r := range decoded.Result {
		hits[i] = Hit{ID: r.ID, Score: r.Score, Vector: r.Vector, Metadata: r.Payload}
	}
	return hits, nil
}

// Get fetches a single record's metadata by id. Returns apperr.ErrNotFound
// if absent.
func (s *Store) Get(ctx context.Context, id string) (Hit, error) {
	body := map[string]interface{}{"ids": []string{id}, "with_payload": true}
	resp, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points", s.collection), body)
	if err != nil {
		return Hit{}, fmt.Errorf("%w: get: %v", apperr.ErrStorage, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Hit{}, fmt.Errorf("%w: get: %s", apperr.ErrStorage, readErrBody(resp))
	}

	var decoded struct {
		Result []struct {
			ID      string                 `json:"id"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Hit{}, fmt.Errorf("%w: decode get response: %v", apperr.ErrStorage, err)
	}
	if len(decoded.Result) == 0 {
		return Hit{}, apperr.ErrNotFound
	}
	return Hit{ID: decoded.Result[0].ID, Metadata: decoded.Result[0].Payload}, nil
}

// Scroll lists up to limit records matching filter without a similarity
// query, for callers that need every record in a user's partition rather
// than a nearest-neighbor set (e.g. ingestion's bounded existing-context
// pull, ranked client-side by recency + importance). withVector also
// returns each record's embedding, for client-side dedup cosine checks.
func (s *Store) Scroll(ctx context.Context, filter Filter, limit int, withVector bool) ([]Hit, error) {
	body := map[string]interface{}{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  withVector,
	}
	if where := filter.toWhere(); where != nil {
		body["filter"] = where
	}

	resp, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/scroll", s.collection), body)
	if err != nil {
		return nil, fmt.Errorf("%w: scroll: %v", apperr.ErrStorage, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: scroll: %s", apperr.ErrStorage, readErrBody(resp))
	}

	var decoded struct {
		Result struct {
			Points []struct {
				ID      string                 `json:"id"`
				Vector  []float32              `json:"vector"`
				Payload map[string]interface{} `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode scroll response: %v", apperr.ErrStorage, err)
	}

	hits := make([]Hit, len(decoded.Result.Points))
	for i, p := range decoded.Result.Points {
		hits[i] = Hit{ID: p.ID, Vector: p.Vector, Metadata: p.Payload}
	}
	return hits, nil
}

// Delete removes records by id.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]interface{}{"points": ids}
	resp, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", s.collection), body)
	if err != nil {
		return fmt.Errorf("%w: delete: %v", apperr.ErrStorage, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: delete: %s", apperr.ErrStorage, readErrBody(resp))
	}
	return nil
}

func (s *Store) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.client.Do(req)
}

func readErrBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}
