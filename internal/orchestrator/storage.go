// Package orchestrator implements C7: routes one logical memory to a
// deterministic subset of C3-C6 in parallel and returns a per-backend
// success map. The vector store is the source of truth for existence —
// its failure fails the whole write; typed-store failures are recorded
// but never abort the request (spec.md §4.3).
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/cache"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/relstore"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/timestore"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/vectorstore"
)

// Backend names used as map keys in the per-backend result and as
// metadata flag suffixes.
const (
	BackendVector     = "vector"
	BackendEpisodic   = "episodic"
	BackendEmotional  = "emotional"
	BackendProcedural = "procedural"
	BackendPortfolio  = "portfolio"
	BackendCache      = "cache"
)

// maxParallelWrites bounds concurrent backend calls across all stores
// together: one semaphore is shared by every backend, with no separate
// limit per store (spec.md §5: the rest of a request is I/O-bound DB
// work, not a blocking point, so a modest cap is enough to avoid
// unbounded goroutine bursts under load).
const maxParallelWrites = 16

// Orchestrator owns every backend C7 can route a memory to.
type Orchestrator struct {
	vectors *vectorstore.Store
	times   *timestore.Store
	rel     *relstore.Store
	cache   *cache.Store
	sem     chan struct{}
}

// New wires an Orchestrator over every storage backend.
func New(vectors *vectorstore.Store, times *timestore.Store, rel *relstore.Store, c *cache.Store) *Orchestrator {
	return &Orchestrator{vectors: vectors, times: times, rel: rel, cache: c, sem: make(chan struct{}, maxParallelWrites)}
}

// WriteRequest bundles a Memory with the typed side-objects present on
// it; routing (§4.3) is purely a function of which of these are non-nil.
type WriteRequest struct {
	Memory    *models.Memory
	Episodic  *models.EpisodicEvent
	Emotional *models.EmotionalState
	Skill     *models.ProceduralSkill
	Portfolio *models.PortfolioEventIn
}

// Result is the per-backend outcome map: nil on success, else the
// backend's error.
type Result map[string]error

// Store fans out the write to every targeted backend in parallel, waits
// for all, sets the stored_in_* flags, and returns the per-backend map.
// The vector write is synchronous and first: its failure aborts before
// any typed-store write is attempted, since the vector store is the
// source of truth for existence.
func (o *Orchestrator) Store(ctx context.Context, req WriteRequest) (Result, error) {
	result := Result{}

	vec := vectorstore.Record{
		ID:       req.Memory.ID,
		Vector:   req.Memory.Embedding,
		Metadata: req.Memory.Metadata,
	}
	if err := o.withSemaphore(func() error { return o.vectors.Upsert(ctx, vec) }); err != nil {
		result[BackendVector] = err
		return result, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	result[BackendVector] = nil

	var wg sync.WaitGroup
	var mu sync.Mutex
	record := func(backend string, err error) {
		mu.Lock()
		result[backend] = err
		mu.Unlock()
	}

	if req.Episodic != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(BackendEpisodic, o.withSemaphore(func() error {
				return o.times.InsertEpisodicEvent(ctx, *req.Episodic)
			}))
		}()
	}
	if req.Emotional != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(BackendEmotional, o.withSemaphore(func() error {
				return o.times.InsertEmotionalState(ctx, *req.Emotional)
			}))
		}()
	}
	if req.Skill != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(BackendProcedural, o.withSemaphore(func() error {
				return o.rel.UpsertSkill(ctx, *req.Skill)
			}))
		}()
	}
	if req.Portfolio != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(BackendPortfolio, o.withSemaphore(func() error {
				return o.applyPortfolioEvent(ctx, req.Memory.UserID, *req.Portfolio)
			}))
		}()
	}
	if req.Memory.Layer == models.LayerShortTerm {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(BackendCache, o.withSemaphore(func() error {
				return o.cache.SetShortTermMemory(ctx, req.Memory.UserID, req.Memory.ID, []byte(req.Memory.Content))
			}))
		}()
	}
	wg.Wait()

	req.Memory.SetStoredInFlags(models.StoredIn{
		Episodic:   result[BackendEpisodic] == nil && req.Episodic != nil,
		Emotional:  result[BackendEmotional] == nil && req.Emotional != nil,
		Procedural: result[BackendProcedural] == nil && req.Skill != nil,
		Portfolio:  result[BackendPortfolio] == nil && req.Portfolio != nil,
	})
	if err := o.withSemaphore(func() error {
		return o.vectors.Upsert(ctx, vectorstore.Record{ID: req.Memory.ID, Vector: req.Memory.Embedding, Metadata: req.Memory.Metadata})
	}); err != nil {
		// The flags could not be persisted; existence is unaffected since
		// the first upsert already succeeded, so this is reported but not fatal.
		result[BackendVector] = err
	}

	return result, nil
}

func (o *Orchestrator) applyPortfolioEvent(ctx context.Context, userID string, ev models.PortfolioEventIn) error {
	if ev.Side != "" {
		if err := o.rel.AppendTransaction(ctx, models.PortfolioTransaction{
			ID: fmt.Sprintf("txn_%s", uuid.NewString()), UserID: userID, Ticker: ev.Ticker, Side: ev.Side,
			Shares: ev.Shares, Price: ev.Price,
		}); err != nil {
			return err
		}
	}
	return o.rel.UpsertHolding(ctx, models.PortfolioHolding{
		UserID: userID, Ticker: ev.Ticker, Shares: ev.Shares, AvgPrice: ev.Price, AssetName: ev.AssetName,
	})
}

// Delete removes a memory from the vector store, the short-term cache,
// and every episodic/emotional/procedural backend the stored_in_* flags
// say it reached, using the vector-store metadata as the authoritative
// map (spec.md §3). The portfolio flag is not acted on: holdings and
// transactions are keyed by user and ticker, not by memory id, and are
// left in place.
func (o *Orchestrator) Delete(ctx context.Context, memID, userID string) (Result, error) {
	result := Result{}

	hit, err := o.vectors.Get(ctx, memID)
	if err != nil {
		return nil, err
	}
	flags := models.StoredInFromMetadata(hit.Metadata)

	result[BackendVector] = o.withSemaphore(func() error { return o.vectors.Delete(ctx, memID) })

	var wg sync.WaitGroup
	var mu sync.Mutex
	record := func(backend string, err error) {
		mu.Lock()
		result[backend] = err
		mu.Unlock()
	}
	if flags.Episodic {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(BackendEpisodic, o.withSemaphore(func() error { return o.times.DeleteEpisodicEvent(ctx, memID) }))
		}()
	}
	if flags.Emotional {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(BackendEmotional, o.withSemaphore(func() error { return o.times.DeleteEmotionalState(ctx, memID) }))
		}()
	}
	if flags.Procedural {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(BackendProcedural, o.withSemaphore(func() error { return o.rel.DeleteSkill(ctx, memID) }))
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		record(BackendCache, o.withSemaphore(func() error { return o.cache.DeleteShortTermMemory(ctx, userID, memID) }))
	}()
	wg.Wait()

	return result, nil
}

func (o *Orchestrator) withSemaphore(fn func() error) error {
	o.sem <- struct{}{}
	defer func() { <-o.sem }()
	return fn()
}
