// Package models holds the plain Go domain types shared across the
// ingestion, storage, retrieval and conversation layers. These are
// transport/persistence-agnostic; store packages translate to and from
// their own row/document shapes.
package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// NewMemoryID generates spec.md §3's "mem_" + 12 hex chars id.
func NewMemoryID() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return "mem_" + hex.EncodeToString(b)
}

// Layer is the coarse retention tier of a memory.
type Layer string

const (
	LayerShortTerm Layer = "short-term"
	LayerSemantic  Layer = "semantic"
	LayerLongTerm  Layer = "long-term"
)

// MemoryType distinguishes user-stated facts from inferred ones.
type MemoryType string

const (
	TypeExplicit MemoryType = "explicit"
	TypeImplicit MemoryType = "implicit"
)

// MaxContentLength is the hard cap on Memory.Content, enforced at the API
// boundary and again before persistence.
const MaxContentLength = 5000

// MaxPersonaTags is the cap on Memory.PersonaTags.
const MaxPersonaTags = 10

// DefaultImportance and DefaultConfidence are applied when the caller
// does not supply a value.
const (
	DefaultImportance = 0.8
	DefaultConfidence = 0.9
)

// Memory is the logical, immutable memory record. Embedding and the
// stored_in_* flags are populated by the storage orchestrator, not by
// the caller.
type Memory struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Content        string         `json:"content"`
	Layer          Layer          `json:"layer"`
	Type           MemoryType     `json:"type"`
	Importance     float64        `json:"importance"`
	Confidence     float64        `json:"confidence"`
	RelevanceScore float64        `json:"relevance_score"`
	UsageCount     int            `json:"usage_count"`
	PersonaTags    []string       `json:"persona_tags,omitempty"`
	Embedding      []float32      `json:"-"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`

	// Typed side-objects, present only when the source extraction or
	// direct-write payload carried the corresponding fields. The storage
	// orchestrator (C7) inspects these to decide routing; they are never
	// both set and empty in Metadata's stored_in_* flags.
	Episodic   *EpisodicEvent    `json:"episodic,omitempty"`
	Emotional  *EmotionalState   `json:"emotional,omitempty"`
	Procedural *ProceduralSkill  `json:"procedural,omitempty"`
	Portfolio  *PortfolioEventIn `json:"portfolio,omitempty"`
}

// StoredInFlags reads the stored_in_* booleans out of Metadata, defaulting
// every flag to false when absent.
func (m *Memory) StoredInFlags() StoredIn {
	var s StoredIn
	if m.Metadata == nil {
		return s
	}
	if v, ok := m.Metadata["stored_in_episodic"].(bool); ok {
		s.Episodic = v
	}
	if v, ok := m.Metadata["stored_in_emotional"].(bool); ok {
		s.Emotional = v
	}
	if v, ok := m.Metadata["stored_in_procedural"].(bool); ok {
		s.Procedural = v
	}
	if v, ok := m.Metadata["stored_in_portfolio"].(bool); ok {
		s.Portfolio = v
	}
	return s
}

// SetStoredInFlags writes the stored_in_* booleans back into Metadata.
func (m *Memory) SetStoredInFlags(s StoredIn) {
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	m.Metadata["stored_in_episodic"] = s.Episodic
	m.Metadata["stored_in_emotional"] = s.Emotional
	m.Metadata["stored_in_procedural"] = s.Procedural
	m.Metadata["stored_in_portfolio"] = s.Portfolio
}

// StoredInFromMetadata reads the stored_in_* booleans out of a raw
// metadata map, for callers (e.g. the storage orchestrator's delete
// path) that only have the vector store's payload, not a Memory.
func StoredInFromMetadata(metadata map[string]interface{}) StoredIn {
	var s StoredIn
	if metadata == nil {
		return s
	}
	if v, ok := metadata["stored_in_episodic"].(bool); ok {
		s.Episodic = v
	}
	if v, ok := metadata["stored_in_emotional"].(bool); ok {
		s.Emotional = v
	}
	if v, ok := metadata["stored_in_procedural"].(bool); ok {
		s.Procedural = v
	}
	if v, ok := metadata["stored_in_portfolio"].(bool); ok {
		s.Portfolio = v
	}
	return s
}

// StoredIn is the authoritative map of which typed stores hold a shadow
// copy of a memory, used at delete time (spec.md §3 invariant).
type StoredIn struct {
	Episodic   bool
	Emotional  bool
	Procedural bool
	Portfolio  bool
}

// Any reports whether at least one typed store holds a copy.
func (s StoredIn) Any() bool {
	return s.Episodic || s.Emotional || s.Procedural || s.Portfolio
}
