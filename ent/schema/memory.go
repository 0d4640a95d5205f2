package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Memory holds the schema definition for the Memory entity: the
// operational Postgres shadow of the vector-store record (spec.md §3).
// The authoritative embedding lives in the vector store; this row exists
// for structured filtering, joins from typed stores, and debugging.
type Memory struct {
	ent.Schema
}

// Fields of the Memory.
func (Memory) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("mem_id").
			Unique().
			Immutable().
			Comment("mem_ + 12 hex chars, globally unique"),
		field.String("user_id").
			Immutable(),
		field.Text("content"),
		field.Enum("layer").
			Values("short-term", "semantic", "long-term").
			Default("semantic"),
		field.Enum("type").
			Values("explicit", "implicit"),
		field.Float("importance").
			Default(0.8),
		field.Float("confidence").
			Default(0.9),
		field.Float("relevance_score"),
		field.Int("usage_count").
			Default(0),
		field.JSON("persona_tags", []string{}).
			Optional(),
		field.Time("timestamp").
			Default(time.Now),
		field.JSON("metadata", map[string]interface{}{}).
			Optional().
			Comment("carries the stored_in_* routing flags"),
	}
}

// Indexes of the Memory.
func (Memory) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id"),
		index.Fields("user_id", "layer"),
		index.Fields("user_id", "type"),
		index.Fields("user_id", "timestamp"),
	}
}
