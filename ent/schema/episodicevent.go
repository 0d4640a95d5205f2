package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// EpisodicEvent holds the schema definition for the episodic row, keyed
// by (id, event_timestamp) per spec.md §3.
type EpisodicEvent struct {
	ent.Schema
}

func (EpisodicEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("mem_id").
			Immutable(),
		field.String("user_id").
			Immutable(),
		field.Time("event_timestamp").
			Immutable().
			Comment("partition key"),
		field.String("event_type").
			Optional(),
		field.Text("content"),
		field.JSON("location", map[string]interface{}{}).
			Optional(),
		field.JSON("participants", []string{}).
			Optional(),
		field.Float("emotional_valence").
			Default(0),
		field.Float("emotional_arousal").
			Default(0),
		field.Float("importance_score").
			Default(0.5),
		field.JSON("tags", []string{}).
			Optional(),
		field.JSON("metadata", map[string]interface{}{}).
			Optional(),
	}
}

func (EpisodicEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("id", "event_timestamp").
			Unique(),
		index.Fields("user_id", "event_timestamp"),
	}
}
