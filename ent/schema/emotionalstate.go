package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// EmotionalState holds the schema definition for the emotional row, keyed
// by (id, timestamp) per spec.md §3.
type EmotionalState struct {
	ent.Schema
}

func (EmotionalState) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("mem_id").
			Immutable(),
		field.String("user_id").
			Immutable(),
		field.Time("timestamp").
			Immutable(),
		field.String("emotional_state"),
		field.Float("valence"),
		field.Float("arousal"),
		field.Float("dominance"),
		field.String("context").
			Optional(),
		field.String("trigger_event").
			Optional(),
		field.Float("intensity"),
		field.Int("duration_minutes").
			Optional(),
	}
}

func (EmotionalState) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("id", "timestamp").
			Unique(),
		index.Fields("user_id", "timestamp"),
	}
}
