package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// UserProfile is the summary row. Deleting it cascades to fields, scores
// and sources (spec.md §3 invariant).
type UserProfile struct {
	ent.Schema
}

func (UserProfile) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id").
			Unique().
			Immutable(),
		field.Float("completeness_pct").
			Default(0),
		field.Int("total_fields").
			Default(25),
		field.Int("populated_fields").
			Default(0),
		field.Time("created_at").
			Immutable(),
		field.Time("last_updated"),
	}
}

func (UserProfile) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("fields", ProfileField.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("scores", ProfileConfidenceScore.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("sources", ProfileSource.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// ProfileField is keyed on (user_id, category, field_name).
type ProfileField struct {
	ent.Schema
}

func (ProfileField) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id").Immutable(),
		field.Enum("category").
			Values("basics", "preferences", "goals", "interests", "background").
			Immutable(),
		field.String("field_name").Immutable(),
		field.String("field_value"),
		field.String("value_type"),
	}
}

func (ProfileField) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("profile", UserProfile.Type).
			Ref("fields").
			Field("user_id").
			Unique().
			Required().
			Immutable(),
	}
}

func (ProfileField) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "category", "field_name").Unique(),
	}
}

// ProfileConfidenceScore shares the (user_id, category, field_name) PK
// with ProfileField and carries the computed confidence components
// (spec.md §4.5).
type ProfileConfidenceScore struct {
	ent.Schema
}

func (ProfileConfidenceScore) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id").Immutable(),
		field.Enum("category").
			Values("basics", "preferences", "goals", "interests", "background").
			Immutable(),
		field.String("field_name").Immutable(),
		field.Float("overall_confidence"),
		field.Float("frequency"),
		field.Float("recency"),
		field.Float("explicitness"),
		field.Float("source_diversity"),
		field.Int("mention_count"),
		field.Time("last_mentioned"),
	}
}

func (ProfileConfidenceScore) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("profile", UserProfile.Type).
			Ref("scores").
			Field("user_id").
			Unique().
			Required().
			Immutable(),
	}
}

func (ProfileConfidenceScore) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "category", "field_name").Unique(),
	}
}

// ProfileSource is the audit trail and divisor source for diversity.
type ProfileSource struct {
	ent.Schema
}

func (ProfileSource) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Unique().Immutable(),
		field.String("user_id").Immutable(),
		field.Enum("category").
			Values("basics", "preferences", "goals", "interests", "background").
			Immutable(),
		field.String("field_name").Immutable(),
		field.String("source_memory_id").Optional(),
		field.Enum("source_type").
			Values("explicit", "implicit", "inferred").
			Immutable(),
		field.Time("extracted_at").Immutable(),
	}
}

func (ProfileSource) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("profile", UserProfile.Type).
			Ref("sources").
			Field("user_id").
			Unique().
			Required().
			Immutable(),
	}
}

func (ProfileSource) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "category", "field_name"),
	}
}
