package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ProceduralSkill holds the schema definition for the procedural row,
// keyed by id per spec.md §3.
type ProceduralSkill struct {
	ent.Schema
}

func (ProceduralSkill) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("mem_id").
			Unique().
			Immutable(),
		field.String("user_id").
			Immutable(),
		field.String("skill_name"),
		field.Enum("proficiency_level").
			Values("beginner", "intermediate", "advanced", "expert"),
		field.JSON("prerequisites", []string{}).
			Optional().
			Comment("relationship data as arrays, not a graph store (spec.md §9)"),
		field.Int("practice_count").
			Default(0),
		field.Float("success_rate").
			Default(0),
		field.Time("last_practiced").
			Optional().
			Nillable(),
	}
}

func (ProceduralSkill) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("progressions", SkillProgression.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

func (ProceduralSkill) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "skill_name"),
	}
}

// SkillProgression holds the append-only level-transition log.
type SkillProgression struct {
	ent.Schema
}

func (SkillProgression) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("skill_id").
			Immutable(),
		field.Enum("from_level").
			Values("beginner", "intermediate", "advanced", "expert"),
		field.Enum("to_level").
			Values("beginner", "intermediate", "advanced", "expert"),
		field.Time("timestamp").
			Immutable(),
		field.String("note").
			Optional(),
	}
}

func (SkillProgression) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("skill", ProceduralSkill.Type).
			Ref("progressions").
			Field("skill_id").
			Unique().
			Required().
			Immutable(),
	}
}
