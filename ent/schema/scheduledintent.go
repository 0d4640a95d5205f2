package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ScheduledIntent holds the schema definition for a proactive trigger
// (spec.md §3). next_check is null iff enabled=false; claimed_at is set
// by a successful claim and cleared by fire.
type ScheduledIntent struct {
	ent.Schema
}

func (ScheduledIntent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("intent_id").
			Unique().
			Immutable(),
		field.String("user_id").
			Immutable(),
		field.String("intent_name"),
		field.Enum("trigger_type").
			Values("cron", "interval", "once", "price", "silence", "event", "calendar", "news").
			Immutable(),
		field.JSON("trigger_schedule", map[string]interface{}{}).
			Optional(),
		field.JSON("trigger_condition", map[string]interface{}{}).
			Optional(),
		field.Text("action_context").
			Optional(),
		field.Int("action_priority").
			Default(0),
		field.Bool("enabled").
			Default(true),
		field.Time("expires_at").
			Optional().
			Nillable(),
		field.Int("max_executions").
			Optional(),
		field.Int("execution_count").
			Default(0),
		field.Time("next_check").
			Optional().
			Nillable(),
		field.Time("last_checked").
			Optional().
			Nillable(),
		field.Time("last_executed").
			Optional().
			Nillable(),
		field.String("last_execution_status").
			Optional(),
		field.String("last_message_id").
			Optional(),
		field.Time("claimed_at").
			Optional().
			Nillable(),
		field.Time("last_condition_fire_at").
			Optional().
			Nillable(),
		field.Int("cooldown_hours").
			Default(0),
		field.Time("created_at").
			Immutable(),
	}
}

func (ScheduledIntent) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("executions", IntentExecution.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

func (ScheduledIntent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id"),
		index.Fields("user_id", "enabled"),
		index.Fields("enabled", "next_check"),
	}
}

// IntentExecution is an append-only audit row per fire attempt.
type IntentExecution struct {
	ent.Schema
}

func (IntentExecution) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Unique().Immutable(),
		field.String("intent_id").Immutable(),
		field.Time("started_at").Immutable(),
		field.Time("finished_at").Immutable(),
		field.String("status").Immutable(),
		field.String("gate_result").Optional(),
		field.String("error").Optional(),
	}
}

func (IntentExecution) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("intent", ScheduledIntent.Type).
			Ref("executions").
			Field("intent_id").
			Unique().
			Required().
			Immutable(),
	}
}

func (IntentExecution) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("intent_id", "started_at"),
	}
}
