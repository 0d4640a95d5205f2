package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// HookConsent is the per-user, per-hook consent record required by C13
// (spec.md §4.10) but not explicitly tabled in spec.md §3.
type HookConsent struct {
	ent.Schema
}

func (HookConsent) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id").Immutable(),
		field.Enum("hook_type").
			Values("email", "calendar").
			Immutable(),
		field.Bool("consented"),
		field.Time("granted_at"),
		field.Time("revoked_at").
			Optional().
			Nillable(),
		field.String("external_account_ref").
			Optional(),
	}
}

func (HookConsent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "hook_type").Unique(),
	}
}
