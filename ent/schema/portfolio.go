package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// PortfolioHolding is uniquely keyed by (user_id, ticker) (spec.md §3).
type PortfolioHolding struct {
	ent.Schema
}

func (PortfolioHolding) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id").
			Immutable(),
		field.String("ticker").
			Immutable(),
		field.Float("shares"),
		field.Float("avg_price"),
		field.String("asset_name").
			Optional(),
		field.Time("created_at").
			Immutable(),
		field.Time("updated_at"),
	}
}

func (PortfolioHolding) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "ticker").Unique(),
	}
}

// PortfolioTransaction is an append-only log.
type PortfolioTransaction struct {
	ent.Schema
}

func (PortfolioTransaction) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Unique().Immutable(),
		field.String("user_id").Immutable(),
		field.String("ticker").Immutable(),
		field.Enum("side").Values("buy", "sell").Immutable(),
		field.Float("shares").Immutable(),
		field.Float("price").Immutable(),
		field.Time("timestamp").Immutable(),
	}
}

func (PortfolioTransaction) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "ticker", "timestamp"),
	}
}

// PortfolioSnapshot is a time-partitioned row per (user_id,
// snapshot_timestamp).
type PortfolioSnapshot struct {
	ent.Schema
}

func (PortfolioSnapshot) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id").Immutable(),
		field.Time("snapshot_timestamp").Immutable(),
		field.Float("total_value"),
		field.JSON("holdings", map[string]interface{}{}),
	}
}

func (PortfolioSnapshot) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "snapshot_timestamp").Unique(),
	}
}

// PortfolioPreference holds free-form typed preference rows.
type PortfolioPreference struct {
	ent.Schema
}

func (PortfolioPreference) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id").Immutable(),
		field.String("key").Immutable(),
		field.String("value"),
		field.String("value_type"),
	}
}

func (PortfolioPreference) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "key").Unique(),
	}
}
