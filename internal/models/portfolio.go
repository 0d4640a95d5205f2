package models

import "time"

// PortfolioHolding is uniquely keyed by (user_id, ticker) (spec.md §3).
type PortfolioHolding struct {
	UserID    string    `json:"user_id"`
	Ticker    string    `json:"ticker"`
	Shares    float64   `json:"shares"`
	AvgPrice  float64   `json:"avg_price"`
	AssetName string    `json:"asset_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PortfolioTransaction is an append-only log row.
type PortfolioTransaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Ticker    string    `json:"ticker"`
	Side      string    `json:"side"` // buy | sell
	Shares    float64   `json:"shares"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// PortfolioSnapshot is a time-partitioned row per (user_id,
// snapshot_timestamp).
type PortfolioSnapshot struct {
	UserID            string          `json:"user_id"`
	SnapshotTimestamp time.Time       `json:"snapshot_timestamp"`
	TotalValue        float64         `json:"total_value"`
	Holdings          map[string]any  `json:"holdings"`
}

// PortfolioPreference is a free-form typed preference row.
type PortfolioPreference struct {
	UserID    string `json:"user_id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	ValueType string `json:"value_type"` // string | number | bool | json
}

// PortfolioEventIn is the portfolio payload a direct-write or extracted
// memory may carry; the storage orchestrator routes it to the holdings/
// transactions sub-tables (spec.md §4.3).
type PortfolioEventIn struct {
	Ticker    string  `json:"ticker"`
	Side      string  `json:"side,omitempty"`
	Shares    float64 `json:"shares"`
	Price     float64 `json:"price,omitempty"`
	AssetName string  `json:"asset_name,omitempty"`
}
