// Package config loads and validates every startup-time knob listed in
// spec.md §6. Values load from the environment first, then an optional
// memoryd.yaml overlay is merged on top with mergo — the same two-layer
// pattern tarsy uses for tarsy.yaml (pkg/config/loader.go), scaled down
// to this service's much smaller surface.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/ankitaa186/agentic-memories-sub002/internal/database"
)

// RetrievalWeights are the linear-combination coefficients for the
// ranking formula in spec.md §4.6: w_sem*semantic + w_time*time_decay +
// w_imp*importance + w_emo*emotional_alignment.
type RetrievalWeights struct {
	Semantic  float64 `yaml:"semantic"`
	Time      float64 `yaml:"time"`
	Importance float64 `yaml:"importance"`
	Emotional float64 `yaml:"emotional"`
}

// IngestionConfig controls C8 extraction and dedup behavior.
type IngestionConfig struct {
	DedupCosineThreshold float64       `yaml:"dedup_cosine_threshold"`
	EveryNTurns          int           `yaml:"ingest_every_n_turns"`
	ExtractionTimeout    time.Duration `yaml:"extraction_timeout"`
}

// RetrievalConfig controls C9 ranking and decay.
type RetrievalConfig struct {
	Weights            RetrievalWeights `yaml:"weights"`
	TimeDecayHalfLifeDays float64        `yaml:"time_decay_half_life_days"`
	DefaultTopK         int              `yaml:"default_top_k"`
}

// ConversationConfig controls C10 injection policy and idle GC.
type ConversationConfig struct {
	TurnWindow             int           `yaml:"turn_window"`
	InjectionCooldown      time.Duration `yaml:"injection_cooldown"`
	SemanticOverlapThreshold float64     `yaml:"semantic_overlap_threshold"`
	MaxInjectionsPerTurn   int           `yaml:"max_injections_per_turn"`
	ProfileQuestionCooldown time.Duration `yaml:"profile_question_cooldown"`
	IdleAfter              time.Duration `yaml:"idle_after"`
}

// CompactionConfig controls C11 decay-and-merge scheduling.
type CompactionConfig struct {
	ScheduleUTC       string        `yaml:"schedule_utc"`
	DecayHalfLifeDays float64       `yaml:"decay_half_life_days"`
	DropThreshold     float64       `yaml:"drop_threshold"`
	ClusterCosineMin  float64       `yaml:"cluster_cosine_min"`
	MinClusterSize    int           `yaml:"min_cluster_size_for_llm_merge"`
	DryRun            bool          `yaml:"dry_run"`
}

// IntentsConfig controls C12 caps and the claim/poll cadence.
type IntentsConfig struct {
	MaxActivePerUser      int           `yaml:"max_active_per_user"`
	MinCronIntervalSeconds int          `yaml:"min_cron_interval_seconds"`
	MaxCronFiresPerDay    int           `yaml:"max_cron_fires_per_day"`
	MinIntervalMinutes    int           `yaml:"min_interval_minutes"`
	ClaimTimeout          time.Duration `yaml:"claim_timeout"`
	PollInterval          time.Duration `yaml:"poll_interval"`
}

// CacheConfig controls C6 Redis TTLs.
type CacheConfig struct {
	Addr             string        `yaml:"addr"`
	ShortTermTTL     time.Duration `yaml:"short_term_ttl"`
	ProfileCacheTTL  time.Duration `yaml:"profile_cache_ttl"`
}

// VectorStoreConfig controls C3 client settings.
type VectorStoreConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// GatewayConfig controls C1/C2 provider settings.
type GatewayConfig struct {
	EmbeddingModel    string        `yaml:"embedding_model"`
	ChatModel         string        `yaml:"chat_model"`
	EmbedTimeout      time.Duration `yaml:"embed_timeout"`
	EmbedRetries      int           `yaml:"embed_retries"`
	LLMTimeout        time.Duration `yaml:"llm_timeout"`
	LLMSchemaRetries  int           `yaml:"llm_schema_retries"`
}

// HooksConfig controls C13 outbound poller cadence.
type HooksConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Config is the fully resolved, validated configuration for memoryd.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	Environment string `yaml:"environment"`

	Database     database.Config    `yaml:"-"`
	Ingestion    IngestionConfig    `yaml:"ingestion"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Conversation ConversationConfig `yaml:"conversation"`
	Compaction   CompactionConfig   `yaml:"compaction"`
	Intents      IntentsConfig      `yaml:"intents"`
	Cache        CacheConfig        `yaml:"cache"`
	VectorStore  VectorStoreConfig  `yaml:"vector_store"`
	Gateway      GatewayConfig      `yaml:"gateway"`
	Hooks        HooksConfig        `yaml:"hooks"`
}

// yamlOverlay mirrors Config's yaml-tagged fields for mergo merging;
// Database is intentionally excluded — it loads from the environment
// only (DSN-critical values must fail fast, never silently fall back
// to a YAML default, per spec.md §6).
type yamlOverlay struct {
	HTTPAddr     string             `yaml:"http_addr"`
	Environment  string             `yaml:"environment"`
	Ingestion    IngestionConfig    `yaml:"ingestion"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Conversation ConversationConfig `yaml:"conversation"`
	Compaction   CompactionConfig   `yaml:"compaction"`
	Intents      IntentsConfig      `yaml:"intents"`
	Cache        CacheConfig        `yaml:"cache"`
	VectorStore  VectorStoreConfig  `yaml:"vector_store"`
	Gateway      GatewayConfig      `yaml:"gateway"`
	Hooks        HooksConfig        `yaml:"hooks"`
}

// Default returns the built-in defaults named throughout spec.md §3-§6.
func Default() Config {
	return Config{
		HTTPAddr:    ":8080",
		Environment: "development",
		Ingestion: IngestionConfig{
			DedupCosineThreshold: 0.80,
			EveryNTurns:          4,
			ExtractionTimeout:    30 * time.Second,
		},
		Retrieval: RetrievalConfig{
			Weights: RetrievalWeights{
				Semantic:   0.50,
				Time:       0.20,
				Importance: 0.20,
				Emotional:  0.10,
			},
			TimeDecayHalfLifeDays: 30,
			DefaultTopK:           10,
		},
		Conversation: ConversationConfig{
			TurnWindow:               20,
			InjectionCooldown:        10 * time.Minute,
			SemanticOverlapThreshold: 0.9,
			MaxInjectionsPerTurn:     3,
			ProfileQuestionCooldown:  24 * time.Hour,
			IdleAfter:                24 * time.Hour,
		},
		Compaction: CompactionConfig{
			ScheduleUTC:       "00:00",
			DecayHalfLifeDays: 60,
			DropThreshold:     0.05,
			ClusterCosineMin:  0.88,
			MinClusterSize:    3,
			DryRun:            false,
		},
		Intents: IntentsConfig{
			MaxActivePerUser:       25,
			MinCronIntervalSeconds: 60,
			MaxCronFiresPerDay:     96,
			MinIntervalMinutes:     5,
			ClaimTimeout:           5 * time.Minute,
			PollInterval:           30 * time.Second,
		},
		Cache: CacheConfig{
			Addr:            "localhost:6379",
			ShortTermTTL:    15 * time.Minute,
			ProfileCacheTTL: 300 * time.Second,
		},
		VectorStore: VectorStoreConfig{
			BaseURL:    "http://localhost:8000",
			Collection: "chromadb",
			Timeout:    5 * time.Second,
		},
		Gateway: GatewayConfig{
			EmbeddingModel:   "text-embedding-3-large",
			ChatModel:        "gpt-4o-mini",
			EmbedTimeout:     2 * time.Second,
			EmbedRetries:     1,
			LLMTimeout:       30 * time.Second,
			LLMSchemaRetries: 1,
		},
		Hooks: HooksConfig{
			PollInterval: 1 * time.Minute,
		},
	}
}

// Load builds configuration from the environment, merging an optional
// YAML overlay at overlayPath on top of the built-in defaults (YAML
// values win; unset YAML fields keep their default via mergo, mirroring
// tarsy's loader.go merge step).
func Load(overlayPath string) (Config, error) {
	cfg := Default()

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("load database config: %w", err)
	}
	cfg.Database = dbCfg

	if addr := os.Getenv("CACHE_ADDR"); addr != "" {
		cfg.Cache.Addr = addr
	}
	if addr := os.Getenv("VECTOR_STORE_URL"); addr != "" {
		cfg.VectorStore.BaseURL = addr
	}
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if env := os.Getenv("MEMORYD_ENV"); env != "" {
		cfg.Environment = env
	}
	if dryRun := os.Getenv("COMPACTION_DRY_RUN"); dryRun != "" {
		v, err := strconv.ParseBool(dryRun)
		if err != nil {
			return Config{}, newValidationError("COMPACTION_DRY_RUN", err)
		}
		cfg.Compaction.DryRun = v
	}

	if overlayPath != "" {
		overlay, err := loadOverlay(overlayPath)
		if err != nil {
			return Config{}, err
		}
		merged := yamlOverlay{
			HTTPAddr:     cfg.HTTPAddr,
			Environment:  cfg.Environment,
			Ingestion:    cfg.Ingestion,
			Retrieval:    cfg.Retrieval,
			Conversation: cfg.Conversation,
			Compaction:   cfg.Compaction,
			Intents:      cfg.Intents,
			Cache:        cfg.Cache,
			VectorStore:  cfg.VectorStore,
			Gateway:      cfg.Gateway,
			Hooks:        cfg.Hooks,
		}
		if err := mergo.Merge(&merged, overlay, mergo.WithOverride); err != nil {
			return Config{}, fmt.Errorf("merge yaml overlay: %w", err)
		}
		cfg.HTTPAddr = merged.HTTPAddr
		cfg.Environment = merged.Environment
		cfg.Ingestion = merged.Ingestion
		cfg.Retrieval = merged.Retrieval
		cfg.Conversation = merged.Conversation
		cfg.Compaction = merged.Compaction
		cfg.Intents = merged.Intents
		cfg.Cache = merged.Cache
		cfg.VectorStore = merged.VectorStore
		cfg.Gateway = merged.Gateway
		cfg.Hooks = merged.Hooks
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadOverlay(path string) (yamlOverlay, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return yamlOverlay{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return yamlOverlay{}, fmt.Errorf("read %s: %w", path, err)
	}

	var overlay yamlOverlay
	if err := yaml.Unmarshal(expandEnv(raw), &overlay); err != nil {
		return yamlOverlay{}, fmt.Errorf("%w: %s: %v", ErrInvalidYAML, path, err)
	}
	return overlay, nil
}

func validate(cfg Config) error {
	w := cfg.Retrieval.Weights
	sum := w.Semantic + w.Time + w.Importance + w.Emotional
	if sum < 0.99 || sum > 1.01 {
		return newValidationError("retrieval.weights", fmt.Errorf("must sum to 1.0, got %.3f", sum))
	}
	if cfg.Ingestion.DedupCosineThreshold <= 0 || cfg.Ingestion.DedupCosineThreshold > 1 {
		return newValidationError("ingestion.dedup_cosine_threshold", fmt.Errorf("must be in (0,1]"))
	}
	if cfg.Compaction.ClusterCosineMin <= 0 || cfg.Compaction.ClusterCosineMin > 1 {
		return newValidationError("compaction.cluster_cosine_min", fmt.Errorf("must be in (0,1]"))
	}
	if cfg.Intents.MinCronIntervalSeconds < 60 {
		return newValidationError("intents.min_cron_interval_seconds", fmt.Errorf("must be at least 60"))
	}
	if cfg.Conversation.MaxInjectionsPerTurn < 1 {
		return newValidationError("conversation.max_injections_per_turn", fmt.Errorf("must be at least 1"))
	}
	return nil
}
