// Command memoryd runs the personal memory service: the HTTP API plus
// every background loop (compaction, scheduled intents, hook polling).
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ankitaa186/agentic-memories-sub002/internal/api"
	"github.com/ankitaa186/agentic-memories-sub002/internal/compaction"
	"github.com/ankitaa186/agentic-memories-sub002/internal/config"
	"github.com/ankitaa186/agentic-memories-sub002/internal/conversation"
	"github.com/ankitaa186/agentic-memories-sub002/internal/database"
	"github.com/ankitaa186/agentic-memories-sub002/internal/gateway"
	"github.com/ankitaa186/agentic-memories-sub002/internal/hooks"
	"github.com/ankitaa186/agentic-memories-sub002/internal/ingest"
	"github.com/ankitaa186/agentic-memories-sub002/internal/intents"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
	"github.com/ankitaa186/agentic-memories-sub002/internal/orchestrator"
	"github.com/ankitaa186/agentic-memories-sub002/internal/profile"
	"github.com/ankitaa186/agentic-memories-sub002/internal/retrieval"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/cache"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/relstore"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/timestore"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/vectorstore"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// loggingExecutor is a minimal intents.Executor: it records that an
// intent fired and reports success without delivering anything
// anywhere. Real action delivery (sending the message a scheduled
// intent describes) is outside this service's scope; wiring a concrete
// channel is left to whatever consumes IntentExecution rows.
type loggingExecutor struct{}

func (loggingExecutor) Execute(_ context.Context, intent models.ScheduledIntent) (models.ExecutionStatus, string, error) {
	log.Printf("intent fired: id=%s user=%s name=%s", intent.ID, intent.UserID, intent.IntentName)
	return models.ExecSuccess, "", nil
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	overlayPath := getEnv("MEMORYD_CONFIG", filepath.Join(*configDir, "memoryd.yaml"))
	if _, err := os.Stat(overlayPath); err != nil {
		overlayPath = ""
	}

	cfg, err := config.Load(overlayPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("starting memoryd (env=%s, addr=%s)", cfg.Environment, cfg.HTTPAddr)

	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey == "" {
		log.Fatalf("OPENAI_API_KEY is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	vectors := vectorstore.New(cfg.VectorStore.BaseURL, cfg.VectorStore.Collection, cfg.VectorStore.Timeout)
	if err := vectors.EnsureCollection(ctx); err != nil {
		log.Fatalf("ensure vector collection: %v", err)
	}

	memCache := cache.New(cfg.Cache.Addr, cfg.Cache.ShortTermTTL, cfg.Cache.ProfileCacheTTL)
	if err := memCache.Ping(ctx); err != nil {
		log.Fatalf("connect cache: %v", err)
	}
	defer memCache.Close()

	rel := relstore.New(db)
	times := timestore.New(db)

	embedder := gateway.NewEmbedder(openaiKey, cfg.Gateway.EmbeddingModel, cfg.Gateway.EmbedTimeout, cfg.Gateway.EmbedRetries)
	llm := gateway.NewLLM(openaiKey, cfg.Gateway.ChatModel, cfg.Gateway.LLMTimeout, cfg.Gateway.LLMSchemaRetries)

	storage := orchestrator.New(vectors, times, rel, memCache)

	weights := retrieval.Weights{
		Semantic:   cfg.Retrieval.Weights.Semantic,
		Time:       cfg.Retrieval.Weights.Time,
		Importance: cfg.Retrieval.Weights.Importance,
		Emotional:  cfg.Retrieval.Weights.Emotional,
	}
	retriever := retrieval.New(vectors, times, rel, embedder, llm, weights, cfg.Retrieval.TimeDecayHalfLifeDays, cfg.Retrieval.DefaultTopK)

	profiles := profile.New(rel, memCache)

	pipeline := ingest.New(embedder, llm, vectors, retriever, storage, profiles, cfg.Ingestion.DedupCosineThreshold, cfg.Ingestion.ExtractionTimeout)

	convCfg := conversation.Config{
		TurnWindow:               cfg.Conversation.TurnWindow,
		InjectionCooldown:        cfg.Conversation.InjectionCooldown,
		SemanticOverlapThreshold: cfg.Conversation.SemanticOverlapThreshold,
		MaxInjectionsPerTurn:     cfg.Conversation.MaxInjectionsPerTurn,
		ProfileQuestionCooldown:  cfg.Conversation.ProfileQuestionCooldown,
		IdleAfter:                cfg.Conversation.IdleAfter,
		IngestEveryNTurns:        cfg.Ingestion.EveryNTurns,
	}
	convo := conversation.New(retriever, pipeline, profiles, convCfg)
	defer convo.Stop()

	intentsCfg := intents.Config{
		MaxActivePerUser:       cfg.Intents.MaxActivePerUser,
		MinCronIntervalSeconds: cfg.Intents.MinCronIntervalSeconds,
		MaxCronFiresPerDay:     cfg.Intents.MaxCronFiresPerDay,
		MinIntervalMinutes:     cfg.Intents.MinIntervalMinutes,
		ClaimTimeout:           cfg.Intents.ClaimTimeout,
		PollInterval:           cfg.Intents.PollInterval,
	}
	intentsSvc := intents.New(rel, intentsCfg, loggingExecutor{})
	intentsSvc.Start(ctx)
	defer intentsSvc.Stop()

	compactionCfg := compaction.Config{
		ScheduleUTC:       cfg.Compaction.ScheduleUTC,
		DecayHalfLifeDays: cfg.Compaction.DecayHalfLifeDays,
		DropThreshold:     cfg.Compaction.DropThreshold,
		ClusterCosineMin:  cfg.Compaction.ClusterCosineMin,
		MinClusterSize:    cfg.Compaction.MinClusterSize,
		DryRun:            cfg.Compaction.DryRun,
	}
	compactor := compaction.New(vectors, storage, embedder, llm, memCache, compactionCfg)
	compactor.Start(ctx)
	defer compactor.Stop()

	var connectors []hooks.Connector
	if base := os.Getenv("HOOKS_EMAIL_BASE_URL"); base != "" {
		connectors = append(connectors, hooks.NewEmailConnector(base, 10*time.Second))
	}
	if base := os.Getenv("HOOKS_CALENDAR_BASE_URL"); base != "" {
		connectors = append(connectors, hooks.NewCalendarConnector(base, 10*time.Second))
	}
	hooksSvc := hooks.New(rel, pipeline, hooks.Config{PollInterval: cfg.Hooks.PollInterval}, connectors...)
	hooksSvc.Start(ctx)
	defer hooksSvc.Stop()

	server := api.NewServer(api.Deps{
		DB: db, Vectors: vectors, Cache: memCache, Rel: rel, Embedder: embedder,
		Pipeline: pipeline, Retriever: retriever, Storage: storage, Conversation: convo,
		Profiles: profiles, Intents: intentsSvc, Compactor: compactor, Hooks: hooksSvc,
	})

	go func() {
		if err := server.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
