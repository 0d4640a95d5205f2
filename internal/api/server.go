// Package api exposes the memory service over HTTP with Echo v5, the
// same framework tarsy's pkg/api wires: one Server struct holding every
// backing service, API routes grouped under the /v1 prefix, a
// mapServiceError boundary translating the apperr taxonomy into status
// codes, and a healthHandler aggregating every backend's reachability.
package api

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/ankitaa186/agentic-memories-sub002/internal/compaction"
	"github.com/ankitaa186/agentic-memories-sub002/internal/conversation"
	"github.com/ankitaa186/agentic-memories-sub002/internal/database"
	"github.com/ankitaa186/agentic-memories-sub002/internal/gateway"
	"github.com/ankitaa186/agentic-memories-sub002/internal/hooks"
	"github.com/ankitaa186/agentic-memories-sub002/internal/ingest"
	"github.com/ankitaa186/agentic-memories-sub002/internal/intents"
	"github.com/ankitaa186/agentic-memories-sub002/internal/orchestrator"
	"github.com/ankitaa186/agentic-memories-sub002/internal/profile"
	"github.com/ankitaa186/agentic-memories-sub002/internal/retrieval"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/cache"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/relstore"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/vectorstore"
)

// Server is the HTTP API server fronting every component of the memory
// service.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	db       *sql.DB
	vectors  *vectorstore.Store
	cache    *cache.Store
	rel      *relstore.Store
	embedder *gateway.Embedder

	pipeline     *ingest.Pipeline
	retriever    *retrieval.Engine
	storage      *orchestrator.Orchestrator
	conversation *conversation.Orchestrator
	profiles     *profile.Service
	intentsSvc   *intents.Service
	compactor    *compaction.Engine
	hooksSvc     *hooks.Service
}

// Deps bundles every wired component NewServer needs. Every field is
// required except Hooks, which is optional (a deployment may run with
// no hook connectors configured).
type Deps struct {
	DB       *sql.DB
	Vectors  *vectorstore.Store
	Cache    *cache.Store
	Rel      *relstore.Store
	Embedder *gateway.Embedder

	Pipeline     *ingest.Pipeline
	Retriever    *retrieval.Engine
	Storage      *orchestrator.Orchestrator
	Conversation *conversation.Orchestrator
	Profiles     *profile.Service
	Intents      *intents.Service
	Compactor    *compaction.Engine
	Hooks        *hooks.Service
}

// NewServer wires every route over the given dependencies.
func NewServer(d Deps) *Server {
	e := echo.New()
	e.Use(securityHeaders())
	e.Use(middleware.BodyLimit(2 * 1024 * 1024))

	s := &Server{
		echo:         e,
		db:           d.DB,
		vectors:      d.Vectors,
		cache:        d.Cache,
		rel:          d.Rel,
		embedder:     d.Embedder,
		pipeline:     d.Pipeline,
		retriever:    d.Retriever,
		storage:      d.Storage,
		conversation: d.Conversation,
		profiles:     d.Profiles,
		intentsSvc:   d.Intents,
		compactor:    d.Compactor,
		hooksSvc:     d.Hooks,
	}

	s.setupRoutes()
	return s
}

// securityHeaders sets the standard hardening headers on every response.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/health/full", s.healthHandler)

	v1 := s.echo.Group("/v1")

	v1.POST("/store", s.storeHandler)
	v1.GET("/retrieve", s.retrieveSimpleHandler)
	v1.POST("/retrieve", s.retrievePersonaHandler)
	v1.POST("/retrieve/structured", s.retrieveStructuredHandler)
	v1.POST("/narrative", s.narrativeHandler)
	v1.POST("/memories/direct", s.directWriteHandler)
	v1.DELETE("/memories/:id", s.deleteMemoryHandler)
	v1.POST("/forget", s.forgetHandler)
	v1.POST("/maintenance", s.maintenanceHandler)
	v1.POST("/maintenance/compact_all", s.compactAllHandler)

	v1.POST("/orchestrator/message", s.orchestratorMessageHandler)
	v1.POST("/orchestrator/retrieve", s.orchestratorRetrieveHandler)
	v1.POST("/orchestrator/transcript", s.orchestratorTranscriptHandler)

	v1.GET("/profile/completeness", s.profileCompletenessHandler)
	v1.GET("/profile/export", s.profileExportHandler)
	v1.GET("/profile/audit", s.profileAuditHandler)
	v1.POST("/profile/import", s.profileImportHandler)
	v1.GET("/profile", s.profileGetHandler)
	v1.DELETE("/profile", s.profileDeleteHandler)
	v1.GET("/profile/:category", s.profileCategoryHandler)
	v1.PUT("/profile/:category/:field", s.profilePutFieldHandler)

	v1.GET("/portfolio/summary", s.portfolioSummaryHandler)
	v1.GET("/portfolio/holding/:ticker", s.portfolioGetHandler)
	v1.POST("/portfolio/holding/:ticker", s.portfolioPostHandler)
	v1.PUT("/portfolio/holding/:ticker", s.portfolioPutHandler)
	v1.DELETE("/portfolio/holding/:ticker", s.portfolioDeleteHandler)

	v1.GET("/intents/pending", s.intentsPendingHandler)
	v1.POST("/intents", s.intentsCreateHandler)
	v1.GET("/intents", s.intentsListHandler)
	v1.GET("/intents/:id", s.intentsGetHandler)
	v1.PUT("/intents/:id", s.intentsUpdateHandler)
	v1.DELETE("/intents/:id", s.intentsDeleteHandler)
	v1.POST("/intents/:id/claim", s.intentsClaimHandler)
	v1.POST("/intents/:id/fire", s.intentsFireHandler)
	v1.GET("/intents/:id/history", s.intentsHistoryHandler)
}

// Start runs the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener runs the HTTP server on a pre-created listener, for
// tests that need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler aggregates every backend's reachability into one
// response (spec.md §6: GET /health, GET /health/full).
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := map[string]HealthCheck{}
	overall := "ok"

	if dbHealth, err := database.Health(reqCtx, s.db); err != nil {
		checks["postgres"] = HealthCheck{Status: "down", Message: err.Error()}
		overall = "down"
	} else {
		checks["postgres"] = HealthCheck{Status: dbHealth.Status}
	}

	if err := s.vectors.EnsureCollection(reqCtx); err != nil {
		checks["vector_store"] = HealthCheck{Status: "down", Message: err.Error()}
		overall = "down"
	} else {
		checks["vector_store"] = HealthCheck{Status: "ok"}
	}

	if err := s.cache.Ping(reqCtx); err != nil {
		checks["cache"] = HealthCheck{Status: "degraded", Message: err.Error()}
		if overall == "ok" {
			overall = "degraded"
		}
	} else {
		checks["cache"] = HealthCheck{Status: "ok"}
	}

	status := http.StatusOK
	if overall == "down" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, HealthResponse{Status: overall, Checks: checks})
}
