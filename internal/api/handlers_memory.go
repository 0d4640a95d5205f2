package api

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
	"github.com/ankitaa186/agentic-memories-sub002/internal/orchestrator"
	"github.com/ankitaa186/agentic-memories-sub002/internal/store/vectorstore"
)

// storeHandler handles POST /v1/store: extract and store a transcript.
func (s *Server) storeHandler(c *echo.Context) error {
	var req StoreRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	result, err := s.pipeline.Run(c.Request().Context(), req.UserID, req.Transcript)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, StoreResponse{Status: "success", Result: result})
}

// retrieveSimpleHandler handles GET /v1/retrieve: simple retrieval with
// pagination via limit/offset (spec.md §6).
func (s *Server) retrieveSimpleHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	query := c.QueryParam("query")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	limit := 10
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	filter := vectorstore.Filter{UserID: userID, Layer: c.QueryParam("layer"), Type: c.QueryParam("type")}
	hits, err := s.retriever.Simple(c.Request().Context(), userID, query, limit+offset, filter)
	if err != nil {
		return mapServiceError(err)
	}
	if offset >= len(hits) {
		hits = nil
	} else {
		hits = hits[offset:]
	}
	return c.JSON(http.StatusOK, RetrieveResponse{Status: "success", Hits: hits})
}

// retrievePersonaHandler handles POST /v1/retrieve: persona-aware
// retrieval with explainability.
func (s *Server) retrievePersonaHandler(c *echo.Context) error {
	var req PersonaRetrieveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" || req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and query are required")
	}
	topK := orDefaultInt(req.TopK, 10)

	hits, explain, err := s.retriever.PersonaAware(c.Request().Context(), req.UserID, req.Query, req.Persona, topK)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, PersonaRetrieveResponse{Status: "success", Hits: hits, Explainability: explain})
}

// retrieveStructuredHandler handles POST /v1/retrieve/structured:
// categorized retrieval.
func (s *Server) retrieveStructuredHandler(c *echo.Context) error {
	var req StructuredRetrieveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	topK := orDefaultInt(req.TopK, 20)

	hits, _, err := s.retriever.PersonaAware(c.Request().Context(), req.UserID, req.Query, "", topK)
	if err != nil {
		return mapServiceError(err)
	}
	categories, err := s.retriever.Structured(c.Request().Context(), hits)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, StructuredRetrieveResponse{Status: "success", Categories: categories})
}

// narrativeHandler handles POST /v1/narrative: narrative synthesis
// across a time window.
func (s *Server) narrativeHandler(c *echo.Context) error {
	var req NarrativeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	topK := orDefaultInt(req.TopK, 20)

	hits, _, err := s.retriever.PersonaAware(c.Request().Context(), req.UserID, req.Query, "", topK)
	if err != nil {
		return mapServiceError(err)
	}
	summary, err := s.profiles.Summary(c.Request().Context(), req.UserID, 10)
	if err != nil {
		return mapServiceError(err)
	}
	narrative, err := s.retriever.Narrative(c.Request().Context(), hits, summary)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, NarrativeResponse{Status: "success", Narrative: narrative})
}

// directWriteHandler handles POST /v1/memories/direct: embeds content
// itself (no extraction pass) and routes it through the storage
// orchestrator per spec.md §4.3.
func (s *Server) directWriteHandler(c *echo.Context) error {
	var req DirectWriteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" || req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and content are required")
	}
	if len(req.Content) > models.MaxContentLength {
		return mapServiceError(fmtValidation("content", "exceeds max content length"))
	}

	ctx := c.Request().Context()
	vec, err := s.embedder.Embed(ctx, req.Content)
	if err != nil {
		return mapServiceError(err)
	}

	ts := time.Now().UTC()
	if req.Timestamp != "" {
		if parsed, perr := time.Parse(time.RFC3339, req.Timestamp); perr == nil {
			ts = parsed
		}
	}

	mem := &models.Memory{
		ID:          models.NewMemoryID(),
		UserID:      req.UserID,
		Content:     req.Content,
		Layer:       orDefaultLayer(req.Layer),
		Type:        orDefaultType(req.Type),
		Importance:  orDefaultFloat(req.Importance, models.DefaultImportance),
		Confidence:  orDefaultFloat(req.Confidence, models.DefaultConfidence),
		PersonaTags: capTagsLocal(req.PersonaTags, models.MaxPersonaTags),
		Embedding:   vec,
		Timestamp:   ts,
		Metadata: map[string]any{
			"layer": string(orDefaultLayer(req.Layer)),
			"type":  string(orDefaultType(req.Type)),
		},
	}

	writeReq := orchestrator.WriteRequest{Memory: mem, Portfolio: req.Portfolio}
	if req.Episodic != nil || req.EventTimestamp != "" {
		ev := req.Episodic
		if ev == nil {
			ev = &models.EpisodicEvent{}
		}
		ev.ID = mem.ID
		ev.UserID = req.UserID
		ev.Content = req.Content
		if req.EventTimestamp != "" {
			if parsed, perr := time.Parse(time.RFC3339, req.EventTimestamp); perr == nil {
				ev.EventTimestamp = parsed
			}
		}
		if req.Location != "" {
			ev.Location = map[string]any{"name": req.Location}
		}
		if len(req.Participants) > 0 {
			ev.Participants = req.Participants
		}
		writeReq.Episodic = ev
	}
	if req.Emotional != nil {
		req.Emotional.ID = mem.ID
		req.Emotional.UserID = req.UserID
		writeReq.Emotional = req.Emotional
	}
	if req.Procedural != nil {
		req.Procedural.ID = mem.ID
		req.Procedural.UserID = req.UserID
		writeReq.Skill = req.Procedural
	}

	result, err := s.storage.Store(ctx, writeReq)
	if err != nil {
		return mapServiceError(err)
	}

	chromaOK := result[orchestrator.BackendVector] == nil
	return c.JSON(http.StatusOK, DirectWriteResponse{
		Status:   "success",
		MemoryID: mem.ID,
		Storage:  storedInMap(chromaOK, mem.StoredInFlags()),
	})
}

// deleteMemoryHandler handles DELETE /v1/memories/{id}?user_id=…
func (s *Server) deleteMemoryHandler(c *echo.Context) error {
	id := c.Param("id")
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	hit, err := s.vectors.Get(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	if ownerOf(hit.Metadata) != userID {
		return mapServiceError(crossUserErr())
	}

	result, err := s.storage.Delete(c.Request().Context(), id, userID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, DeleteResponse{Status: "success", Deleted: true, Storage: backendBoolMap(result)})
}

// forgetHandler handles POST /v1/forget: bulk delete by filter.
func (s *Server) forgetHandler(c *echo.Context) error {
	var req ForgetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	ctx := c.Request().Context()
	filter := vectorstore.Filter{UserID: req.UserID, Layer: req.Layer, Type: req.Type, Tags: req.Tags}
	hits, err := s.vectors.Scroll(ctx, filter, 10000, false)
	if err != nil {
		return mapServiceError(err)
	}

	count := 0
	for _, h := range hits {
		if _, err := s.storage.Delete(ctx, h.ID, req.UserID); err == nil {
			count++
		}
	}
	return c.JSON(http.StatusOK, ForgetResponse{Status: "success", DeletedCount: count})
}

// maintenanceHandler handles POST /v1/maintenance: run compaction for a
// single user on demand.
func (s *Server) maintenanceHandler(c *echo.Context) error {
	var req MaintenanceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	summary, err := s.compactor.Compact(c.Request().Context(), req.UserID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, MaintenanceResponse{Status: "success", Summary: summary})
}

// compactAllHandler handles POST /v1/maintenance/compact_all: run
// compaction for every user active in the prior day's activity set.
func (s *Server) compactAllHandler(c *echo.Context) error {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	users, err := s.cache.ActiveUsers(c.Request().Context(), yesterday)
	if err != nil {
		return mapServiceError(err)
	}

	var summaries []any
	for _, userID := range users {
		summary, err := s.compactor.Compact(c.Request().Context(), userID)
		if err != nil {
			continue
		}
		summaries = append(summaries, summary)
	}
	return c.JSON(http.StatusOK, CompactAllResponse{Status: "success", Summaries: summaries})
}
