package api

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/ankitaa186/agentic-memories-sub002/internal/intents"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
)

func (req IntentRequest) toCreateInput() intents.CreateInput {
	in := intents.CreateInput{
		UserID: req.UserID, IntentName: req.IntentName,
		TriggerType: models.TriggerType(req.TriggerType), TriggerSchedule: req.TriggerSchedule,
		TriggerCondition: req.TriggerCondition, ActionContext: req.ActionContext,
		ActionPriority: req.ActionPriority, MaxExecutions: req.MaxExecutions, CooldownHours: req.CooldownHours,
	}
	if req.ExpiresAt != "" {
		if ts, err := time.Parse(time.RFC3339, req.ExpiresAt); err == nil {
			in.ExpiresAt = &ts
		}
	}
	return in
}

// intentsCreateHandler handles POST /v1/intents.
func (s *Server) intentsCreateHandler(c *echo.Context) error {
	var req IntentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" || req.IntentName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and intent_name are required")
	}
	intent, err := s.intentsSvc.Create(c.Request().Context(), req.toCreateInput())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, IntentResponse{Status: "success", ScheduledIntent: intent})
}

// intentsListHandler handles GET /v1/intents?user_id.
func (s *Server) intentsListHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	list, err := s.intentsSvc.List(c.Request().Context(), userID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, IntentListResponse{Status: "success", Intents: list})
}

// intentsGetHandler handles GET /v1/intents/{id}?user_id.
func (s *Server) intentsGetHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	intent, err := s.intentsSvc.Get(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, IntentResponse{Status: "success", ScheduledIntent: intent})
}

// intentsUpdateHandler handles PUT /v1/intents/{id}.
func (s *Server) intentsUpdateHandler(c *echo.Context) error {
	var req IntentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	intent, err := s.intentsSvc.Update(c.Request().Context(), c.Param("id"), req.UserID, req.toCreateInput())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, IntentResponse{Status: "success", ScheduledIntent: intent})
}

// intentsDeleteHandler handles DELETE /v1/intents/{id}?user_id.
func (s *Server) intentsDeleteHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	if err := s.intentsSvc.Delete(c.Request().Context(), c.Param("id"), userID); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

// intentsPendingHandler handles GET /v1/intents/pending?user_id&limit.
func (s *Server) intentsPendingHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	rows, err := s.intentsSvc.Pending(c.Request().Context(), userID, limit)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "success", "pending": rows})
}

// intentsClaimHandler handles POST /v1/intents/{id}/claim: races with
// other workers for the same due intent (spec.md §8 property 5).
func (s *Server) intentsClaimHandler(c *echo.Context) error {
	intent, err := s.intentsSvc.Claim(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, IntentResponse{Status: "success", ScheduledIntent: intent})
}

// intentsFireHandler handles POST /v1/intents/{id}/fire: runs the
// intent's Executor and advances next_check per spec.md §4.9's table.
func (s *Server) intentsFireHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	intent, err := s.intentsSvc.Get(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return mapServiceError(err)
	}
	fired, err := s.intentsSvc.Fire(c.Request().Context(), intent)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, IntentResponse{Status: "success", ScheduledIntent: fired})
}

// intentsHistoryHandler handles GET /v1/intents/{id}/history.
func (s *Server) intentsHistoryHandler(c *echo.Context) error {
	executions, err := s.intentsSvc.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, IntentHistoryResponse{Status: "success", Executions: executions})
}
