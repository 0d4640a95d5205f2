package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/ankitaa186/agentic-memories-sub002/internal/conversation"
)

// orchestratorMessageHandler handles POST /v1/orchestrator/message: runs
// one conversation turn through C10 and returns its injections.
func (s *Server) orchestratorMessageHandler(c *echo.Context) error {
	var req OrchestratorMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ConversationID == "" || req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation_id and user_id are required")
	}
	if req.Turn.Timestamp.IsZero() {
		req.Turn.Timestamp = time.Now().UTC()
	}

	result, err := s.conversation.HandleTurn(c.Request().Context(), req.ConversationID, req.UserID, req.Turn)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, OrchestratorMessageResponse{Status: "success", TurnResult: result})
}

// orchestratorRetrieveHandler handles POST /v1/orchestrator/retrieve:
// query-only retrieval outside the conversation turn lifecycle.
func (s *Server) orchestratorRetrieveHandler(c *echo.Context) error {
	var req OrchestratorRetrieveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" || req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and query are required")
	}
	topK := orDefaultInt(req.TopK, 10)

	hits, explain, err := s.retriever.PersonaAware(c.Request().Context(), req.UserID, req.Query, "", topK)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, PersonaRetrieveResponse{Status: "success", Hits: hits, Explainability: explain})
}

// orchestratorTranscriptHandler handles POST /v1/orchestrator/transcript:
// replays a full transcript turn-by-turn through the same actor HandleTurn
// uses, one HandleTurn call per turn in order.
func (s *Server) orchestratorTranscriptHandler(c *echo.Context) error {
	var req OrchestratorTranscriptRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ConversationID == "" || req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation_id and user_id are required")
	}

	ctx := c.Request().Context()
	results := make([]conversation.TurnResult, 0, len(req.Transcript))
	for _, turn := range req.Transcript {
		t := turn
		if t.Timestamp.IsZero() {
			t.Timestamp = time.Now().UTC()
		}
		result, err := s.conversation.HandleTurn(ctx, req.ConversationID, req.UserID, t)
		if err != nil {
			return mapServiceError(err)
		}
		results = append(results, result)
	}
	return c.JSON(http.StatusOK, OrchestratorTranscriptResponse{Status: "success", Results: results})
}
