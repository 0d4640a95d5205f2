package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
)

// portfolioSummaryHandler handles GET /v1/portfolio/summary?user_id.
func (s *Server) portfolioSummaryHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	holdings, err := s.rel.HoldingsByUser(c.Request().Context(), userID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, PortfolioSummaryResponse{Status: "success", Holdings: holdings})
}

// portfolioGetHandler handles GET /v1/portfolio/holding/{ticker}?user_id.
func (s *Server) portfolioGetHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	h, err := s.rel.Holding(c.Request().Context(), userID, c.Param("ticker"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, HoldingResponse{Status: "success", PortfolioHolding: h})
}

// portfolioPostHandler handles POST /v1/portfolio/holding/{ticker}:
// create or apply a buy against a position.
func (s *Server) portfolioPostHandler(c *echo.Context) error {
	var req HoldingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	ticker := c.Param("ticker")
	now := time.Now().UTC()

	h := models.PortfolioHolding{
		UserID: req.UserID, Ticker: ticker, Shares: req.Shares, AvgPrice: req.AvgPrice,
		AssetName: req.AssetName, CreatedAt: now, UpdatedAt: now,
	}
	if err := s.rel.UpsertHolding(c.Request().Context(), h); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, HoldingResponse{Status: "success", PortfolioHolding: h})
}

// portfolioPutHandler handles PUT /v1/portfolio/holding/{ticker}:
// replaces the position's shares/avg_price outright.
func (s *Server) portfolioPutHandler(c *echo.Context) error {
	return s.portfolioPostHandler(c)
}

// portfolioDeleteHandler handles DELETE /v1/portfolio/holding/{ticker}?user_id.
func (s *Server) portfolioDeleteHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	if err := s.rel.DeleteHolding(c.Request().Context(), userID, c.Param("ticker")); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}
