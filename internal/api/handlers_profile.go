package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
)

// profileGetHandler handles GET /v1/profile?user_id: the complete
// profile snapshot (fields + confidence scores).
func (s *Server) profileGetHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	snap, err := s.profiles.Snapshot(c.Request().Context(), userID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, ProfileResponse{
		Status: "success", UserProfile: snap.Profile, Fields: snap.Fields, Confidence: snap.Confidence,
	})
}

// profileCategoryHandler handles GET /v1/profile/{category}?user_id:
// one category's fields.
func (s *Server) profileCategoryHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	category := models.ProfileCategory(c.Param("category"))

	snap, err := s.profiles.Snapshot(c.Request().Context(), userID)
	if err != nil {
		return mapServiceError(err)
	}
	fields := map[models.ProfileCategory][]models.ProfileField{}
	if fs, ok := snap.Fields[category]; ok {
		fields[category] = fs
	}
	return c.JSON(http.StatusOK, ProfileResponse{Status: "success", UserProfile: snap.Profile, Fields: fields})
}

// profilePutFieldHandler handles PUT /v1/profile/{category}/{field}: a
// manual edit, which sets confidence=100 by definition (spec.md §4.5).
func (s *Server) profilePutFieldHandler(c *echo.Context) error {
	var req ProfileFieldPutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	category := models.ProfileCategory(c.Param("category"))
	field := c.Param("field")

	update := models.ProfileUpdate{
		Category: category, FieldName: field, FieldValue: req.FieldValue,
		ValueType: orDefaultString(req.ValueType, "string"), Confidence: 100,
		SourceType: models.SourceExplicit, ManualOverride: true,
	}
	profile, err := s.profiles.UpsertFields(c.Request().Context(), req.UserID, []models.ProfileUpdate{update})
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, ProfileResponse{Status: "success", UserProfile: profile})
}

// profileDeleteHandler handles DELETE /v1/profile?user_id: wipes every
// field and source row.
func (s *Server) profileDeleteHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	if err := s.profiles.Delete(c.Request().Context(), userID); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

// profileCompletenessHandler handles GET /v1/profile/completeness?user_id.
func (s *Server) profileCompletenessHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	snap, err := s.profiles.Snapshot(c.Request().Context(), userID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, ProfileCompletenessResponse{
		Status: "success", CompletenessPct: snap.Profile.CompletenessPct,
		TotalFields: snap.Profile.TotalFields, PopulatedFields: snap.Profile.PopulatedFields,
	})
}

// profileImportHandler handles POST /v1/profile/import: bulk field
// upsert, e.g. from a prior export.
func (s *Server) profileImportHandler(c *echo.Context) error {
	var req ProfileImportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	profile, err := s.profiles.UpsertFields(c.Request().Context(), req.UserID, req.Updates)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, ProfileResponse{Status: "success", UserProfile: profile})
}

// profileExportHandler handles GET /v1/profile/export?user_id: the same
// snapshot shape as profileGetHandler, kept as a distinct route per
// spec.md §6 so import/export can diverge later (e.g. export adding a
// version header) without touching the plain read path.
func (s *Server) profileExportHandler(c *echo.Context) error {
	return s.profileGetHandler(c)
}

// profileAuditHandler handles GET /v1/profile/audit?user_id: the full
// source trail backing every field value.
func (s *Server) profileAuditHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	sources, err := s.profiles.Audit(c.Request().Context(), userID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, AuditResponse{Status: "success", Sources: sources})
}

func orDefaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
