package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/brain"
	"github.com/khanglvm/smartfix/internal/learning"
	"github.com/khanglvm/smartfix/internal/models"
	"github.com/khanglvm/smartfix/internal/search"
	"github.com/khanglvm/smartfix/internal/storage"
)

// TextQueryRequest is the request body for POST /api/v1/query/text.
type TextQueryRequest struct {
	Text           string `json:"text"`
	DeviceCategory string `json:"device_category"`
}

// LogQueryRequest is the request body for POST /api/v1/query/log.
type LogQueryRequest struct {
	Text           string `json:"text"`
	LogContent     string `json:"log_content"`
	DeviceCategory string `json:"device_category"`
}

// FeedbackRequest is the request body for POST /api/v1/brain/feedback.
type FeedbackRequest struct {
	QueryID string `json:"query_id"`
	Success *bool  `json:"success"`
	Score   *int   `json:"score"`
}

// SearchResponse is the response body for GET /api/v1/brain/search.
type SearchResponse struct {
	Query   string                 `json:"query"`
	Results []models.ProblemRecord `json:"results"`
}

// RelatedResponse is the response body for GET /api/v1/brain/related.
type RelatedResponse struct {
	Query   string                 `json:"query"`
	Results []search.RelatedResult `json:"results"`
}

// AddSolutionResponse is the response body for POST /api/v1/brain/solutions.
type AddSolutionResponse struct {
	ID int64 `json:"id"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleTextQuery(c echo.Context) error {
	var req TextQueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}

	resp := s.engine.Process(c.Request().Context(), models.Input{
		Type:           models.InputText,
		Text:           req.Text,
		DeviceCategory: req.DeviceCategory,
	})
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLogQuery(c echo.Context) error {
	var req LogQueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.LogContent) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "log_content field is required")
	}

	resp := s.engine.Process(c.Request().Context(), models.Input{
		Type:           models.InputLog,
		Text:           req.Text,
		LogContent:     req.LogContent,
		DeviceCategory: req.DeviceCategory,
	})
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleImageQuery(c echo.Context) error {
	return s.handleUpload(c, models.InputImage, "image")
}

func (s *Server) handleVoiceQuery(c echo.Context) error {
	return s.handleUpload(c, models.InputVoice, "audio")
}

// handleUpload processes a multipart query carrying a file in field plus
// optional text and device_category form values.
func (s *Server) handleUpload(c echo.Context, inputType, field string) error {
	file, err := c.FormFile(field)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, field+" file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable "+field+" file")
	}
	defer src.Close()

	payload, err := io.ReadAll(io.LimitReader(src, maxUploadSize))
	if err != nil {
		s.logger.Warn("failed to read upload", zap.String("field", field), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable "+field+" file")
	}

	resp := s.engine.Process(c.Request().Context(), models.Input{
		Type:           inputType,
		Text:           c.FormValue("text"),
		Payload:        payload,
		Filename:       file.Filename,
		DeviceCategory: c.FormValue("device_category"),
	})
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSearch(c echo.Context) error {
	q := c.QueryParam("q")
	results, err := s.engine.Search(c.Request().Context(), q, c.QueryParam("device_category"))
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}
	return c.JSON(http.StatusOK, SearchResponse{Query: q, Results: results})
}

func (s *Server) handleRelated(c echo.Context) error {
	q := c.QueryParam("q")
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	results, err := s.engine.Related(q, c.QueryParam("device_category"), limit)
	if err != nil {
		s.logger.Error("related lookup failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "related lookup failed")
	}
	return c.JSON(http.StatusOK, RelatedResponse{Query: q, Results: results})
}

func (s *Server) handleFeedback(c echo.Context) error {
	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.QueryID) == "" || req.Success == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "query_id and success fields are required")
	}

	result, err := s.engine.SubmitFeedback(c.Request().Context(), req.QueryID, *req.Success, req.Score)
	switch {
	case errors.Is(err, learning.ErrFeedbackRecorded):
		return c.JSON(http.StatusConflict, result)
	case errors.Is(err, learning.ErrInvalidScore):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Error("feedback failed", zap.String("query_id", req.QueryID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "feedback failed")
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleAddSolution(c echo.Context) error {
	var req brain.RecordInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	id, err := s.engine.AddRecord(c.Request().Context(), req.Record())
	if errors.Is(err, storage.ErrInvalidRecord) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		s.logger.Error("add solution failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store solution")
	}
	return c.JSON(http.StatusCreated, AddSolutionResponse{ID: id})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.engine.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "stats unavailable")
	}
	return c.JSON(http.StatusOK, stats)
}
