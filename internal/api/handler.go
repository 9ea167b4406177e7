// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api provides the HTTP handlers for the litreview service.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pdiddy/litreview/internal/pipeline"
	"github.com/pdiddy/litreview/internal/source"
	"github.com/pdiddy/litreview/internal/store"
)

// Handler handles HTTP requests.
type Handler struct {
	store      *store.Store
	runner     *pipeline.Runner
	backends   []source.Backend
	maxResults int
	version    string
}

// NewHandler creates a new handler.
func NewHandler(st *store.Store, runner *pipeline.Runner, backends []source.Backend, maxResults int, version string) *Handler {
	if maxResults <= 0 {
		maxResults = 20
	}
	return &Handler{
		store:      st,
		runner:     runner,
		backends:   backends,
		maxResults: maxResults,
		version:    version,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/reviews", h.CreateReview)
	e.GET("/api/reviews", h.ListReviews)
	e.GET("/api/reviews/:id", h.GetReview)
	e.PATCH("/api/reviews/:id", h.UpdateReview)
	e.DELETE("/api/reviews/:id", h.DeleteReview)

	e.POST("/api/papers/search", h.SearchPapers)
	e.POST("/api/papers/:review_id/add", h.AddPaper)
	e.GET("/api/papers/:review_id/list", h.ListPapers)
	e.DELETE("/api/papers/:review_id/papers/:paper_id", h.DeletePaper)

	e.POST("/api/analysis/:review_id/start", h.StartAnalysis)
	e.GET("/api/analysis/:review_id/status", h.AnalysisStatus)
	e.GET("/api/analysis/:review_id/insights", h.ListInsights)
	e.POST("/api/analysis/:review_id/generate-review", h.GenerateReview)
	e.GET("/api/analysis/:review_id/generate-review-stream", h.GenerateReviewStream)

	e.GET("/", h.Root)
	e.GET("/health", h.Health)
}

// Root describes the service.
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Literature Review Assistant API",
		"version": h.version,
	})
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.version,
	})
}

// errorResponse maps domain errors to HTTP status codes.
func errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, pipeline.ErrRunInProgress):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "analysis run already in progress"})
	case errors.Is(err, pipeline.ErrNoPapers):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "no qualifying papers to review"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
