// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pdiddy/litreview/internal/store"
	"github.com/pdiddy/litreview/pkg/types"
)

// ReviewCreateRequest is the request to create a review session.
type ReviewCreateRequest struct {
	Title            string `json:"title"`
	Domain           string `json:"domain"`
	ResearchQuestion string `json:"research_question"`
}

// ReviewUpdateRequest carries the patchable session fields. Absent fields
// are left unchanged; status and final review are never patchable.
type ReviewUpdateRequest struct {
	Title            *string `json:"title"`
	Domain           *string `json:"domain"`
	ResearchQuestion *string `json:"research_question"`
}

// reviewSummary is a session with its paper and insight counts.
type reviewSummary struct {
	*types.ReviewSession
	PaperCount   int `json:"paper_count"`
	InsightCount int `json:"insight_count"`
}

// CreateReview creates a new review session.
// POST /api/reviews
func (h *Handler) CreateReview(c echo.Context) error {
	ctx := c.Request().Context()

	var req ReviewCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	}

	session, err := h.store.CreateSession(ctx, req.Title, req.Domain, req.ResearchQuestion)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

// ListReviews lists review sessions newest first.
// GET /api/reviews?skip=0&limit=100
func (h *Handler) ListReviews(c echo.Context) error {
	ctx := c.Request().Context()

	skip, _ := strconv.Atoi(c.QueryParam("skip"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	sessions, err := h.store.ListSessions(ctx, skip, limit)
	if err != nil {
		return errorResponse(c, err)
	}

	summaries := make([]reviewSummary, 0, len(sessions))
	for _, s := range sessions {
		papers, err := h.store.CountPapers(ctx, s.ID)
		if err != nil {
			return errorResponse(c, err)
		}
		insights, err := h.store.CountInsights(ctx, s.ID)
		if err != nil {
			return errorResponse(c, err)
		}
		summaries = append(summaries, reviewSummary{ReviewSession: s, PaperCount: papers, InsightCount: insights})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"reviews": summaries,
		"total":   len(summaries),
	})
}

// GetReview returns one review session.
// GET /api/reviews/:id
func (h *Handler) GetReview(c echo.Context) error {
	session, err := h.store.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// UpdateReview patches a session's metadata fields.
// PATCH /api/reviews/:id
func (h *Handler) UpdateReview(c echo.Context) error {
	var req ReviewUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	session, err := h.store.UpdateSession(c.Request().Context(), c.Param("id"), store.SessionFields{
		Title:            req.Title,
		Domain:           req.Domain,
		ResearchQuestion: req.ResearchQuestion,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// DeleteReview removes a session and everything attached to it.
// DELETE /api/reviews/:id
func (h *Handler) DeleteReview(c echo.Context) error {
	if err := h.store.DeleteSession(c.Request().Context(), c.Param("id")); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "review session deleted"})
}
