// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pdiddy/litreview/internal/source"
	"github.com/pdiddy/litreview/pkg/types"
)

// PaperSearchRequest is an ad-hoc multi-source search. Nothing is persisted.
type PaperSearchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// SearchPapers searches all configured sources and returns the deduplicated
// results.
// POST /api/papers/search
func (h *Handler) SearchPapers(c echo.Context) error {
	ctx := c.Request().Context()

	var req PaperSearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "query is required"})
	}
	limit := req.MaxResults
	if limit <= 0 {
		limit = h.maxResults
	}

	out := source.Search(ctx, h.backends, req.Query, limit, c.Echo().Logger.Output())

	results := out.Results
	if results == nil {
		results = []types.SearchResult{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"results":            results,
		"total":              len(results),
		"duplicates_removed": out.DupsRemoved,
		"source_errors":      out.SourceErrors,
	})
}

// AddPaper attaches a search result to a session.
// POST /api/papers/:review_id/add
func (h *Handler) AddPaper(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("review_id")

	var req types.SearchResult
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Source == "" || req.ExternalID == "" || req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "source, external_id, and title are required"})
	}

	if _, err := h.store.GetSession(ctx, sessionID); err != nil {
		return errorResponse(c, err)
	}

	exists, err := h.store.PaperExists(ctx, sessionID, req.Source, req.ExternalID)
	if err != nil {
		return errorResponse(c, err)
	}
	if exists {
		return c.JSON(http.StatusConflict, map[string]string{"error": "paper already added to this review"})
	}

	paper, err := h.store.CreatePaper(ctx, sessionID, req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, paper)
}

// ListPapers returns a session's papers, most relevant first.
// GET /api/papers/:review_id/list
func (h *Handler) ListPapers(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("review_id")

	if _, err := h.store.GetSession(ctx, sessionID); err != nil {
		return errorResponse(c, err)
	}

	papers, err := h.store.ListPapers(ctx, sessionID)
	if err != nil {
		return errorResponse(c, err)
	}
	if papers == nil {
		papers = []*types.Paper{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"papers": papers,
		"total":  len(papers),
	})
}

// DeletePaper removes one paper from a session.
// DELETE /api/papers/:review_id/papers/:paper_id
func (h *Handler) DeletePaper(c echo.Context) error {
	ctx := c.Request().Context()

	paper, err := h.store.GetPaper(ctx, c.Param("paper_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if paper.SessionID != c.Param("review_id") {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	}

	if err := h.store.DeletePaper(ctx, paper.ID); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "paper removed"})
}
