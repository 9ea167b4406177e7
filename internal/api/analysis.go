// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pdiddy/litreview/pkg/types"
)

// AnalysisStartRequest tunes one analysis run. Both fields are optional; the
// query defaults to the session's research question.
type AnalysisStartRequest struct {
	Query     string `json:"query"`
	MaxPapers int    `json:"max_papers"`
}

// StartAnalysis kicks off the analysis pipeline for a session. The run
// proceeds in the background; poll the status endpoint for progress.
// POST /api/analysis/:review_id/start
func (h *Handler) StartAnalysis(c echo.Context) error {
	ctx := c.Request().Context()

	var req AnalysisStartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	session, err := h.runner.Start(ctx, c.Param("review_id"), req.Query, req.MaxPapers)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "analysis started",
		"status":  session.Status,
	})
}

// AnalysisStatus reports a session's analysis progress.
// GET /api/analysis/:review_id/status
func (h *Handler) AnalysisStatus(c echo.Context) error {
	snapshot, err := h.runner.Status(c.Request().Context(), c.Param("review_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

// ListInsights returns a session's reasoning ledger in step order.
// GET /api/analysis/:review_id/insights
func (h *Handler) ListInsights(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("review_id")

	if _, err := h.store.GetSession(ctx, sessionID); err != nil {
		return errorResponse(c, err)
	}

	insights, err := h.store.ListInsights(ctx, sessionID)
	if err != nil {
		return errorResponse(c, err)
	}
	if insights == nil {
		insights = []*types.Insight{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"insights": insights,
		"total":    len(insights),
	})
}

// GenerateReview composes the final literature review in one call.
// POST /api/analysis/:review_id/generate-review
func (h *Handler) GenerateReview(c echo.Context) error {
	text, err := h.runner.Generate(c.Request().Context(), c.Param("review_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"review": text,
		"status": types.StatusCompleted,
	})
}

// GenerateReviewStream composes the review and streams it as plain text,
// flushing each fragment as it arrives.
// GET /api/analysis/:review_id/generate-review-stream
func (h *Handler) GenerateReviewStream(c echo.Context) error {
	resp := c.Response()

	err := h.runner.GenerateStream(c.Request().Context(), c.Param("review_id"), func(fragment string) error {
		if !resp.Committed {
			resp.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
			resp.WriteHeader(http.StatusOK)
		}
		if _, err := resp.Write([]byte(fragment)); err != nil {
			return err
		}
		resp.Flush()
		return nil
	})
	if err != nil {
		// Fragments already sent cannot be retracted; only map the error to
		// a status code when nothing was written yet.
		if !resp.Committed {
			return errorResponse(c, err)
		}
		return err
	}
	return nil
}
