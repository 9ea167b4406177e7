// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/internal/pipeline"
	"github.com/pdiddy/litreview/internal/source"
	"github.com/pdiddy/litreview/internal/store"
	"github.com/pdiddy/litreview/pkg/types"
)

type scriptedLLM struct {
	relevance string
	findings  string
	synthesis string
	review    string
	chunks    []string
}

func (s *scriptedLLM) Complete(_ context.Context, _, prompt string, _ int) (string, error) {
	switch {
	case strings.Contains(prompt, "evaluate the relevance"):
		return s.relevance, nil
	case strings.Contains(prompt, "extracting key findings"):
		return s.findings, nil
	case strings.Contains(prompt, "synthesizing findings across multiple papers"):
		return s.synthesis, nil
	default:
		return s.review, nil
	}
}

func (s *scriptedLLM) Stream(_ context.Context, _, _ string, _ int, emit func(string) error) error {
	for _, c := range s.chunks {
		if err := emit(c); err != nil {
			return err
		}
	}
	return nil
}

type stubBackend struct {
	results []types.SearchResult
}

func (b *stubBackend) Name() string { return "pubmed" }

func (b *stubBackend) Search(context.Context, string, int) ([]types.SearchResult, error) {
	return b.results, nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	st, err := store.Open(types.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	backends := []source.Backend{&stubBackend{results: []types.SearchResult{
		{Source: types.SourcePubMed, ExternalID: "1", Title: "P1", Abstract: "A1", DOI: "10.1/a"},
	}}}
	script := &scriptedLLM{
		relevance: `{"relevance_score": 0.9, "explanation": "on topic", "key_aspects": ["method"]}`,
		findings:  `{"key_findings": [{"finding": "X", "evidence": "E", "limitations": "L"}]}`,
		synthesis: `{"themes": [{"theme": "T", "reasoning": "R"}], "gaps": [], "contradictions": []}`,
		review:    "## Review",
		chunks:    []string{"## Review\n", "body"},
	}
	runner := pipeline.NewRunner(st, backends, llm.NewAnalyst(script), nil)
	return NewHandler(st, runner, backends, 20, "0.1.0")
}

func doJSON(t *testing.T, h func(echo.Context) error, method, path, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) >= 2 {
		names := make([]string, 0, len(params)/2)
		values := make([]string, 0, len(params)/2)
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestCreateReviewValidation(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.CreateReview, http.MethodPost, "/api/reviews", `{"domain":"immunology"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateAndGetReview(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h.CreateReview, http.MethodPost, "/api/reviews",
		`{"title":"T","domain":"D","research_question":"Q"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var created types.ReviewSession
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if created.ID == "" || created.Status != types.StatusCreated {
		t.Fatalf("unexpected session: %+v", created)
	}

	rec = doJSON(t, h.GetReview, http.MethodGet, "/api/reviews/"+created.ID, "", "id", created.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, h.GetReview, http.MethodGet, "/api/reviews/missing", "", "id", "missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateReviewNeverTouchesStatusOrReview(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	sess, err := h.store.CreateSession(ctx, "T", "", "Q")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := h.store.UpdateSessionStatus(ctx, sess.ID, types.StatusCompleted); err != nil {
		t.Fatalf("UpdateSessionStatus failed: %v", err)
	}
	if err := h.store.UpdateSessionReview(ctx, sess.ID, "final text"); err != nil {
		t.Fatalf("UpdateSessionReview failed: %v", err)
	}

	rec := doJSON(t, h.UpdateReview, http.MethodPatch, "/api/reviews/"+sess.ID,
		`{"title":"New title"}`, "id", sess.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	got, err := h.store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Title != "New title" || got.ResearchQuestion != "Q" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.Status != types.StatusCompleted || got.FinalReview != "final text" {
		t.Fatalf("patch touched status or review: %+v", got)
	}
}

func TestSearchPapers(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h.SearchPapers, http.MethodPost, "/api/papers/search", `{"query":"vitamin d"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Results []types.SearchResult `json:"results"`
		Total   int                  `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Total != 1 || resp.Results[0].Title != "P1" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	rec = doJSON(t, h.SearchPapers, http.MethodPost, "/api/papers/search", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d", rec.Code)
	}
}

func TestAddPaperDuplicateConflict(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	sess, err := h.store.CreateSession(ctx, "T", "", "Q")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	body := `{"source":"pubmed","external_id":"42","title":"P"}`
	rec := doJSON(t, h.AddPaper, http.MethodPost, "/api/papers/x/add", body, "review_id", sess.ID)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h.AddPaper, http.MethodPost, "/api/papers/x/add", body, "review_id", sess.ID)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, h.AddPaper, http.MethodPost, "/api/papers/x/add", body, "review_id", "missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeletePaperWrongSession(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	sess, err := h.store.CreateSession(ctx, "T", "", "Q")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	other, err := h.store.CreateSession(ctx, "Other", "", "Q")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	paper, err := h.store.CreatePaper(ctx, sess.ID, types.SearchResult{
		Source: types.SourcePubMed, ExternalID: "1", Title: "P",
	})
	if err != nil {
		t.Fatalf("CreatePaper failed: %v", err)
	}

	rec := doJSON(t, h.DeletePaper, http.MethodDelete, "/x", "", "review_id", other.ID, "paper_id", paper.ID)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, h.DeletePaper, http.MethodDelete, "/x", "", "review_id", sess.ID, "paper_id", paper.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStartAnalysisRefusals(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	rec := doJSON(t, h.StartAnalysis, http.MethodPost, "/x", `{}`, "review_id", "missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	sess, err := h.store.CreateSession(ctx, "T", "", "Q")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := h.store.UpdateSessionStatus(ctx, sess.ID, types.StatusSearching); err != nil {
		t.Fatalf("UpdateSessionStatus failed: %v", err)
	}

	rec = doJSON(t, h.StartAnalysis, http.MethodPost, "/x", `{}`, "review_id", sess.ID)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 while run in progress, got %d", rec.Code)
	}
}

func TestStartAnalysisRunsToCompletion(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	sess, err := h.store.CreateSession(ctx, "T", "", "Q")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	rec := doJSON(t, h.StartAnalysis, http.MethodPost, "/x", `{}`, "review_id", sess.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := h.store.GetSession(ctx, sess.ID)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if got.Status == types.StatusCompleted || got.Status == types.StatusError {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = doJSON(t, h.AnalysisStatus, http.MethodGet, "/x", "", "review_id", sess.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap pipeline.StatusSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.Status != types.StatusCompleted || snap.PapersFound != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.CurrentStep != "Analysis complete" {
		t.Fatalf("unexpected step: %q", snap.CurrentStep)
	}

	rec = doJSON(t, h.ListInsights, http.MethodGet, "/x", "", "review_id", sess.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var insights struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &insights); err != nil {
		t.Fatalf("decoding insights: %v", err)
	}
	if insights.Total != 3 {
		t.Fatalf("expected 3 insights, got %d", insights.Total)
	}
}

func TestGenerateReviewNoPapers(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	sess, err := h.store.CreateSession(ctx, "T", "", "Q")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	rec := doJSON(t, h.GenerateReview, http.MethodPost, "/x", "", "review_id", sess.ID)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGenerateReviewStream(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	sess, err := h.store.CreateSession(ctx, "T", "", "Q")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	paper, err := h.store.CreatePaper(ctx, sess.ID, types.SearchResult{
		Source: types.SourcePubMed, ExternalID: "1", Title: "P", Abstract: "A",
	})
	if err != nil {
		t.Fatalf("CreatePaper failed: %v", err)
	}
	if err := h.store.UpdatePaperRelevance(ctx, paper.ID, 0.9, "on topic"); err != nil {
		t.Fatalf("UpdatePaperRelevance failed: %v", err)
	}

	rec := doJSON(t, h.GenerateReviewStream, http.MethodGet, "/x", "", "review_id", sess.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "## Review\nbody" {
		t.Fatalf("unexpected body: %q", got)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type: %q", ct)
	}

	got, err := h.store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != types.StatusCompleted || got.FinalReview != "## Review\nbody" {
		t.Fatalf("unexpected session after stream: %+v", got)
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.Health, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
