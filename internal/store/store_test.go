// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litreview/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateSession(ctx, "Vitamin D and immunity", "immunology", "Does vitamin D reduce infection risk?")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, types.StatusCreated, created.Status)

	got, err := s.GetSession(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, got.Title)
	assert.Equal(t, created.ResearchQuestion, got.ResearchQuestion)
	assert.Equal(t, "immunology", got.Domain)

	newTitle := "Vitamin D, immunity, and infection"
	updated, err := s.UpdateSession(ctx, created.ID, SessionFields{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, newTitle, updated.Title)
	assert.Equal(t, "immunology", updated.Domain)

	require.NoError(t, s.UpdateSessionStatus(ctx, created.ID, types.StatusSearching))
	require.NoError(t, s.UpdateSessionReview(ctx, created.ID, "## Review\n..."))

	got, err = s.GetSession(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSearching, got.Status)
	assert.Equal(t, "## Review\n...", got.FinalReview)

	require.NoError(t, s.DeleteSession(ctx, created.ID))
	_, err = s.GetSession(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.UpdateSessionStatus(ctx, "missing", types.StatusError), ErrNotFound)
	assert.ErrorIs(t, s.UpdateSessionReview(ctx, "missing", "x"), ErrNotFound)
	assert.ErrorIs(t, s.DeleteSession(ctx, "missing"), ErrNotFound)
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"first", "second", "third"} {
		sess, err := s.CreateSession(ctx, title, "", "")
		require.NoError(t, err)
		ids = append(ids, sess.ID)
		time.Sleep(5 * time.Millisecond)
	}

	sessions, err := s.ListSessions(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, ids[2], sessions[0].ID)
	assert.Equal(t, ids[0], sessions[2].ID)

	page, err := s.ListSessions(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)
}

func TestClaimSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ClaimSession(ctx, "missing", types.StatusSearching)
	assert.ErrorIs(t, err, ErrNotFound)

	sess, err := s.CreateSession(ctx, "T", "", "Q")
	require.NoError(t, err)

	claimed, err := s.ClaimSession(ctx, sess.ID, types.StatusSearching)
	require.NoError(t, err)
	assert.True(t, claimed)

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSearching, got.Status)

	// The session is taken; a second claim loses without mutating it.
	claimed, err = s.ClaimSession(ctx, sess.ID, types.StatusGenerating)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err = s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSearching, got.Status)

	// Terminal statuses are claimable again.
	for _, status := range []types.ReviewStatus{types.StatusError, types.StatusCompleted} {
		require.NoError(t, s.UpdateSessionStatus(ctx, sess.ID, status))
		claimed, err = s.ClaimSession(ctx, sess.ID, types.StatusSearching)
		require.NoError(t, err)
		assert.True(t, claimed, "status %s should be claimable", status)
	}
}

func TestCorruptTimestampSurfacesError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "T", "", "Q")
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `UPDATE sessions SET created_at = 'garbage' WHERE id = ?`, sess.ID)
	require.NoError(t, err)

	_, err = s.GetSession(ctx, sess.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timestamp")
}

func TestPaperLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "T", "", "Q")
	require.NoError(t, err)

	paper, err := s.CreatePaper(ctx, sess.ID, types.SearchResult{
		Source:     types.SourcePubMed,
		ExternalID: "12345",
		Title:      "Vitamin D supplementation",
		Authors:    []string{"Jane Roe", "John Doe"},
		Abstract:   "BACKGROUND: ...",
		DOI:        "10.1/vitd",
	})
	require.NoError(t, err)

	got, err := s.GetPaper(ctx, paper.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.SessionID)
	assert.Equal(t, []string{"Jane Roe", "John Doe"}, got.Authors)
	assert.Nil(t, got.RelevanceScore)
	assert.Empty(t, got.KeyFindings)

	exists, err := s.PaperExists(ctx, sess.ID, types.SourcePubMed, "12345")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.PaperExists(ctx, sess.ID, types.SourceSemanticScholar, "12345")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.UpdatePaperRelevance(ctx, paper.ID, 0.8, "on topic"))
	require.NoError(t, s.UpdatePaperFindings(ctx, paper.ID, []string{"X reduces Y"}))

	got, err = s.GetPaper(ctx, paper.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RelevanceScore)
	assert.Equal(t, 0.8, *got.RelevanceScore)
	assert.Equal(t, "on topic", got.RelevanceExplanation)
	assert.Equal(t, []string{"X reduces Y"}, got.KeyFindings)

	require.NoError(t, s.DeletePaper(ctx, paper.ID))
	_, err = s.GetPaper(ctx, paper.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPapersOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "T", "", "Q")
	require.NoError(t, err)

	add := func(extID string) *types.Paper {
		p, err := s.CreatePaper(ctx, sess.ID, types.SearchResult{
			Source: types.SourcePubMed, ExternalID: extID, Title: extID,
		})
		require.NoError(t, err)
		return p
	}

	low := add("low")
	unscored := add("unscored")
	high := add("high")
	require.NoError(t, s.UpdatePaperRelevance(ctx, low.ID, 0.3, ""))
	require.NoError(t, s.UpdatePaperRelevance(ctx, high.ID, 0.9, ""))

	papers, err := s.ListPapers(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, papers, 3)
	assert.Equal(t, high.ID, papers[0].ID)
	assert.Equal(t, low.ID, papers[1].ID)
	assert.Equal(t, unscored.ID, papers[2].ID)

	qualifying, err := s.ListQualifyingPapers(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, qualifying, 1)
	assert.Equal(t, high.ID, qualifying[0].ID)

	total, err := s.CountPapers(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	scored, err := s.CountScoredPapers(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, scored)
}

func TestQualifyingThresholdInclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "T", "", "Q")
	require.NoError(t, err)
	p, err := s.CreatePaper(ctx, sess.ID, types.SearchResult{
		Source: types.SourcePubMed, ExternalID: "1", Title: "borderline",
	})
	require.NoError(t, err)
	require.NoError(t, s.UpdatePaperRelevance(ctx, p.ID, 0.5, "exactly at threshold"))

	qualifying, err := s.ListQualifyingPapers(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, qualifying, 1)
}

func TestInsightLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "T", "", "Q")
	require.NoError(t, err)

	step, err := s.MaxInsightStep(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, step)

	for i, kind := range []types.InsightKind{types.InsightObservation, types.InsightTheme, types.InsightConclusion} {
		require.NoError(t, s.AppendInsight(ctx, &types.Insight{
			SessionID:  sess.ID,
			StepNumber: i + 1,
			Kind:       kind,
			Content:    "c",
		}))
	}

	insights, err := s.ListInsights(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, insights, 3)
	for i, in := range insights {
		assert.Equal(t, i+1, in.StepNumber)
		assert.NotEmpty(t, in.ID)
	}
	assert.Equal(t, types.InsightConclusion, insights[2].Kind)

	step, err = s.MaxInsightStep(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, step)

	n, err := s.CountInsights(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Step numbers are never reused within a session.
	err = s.AppendInsight(ctx, &types.Insight{
		SessionID: sess.ID, StepNumber: 2, Kind: types.InsightGap, Content: "dup",
	})
	assert.Error(t, err)
}

func TestDeleteSessionCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "T", "", "Q")
	require.NoError(t, err)
	paper, err := s.CreatePaper(ctx, sess.ID, types.SearchResult{
		Source: types.SourcePubMed, ExternalID: "1", Title: "p",
	})
	require.NoError(t, err)
	require.NoError(t, s.AppendInsight(ctx, &types.Insight{
		SessionID: sess.ID, PaperID: paper.ID, StepNumber: 1,
		Kind: types.InsightObservation, Content: "c",
	}))

	require.NoError(t, s.DeleteSession(ctx, sess.ID))

	_, err = s.GetPaper(ctx, paper.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	n, err := s.CountInsights(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
