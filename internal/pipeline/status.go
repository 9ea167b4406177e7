// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"

	"github.com/pdiddy/litreview/pkg/types"
)

// StatusSnapshot is a point-in-time projection of a session's analysis
// progress. CurrentStep is derived from the stored state, never stored
// itself.
type StatusSnapshot struct {
	Status            types.ReviewStatus `json:"status"`
	PapersFound       int                `json:"papers_found"`
	PapersAnalyzed    int                `json:"papers_analyzed"`
	InsightsGenerated int                `json:"insights_generated"`
	CurrentStep       string             `json:"current_step"`
}

// Status reports the session's current analysis progress.
func (r *Runner) Status(ctx context.Context, sessionID string) (*StatusSnapshot, error) {
	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	found, err := r.store.CountPapers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	analyzed, err := r.store.CountScoredPapers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	insights, err := r.store.CountInsights(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &StatusSnapshot{
		Status:            session.Status,
		PapersFound:       found,
		PapersAnalyzed:    analyzed,
		InsightsGenerated: insights,
		CurrentStep:       currentStep(session.Status, analyzed, found),
	}, nil
}

func currentStep(status types.ReviewStatus, analyzed, found int) string {
	switch status {
	case types.StatusCreated:
		return "Not started"
	case types.StatusSearching:
		return "Searching for papers..."
	case types.StatusAnalyzing:
		return fmt.Sprintf("Analyzing papers (%d/%d)...", analyzed, found)
	case types.StatusGenerating:
		return "Generating literature review..."
	case types.StatusCompleted:
		return "Analysis complete"
	case types.StatusError:
		return "Error occurred"
	}
	return string(status)
}
