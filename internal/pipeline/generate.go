// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/pkg/types"
)

// Generate composes the final literature review in one batch call. On
// success the review text is persisted, the session moves to completed, and
// a conclusion insight is appended. On failure the session moves to error
// and no partial text is persisted.
func (r *Runner) Generate(ctx context.Context, sessionID string) (string, error) {
	input, themes, papers, err := r.prepareReview(ctx, sessionID)
	if err != nil {
		return "", err
	}

	text, err := r.analyst.ComposeReview(ctx, *input)
	if err != nil {
		return "", r.failGeneration(ctx, sessionID, err)
	}

	if err := r.finishReview(ctx, sessionID, text, themes, papers); err != nil {
		return "", err
	}
	return text, nil
}

// GenerateStream composes the review as a stream, forwarding each fragment
// to emit as it arrives. The concatenation of all fragments is persisted on
// normal exhaustion; a stream fault moves the session to error and fragments
// already forwarded are not retracted.
func (r *Runner) GenerateStream(ctx context.Context, sessionID string, emit func(fragment string) error) error {
	input, themes, papers, err := r.prepareReview(ctx, sessionID)
	if err != nil {
		return err
	}

	var full strings.Builder
	err = r.analyst.ComposeReviewStream(ctx, *input, func(fragment string) error {
		full.WriteString(fragment)
		return emit(fragment)
	})
	if err != nil {
		return r.failGeneration(ctx, sessionID, err)
	}

	return r.finishReview(ctx, sessionID, full.String(), themes, papers)
}

// prepareReview gates the session, moves it to generating, and assembles the
// prompt input from the qualifying papers and the ledger.
func (r *Runner) prepareReview(ctx context.Context, sessionID string) (*llm.ReviewInput, int, int, error) {
	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, 0, 0, err
	}

	qualifying, err := r.store.ListQualifyingPapers(ctx, sessionID)
	if err != nil {
		return nil, 0, 0, err
	}
	if len(qualifying) == 0 {
		return nil, 0, 0, ErrNoPapers
	}

	insights, err := r.store.ListInsights(ctx, sessionID)
	if err != nil {
		return nil, 0, 0, err
	}

	// Same compare-and-swap as the run gate: only one caller may move the
	// session into generating.
	claimed, err := r.store.ClaimSession(ctx, sessionID, types.StatusGenerating)
	if err != nil {
		return nil, 0, 0, err
	}
	if !claimed {
		return nil, 0, 0, ErrRunInProgress
	}

	var themes, gaps, contradictions, consensus []string
	for _, in := range insights {
		switch in.Kind {
		case types.InsightTheme:
			themes = append(themes, fmt.Sprintf("- %s (%s)", in.Content, in.Reasoning))
		case types.InsightGap:
			gaps = append(gaps, fmt.Sprintf("- %s (%s)", in.Content, in.Reasoning))
		case types.InsightContradiction:
			contradictions = append(contradictions, fmt.Sprintf("- %s (%s)", in.Content, in.Reasoning))
		case types.InsightObservation:
			// Paper-less observations are cross-paper agreement notes.
			if in.PaperID == "" {
				consensus = append(consensus, "- "+in.Content)
			}
		}
	}

	input := &llm.ReviewInput{
		Question:       session.Question(),
		Domain:         session.Domain,
		PapersSummary:  summarizePapers(qualifying),
		Themes:         joinOrNone(themes),
		Gaps:           joinOrNone(gaps),
		Consensus:      joinOrNone(consensus),
		Contradictions: joinOrNone(contradictions),
	}
	return input, len(themes), len(qualifying), nil
}

// finishReview persists the review text, completes the session, and appends
// the conclusion insight.
func (r *Runner) finishReview(ctx context.Context, sessionID, text string, themes, papers int) error {
	if err := r.store.UpdateSessionReview(ctx, sessionID, text); err != nil {
		return err
	}
	if err := r.store.UpdateSessionStatus(ctx, sessionID, types.StatusCompleted); err != nil {
		return err
	}

	steps, err := r.newStepCounter(ctx, sessionID)
	if err != nil {
		return err
	}
	return r.store.AppendInsight(ctx, &types.Insight{
		SessionID:  sessionID,
		StepNumber: steps.next(),
		Kind:       types.InsightConclusion,
		Content:    "Literature review generated successfully",
		Reasoning: fmt.Sprintf("Synthesized %d papers into a comprehensive review covering %d themes.",
			papers, themes),
	})
}

// failGeneration moves the session to error, keeping the original fault as
// the returned error.
func (r *Runner) failGeneration(ctx context.Context, sessionID string, cause error) error {
	if serr := r.store.UpdateSessionStatus(ctx, sessionID, types.StatusError); serr != nil {
		fmt.Fprintf(r.log, "persisting error status for %s: %v\n", sessionID, serr)
	}
	return fmt.Errorf("generating review: %w", cause)
}

func joinOrNone(lines []string) string {
	if len(lines) == 0 {
		return "None identified."
	}
	return strings.Join(lines, "\n")
}
