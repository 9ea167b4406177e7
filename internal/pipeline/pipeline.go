// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates the analysis run for a review session: paper
// search, per-paper relevance scoring and findings extraction, cross-paper
// synthesis, and the append-only insight ledger that records each step.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/internal/source"
	"github.com/pdiddy/litreview/internal/store"
	"github.com/pdiddy/litreview/pkg/types"
)

// ErrNotFound is returned when the referenced session does not exist.
var ErrNotFound = store.ErrNotFound

// ErrRunInProgress is returned when a run or generation already owns the
// session.
var ErrRunInProgress = errors.New("analysis run already in progress")

// ErrNoPapers is returned by review generation when the session has no
// qualifying papers to synthesize.
var ErrNoPapers = errors.New("no qualifying papers to review")

// defaultMaxPapers bounds a search when the caller does not set a limit.
const defaultMaxPapers = 20

// Runner drives the analysis pipeline over one session at a time.
type Runner struct {
	store    *store.Store
	backends []source.Backend
	analyst  *llm.Analyst
	log      io.Writer
}

// NewRunner wires the pipeline's collaborators.
func NewRunner(st *store.Store, backends []source.Backend, analyst *llm.Analyst, log io.Writer) *Runner {
	if log == nil {
		log = io.Discard
	}
	return &Runner{store: st, backends: backends, analyst: analyst, log: log}
}

// Start begins an analysis run for the session. The searching status is
// persisted before this returns; the run itself proceeds in a detached
// goroutine and is not cancelled by the caller's context. A session whose
// status shows a run already in flight is refused without mutation.
func (r *Runner) Start(ctx context.Context, sessionID, query string, maxPapers int) (*types.ReviewSession, error) {
	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if query == "" {
		query = session.Question()
	}
	if maxPapers <= 0 {
		maxPapers = defaultMaxPapers
	}

	// The transition to searching is a single compare-and-swap so concurrent
	// start requests cannot both pass the gate: exactly one caller wins and
	// owns the session's papers and step counter for the run's duration.
	claimed, err := r.store.ClaimSession(ctx, sessionID, types.StatusSearching)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrRunInProgress
	}
	session.Status = types.StatusSearching

	go r.run(context.Background(), sessionID, query, maxPapers)

	return session, nil
}

// run executes the pipeline phases, persisting status=error on any
// phase-fatal fault before logging and exiting.
func (r *Runner) run(ctx context.Context, sessionID, query string, maxPapers int) {
	if err := r.runPhases(ctx, sessionID, query, maxPapers); err != nil {
		if serr := r.store.UpdateSessionStatus(ctx, sessionID, types.StatusError); serr != nil {
			fmt.Fprintf(r.log, "persisting error status for %s: %v\n", sessionID, serr)
		}
		fmt.Fprintf(r.log, "analysis run failed for %s: %v\n", sessionID, err)
	}
}

func (r *Runner) runPhases(ctx context.Context, sessionID, query string, maxPapers int) error {
	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	// Search phase. A failed source is a warning, not a run failure.
	out := source.Search(ctx, r.backends, query, maxPapers, r.log)
	fmt.Fprintf(r.log, "search %q: %d unique results (%d duplicates removed)\n",
		query, len(out.Results), out.DupsRemoved)

	for _, result := range out.Results {
		exists, err := r.store.PaperExists(ctx, sessionID, result.Source, result.ExternalID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := r.store.CreatePaper(ctx, sessionID, result); err != nil {
			return err
		}
	}

	if err := r.store.UpdateSessionStatus(ctx, sessionID, types.StatusAnalyzing); err != nil {
		return err
	}

	steps, err := r.newStepCounter(ctx, sessionID)
	if err != nil {
		return err
	}

	papers, err := r.store.ListPapers(ctx, sessionID)
	if err != nil {
		return err
	}

	// Analysis phase, strictly sequential so the ledger reads as a single
	// chain of reasoning.
	for _, paper := range papers {
		if paper.Abstract == "" {
			fmt.Fprintf(r.log, "skipping %q: no abstract\n", paper.Title)
			continue
		}
		if err := r.analyzePaper(ctx, session, paper, steps); err != nil {
			return err
		}
	}

	if err := r.synthesize(ctx, session, steps); err != nil {
		return err
	}

	return r.store.UpdateSessionStatus(ctx, sessionID, types.StatusCompleted)
}

// analyzePaper scores one paper and, when it qualifies, extracts its findings.
// Each result is recorded as an observation insight.
func (r *Runner) analyzePaper(ctx context.Context, session *types.ReviewSession, paper *types.Paper, steps *stepCounter) error {
	relevance, err := r.analyst.ScoreRelevance(ctx, paper.Title, paper.Abstract, session.Question(), session.Domain)
	if err != nil {
		return fmt.Errorf("scoring %q: %w", paper.Title, err)
	}

	if err := r.store.UpdatePaperRelevance(ctx, paper.ID, relevance.Score, relevance.Explanation); err != nil {
		return err
	}

	err = r.store.AppendInsight(ctx, &types.Insight{
		SessionID:  session.ID,
		PaperID:    paper.ID,
		StepNumber: steps.next(),
		Kind:       types.InsightObservation,
		Content:    fmt.Sprintf("Relevance: %.2f - %s", relevance.Score, relevance.Explanation),
		Reasoning: fmt.Sprintf("Evaluated '%s' against research question. Key aspects: %s",
			paper.Title, strings.Join(relevance.KeyAspects, ", ")),
	})
	if err != nil {
		return err
	}

	if relevance.Score < types.RelevanceThreshold {
		return nil
	}

	findings, err := r.analyst.ExtractFindings(ctx, paper.Title, paper.Abstract, session.Question(), session.Domain)
	if err != nil {
		return fmt.Errorf("extracting findings from %q: %w", paper.Title, err)
	}

	claims := make([]string, 0, len(findings.Findings))
	for _, f := range findings.Findings {
		claims = append(claims, f.Claim)
	}
	if err := r.store.UpdatePaperFindings(ctx, paper.ID, claims); err != nil {
		return err
	}

	for _, f := range findings.Findings {
		err := r.store.AppendInsight(ctx, &types.Insight{
			SessionID:  session.ID,
			PaperID:    paper.ID,
			StepNumber: steps.next(),
			Kind:       types.InsightObservation,
			Content:    f.Claim,
			Reasoning:  fmt.Sprintf("Evidence: %s. Limitations: %s", f.Evidence, f.Limitations),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// synthesize runs the cross-paper analysis over every qualifying paper and
// appends theme, gap, and contradiction insights in that order. A session
// with no qualifying papers skips synthesis entirely.
func (r *Runner) synthesize(ctx context.Context, session *types.ReviewSession, steps *stepCounter) error {
	qualifying, err := r.store.ListQualifyingPapers(ctx, session.ID)
	if err != nil {
		return err
	}
	if len(qualifying) == 0 {
		fmt.Fprintf(r.log, "no qualifying papers for %s, skipping synthesis\n", session.ID)
		return nil
	}

	result, err := r.analyst.Synthesize(ctx, summarizePapers(qualifying), session.Question(), session.Domain)
	if err != nil {
		return fmt.Errorf("synthesizing: %w", err)
	}
	if !result.Parsed {
		fmt.Fprintf(r.log, "synthesis response for %s was unstructured, no cross-paper insights recorded\n", session.ID)
		return nil
	}

	for _, theme := range result.Themes {
		err := r.store.AppendInsight(ctx, &types.Insight{
			SessionID:  session.ID,
			StepNumber: steps.next(),
			Kind:       types.InsightTheme,
			Content:    theme.Theme,
			Reasoning:  theme.Reasoning,
		})
		if err != nil {
			return err
		}
	}
	for _, gap := range result.Gaps {
		err := r.store.AppendInsight(ctx, &types.Insight{
			SessionID:  session.ID,
			StepNumber: steps.next(),
			Kind:       types.InsightGap,
			Content:    gap.Gap,
			Reasoning:  gap.Reasoning,
		})
		if err != nil {
			return err
		}
	}
	for _, c := range result.Contradictions {
		err := r.store.AppendInsight(ctx, &types.Insight{
			SessionID:  session.ID,
			StepNumber: steps.next(),
			Kind:       types.InsightContradiction,
			Content:    c.Topic,
			Reasoning:  fmt.Sprintf("Positions: %v. %s", c.Positions, c.Reasoning),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// stepCounter hands out ledger step numbers, continuing from the session's
// previous maximum so numbers are never reused across re-runs.
type stepCounter struct {
	n int
}

func (r *Runner) newStepCounter(ctx context.Context, sessionID string) (*stepCounter, error) {
	max, err := r.store.MaxInsightStep(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &stepCounter{n: max}, nil
}

func (c *stepCounter) next() int {
	c.n++
	return c.n
}

// summarizePapers renders the qualifying papers as the text block the
// synthesis and review prompts consume.
func summarizePapers(papers []*types.Paper) string {
	var b strings.Builder
	for i, p := range papers {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Paper: %s\n", p.Title)
		if len(p.Authors) > 0 {
			fmt.Fprintf(&b, "Authors: %s\n", strings.Join(p.Authors, ", "))
		}
		if p.PublicationDate != "" {
			fmt.Fprintf(&b, "Published: %s\n", p.PublicationDate)
		}
		if len(p.KeyFindings) > 0 {
			fmt.Fprintf(&b, "Key findings: %s", strings.Join(p.KeyFindings, "; "))
		} else {
			fmt.Fprintf(&b, "Abstract: %s", p.Abstract)
		}
	}
	return b.String()
}
