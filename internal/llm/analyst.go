// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Per-request completion budgets. Synthesis and review requests cover many
// papers and need more room than single-paper scoring.
const (
	maxTokensScore     = 2000
	maxTokensFindings  = 2000
	maxTokensSynthesis = 4000
	maxTokensReview    = 6000
)

// Completer is the completion transport the Analyst talks to. *Client
// implements it; tests substitute a scripted fake.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
	Stream(ctx context.Context, system, prompt string, maxTokens int, emit func(fragment string) error) error
}

// Analyst shapes the four analysis request kinds and applies the
// parse-or-fallback policy: a transport fault is returned as an error, but a
// response that fails structured parsing degrades to a typed fallback with
// Parsed=false and never fails the caller.
type Analyst struct {
	llm Completer
}

// NewAnalyst wraps a completion transport.
func NewAnalyst(llm Completer) *Analyst {
	return &Analyst{llm: llm}
}

// paperContext carries the per-paper prompt fields.
type paperContext struct {
	Title    string
	Abstract string
	Question string
	Domain   string
}

// RelevanceResult is a paper's scored relevance to the research question.
type RelevanceResult struct {
	Score       float64  `json:"relevance_score"`
	Explanation string   `json:"explanation"`
	KeyAspects  []string `json:"key_aspects"`

	// Parsed is false when the model response failed structured parsing and
	// the fallback (score 0.5, explanation = raw text) was applied.
	Parsed bool `json:"-"`
}

// ScoreRelevance asks the model to score one paper. Returns an error only
// for transport faults.
func (a *Analyst) ScoreRelevance(ctx context.Context, title, abstract, question, domain string) (RelevanceResult, error) {
	prompt, err := renderPrompt(relevancePromptTmpl, paperContext{
		Title: title, Abstract: abstract, Question: question, Domain: domain,
	})
	if err != nil {
		return RelevanceResult{}, err
	}

	raw, err := a.llm.Complete(ctx, systemPrompt, prompt, maxTokensScore)
	if err != nil {
		return RelevanceResult{}, err
	}

	var result RelevanceResult
	if err := json.Unmarshal(stripFences(raw), &result); err != nil {
		return RelevanceResult{Score: 0.5, Explanation: raw}, nil
	}
	result.Score = clamp01(result.Score)
	result.Parsed = true
	return result, nil
}

// Finding is one extracted claim with its supporting evidence and stated
// limitations.
type Finding struct {
	Claim       string `json:"finding"`
	Evidence    string `json:"evidence"`
	Limitations string `json:"limitations"`
}

// FindingsResult is the structured extraction output for one paper.
type FindingsResult struct {
	Findings    []Finding `json:"key_findings"`
	Methodology string    `json:"methodology"`
	SampleSize  string    `json:"sample_size"`
	Reasoning   string    `json:"reasoning"`

	// Parsed is false when the fallback (no findings, reasoning = raw text)
	// was applied.
	Parsed bool `json:"-"`
}

// ExtractFindings asks the model for structured findings from one paper.
func (a *Analyst) ExtractFindings(ctx context.Context, title, abstract, question, domain string) (FindingsResult, error) {
	prompt, err := renderPrompt(findingsPromptTmpl, paperContext{
		Title: title, Abstract: abstract, Question: question, Domain: domain,
	})
	if err != nil {
		return FindingsResult{}, err
	}

	raw, err := a.llm.Complete(ctx, systemPrompt, prompt, maxTokensFindings)
	if err != nil {
		return FindingsResult{}, err
	}

	var result FindingsResult
	if err := json.Unmarshal(stripFences(raw), &result); err != nil {
		return FindingsResult{Reasoning: raw}, nil
	}
	result.Parsed = true
	return result, nil
}

// Theme is one cross-paper theme.
type Theme struct {
	Theme            string   `json:"theme"`
	SupportingPapers []string `json:"supporting_papers"`
	Reasoning        string   `json:"reasoning"`
}

// Contradiction is one cross-paper disagreement with its conflicting positions.
type Contradiction struct {
	Topic     string   `json:"topic"`
	Positions []string `json:"positions"`
	Papers    []string `json:"papers"`
	Reasoning string   `json:"reasoning"`
}

// Gap is one identified research gap.
type Gap struct {
	Gap       string `json:"gap"`
	Reasoning string `json:"reasoning"`
}

// ConsensusPoint is one area of agreement across papers.
type ConsensusPoint struct {
	Finding  string   `json:"finding"`
	Papers   []string `json:"papers"`
	Strength string   `json:"strength"`
}

// SynthesisResult carries the four cross-paper analysis lists.
type SynthesisResult struct {
	Themes         []Theme          `json:"themes"`
	Contradictions []Contradiction  `json:"contradictions"`
	Gaps           []Gap            `json:"gaps"`
	Consensus      []ConsensusPoint `json:"consensus"`

	// Raw holds the unparseable response text when Parsed is false; all four
	// lists are empty in that case.
	Raw    string `json:"-"`
	Parsed bool   `json:"-"`
}

// Synthesize asks the model for a cross-paper analysis over the summary of
// every qualifying paper.
func (a *Analyst) Synthesize(ctx context.Context, papersSummary, question, domain string) (SynthesisResult, error) {
	prompt, err := renderPrompt(synthesisPromptTmpl, struct {
		PapersSummary, Question, Domain string
	}{papersSummary, question, domain})
	if err != nil {
		return SynthesisResult{}, err
	}

	raw, err := a.llm.Complete(ctx, systemPrompt, prompt, maxTokensSynthesis)
	if err != nil {
		return SynthesisResult{}, err
	}

	var result SynthesisResult
	if err := json.Unmarshal(stripFences(raw), &result); err != nil {
		return SynthesisResult{Raw: raw}, nil
	}
	result.Parsed = true
	return result, nil
}

// ReviewInput carries the pre-rendered text blocks for review composition.
type ReviewInput struct {
	Question       string
	Domain         string
	PapersSummary  string
	Themes         string
	Gaps           string
	Consensus      string
	Contradictions string
}

// ComposeReview asks the model for the complete review text in one call.
func (a *Analyst) ComposeReview(ctx context.Context, input ReviewInput) (string, error) {
	prompt, err := renderPrompt(reviewPromptTmpl, input)
	if err != nil {
		return "", err
	}
	return a.llm.Complete(ctx, systemPrompt, prompt, maxTokensReview)
}

// ComposeReviewStream asks the model for the review as an ordered sequence of
// text fragments, forwarding each to emit as it arrives.
func (a *Analyst) ComposeReviewStream(ctx context.Context, input ReviewInput, emit func(fragment string) error) error {
	prompt, err := renderPrompt(reviewPromptTmpl, input)
	if err != nil {
		return err
	}
	return a.llm.Stream(ctx, systemPrompt, prompt, maxTokensReview, emit)
}

// stripFences removes a wrapping Markdown code fence (``` or ```json) that
// models often add around JSON output.
func stripFences(raw string) []byte {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return []byte(strings.TrimSpace(s))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
