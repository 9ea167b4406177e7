// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the domain model shared across litreview stages.
package types

import "time"

// ReviewStatus is the lifecycle state of a review session.
type ReviewStatus string

const (
	StatusCreated    ReviewStatus = "created"
	StatusSearching  ReviewStatus = "searching"
	StatusAnalyzing  ReviewStatus = "analyzing"
	StatusGenerating ReviewStatus = "generating"
	StatusCompleted  ReviewStatus = "completed"
	StatusError      ReviewStatus = "error"
)

// Restartable reports whether a new pipeline run may be started from this
// status. A run already in flight (searching/analyzing/generating) owns the
// session's status and step counter exclusively, so a second start is refused.
func (s ReviewStatus) Restartable() bool {
	return s == StatusCreated || s == StatusError || s == StatusCompleted
}

// ReviewSession is one research inquiry: a research question plus every
// paper and insight gathered while answering it.
type ReviewSession struct {
	ID               string       `json:"id" yaml:"id"`
	Title            string       `json:"title" yaml:"title"`
	Domain           string       `json:"domain,omitempty" yaml:"domain,omitempty"`
	ResearchQuestion string       `json:"research_question,omitempty" yaml:"research_question,omitempty"`
	Status           ReviewStatus `json:"status" yaml:"status"`
	FinalReview      string       `json:"final_review,omitempty" yaml:"final_review,omitempty"`
	CreatedAt        time.Time    `json:"created_at" yaml:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" yaml:"updated_at"`
}

// Question returns the research question, falling back to the session title
// when no explicit question was provided.
func (s *ReviewSession) Question() string {
	if s.ResearchQuestion != "" {
		return s.ResearchQuestion
	}
	return s.Title
}

// PaperSource identifies the bibliographic origin of a paper.
type PaperSource string

const (
	SourcePubMed          PaperSource = "pubmed"
	SourceSemanticScholar PaperSource = "semantic_scholar"
)

// Paper is a candidate or accepted source attached to a review session.
// (SessionID, Source, ExternalID) is unique within a session; the pipeline
// enforces this before insertion, not the store.
type Paper struct {
	ID                   string      `json:"id" yaml:"id"`
	SessionID            string      `json:"review_session_id" yaml:"review_session_id"`
	Source               PaperSource `json:"source" yaml:"source"`
	ExternalID           string      `json:"external_id" yaml:"external_id"`
	Title                string      `json:"title" yaml:"title"`
	Authors              []string    `json:"authors" yaml:"authors"`
	Abstract             string      `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	PublicationDate      string      `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`
	DOI                  string      `json:"doi,omitempty" yaml:"doi,omitempty"`
	URL                  string      `json:"url,omitempty" yaml:"url,omitempty"`
	PDFURL               string      `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
	RelevanceScore       *float64    `json:"relevance_score,omitempty" yaml:"relevance_score,omitempty"`
	RelevanceExplanation string      `json:"relevance_explanation,omitempty" yaml:"relevance_explanation,omitempty"`
	KeyFindings          []string    `json:"key_findings" yaml:"key_findings"`
	CreatedAt            time.Time   `json:"created_at" yaml:"created_at"`
}

// Qualifying reports whether the paper cleared the relevance threshold for
// findings extraction and cross-paper synthesis. The threshold is inclusive.
func (p *Paper) Qualifying() bool {
	return p.RelevanceScore != nil && *p.RelevanceScore >= RelevanceThreshold
}

// RelevanceThreshold is the minimum relevance score for a paper to take part
// in findings extraction and cross-paper synthesis.
const RelevanceThreshold = 0.5

// InsightKind classifies one entry in the chain-of-reasoning ledger.
type InsightKind string

const (
	InsightObservation   InsightKind = "observation"
	InsightConnection    InsightKind = "connection"
	InsightTheme         InsightKind = "theme"
	InsightGap           InsightKind = "gap"
	InsightContradiction InsightKind = "contradiction"
	InsightConclusion    InsightKind = "conclusion"
)

// Insight is one append-only entry in a session's reasoning ledger. Step
// numbers are assigned by the pipeline, strictly increasing within a session,
// and never reused. PaperID is empty for cross-paper insights.
type Insight struct {
	ID         string      `json:"id" yaml:"id"`
	SessionID  string      `json:"review_session_id" yaml:"review_session_id"`
	PaperID    string      `json:"paper_id,omitempty" yaml:"paper_id,omitempty"`
	StepNumber int         `json:"step_number" yaml:"step_number"`
	Kind       InsightKind `json:"insight_type" yaml:"insight_type"`
	Content    string      `json:"content" yaml:"content"`
	Reasoning  string      `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	CreatedAt  time.Time   `json:"created_at" yaml:"created_at"`
}
