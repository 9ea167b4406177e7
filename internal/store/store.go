// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists review sessions, papers, and the insight ledger in
// a SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/litreview/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the litreview SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at cfg.Path and creates the
// schema if it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = "litreview.db"
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			domain TEXT,
			research_question TEXT,
			status TEXT NOT NULL,
			final_review TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			source TEXT NOT NULL,
			external_id TEXT NOT NULL,
			title TEXT NOT NULL,
			authors TEXT,
			abstract TEXT,
			publication_date TEXT,
			doi TEXT,
			url TEXT,
			pdf_url TEXT,
			relevance_score REAL,
			relevance_explanation TEXT,
			key_findings TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_session_id ON papers(session_id)`,
		`CREATE TABLE IF NOT EXISTS insights (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			paper_id TEXT,
			step_number INTEGER NOT NULL,
			insight_type TEXT NOT NULL,
			content TEXT NOT NULL,
			reasoning TEXT,
			created_at TEXT NOT NULL,
			UNIQUE(session_id, step_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_insights_session_id ON insights(session_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// CreateSession inserts a new review session in status created and returns
// it with its generated ID and timestamps filled in.
func (s *Store) CreateSession(ctx context.Context, title, domain, question string) (*types.ReviewSession, error) {
	now := time.Now().UTC()
	session := &types.ReviewSession{
		ID:               uuid.NewString(),
		Title:            title,
		Domain:           domain,
		ResearchQuestion: question,
		Status:           types.StatusCreated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, domain, research_question, status, final_review, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '', ?, ?)`,
		session.ID, session.Title, session.Domain, session.ResearchQuestion,
		string(session.Status), formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return session, nil
}

// GetSession returns one session by ID, or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*types.ReviewSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, domain, research_question, status, final_review, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ListSessions returns sessions newest-first, skipping skip rows and
// returning at most limit.
func (s *Store) ListSessions(ctx context.Context, skip, limit int) ([]*types.ReviewSession, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, domain, research_question, status, final_review, created_at, updated_at
		 FROM sessions ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.ReviewSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// SessionFields holds the updatable metadata fields of a session. Nil
// pointers leave the stored value unchanged.
type SessionFields struct {
	Title            *string
	Domain           *string
	ResearchQuestion *string
}

// UpdateSession applies the non-nil fields and bumps updated_at.
func (s *Store) UpdateSession(ctx context.Context, id string, fields SessionFields) (*types.ReviewSession, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if fields.Title != nil {
		session.Title = *fields.Title
	}
	if fields.Domain != nil {
		session.Domain = *fields.Domain
	}
	if fields.ResearchQuestion != nil {
		session.ResearchQuestion = *fields.ResearchQuestion
	}
	session.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, domain = ?, research_question = ?, updated_at = ? WHERE id = ?`,
		session.Title, session.Domain, session.ResearchQuestion, formatTime(session.UpdatedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}
	return session, nil
}

// ClaimSession atomically moves a session into status, but only when its
// current status permits a new run (see ReviewStatus.Restartable). The
// single UPDATE is the compare-and-swap that keeps concurrent claimers from
// both winning. Reports whether this caller won; a missing session returns
// ErrNotFound.
func (s *Store) ClaimSession(ctx context.Context, id string, status types.ReviewStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?, ?)`,
		string(status), formatTime(time.Now().UTC()), id,
		string(types.StatusCreated), string(types.StatusError), string(types.StatusCompleted),
	)
	if err != nil {
		return false, fmt.Errorf("claiming session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking affected rows: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sessions WHERE id = ?`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking session existence: %w", err)
	}
	if exists == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// UpdateSessionStatus sets the session's lifecycle status.
func (s *Store) UpdateSessionStatus(ctx context.Context, id string, status types.ReviewStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("updating session status: %w", err)
	}
	return requireRow(res)
}

// UpdateSessionReview stores the final review text.
func (s *Store) UpdateSessionReview(ctx context.Context, id, review string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET final_review = ?, updated_at = ? WHERE id = ?`,
		review, formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("updating session review: %w", err)
	}
	return requireRow(res)
}

// DeleteSession removes a session and, via foreign keys, its papers and
// insights.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return requireRow(res)
}

// CreatePaper attaches a search result to a session and returns the stored
// paper.
func (s *Store) CreatePaper(ctx context.Context, sessionID string, result types.SearchResult) (*types.Paper, error) {
	now := time.Now().UTC()
	paper := &types.Paper{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		Source:          result.Source,
		ExternalID:      result.ExternalID,
		Title:           result.Title,
		Authors:         result.Authors,
		Abstract:        result.Abstract,
		PublicationDate: result.PublicationDate,
		DOI:             result.DOI,
		URL:             result.URL,
		PDFURL:          result.PDFURL,
		CreatedAt:       now,
	}

	authorsJSON, _ := json.Marshal(paper.Authors)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO papers (id, session_id, source, external_id, title, authors, abstract,
			publication_date, doi, url, pdf_url, relevance_score, relevance_explanation, key_findings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, '', '[]', ?)`,
		paper.ID, paper.SessionID, string(paper.Source), paper.ExternalID, paper.Title,
		string(authorsJSON), paper.Abstract, paper.PublicationDate, paper.DOI,
		paper.URL, paper.PDFURL, formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting paper: %w", err)
	}
	return paper, nil
}

// GetPaper returns one paper by ID, or ErrNotFound.
func (s *Store) GetPaper(ctx context.Context, id string) (*types.Paper, error) {
	row := s.db.QueryRowContext(ctx, paperSelect+` WHERE id = ?`, id)
	return scanPaper(row)
}

// ListPapers returns a session's papers ordered by relevance score
// descending, unscored papers last, ties broken by insertion time.
func (s *Store) ListPapers(ctx context.Context, sessionID string) ([]*types.Paper, error) {
	rows, err := s.db.QueryContext(ctx,
		paperSelect+` WHERE session_id = ?
		 ORDER BY relevance_score IS NULL, relevance_score DESC, created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	return collectPapers(rows)
}

// ListQualifyingPapers returns the session's papers whose relevance score
// meets the threshold, highest first.
func (s *Store) ListQualifyingPapers(ctx context.Context, sessionID string) ([]*types.Paper, error) {
	rows, err := s.db.QueryContext(ctx,
		paperSelect+` WHERE session_id = ? AND relevance_score >= ?
		 ORDER BY relevance_score DESC, created_at, id`, sessionID, types.RelevanceThreshold)
	if err != nil {
		return nil, fmt.Errorf("querying qualifying papers: %w", err)
	}
	return collectPapers(rows)
}

// CountPapers returns the number of papers attached to a session.
func (s *Store) CountPapers(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM papers WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting papers: %w", err)
	}
	return n, nil
}

// CountScoredPapers returns the number of papers that already carry a
// relevance score.
func (s *Store) CountScoredPapers(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM papers WHERE session_id = ? AND relevance_score IS NOT NULL`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting scored papers: %w", err)
	}
	return n, nil
}

// PaperExists reports whether the session already holds a paper with the
// given source identity.
func (s *Store) PaperExists(ctx context.Context, sessionID string, source types.PaperSource, externalID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM papers WHERE session_id = ? AND source = ? AND external_id = ?`,
		sessionID, string(source), externalID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking paper existence: %w", err)
	}
	return n > 0, nil
}

// UpdatePaperRelevance stores a paper's relevance score and explanation.
func (s *Store) UpdatePaperRelevance(ctx context.Context, id string, score float64, explanation string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET relevance_score = ?, relevance_explanation = ? WHERE id = ?`,
		score, explanation, id,
	)
	if err != nil {
		return fmt.Errorf("updating paper relevance: %w", err)
	}
	return requireRow(res)
}

// UpdatePaperFindings stores a paper's extracted key findings.
func (s *Store) UpdatePaperFindings(ctx context.Context, id string, findings []string) error {
	findingsJSON, _ := json.Marshal(findings)
	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET key_findings = ? WHERE id = ?`, string(findingsJSON), id)
	if err != nil {
		return fmt.Errorf("updating paper findings: %w", err)
	}
	return requireRow(res)
}

// DeletePaper removes one paper.
func (s *Store) DeletePaper(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting paper: %w", err)
	}
	return requireRow(res)
}

// AppendInsight adds one entry to the session's reasoning ledger. The caller
// assigns the step number; the UNIQUE constraint rejects reuse.
func (s *Store) AppendInsight(ctx context.Context, insight *types.Insight) error {
	if insight.ID == "" {
		insight.ID = uuid.NewString()
	}
	if insight.CreatedAt.IsZero() {
		insight.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO insights (id, session_id, paper_id, step_number, insight_type, content, reasoning, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		insight.ID, insight.SessionID, insight.PaperID, insight.StepNumber,
		string(insight.Kind), insight.Content, insight.Reasoning, formatTime(insight.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting insight: %w", err)
	}
	return nil
}

// ListInsights returns a session's ledger in step order.
func (s *Store) ListInsights(ctx context.Context, sessionID string) ([]*types.Insight, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, paper_id, step_number, insight_type, content, reasoning, created_at
		 FROM insights WHERE session_id = ? ORDER BY step_number`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying insights: %w", err)
	}
	defer rows.Close()

	var insights []*types.Insight
	for rows.Next() {
		var in types.Insight
		var kind, createdAt string
		if err := rows.Scan(&in.ID, &in.SessionID, &in.PaperID, &in.StepNumber,
			&kind, &in.Content, &in.Reasoning, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning insight: %w", err)
		}
		in.Kind = types.InsightKind(kind)
		if in.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("scanning insight: %w", err)
		}
		insights = append(insights, &in)
	}
	return insights, rows.Err()
}

// MaxInsightStep returns the highest step number recorded for a session, or
// 0 when the ledger is empty.
func (s *Store) MaxInsightStep(ctx context.Context, sessionID string) (int, error) {
	var step sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT max(step_number) FROM insights WHERE session_id = ?`, sessionID).Scan(&step)
	if err != nil {
		return 0, fmt.Errorf("querying max insight step: %w", err)
	}
	return int(step.Int64), nil
}

// CountInsights returns the number of ledger entries for a session.
func (s *Store) CountInsights(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM insights WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting insights: %w", err)
	}
	return n, nil
}

const paperSelect = `SELECT id, session_id, source, external_id, title, authors, abstract,
	publication_date, doi, url, pdf_url, relevance_score, relevance_explanation, key_findings, created_at
	FROM papers`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*types.ReviewSession, error) {
	var session types.ReviewSession
	var status, createdAt, updatedAt string
	err := row.Scan(&session.ID, &session.Title, &session.Domain, &session.ResearchQuestion,
		&status, &session.FinalReview, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	session.Status = types.ReviewStatus(status)
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	return &session, nil
}

func scanPaper(row rowScanner) (*types.Paper, error) {
	var paper types.Paper
	var source, authorsJSON, findingsJSON, createdAt string
	var score sql.NullFloat64
	err := row.Scan(&paper.ID, &paper.SessionID, &source, &paper.ExternalID, &paper.Title,
		&authorsJSON, &paper.Abstract, &paper.PublicationDate, &paper.DOI,
		&paper.URL, &paper.PDFURL, &score, &paper.RelevanceExplanation, &findingsJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning paper: %w", err)
	}
	paper.Source = types.PaperSource(source)
	if score.Valid {
		v := score.Float64
		paper.RelevanceScore = &v
	}
	if authorsJSON != "" {
		if err := json.Unmarshal([]byte(authorsJSON), &paper.Authors); err != nil {
			return nil, fmt.Errorf("decoding paper authors: %w", err)
		}
	}
	if findingsJSON != "" {
		if err := json.Unmarshal([]byte(findingsJSON), &paper.KeyFindings); err != nil {
			return nil, fmt.Errorf("decoding paper findings: %w", err)
		}
	}
	if paper.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("scanning paper: %w", err)
	}
	return &paper, nil
}

func collectPapers(rows *sql.Rows) ([]*types.Paper, error) {
	defer rows.Close()
	var papers []*types.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, paper)
	}
	return papers, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored timestamp %q: %w", s, err)
	}
	return t, nil
}
