// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/litreview/internal/httputil"
	"github.com/pdiddy/litreview/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "paperId,title,authors,abstract,year,publicationDate,externalIds,url,openAccessPdf"

// SemanticScholarBackend queries the Semantic Scholar graph API.
type SemanticScholarBackend struct {
	Client    *http.Client
	UserAgent string
	APIKey    string
}

// Name returns the backend identifier.
func (b *SemanticScholarBackend) Name() string { return "semantic_scholar" }

// Search queries the Semantic Scholar API and returns parsed results.
func (b *SemanticScholarBackend) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100 // API maximum
	}

	params := url.Values{
		"query":  {query},
		"limit":  {fmt.Sprintf("%d", limit)},
		"fields": {semanticFields},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", b.UserAgent)
	if b.APIKey != "" {
		req.Header.Set("x-api-key", b.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		Data []semanticPaper `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	var results []types.SearchResult
	for _, item := range body.Data {
		if r, ok := parseSemanticPaper(item); ok {
			results = append(results, r)
		}
	}
	return results, nil
}

// semanticPaper mirrors the fields requested from the graph API.
type semanticPaper struct {
	PaperID  string `json:"paperId"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Year     int    `json:"year"`
	PubDate  string `json:"publicationDate"`
	URL      string `json:"url"`
	Authors  []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ExternalIDs struct {
		DOI string `json:"DOI"`
	} `json:"externalIds"`
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

// parseSemanticPaper converts one API item into a SearchResult. Items missing
// a paper ID or title are skipped.
func parseSemanticPaper(p semanticPaper) (types.SearchResult, bool) {
	if p.PaperID == "" || p.Title == "" {
		return types.SearchResult{}, false
	}

	var authors []string
	for _, a := range p.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	pubDate := p.PubDate
	if pubDate == "" && p.Year > 0 {
		pubDate = fmt.Sprintf("%d", p.Year)
	}

	pageURL := p.URL
	if pageURL == "" {
		pageURL = "https://www.semanticscholar.org/paper/" + p.PaperID
	}

	var pdfURL string
	if p.OpenAccessPDF != nil {
		pdfURL = p.OpenAccessPDF.URL
	}

	return types.SearchResult{
		Source:          types.SourceSemanticScholar,
		ExternalID:      p.PaperID,
		Title:           p.Title,
		Authors:         authors,
		Abstract:        p.Abstract,
		PublicationDate: pubDate,
		DOI:             p.ExternalIDs.DOI,
		URL:             pageURL,
		PDFURL:          pdfURL,
	}, true
}
