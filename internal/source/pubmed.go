// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/litreview/internal/httputil"
	"github.com/pdiddy/litreview/pkg/types"
)

// pubmedAPIBase is the NCBI E-utilities root. Declared as a var so tests can
// substitute an httptest server.
var pubmedAPIBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// PubMedBackend queries PubMed through the NCBI E-utilities: an esearch call
// returns matching PMIDs, then an efetch call returns article XML for those
// PMIDs.
type PubMedBackend struct {
	Client    *http.Client
	UserAgent string

	// Delay is the pause between the esearch and efetch calls; NCBI allows
	// roughly three requests per second without an API key.
	Delay time.Duration
}

// Name returns the backend identifier.
func (b *PubMedBackend) Name() string { return "pubmed" }

// Search queries PubMed and returns parsed results.
func (b *PubMedBackend) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}

	pmids, err := b.searchIDs(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		return nil, nil
	}

	if b.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.Delay):
		}
	}

	return b.fetchDetails(ctx, pmids)
}

// searchIDs runs the esearch step and returns PMIDs sorted by relevance.
func (b *PubMedBackend) searchIDs(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmax":  {fmt.Sprintf("%d", limit)},
		"retmode": {"json"},
		"sort":    {"relevance"},
	}

	resp, err := b.get(ctx, pubmedAPIBase+"/esearch.fcgi?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("PubMed esearch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PubMed esearch returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parsing PubMed esearch response: %w", err)
	}
	return body.ESearchResult.IDList, nil
}

// fetchDetails runs the efetch step and parses the article XML.
func (b *PubMedBackend) fetchDetails(ctx context.Context, pmids []string) ([]types.SearchResult, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
	}

	resp, err := b.get(ctx, pubmedAPIBase+"/efetch.fcgi?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("PubMed efetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PubMed efetch returned HTTP %d", resp.StatusCode)
	}

	var set pubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("parsing PubMed efetch response: %w", err)
	}

	var results []types.SearchResult
	for _, article := range set.Articles {
		if r, ok := parsePubmedArticle(article); ok {
			results = append(results, r)
		}
	}
	return results, nil
}

func (b *PubMedBackend) get(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", b.UserAgent)
	return httputil.DoWithRetry(ctx, b.Client, req, 0)
}

// PubMed efetch XML structures. Only the fields the pipeline needs are mapped.
type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	PMID     string `xml:"MedlineCitation>PMID"`
	Title    string `xml:"MedlineCitation>Article>ArticleTitle"`
	Abstract []struct {
		Label string `xml:"Label,attr"`
		Text  string `xml:",chardata"`
	} `xml:"MedlineCitation>Article>Abstract>AbstractText"`
	Authors []struct {
		LastName string `xml:"LastName"`
		ForeName string `xml:"ForeName"`
	} `xml:"MedlineCitation>Article>AuthorList>Author"`
	PubDate struct {
		Year  string `xml:"Year"`
		Month string `xml:"Month"`
	} `xml:"MedlineCitation>Article>Journal>JournalIssue>PubDate"`
	ArticleIDs []struct {
		IDType string `xml:"IdType,attr"`
		Value  string `xml:",chardata"`
	} `xml:"PubmedData>ArticleIdList>ArticleId"`
}

// parsePubmedArticle converts one PubmedArticle element into a SearchResult.
// Articles without a PMID are skipped.
func parsePubmedArticle(a pubmedArticle) (types.SearchResult, bool) {
	pmid := strings.TrimSpace(a.PMID)
	if pmid == "" {
		return types.SearchResult{}, false
	}

	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = "Untitled"
	}

	var authors []string
	for _, au := range a.Authors {
		if au.LastName == "" {
			continue
		}
		name := au.LastName
		if au.ForeName != "" {
			name = au.ForeName + " " + name
		}
		authors = append(authors, name)
	}

	// Structured abstracts arrive as labelled sections; join them with the
	// labels preserved.
	var parts []string
	for _, ab := range a.Abstract {
		text := strings.TrimSpace(ab.Text)
		if text == "" {
			continue
		}
		if ab.Label != "" {
			parts = append(parts, ab.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}

	var pubDate string
	if a.PubDate.Year != "" {
		pubDate = a.PubDate.Year
		if a.PubDate.Month != "" {
			pubDate = a.PubDate.Month + " " + pubDate
		}
	}

	var doi string
	for _, id := range a.ArticleIDs {
		if id.IDType == "doi" {
			doi = strings.TrimSpace(id.Value)
			break
		}
	}

	return types.SearchResult{
		Source:          types.SourcePubMed,
		ExternalID:      pmid,
		Title:           title,
		Authors:         authors,
		Abstract:        strings.Join(parts, " "),
		PublicationDate: pubDate,
		DOI:             doi,
		URL:             "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/",
	}, true
}
