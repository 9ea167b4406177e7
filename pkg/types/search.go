// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SearchResult is a candidate paper as returned by a bibliographic source,
// before it is attached to a review session.
type SearchResult struct {
	// Source identifies which backend found this result.
	Source PaperSource `json:"source" yaml:"source"`

	// ExternalID is the source-native identifier (PMID, Semantic Scholar paper ID).
	ExternalID string `json:"external_id" yaml:"external_id"`

	// Title is the paper title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract, empty when the source has none.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// PublicationDate is the source's publication date string (e.g. "Mar 2021",
	// "2021-03-14"); sources disagree on format so it is kept verbatim.
	PublicationDate string `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`

	// DOI is the digital object identifier, if the source reports one.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// URL is the landing page for the paper.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// PDFURL is an open-access PDF link, if the source reports one.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
}
