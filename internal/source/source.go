// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source queries bibliographic APIs and merges their results into a
// unique candidate set.
package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pdiddy/litreview/pkg/types"
)

// Backend searches a single bibliographic API. Each backend (PubMed,
// Semantic Scholar) implements this interface.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error)
}

// GatherOutput holds the merged results of a multi-source search.
type GatherOutput struct {
	Results      []types.SearchResult
	DupsRemoved  int
	SourceErrors []string
}

// Gather fans the query out to all backends concurrently and concatenates
// their results in backend declaration order. A backend that fails
// contributes zero results and a warning line on w; it never aborts the
// search phase.
func Gather(ctx context.Context, backends []Backend, query string, limit int, w io.Writer) ([]types.SearchResult, []string) {
	perBackend := make([][]types.SearchResult, len(backends))
	errs := make([]error, len(backends))

	var wg sync.WaitGroup
	for i, b := range backends {
		wg.Add(1)
		go func(i int, b Backend) {
			defer wg.Done()
			perBackend[i], errs[i] = b.Search(ctx, query, limit)
		}(i, b)
	}
	wg.Wait()

	var all []types.SearchResult
	var sourceErrors []string
	for i, b := range backends {
		if errs[i] != nil {
			msg := fmt.Sprintf("%s: %v", b.Name(), errs[i])
			sourceErrors = append(sourceErrors, msg)
			fmt.Fprintf(w, "warning: source %s failed: %v\n", b.Name(), errs[i])
			continue
		}
		all = append(all, perBackend[i]...)
	}
	return all, sourceErrors
}

// Dedup removes duplicate results and truncates to max. A result is dropped
// when its DOI (case-sensitive, exact) was already seen; a result without a
// DOI is dropped when its lowercased title was already seen among DOI-less
// results. Output keeps first-seen input order. When max <= 0 no truncation
// is applied.
func Dedup(results []types.SearchResult, max int) []types.SearchResult {
	seenDOIs := make(map[string]bool)
	seenTitles := make(map[string]bool)

	unique := make([]types.SearchResult, 0, len(results))
	for _, r := range results {
		if r.DOI != "" {
			if seenDOIs[r.DOI] {
				continue
			}
			seenDOIs[r.DOI] = true
		} else {
			title := strings.ToLower(r.Title)
			if seenTitles[title] {
				continue
			}
			seenTitles[title] = true
		}
		unique = append(unique, r)
	}

	if max > 0 && len(unique) > max {
		unique = unique[:max]
	}
	return unique
}

// Search runs Gather followed by Dedup and reports how many duplicates were
// dropped before truncation.
func Search(ctx context.Context, backends []Backend, query string, limit int, w io.Writer) GatherOutput {
	all, sourceErrors := Gather(ctx, backends, query, limit, w)
	unique := Dedup(all, 0)
	removed := len(all) - len(unique)
	if limit > 0 && len(unique) > limit {
		unique = unique[:limit]
	}
	return GatherOutput{Results: unique, DupsRemoved: removed, SourceErrors: sourceErrors}
}
