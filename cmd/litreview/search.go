// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litreview/internal/source"
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Search bibliographic APIs for candidate papers",
	Long: `Search queries the enabled bibliographic sources (PubMed, Semantic
Scholar) for papers matching a research question. Results are merged,
deduplicated by DOI and title, and printed as a table or JSON.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("max-results", 0, "maximum number of results to return")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	if query == "" {
		return fmt.Errorf("provide a search query")
	}

	cfg := searchConfig()
	limit, _ := cmd.Flags().GetInt("max-results")
	if limit <= 0 {
		limit = cfg.MaxResults
	}

	backends := buildBackends(cfg)
	if len(backends) == 0 {
		return fmt.Errorf("no search sources enabled")
	}

	out := source.Search(cmd.Context(), backends, query, limit, os.Stderr)

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return source.FormatJSON(out, os.Stdout)
	}
	source.FormatTable(out, os.Stdout)
	return nil
}
