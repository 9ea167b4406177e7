// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the litreview CLI.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/litreview/internal/secrets"
	"github.com/pdiddy/litreview/internal/source"
	"github.com/pdiddy/litreview/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

const (
	defaultTimeout     = 30 * time.Second
	defaultUserAgent   = "litreview/0.1"
	defaultPubMedDelay = 340 * time.Millisecond
)

// secretDefault returns fallback when set, the loaded secret otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the litreview CLI.
var rootCmd = &cobra.Command{
	Use:   "litreview",
	Short: "AI-assisted literature review pipeline",
	Long: `litreview assists a researcher in producing a synthesized literature
review: it searches bibliographic APIs (PubMed, Semantic Scholar), scores
each candidate paper's relevance against the research question, extracts key
findings, synthesizes cross-paper themes and contradictions, and generates
the final review text. Every analysis step is recorded in an append-only
insight ledger.

Run "litreview serve" for the HTTP API, "litreview search" for ad-hoc
terminal searches, and "litreview export" to dump a session's ledger.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./litreview.yaml or ~/.config/litreview/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("litreview")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "litreview"))
		}
	}

	viper.SetDefault("search.max_results", 20)
	viper.SetDefault("search.enable_pubmed", true)
	viper.SetDefault("search.enable_semantic_scholar", true)
	viper.SetDefault("llm.base_url", "https://api.deepseek.com/v1")
	viper.SetDefault("llm.model", "deepseek-chat")
	viper.SetDefault("store.path", "litreview.db")
	viper.SetDefault("server.port", 8000)

	viper.SetEnvPrefix("LITREVIEW")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// searchConfig assembles the search settings from config and secrets.
func searchConfig() types.SearchConfig {
	return types.SearchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   defaultTimeout,
			UserAgent: defaultUserAgent,
		},
		MaxResults:            viper.GetInt("search.max_results"),
		EnablePubMed:          viper.GetBool("search.enable_pubmed"),
		EnableSemanticScholar: viper.GetBool("search.enable_semantic_scholar"),
		SemanticScholarAPIKey: secretDefault("semantic-scholar-api-key", viper.GetString("search.semantic_scholar_api_key")),
		PubMedDelay:           defaultPubMedDelay,
	}
}

// buildBackends constructs the enabled bibliographic source backends.
func buildBackends(cfg types.SearchConfig) []source.Backend {
	client := &http.Client{Timeout: cfg.Timeout}

	var backends []source.Backend
	if cfg.EnablePubMed {
		backends = append(backends, &source.PubMedBackend{
			Client:    client,
			UserAgent: cfg.UserAgent,
			Delay:     cfg.PubMedDelay,
		})
	}
	if cfg.EnableSemanticScholar {
		backends = append(backends, &source.SemanticScholarBackend{
			Client:    client,
			UserAgent: cfg.UserAgent,
			APIKey:    cfg.SemanticScholarAPIKey,
		})
	}
	return backends
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
