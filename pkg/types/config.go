// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "litreview/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the bibliographic search phase.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the default maximum number of results per search (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// EnablePubMed controls whether the PubMed backend is used.
	EnablePubMed bool `json:"enable_pubmed" yaml:"enable_pubmed"`

	// EnableSemanticScholar controls whether the Semantic Scholar backend is used.
	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// PubMedDelay is the pause between the PubMed id search and the detail
	// fetch, keeping under NCBI's ~3 requests/second limit (default 340ms).
	PubMedDelay time.Duration `json:"pubmed_delay" yaml:"pubmed_delay"`
}

// LLMConfig holds settings for the OpenAI-compatible completion API.
type LLMConfig struct {
	// BaseURL is the API root (e.g. "https://api.deepseek.com/v1").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Model is the completion model identifier (e.g. "deepseek-chat").
	Model string `json:"model" yaml:"model"`

	// APIKey is the bearer token for the completion API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Timeout is the per-call timeout (default 120s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// StoreConfig holds settings for the SQLite store.
type StoreConfig struct {
	// Path is the SQLite database file (default "litreview.db").
	Path string `json:"path" yaml:"path"`
}

// ServerConfig holds settings for the HTTP server.
type ServerConfig struct {
	// Port is the listen port (default 8000).
	Port int `json:"port" yaml:"port"`
}

// Config groups all service configuration.
type Config struct {
	Server ServerConfig `json:"server" yaml:"server"`
	Store  StoreConfig  `json:"store" yaml:"store"`
	Search SearchConfig `json:"search" yaml:"search"`
	LLM    LLMConfig    `json:"llm" yaml:"llm"`
}
