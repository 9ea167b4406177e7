// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/litreview/internal/api"
	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/internal/pipeline"
	"github.com/pdiddy/litreview/internal/store"
	"github.com/pdiddy/litreview/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the litreview HTTP API server",
	Long: `Serve starts the HTTP API: review session CRUD, paper search and
management, analysis pipeline control, and review generation including the
streaming endpoint. The server shuts down gracefully on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default 8000)")
	serveCmd.Flags().String("db", "", "SQLite database file (default litreview.db)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		port = viper.GetInt("server.port")
	}
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = viper.GetString("store.path")
	}

	st, err := store.Open(types.StoreConfig{Path: dbPath})
	if err != nil {
		return err
	}
	defer st.Close()

	searchCfg := searchConfig()
	backends := buildBackends(searchCfg)

	llmCfg := types.LLMConfig{
		BaseURL: viper.GetString("llm.base_url"),
		Model:   viper.GetString("llm.model"),
		APIKey:  secretDefault("deepseek-api-key", viper.GetString("llm.api_key")),
		Timeout: viper.GetDuration("llm.timeout"),
	}
	if llmCfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "warning: no LLM API key configured, analysis requests will fail")
	}
	analyst := llm.NewAnalyst(llm.NewClient(llmCfg))

	runner := pipeline.NewRunner(st, backends, analyst, os.Stderr)
	handler := api.NewHandler(st, runner, backends, searchCfg.MaxResults, version)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	handler.RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(fmt.Sprintf(":%d", port))
	}()
	fmt.Fprintf(os.Stderr, "litreview %s listening on :%d (db %s)\n", version, port, dbPath)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case sig := <-quit:
		fmt.Fprintf(os.Stderr, "received %s, shutting down\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
