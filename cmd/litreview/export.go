// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litreview/internal/store"
	"github.com/pdiddy/litreview/pkg/types"
)

var exportCmd = &cobra.Command{
	Use:   "export [session-id]",
	Short: "Export a review session as YAML",
	Long: `Export dumps one review session, its papers, and its complete insight
ledger as YAML to stdout or a file. Without a session ID it lists the
available sessions.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("db", "", "SQLite database file (default litreview.db)")
	exportCmd.Flags().String("out", "", "write to file instead of stdout")

	rootCmd.AddCommand(exportCmd)
}

// sessionExport is the YAML document produced by the export command.
type sessionExport struct {
	Session  *types.ReviewSession `yaml:"session"`
	Papers   []*types.Paper       `yaml:"papers"`
	Insights []*types.Insight     `yaml:"insights"`
}

func runExport(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = viper.GetString("store.path")
	}

	st, err := store.Open(types.StoreConfig{Path: dbPath})
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()

	if len(args) == 0 {
		sessions, err := st.ListSessions(ctx, 0, 100)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No review sessions found.")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%s  %-10s  %s\n", s.ID, s.Status, s.Title)
		}
		return nil
	}

	sessionID := args[0]
	session, err := st.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	papers, err := st.ListPapers(ctx, sessionID)
	if err != nil {
		return err
	}
	insights, err := st.ListInsights(ctx, sessionID)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(sessionExport{
		Session:  session,
		Papers:   papers,
		Insights: insights,
	})
	if err != nil {
		return fmt.Errorf("marshaling export: %w", err)
	}

	outPath, _ := cmd.Flags().GetString("out")
	if outPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", outPath)
	return nil
}
