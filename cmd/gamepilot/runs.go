package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joss/gamepilot/internal/config"
	"github.com/joss/gamepilot/internal/record"
	"github.com/joss/gamepilot/internal/render"
)

func runsCmd() *cobra.Command {
	var resultsDir string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := filepath.Join(resultsDir, "runs.db")
			if _, err := os.Stat(dbPath); err != nil {
				render.Stdout().Empty("No runs recorded yet")
				return nil
			}

			store, err := record.OpenStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(runs) == 0 {
				render.Stdout().Empty("No runs recorded yet")
				return nil
			}

			out := render.Stdout()
			out.Header("recorded runs")
			out.Println("%-27s %-10s %-30s %-16s %6s %5s %5s %8s",
				"ID", "SESSION", "MODEL", "GAME", "SCORE", "EPS", "STEPS", "TOKENS")
			for _, r := range runs {
				out.Println("%-27s %-10s %-30s %-16s %6.0f %5d %5d %8d",
					r.ID, r.Session, truncate(r.Model, 30), truncate(r.Game, 16),
					r.FinalScore, r.Episodes, r.Steps, r.Tokens)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&resultsDir, "results", config.Env().ResultsDir, "Results directory")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	return cmd
}

func truncate(s string, n int) string {
	if n < 4 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
