// Package main provides the gamepilot CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "gamepilot",
		Short: "Vision-model game player for browser games",
		Long: `gamepilot points a vision language model at a browser game and lets
it play: screenshot, decide, act, repeat.

Give it a game URL and a model:

  gamepilot play --url https://example.com/games/breakout/ --model anthropic:claude-sonnet-4-20250514

Use 'gamepilot models' to list known models and 'gamepilot runs' to
inspect past runs.`,
	}

	rootCmd.AddCommand(playCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gamepilot %s\n", version)
		},
	}
}
