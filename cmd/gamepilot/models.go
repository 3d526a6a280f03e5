package main

import (
	"github.com/spf13/cobra"

	"github.com/joss/gamepilot/internal/domain"
	"github.com/joss/gamepilot/internal/render"
)

var providerOrder = []string{"anthropic", "openai", "google", "together", "xai"}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known models",
		Run: func(cmd *cobra.Command, args []string) {
			out := render.Stdout()
			for _, providerID := range providerOrder {
				models := domain.Models(providerID)
				if len(models) == 0 {
					continue
				}
				out.Section(providerID)
				for _, m := range models {
					notes := ""
					if m.SupportsThinking {
						notes += " [thinking]"
					}
					if m.SupportsVideo {
						notes += " [video]"
					}
					out.Item("%-50s %s%s", providerID+":"+m.ID, m.Name, notes)
				}
			}
			out.Line()
		},
	}
}
