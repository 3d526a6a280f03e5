package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joss/gamepilot/internal/config"
	"github.com/joss/gamepilot/internal/domain"
	"github.com/joss/gamepilot/internal/episode"
	"github.com/joss/gamepilot/internal/game"
	"github.com/joss/gamepilot/internal/gameplay"
	"github.com/joss/gamepilot/internal/prompt"
	"github.com/joss/gamepilot/internal/provider"
	"github.com/joss/gamepilot/internal/record"
	"github.com/joss/gamepilot/internal/render"
)

type playFlags struct {
	url         string
	model       string
	maxCalls    int
	headless    bool
	promptPath  string
	resultsDir  string
	temperature float64
	thinking    bool
}

func playCmd() *cobra.Command {
	flags := &playFlags{}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a browser game with a vision model",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.url == "" {
				return fmt.Errorf("--url is required")
			}
			return runPlay(cmd, flags)
		},
	}

	env := config.Env()
	cmd.Flags().StringVar(&flags.url, "url", "", "Game page URL (required)")
	cmd.Flags().StringVar(&flags.model, "model", env.Model, "Model as provider:model")
	cmd.Flags().IntVar(&flags.maxCalls, "max-calls", 10, "Model call budget for the run")
	cmd.Flags().BoolVar(&flags.headless, "headless", true, "Run the browser headless")
	cmd.Flags().StringVar(&flags.promptPath, "prompt", "", "Custom prompt template file")
	cmd.Flags().StringVar(&flags.resultsDir, "results", env.ResultsDir, "Results directory")
	cmd.Flags().Float64Var(&flags.temperature, "temperature", 0, "Sampling temperature (0 = provider default)")
	cmd.Flags().BoolVar(&flags.thinking, "thinking", false, "Enable extended thinking where supported")

	return cmd
}

// splitModel parses "provider:model-id". A bare model id falls back to
// the anthropic provider.
func splitModel(spec string) (string, string) {
	providerID, modelID, found := strings.Cut(spec, ":")
	if !found {
		return "anthropic", spec
	}
	return providerID, modelID
}

func runPlay(cmd *cobra.Command, flags *playFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providerID, modelID := splitModel(flags.model)

	p, err := provider.Default.CreateByID(providerID)
	if err != nil {
		return err
	}
	retrier := provider.NewRetrier(p)

	tpl, err := prompt.Load(flags.promptPath)
	if err != nil {
		return err
	}

	env := config.Env()
	session := env.SessionID
	if session == "" {
		session = uuid.NewString()[:8]
	}

	fmt.Printf("Connecting to %s ...\n", flags.url)
	surface, err := game.Connect(ctx, flags.url, game.Options{
		Headless:   flags.headless,
		BrowserBin: env.BrowserBin,
	})
	if err != nil {
		return fmt.Errorf("open game: %w", err)
	}
	defer surface.Close()

	info := surface.Info()
	out := render.Stdout()
	out.Header("playing %s", info.Name)
	out.Item("model:   %s (%s)", modelID, p.Name())
	out.Item("budget:  %d calls", flags.maxCalls)
	out.Item("session: %s", session)
	out.Line()

	recorder, err := record.NewRun(ctx, flags.resultsDir, session, flags.model, info.Name)
	if err != nil {
		return fmt.Errorf("set up recording: %w", err)
	}

	sampler := gameplay.NewSampler(surface, recorder.SampleSink)
	panels := render.NewPanels()

	var options domain.GenerateOptions
	if flags.temperature > 0 {
		t := flags.temperature
		options.Temperature = &t
	}
	options.EnableThinking = flags.thinking

	controller := episode.New(surface, retrier, episode.Config{
		ModelID:    modelID,
		MaxCalls:   flags.maxCalls,
		Options:    options,
		Template:   tpl,
		Sampler:    sampler,
		Recorder:   recorder,
		OnExchange: panels.Exchange,
	})

	started := time.Now()
	runErr := controller.Run(ctx)
	sampler.Wait()

	// Finalize artifacts even when the run ended badly
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := recorder.Close(closeCtx, controller.Score(), controller.Episodes()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: finalize recording: %v\n", err)
	}

	out.Line()
	out.Section("run summary")
	out.Item("calls:    %d", controller.Calls())
	out.Item("episodes: %d", controller.Episodes())
	out.Item("score:    %.0f", controller.Score())
	out.Item("elapsed:  %s", time.Since(started).Round(time.Second))
	out.Item("results:  %s", recorder.Dir)

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}
