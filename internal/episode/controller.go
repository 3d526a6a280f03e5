// Package episode runs the decision loop: observe the game, ask the
// model for a plan, act it out, and handle game-over restarts.
package episode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joss/gamepilot/internal/actions"
	"github.com/joss/gamepilot/internal/domain"
	"github.com/joss/gamepilot/internal/game"
	"github.com/joss/gamepilot/internal/gameplay"
	"github.com/joss/gamepilot/internal/logging"
	"github.com/joss/gamepilot/internal/prompt"
	"github.com/joss/gamepilot/internal/provider"
	"github.com/joss/gamepilot/internal/record"
	"github.com/joss/gamepilot/pkg/llm"
)

// pause toggling uses ESC; restart confirmation lives in the surface
const escCode = 27

// surfaceErrorSleep is the backoff after a skipped cycle.
var surfaceErrorSleep = time.Second

type state string

const (
	stateObserving  state = "observing"
	stateDeciding   state = "deciding"
	stateActing     state = "acting"
	stateRestarting state = "restarting"
)

// Recorder is the slice of run persistence the controller needs.
// *record.Recorder satisfies it; tests substitute a stub.
type Recorder interface {
	SaveScreenshot(episode, step int, png []byte) (string, error)
	SaveFrame(f gameplay.Frame) (string, error)
	SavePrompt(episode, step int, msgs []domain.Message) error
	AppendHistory(role domain.Role, text string, images int)
	RecordStep(ctx context.Context, rec record.StepRecord) error
}

// ExchangeFunc observes model traffic, for console rendering.
type ExchangeFunc func(role domain.Role, text string)

// Config sets up one run of the controller.
type Config struct {
	ModelID  string
	MaxCalls int
	Options  domain.GenerateOptions
	Template *prompt.Template

	SegmentDuration time.Duration
	Sampler         *gameplay.Sampler

	Recorder   Recorder
	OnExchange ExchangeFunc
}

// Controller drives one run against one game surface.
type Controller struct {
	surface  game.Surface
	provider llm.Provider
	cfg      Config
	sched    *gameplay.Scheduler
	log      *logging.Logger

	episode int
	step    int
	calls   int

	score      float64
	scratchpad string
	prevNames  [][]string
	prevFrames []gameplay.Frame
}

// New builds a controller. Template defaults to the built-in prompt.
func New(surface game.Surface, p llm.Provider, cfg Config) *Controller {
	if cfg.Template == nil {
		cfg.Template = prompt.Default()
	}
	if cfg.MaxCalls <= 0 {
		cfg.MaxCalls = 10
	}
	if cfg.SegmentDuration <= 0 {
		cfg.SegmentDuration = gameplay.DefaultSegmentDuration
	}

	c := &Controller{
		surface:  surface,
		provider: p,
		cfg:      cfg,
		log:      logging.New("episode").WithGame(surface.Info().Name),
	}

	opts := []gameplay.SchedulerOption{
		gameplay.WithSegmentDuration(cfg.SegmentDuration),
		// Once the call budget is spent, the remaining plan segments
		// are abandoned rather than played out
		gameplay.WithStop(func() bool { return c.calls >= c.cfg.MaxCalls }),
	}
	if cfg.Sampler != nil {
		opts = append(opts, gameplay.WithSampler(cfg.Sampler))
	}
	c.sched = gameplay.NewScheduler(surface, opts...)
	return c
}

// Episode and Step expose loop position, mainly for tests and logs.
func (c *Controller) Episode() int { return c.episode }
func (c *Controller) Step() int    { return c.step }

// Score returns the last score observed.
func (c *Controller) Score() float64 { return c.score }

// Run loops decision cycles until the call budget is spent or the
// context is cancelled. Provider auth errors end the run; everything
// else skips the cycle and keeps playing.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Info("run_started", map[string]interface{}{
		"model":     c.cfg.ModelID,
		"max_calls": c.cfg.MaxCalls,
	})

	for c.calls < c.cfg.MaxCalls {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var provErr *provider.Error
			if errors.As(err, &provErr) && provErr.Kind == provider.KindAuth {
				return fmt.Errorf("provider auth failure: %w", err)
			}
			c.stepLog().Warn("cycle_skipped", nil, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(surfaceErrorSleep):
			}
		}
	}

	c.log.Info("run_finished", map[string]interface{}{
		"calls":    c.calls,
		"episodes": c.episode + 1,
		"score":    c.score,
	})
	return nil
}

func (c *Controller) stepLog() *logging.Logger {
	return c.log.WithStep(c.episode, c.step)
}

// cycle runs one full OBSERVING → DECIDING → ACTING pass.
func (c *Controller) cycle(ctx context.Context) error {
	log := c.stepLog()

	// OBSERVING: freeze the game while the model thinks
	log.Debug(string(stateObserving), nil)
	if err := c.surface.PressKey(ctx, escCode); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	paused := true
	// ESC is a toggle; a cycle that bails out mid-way must restore
	// parity or every later cycle observes running and acts paused
	defer func() {
		if !paused {
			return
		}
		if err := c.surface.PressKey(context.WithoutCancel(ctx), escCode); err != nil {
			log.Warn("unpause_failed", nil, err)
		}
	}()

	shot, err := c.surface.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	if score, err := c.surface.Score(ctx); err == nil {
		c.score = score
	} else {
		log.Warn("score_read_failed", nil, err)
	}
	endedBefore, err := c.surface.Ended(ctx)
	if err != nil {
		return fmt.Errorf("end check: %w", err)
	}

	if c.cfg.Recorder != nil {
		if _, err := c.cfg.Recorder.SaveScreenshot(c.episode, c.step, shot); err != nil {
			log.Warn("screenshot_save_failed", nil, err)
		}
	}

	// DECIDING: exactly one generate over the current message only
	log.Debug(string(stateDeciding), nil)
	msg, images := c.buildMessage(shot)
	if c.cfg.Recorder != nil {
		if err := c.cfg.Recorder.SavePrompt(c.episode, c.step, []domain.Message{msg}); err != nil {
			log.Warn("prompt_save_failed", nil, err)
		}
		c.cfg.Recorder.AppendHistory(msg.Role, msg.Text(), images)
	}
	if c.cfg.OnExchange != nil {
		c.cfg.OnExchange(domain.RoleUser, msg.Text())
	}

	started := time.Now()
	result, err := c.provider.Generate(ctx, &llm.GenerateRequest{
		Model:    c.cfg.ModelID,
		Messages: []domain.Message{msg},
		Options:  c.cfg.Options,
	})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	c.calls++
	log.TimedEvent("model_call", started, map[string]interface{}{
		"call":   c.calls,
		"tokens": result.Usage.TotalTokens,
	})

	if c.cfg.Recorder != nil {
		c.cfg.Recorder.AppendHistory(domain.RoleAssistant, result.Text, 0)
	}
	if c.cfg.OnExchange != nil {
		c.cfg.OnExchange(domain.RoleAssistant, result.Text)
	}

	c.updateScratchpad(result.Text)
	plan := actions.Parse(result.Text)

	// The model call takes long enough for the game to end meanwhile
	endedAfter, err := c.surface.Ended(ctx)
	if err != nil {
		return fmt.Errorf("end recheck: %w", err)
	}

	var frames []gameplay.Frame
	if endedBefore || endedAfter {
		// Unpause defensively first; a paused game ignores restart keys
		if err := c.surface.PressKey(ctx, escCode); err != nil {
			return fmt.Errorf("resume before restart: %w", err)
		}
		paused = false
		if err := c.restart(ctx); err != nil {
			log.Warn("restart_failed", nil, err)
		}
	} else {
		// ACTING: unfreeze and play the plan out
		log.Debug(string(stateActing), nil)
		if err := c.surface.PressKey(ctx, escCode); err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		paused = false
		frames, err = c.sched.Run(ctx, plan, c.episode, c.step)
		if err != nil {
			return fmt.Errorf("act: %w", err)
		}
		if c.cfg.Recorder != nil {
			for _, f := range frames {
				if _, err := c.cfg.Recorder.SaveFrame(f); err != nil {
					log.Warn("frame_save_failed", nil, err)
				}
			}
		}
		c.prevNames = plan.Names()
		c.prevFrames = frames
	}

	if c.cfg.Recorder != nil {
		rec := record.StepRecord{
			Episode:    c.episode,
			Step:       c.step,
			Score:      c.score,
			Actions:    plan.Names(),
			Scratchpad: c.scratchpad,
			Usage:      result.Usage,
			Elapsed:    result.Elapsed,
			Timestamp:  time.Now(),
		}
		if err := c.cfg.Recorder.RecordStep(ctx, rec); err != nil {
			log.Warn("step_record_failed", nil, err)
		}
	}

	if !(endedBefore || endedAfter) {
		c.step++
	}
	return nil
}

// buildMessage assembles the single user message for this cycle:
// context text, previous segment frames, the current screenshot, then
// the output instructions.
func (c *Controller) buildMessage(currentShot []byte) (domain.Message, int) {
	info := c.surface.Info()
	contextText, outputText := c.cfg.Template.Render(prompt.Fill{
		GameDescription:  info.Description,
		GameControls:     info.Controls,
		Scratchpad:       c.scratchpad,
		PreviousActions:  c.previousActionsText(),
		AvailableActions: actions.AvailableActions(),
	})

	parts := []domain.Part{domain.TextPart{Text: contextText}}
	for _, f := range c.prevFrames {
		parts = append(parts, domain.ImagePart{
			Base64:    record.InlineBase64(f.PNG),
			MediaType: "image/png",
		})
	}
	parts = append(parts, domain.ImagePart{
		Base64:    record.InlineBase64(currentShot),
		MediaType: "image/png",
	})
	if outputText != "" {
		parts = append(parts, domain.TextPart{Text: outputText})
	}

	return domain.Message{Role: domain.RoleUser, Parts: parts}, len(c.prevFrames) + 1
}

func (c *Controller) previousActionsText() string {
	if len(c.prevNames) == 0 {
		return ""
	}
	lines := make([]string, len(c.prevNames))
	for i, names := range c.prevNames {
		lines[i] = fmt.Sprintf("segment %d: %s", i, strings.Join(names, "+"))
	}
	return strings.Join(lines, "\n")
}

// updateScratchpad carries the model's notes into the next cycle. When
// the very first response has no block, the whole response serves as
// memory rather than starting blank.
func (c *Controller) updateScratchpad(text string) {
	if pad := actions.Scratchpad(text); pad != "" {
		c.scratchpad = pad
		return
	}
	if c.scratchpad == "" {
		c.scratchpad = text
	}
}

// restart rolls the run into the next episode. The game may refuse to
// restart; the loop continues either way and retries next cycle.
func (c *Controller) restart(ctx context.Context) error {
	c.stepLog().Info(string(stateRestarting), map[string]interface{}{
		"episode_score": c.score,
	})

	c.episode++
	c.step = 0
	c.prevNames = nil
	c.prevFrames = nil

	return c.surface.Restart(ctx)
}

// Episodes returns how many episodes the run touched.
func (c *Controller) Episodes() int { return c.episode + 1 }

// Calls returns the number of successful model calls so far.
func (c *Controller) Calls() int { return c.calls }
