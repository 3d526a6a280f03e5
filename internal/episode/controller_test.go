package episode

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/gamepilot/internal/domain"
	"github.com/joss/gamepilot/internal/game"
	"github.com/joss/gamepilot/internal/gameplay"
	"github.com/joss/gamepilot/internal/provider"
	"github.com/joss/gamepilot/internal/record"
	"github.com/joss/gamepilot/pkg/llm"
)

type scriptedSurface struct {
	ended        []bool
	endedIdx     int
	pressed      []int
	restarts     int
	shots        int
	shotFailures int
	shotErr      error
	paused       bool
}

func (s *scriptedSurface) Info() game.Info {
	return game.Info{Name: "testgame", Description: "desc", Controls: "ctl"}
}

func (s *scriptedSurface) Screenshot(ctx context.Context) ([]byte, error) {
	s.shots++
	if s.shotErr != nil {
		return nil, s.shotErr
	}
	if s.shots <= s.shotFailures {
		return nil, fmt.Errorf("screenshot %d failed", s.shots)
	}
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (s *scriptedSurface) PressKey(ctx context.Context, code int) error {
	s.pressed = append(s.pressed, code)
	if code == escCode {
		s.paused = !s.paused
	}
	return nil
}

func (s *scriptedSurface) HoldKeys(ctx context.Context, codes []int, hold time.Duration) error {
	return nil
}

func (s *scriptedSurface) Score(ctx context.Context) (float64, error) { return 7, nil }

func (s *scriptedSurface) Ended(ctx context.Context) (bool, error) {
	if s.endedIdx < len(s.ended) {
		v := s.ended[s.endedIdx]
		s.endedIdx++
		return v, nil
	}
	return false, nil
}

func (s *scriptedSurface) Restart(ctx context.Context) error {
	s.restarts++
	return nil
}

func (s *scriptedSurface) Close() error { return nil }

type mockProvider struct {
	responses []string
	idx       int
	err       error
	calls     int
	observe   func()
}

func (m *mockProvider) ID() string             { return "mock" }
func (m *mockProvider) Name() string           { return "Mock" }
func (m *mockProvider) Models() []domain.Model { return nil }

func (m *mockProvider) Generate(ctx context.Context, req *llm.GenerateRequest) (*domain.GenerateResult, error) {
	m.calls++
	if m.observe != nil {
		m.observe()
	}
	if m.err != nil {
		return nil, m.err
	}
	text := `<keys>[["NOOP"],["NOOP"],["NOOP"],["NOOP"],["NOOP"]]</keys>`
	if m.idx < len(m.responses) {
		text = m.responses[m.idx]
		m.idx++
	}
	return &domain.GenerateResult{
		Text:  text,
		Usage: domain.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}, nil
}

func newTestController(surface game.Surface, p llm.Provider, maxCalls int) *Controller {
	return New(surface, p, Config{
		ModelID:         "test-model",
		MaxCalls:        maxCalls,
		SegmentDuration: time.Millisecond,
	})
}

func TestControllerBudgetTermination(t *testing.T) {
	surface := &scriptedSurface{}
	p := &mockProvider{}
	c := newTestController(surface, p, 3)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, 3, c.Calls())
	assert.Equal(t, 3, c.Step())
	assert.Equal(t, 0, c.Episode())
}

func TestControllerEndedStartsNewEpisode(t *testing.T) {
	// Cycle 1 plays normally, cycle 2 sees the game over on both checks
	surface := &scriptedSurface{ended: []bool{false, false, true, true}}
	p := &mockProvider{}
	c := newTestController(surface, p, 2)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 1, c.Episode(), "episode advances exactly once")
	assert.Equal(t, 0, c.Step(), "step resets for the new episode")
	assert.Equal(t, 1, surface.restarts)
}

func TestControllerEndDetectedAfterModelCall(t *testing.T) {
	// The pre-call check is clean; the game ends during the model call
	surface := &scriptedSurface{ended: []bool{false, true}}
	p := &mockProvider{}
	c := newTestController(surface, p, 1)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 1, c.Episode())
	assert.Equal(t, 1, surface.restarts)
}

func TestControllerAuthErrorTerminates(t *testing.T) {
	surface := &scriptedSurface{}
	p := &mockProvider{err: &provider.Error{Kind: provider.KindAuth, Provider: "mock", Message: "bad key"}}
	c := newTestController(surface, p, 5)

	err := c.Run(context.Background())
	require.Error(t, err)
	var provErr *provider.Error
	assert.True(t, errors.As(err, &provErr))
	assert.Equal(t, 1, p.calls, "no retry loop on auth failure")
}

func TestControllerSurfaceErrorSkipsCycle(t *testing.T) {
	old := surfaceErrorSleep
	surfaceErrorSleep = time.Millisecond
	defer func() { surfaceErrorSleep = old }()

	surface := &scriptedSurface{shotErr: fmt.Errorf("page crashed")}
	p := &mockProvider{}
	c := newTestController(surface, p, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, p.calls, "no model call without an observation")
}

func TestControllerScratchpadCarry(t *testing.T) {
	surface := &scriptedSurface{}
	p := &mockProvider{responses: []string{
		`<scratchpad>ball goes left</scratchpad><keys>[["LEFT"]]</keys>`,
		`no blocks at all in this one`,
	}}
	c := newTestController(surface, p, 2)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, "ball goes left", c.scratchpad,
		"a response without a block keeps the previous scratchpad")
}

func TestControllerScratchpadFallbackToFullResponse(t *testing.T) {
	surface := &scriptedSurface{}
	p := &mockProvider{responses: []string{`I think we should move left`}}
	c := newTestController(surface, p, 1)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, "I think we should move left", c.scratchpad)
}

func TestControllerPausesAndResumes(t *testing.T) {
	surface := &scriptedSurface{}
	p := &mockProvider{}
	c := newTestController(surface, p, 1)

	require.NoError(t, c.Run(context.Background()))
	// One pause before observing, one resume before acting
	count := 0
	for _, code := range surface.pressed {
		if code == escCode {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

type stubRecorder struct {
	screenshots int
	frames      int
	prompts     int
	history     int
	steps       []record.StepRecord
}

func (r *stubRecorder) SaveScreenshot(episode, step int, png []byte) (string, error) {
	r.screenshots++
	return "", nil
}

func (r *stubRecorder) SaveFrame(f gameplay.Frame) (string, error) {
	r.frames++
	return "", nil
}

func (r *stubRecorder) SavePrompt(episode, step int, msgs []domain.Message) error {
	r.prompts++
	return nil
}

func (r *stubRecorder) AppendHistory(role domain.Role, text string, images int) {
	r.history++
}

func (r *stubRecorder) RecordStep(ctx context.Context, rec record.StepRecord) error {
	r.steps = append(r.steps, rec)
	return nil
}

func TestControllerRecordsSteps(t *testing.T) {
	surface := &scriptedSurface{}
	p := &mockProvider{responses: []string{
		`<keys>[["UP"],["DOWN"],["NOOP"],["NOOP"],["NOOP"]]</keys>`,
	}}
	rec := &stubRecorder{}
	c := New(surface, p, Config{
		ModelID:         "m",
		MaxCalls:        2,
		SegmentDuration: time.Millisecond,
		Recorder:        rec,
	})

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 2, rec.screenshots)
	assert.Equal(t, 5, rec.frames, "only the non-final cycle plays its plan out")
	assert.Equal(t, 2, rec.prompts)
	assert.Equal(t, 4, rec.history, "user and assistant entries per cycle")
	require.Len(t, rec.steps, 2)
	assert.Equal(t, 7.0, rec.steps[0].Score)
	assert.Equal(t, [][]string{{"UP"}, {"DOWN"}, {"NOOP"}, {"NOOP"}, {"NOOP"}}, rec.steps[0].Actions)
	assert.Equal(t, 15, rec.steps[0].Usage.TotalTokens)
}

func TestControllerBudgetStopsFinalPlan(t *testing.T) {
	surface := &scriptedSurface{}
	p := &mockProvider{responses: []string{
		`<keys>[["UP"],["UP"],["UP"],["UP"],["UP"]]</keys>`,
	}}
	c := newTestController(surface, p, 1)

	require.NoError(t, c.Run(context.Background()))

	// The budget is spent once the only call returns, so none of the
	// plan's key presses reach the game
	for _, code := range surface.pressed {
		assert.Equal(t, escCode, code, "only pause/resume traffic expected, got key %d", code)
	}
}

func TestControllerRestoresPauseAfterFailedCycle(t *testing.T) {
	old := surfaceErrorSleep
	surfaceErrorSleep = time.Millisecond
	defer func() { surfaceErrorSleep = old }()

	// The first observation fails right after the pause press; the
	// cycle must toggle back so later cycles still observe paused
	surface := &scriptedSurface{shotFailures: 1}
	var observed []bool
	p := &mockProvider{observe: func() { observed = append(observed, surface.paused) }}
	c := newTestController(surface, p, 2)

	require.NoError(t, c.Run(context.Background()))
	require.Len(t, observed, 2)
	for i, paused := range observed {
		assert.True(t, paused, "model call %d made while the game was unpaused", i+1)
	}
	assert.False(t, surface.paused, "game left running after the run")
}

func TestControllerContextCancel(t *testing.T) {
	surface := &scriptedSurface{}
	p := &mockProvider{}
	c := newTestController(surface, p, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Run(ctx), context.Canceled)
}
