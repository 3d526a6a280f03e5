package gameplay

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/gamepilot/internal/actions"
	"github.com/joss/gamepilot/internal/game"
)

type fakeSurface struct {
	mu    sync.Mutex
	calls []string
	shots int
}

func (f *fakeSurface) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSurface) Info() game.Info { return game.Info{Name: "testgame"} }

func (f *fakeSurface) Screenshot(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	f.shots++
	f.mu.Unlock()
	return []byte("png"), nil
}

func (f *fakeSurface) PressKey(ctx context.Context, code int) error {
	f.record(fmt.Sprintf("press:%d", code))
	return nil
}

func (f *fakeSurface) HoldKeys(ctx context.Context, codes []int, hold time.Duration) error {
	f.record(fmt.Sprintf("hold:%v", codes))
	time.Sleep(hold)
	return nil
}

func (f *fakeSurface) Score(ctx context.Context) (float64, error) { return 0, nil }
func (f *fakeSurface) Ended(ctx context.Context) (bool, error)    { return false, nil }
func (f *fakeSurface) Restart(ctx context.Context) error          { return nil }
func (f *fakeSurface) Close() error                               { return nil }

func mustPlan(t *testing.T, text string) actions.Plan {
	t.Helper()
	return actions.Parse(text)
}

func TestSchedulerRunsAllSegments(t *testing.T) {
	surface := &fakeSurface{}
	sched := NewScheduler(surface, WithSegmentDuration(5*time.Millisecond))

	plan := mustPlan(t, `<keys>[["UP"],["LEFT","RIGHT"],["NOOP"],["HOLD_SPACE"],["A"]]</keys>`)
	frames, err := sched.Run(context.Background(), plan, 1, 3)
	require.NoError(t, err)
	require.Len(t, frames, 5)

	assert.Equal(t, []string{
		"press:38",
		"press:37",
		"press:39",
		"hold:[32]",
		"press:65",
	}, surface.calls)

	assert.Equal(t, 1, frames[0].Episode)
	assert.Equal(t, 3, frames[0].Step)
	assert.Equal(t, 0, frames[0].Segment)
	assert.Equal(t, []string{"UP"}, frames[0].Actions)
	assert.Equal(t, []string{"NOOP"}, frames[2].Actions)
	assert.Equal(t, []string{"HOLD_SPACE"}, frames[3].Actions)
}

func TestSchedulerWallTime(t *testing.T) {
	surface := &fakeSurface{}
	segment := 20 * time.Millisecond
	sched := NewScheduler(surface, WithSegmentDuration(segment))

	plan := mustPlan(t, `<keys>[["UP"],["HOLD_LEFT"],[],[],["DOWN"]]</keys>`)
	start := time.Now()
	_, err := sched.Run(context.Background(), plan, 0, 0)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 5*segment,
		"idle and NOOP segments must still consume their full duration")
}

func TestSchedulerHoldsSimultaneous(t *testing.T) {
	surface := &fakeSurface{}
	sched := NewScheduler(surface, WithSegmentDuration(5*time.Millisecond))

	plan := mustPlan(t, `<keys>[["HOLD_LEFT","HOLD_UP"],[],[],[],[]]</keys>`)
	_, err := sched.Run(context.Background(), plan, 0, 0)
	require.NoError(t, err)

	// Both hold codes arrive in one call, never staggered presses
	require.Len(t, surface.calls, 1)
	assert.Equal(t, "hold:[37 38]", surface.calls[0])
}

func TestSchedulerStopPredicate(t *testing.T) {
	surface := &fakeSurface{}
	segments := 0
	sched := NewScheduler(surface,
		WithSegmentDuration(time.Millisecond),
		WithStop(func() bool {
			segments++
			return segments > 2
		}),
	)

	plan := mustPlan(t, `<keys>[["UP"],["UP"],["UP"],["UP"],["UP"]]</keys>`)
	frames, err := sched.Run(context.Background(), plan, 0, 0)
	require.NoError(t, err)

	assert.Len(t, frames, 2)
	assert.Len(t, surface.calls, 2)
}

func TestSchedulerContextCancel(t *testing.T) {
	surface := &fakeSurface{}
	sched := NewScheduler(surface, WithSegmentDuration(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := mustPlan(t, `<keys>[["UP"],["UP"],["UP"],["UP"],["UP"]]</keys>`)
	frames, err := sched.Run(ctx, plan, 0, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, frames)
}

func TestSchedulerIdlePlan(t *testing.T) {
	surface := &fakeSurface{}
	sched := NewScheduler(surface, WithSegmentDuration(2*time.Millisecond))

	frames, err := sched.Run(context.Background(), actions.Plan{}, 0, 0)
	require.NoError(t, err)

	assert.Len(t, frames, 5)
	assert.Empty(t, surface.calls, "idle plan sends no keys")
	for i, f := range frames {
		assert.Equal(t, i, f.Segment)
		assert.Equal(t, []string{"NOOP"}, f.Actions)
	}
}

func TestSamplerRateLimit(t *testing.T) {
	surface := &fakeSurface{}
	var mu sync.Mutex
	captured := 0
	sampler := NewSampler(surface, func(png []byte, taken time.Time) {
		mu.Lock()
		captured++
		mu.Unlock()
	})

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		sampler.Maybe(ctx)
	}
	sampler.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, captured, "back-to-back calls inside the interval collapse to one capture")
}

func TestSamplerCapturesAcrossIntervals(t *testing.T) {
	surface := &fakeSurface{}
	var mu sync.Mutex
	captured := 0
	sampler := NewSampler(surface, func(png []byte, taken time.Time) {
		mu.Lock()
		captured++
		mu.Unlock()
	})
	sampler.interval = time.Millisecond

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		sampler.Maybe(ctx)
		sampler.Wait()
		time.Sleep(2 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, captured)
}
