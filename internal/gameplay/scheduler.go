// Package gameplay executes action plans against a live game surface
// with real-time segment pacing.
package gameplay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joss/gamepilot/internal/actions"
	"github.com/joss/gamepilot/internal/game"
	"github.com/joss/gamepilot/internal/logging"
)

// DefaultSegmentDuration is the wall time each plan segment occupies.
const DefaultSegmentDuration = 200 * time.Millisecond

// Frame is one screenshot captured at a segment boundary, tagged with
// where in the run it was taken and what the plan did in that segment.
type Frame struct {
	Episode int
	Step    int
	Segment int
	Actions []string
	PNG     []byte
	Taken   time.Time
}

// Label renders the frame tag used in filenames and the next prompt.
func (f Frame) Label() string {
	return fmt.Sprintf("e%d_s%d_seg%d_%s", f.Episode, f.Step, f.Segment, strings.Join(f.Actions, "+"))
}

// StopFunc is consulted at segment boundaries; returning true abandons
// the rest of the plan.
type StopFunc func() bool

// Scheduler runs plans against a surface one segment at a time.
type Scheduler struct {
	surface game.Surface
	segment time.Duration
	sampler *Sampler
	stop    StopFunc
	log     *logging.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSegmentDuration overrides the per-segment wall time.
func WithSegmentDuration(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.segment = d }
}

// WithSampler attaches an opportunistic frame sampler that runs while
// segments idle.
func WithSampler(sampler *Sampler) SchedulerOption {
	return func(s *Scheduler) { s.sampler = sampler }
}

// WithStop installs a budget predicate checked before each segment.
func WithStop(stop StopFunc) SchedulerOption {
	return func(s *Scheduler) { s.stop = stop }
}

// NewScheduler builds a scheduler for the given surface.
func NewScheduler(surface game.Surface, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		surface: surface,
		segment: DefaultSegmentDuration,
		log:     logging.New("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes all five segments of a plan in order. Instant keys in a
// segment fire sequentially; hold keys go down together, stay down for
// the segment duration, and come up together. A segment with no actions
// still consumes its full duration. One frame is captured per completed
// segment.
func (s *Scheduler) Run(ctx context.Context, plan actions.Plan, episode, step int) ([]Frame, error) {
	names := plan.Names()
	frames := make([]Frame, 0, actions.PlanSegments)

	for i, seg := range plan {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		if s.stop != nil && s.stop() {
			s.log.WithStep(episode, step).Info("plan_abandoned", map[string]interface{}{
				"completed_segments": i,
			})
			return frames, nil
		}

		start := time.Now()

		var holds []int
		for _, a := range seg {
			if a.Hold {
				holds = append(holds, a.Code)
			}
		}
		for _, a := range seg {
			if a.Hold {
				continue
			}
			if err := s.surface.PressKey(ctx, a.Code); err != nil {
				return frames, fmt.Errorf("segment %d press %s: %w", i, a.Name, err)
			}
		}
		if len(holds) > 0 {
			if err := s.surface.HoldKeys(ctx, holds, s.segment); err != nil {
				return frames, fmt.Errorf("segment %d hold: %w", i, err)
			}
		}

		// Sleep only what the key work has not already consumed
		if err := s.idle(ctx, s.segment-time.Since(start)); err != nil {
			return frames, err
		}

		png, err := s.surface.Screenshot(ctx)
		if err != nil {
			s.log.WithStep(episode, step).Warn("segment_capture_failed", map[string]interface{}{
				"segment": i,
			}, err)
			continue
		}
		frames = append(frames, Frame{
			Episode: episode,
			Step:    step,
			Segment: i,
			Actions: names[i],
			PNG:     png,
			Taken:   time.Now(),
		})
	}

	return frames, nil
}

// idle sleeps the remaining segment time in short slices so the sampler
// gets a chance to grab frames mid-segment.
func (s *Scheduler) idle(ctx context.Context, remaining time.Duration) error {
	for remaining > 0 {
		slice := remaining
		if s.sampler != nil && slice > s.sampler.interval {
			slice = s.sampler.interval
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(slice):
		}
		if s.sampler != nil {
			s.sampler.Maybe(ctx)
		}
		remaining -= slice
	}
	return nil
}
