package gameplay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joss/gamepilot/internal/game"
	"github.com/joss/gamepilot/internal/logging"
)

// DefaultSampleInterval caps opportunistic capture at 20 frames per
// second.
const DefaultSampleInterval = 50 * time.Millisecond

// Sampler grabs extra gameplay frames between segment boundaries
// without disturbing plan timing. Captures are best effort: a call that
// arrives while a capture is still in flight, or before the interval
// has elapsed, is dropped.
type Sampler struct {
	surface  game.Surface
	sink     func(png []byte, taken time.Time)
	interval time.Duration
	log      *logging.Logger

	mu   sync.Mutex
	last time.Time
	busy atomic.Bool
	wg   sync.WaitGroup
}

// NewSampler builds a sampler that hands captured frames to sink. The
// sink must be safe for concurrent use.
func NewSampler(surface game.Surface, sink func(png []byte, taken time.Time)) *Sampler {
	return &Sampler{
		surface:  surface,
		sink:     sink,
		interval: DefaultSampleInterval,
		log:      logging.New("sampler"),
	}
}

// Maybe captures a frame if the interval has elapsed and no capture is
// already running. It never blocks the caller on the screenshot itself.
func (s *Sampler) Maybe(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	if now.Sub(s.last) < s.interval {
		s.mu.Unlock()
		return
	}
	s.last = now
	s.mu.Unlock()

	if !s.busy.CompareAndSwap(false, true) {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)

		png, err := s.surface.Screenshot(ctx)
		if err != nil {
			s.log.Debug("sample_dropped", map[string]interface{}{"error": err.Error()})
			return
		}
		s.sink(png, now)
	}()
}

// Wait blocks until any in-flight capture has finished. Call at
// teardown before the surface closes.
func (s *Sampler) Wait() {
	s.wg.Wait()
}
