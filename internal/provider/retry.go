package provider

import (
	"context"
	"time"

	"github.com/joss/gamepilot/internal/domain"
	"github.com/joss/gamepilot/internal/logging"
	"github.com/joss/gamepilot/pkg/llm"
)

const (
	defaultMaxRetries = 1
	defaultRetryDelay = 5 * time.Second
)

// Retrier wraps a provider and retries quota failures with a fixed
// delay. All other failures propagate unchanged.
type Retrier struct {
	provider   llm.Provider
	maxRetries int
	delay      time.Duration
	sleep      func(context.Context, time.Duration) error
	log        *logging.Logger
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithMaxRetries sets how many times a quota failure is retried.
func WithMaxRetries(n int) RetrierOption {
	return func(r *Retrier) { r.maxRetries = n }
}

// WithRetryDelay sets the fixed pause between attempts.
func WithRetryDelay(d time.Duration) RetrierOption {
	return func(r *Retrier) { r.delay = d }
}

// WithSleep overrides the sleep function (for testing).
func WithSleep(fn func(context.Context, time.Duration) error) RetrierOption {
	return func(r *Retrier) { r.sleep = fn }
}

// NewRetrier wraps a provider with quota retry behavior.
func NewRetrier(p llm.Provider, opts ...RetrierOption) *Retrier {
	r := &Retrier{
		provider:   p,
		maxRetries: defaultMaxRetries,
		delay:      defaultRetryDelay,
		sleep:      sleepCtx,
		log:        logging.New("provider.retry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrier) ID() string             { return r.provider.ID() }
func (r *Retrier) Name() string           { return r.provider.Name() }
func (r *Retrier) Models() []domain.Model { return r.provider.Models() }

func (r *Retrier) Generate(ctx context.Context, req *llm.GenerateRequest) (*domain.GenerateResult, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			r.log.Warn("quota_retry", map[string]interface{}{
				"provider": r.provider.ID(),
				"attempt":  attempt,
				"delay_s":  r.delay.Seconds(),
			}, lastErr)
			if err := r.sleep(ctx, r.delay); err != nil {
				return nil, err
			}
		}

		result, err := r.provider.Generate(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsQuotaError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ llm.Provider = (*Retrier)(nil)
