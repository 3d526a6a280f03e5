// Package game drives a browser game: keyboard input, screenshots, and
// state probes.
package game

import (
	"context"
	"time"
)

// Info describes the loaded game, read from the page once at startup.
type Info struct {
	Name        string
	URL         string
	Description string
	Controls    string
}

// Surface is the capability set the episode loop needs from a running
// game. The production implementation drives a real browser; tests use
// fakes.
type Surface interface {
	Info() Info

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// PressKey taps a key (down and up) identified by JS keyCode.
	PressKey(ctx context.Context, code int) error

	// HoldKeys presses all codes, waits for hold, then releases all.
	HoldKeys(ctx context.Context, codes []int, hold time.Duration) error

	// Score reads the current game score from the page.
	Score(ctx context.Context) (float64, error)

	// Ended reports whether the game is in a terminal state.
	Ended(ctx context.Context) (bool, error)

	// Restart brings an ended game back to a playable state.
	Restart(ctx context.Context) error

	Close() error
}
