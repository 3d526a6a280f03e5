// Package tokens provides token counting using tiktoken-go.
// Used for usage accounting when a provider omits token counts.
package tokens

import (
	"math"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/joss/gamepilot/internal/domain"
)

// Counter provides token counting for messages and text.
// Uses cl100k_base encoding as a reasonable cross-vendor proxy.
type Counter struct {
	enc  *tiktoken.Tiktoken
	once sync.Once
	err  error
}

// Global counter instance
var defaultCounter = &Counter{}

// Count returns the number of tokens in the given text.
func Count(text string) int {
	return defaultCounter.Count(text)
}

// CountMessages returns total tokens for a slice of messages.
func CountMessages(msgs []domain.Message) int {
	return defaultCounter.CountMessages(msgs)
}

// Count returns the number of tokens in the given text.
func (c *Counter) Count(text string) int {
	c.init()
	if c.err != nil || c.enc == nil {
		// Fallback: rough estimate (4 chars per token)
		return len(text) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountMessages returns total tokens for a slice of messages.
func (c *Counter) CountMessages(msgs []domain.Message) int {
	total := 0
	for _, msg := range msgs {
		total += c.CountMessage(msg)
	}
	return total
}

// CountMessage returns tokens for a single message.
func (c *Counter) CountMessage(msg domain.Message) int {
	// Base overhead per message (role, formatting)
	tokens := 4

	for _, part := range msg.Parts {
		tokens += c.countPart(part)
	}

	return tokens
}

func (c *Counter) countPart(part domain.Part) int {
	switch p := part.(type) {
	case domain.TextPart:
		return c.Count(p.Text)
	case domain.ImagePart:
		// Rough image costs: 85 tokens for small, 765 for large
		if len(p.Base64) > 100000 {
			return 765
		}
		return 85
	case domain.ImageRefPart:
		return 765
	case domain.VideoRefPart:
		// Frame-sampled by the vendor; treat as a large image batch
		return 2000
	default:
		return 0
	}
}

func (c *Counter) init() {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding("cl100k_base")
	})
}

// familyMultiplier corrects the cl100k estimate for tokenizers that
// split text more aggressively than cl100k_base.
func familyMultiplier(family string) float64 {
	switch family {
	case "gpt":
		return 1.1
	case "qwen", "deepseek":
		return 1.2
	default:
		return 1.0
	}
}

// Estimate returns an approximate token count for text as the given
// model would tokenize it. Used for reasoning text whose token cost the
// vendor does not report.
func Estimate(text, modelID string) int {
	base := float64(len(text)) / 4
	scaled := base * familyMultiplier(domain.ModelFamily(modelID))
	n := int(math.Round(scaled))
	if n == 0 && strings.TrimSpace(text) != "" {
		n = 1
	}
	return n
}
