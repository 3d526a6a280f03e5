package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TokenUsage tracks token accounting for a single generation call.
// Fields are zero when the vendor does not report them.
type TokenUsage struct {
	InputTokens     int `json:"inputTokens"`
	OutputTokens    int `json:"outputTokens"`
	TotalTokens     int `json:"totalTokens"`
	ReasoningTokens int `json:"reasoningTokens,omitempty"`
}

// Add combines two TokenUsage values
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	u.ReasoningTokens += other.ReasoningTokens
}

// GenerateResult is the normalized outcome of one model call.
type GenerateResult struct {
	Text          string          `json:"text"`
	ReasoningText string          `json:"reasoningText,omitempty"`
	Usage         TokenUsage      `json:"usage"`
	Elapsed       time.Duration   `json:"elapsed"`
	Raw           json.RawMessage `json:"-"`
}

// GenerateOptions are sampling parameters for one call. Pointer fields
// are omitted from the request when nil; adapters ignore fields their
// vendor does not support.
type GenerateOptions struct {
	Temperature    *float64 `json:"temperature,omitempty"`
	TopP           *float64 `json:"topP,omitempty"`
	TopK           *int     `json:"topK,omitempty"`
	MaxTokens      *int     `json:"maxTokens,omitempty"`
	Seed           *int     `json:"seed,omitempty"`
	EnableThinking bool     `json:"enableThinking,omitempty"`
}

// Validate checks option values against the ranges the vendors accept.
func (o GenerateOptions) Validate() error {
	if o.Temperature != nil && (*o.Temperature < 0 || *o.Temperature > 2) {
		return fmt.Errorf("temperature %v out of range [0, 2]", *o.Temperature)
	}
	if o.TopP != nil && (*o.TopP < 0 || *o.TopP > 1) {
		return fmt.Errorf("top_p %v out of range [0, 1]", *o.TopP)
	}
	if o.TopK != nil && *o.TopK < 1 {
		return fmt.Errorf("top_k %d must be >= 1", *o.TopK)
	}
	if o.MaxTokens != nil && *o.MaxTokens < 1 {
		return fmt.Errorf("max_tokens %d must be >= 1", *o.MaxTokens)
	}
	return nil
}

// FormatTokens returns a human-readable token count
func FormatTokens(tokens int) string {
	if tokens < 1000 {
		return fmt.Sprintf("%d", tokens)
	}
	return fmt.Sprintf("%.1fk", float64(tokens)/1000)
}
