package domain

import "strings"

// ThinkingFormat names how a model exposes extended reasoning on the wire.
type ThinkingFormat string

const (
	ThinkingNone      ThinkingFormat = ""
	ThinkingAnthropic ThinkingFormat = "anthropic" // thinking block with budget_tokens
	ThinkingGoogle    ThinkingFormat = "google"    // thinkingConfig.thinkingBudget
	ThinkingOpenAI    ThinkingFormat = "openai"    // built-in, not request-controlled
)

// Model describes one catalog entry.
type Model struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Provider         string         `json:"provider"`
	Family           string         `json:"family"`
	ContextSize      int            `json:"contextSize"`
	SupportsThinking bool           `json:"supportsThinking"`
	ThinkingFormat   ThinkingFormat `json:"thinkingFormat,omitempty"`
	SupportsVideo    bool           `json:"supportsVideo,omitempty"`
}

// catalog is built once at init and never mutated afterwards.
var catalog = map[string]Model{
	"claude-3-5-sonnet-20241022": {Name: "Claude 3.5 Sonnet", Provider: "anthropic", Family: "claude", ContextSize: 200_000},
	"claude-3-7-sonnet-20250219": {Name: "Claude 3.7 Sonnet", Provider: "anthropic", Family: "claude", ContextSize: 200_000, SupportsThinking: true, ThinkingFormat: ThinkingAnthropic},
	"claude-sonnet-4-20250514":   {Name: "Claude Sonnet 4", Provider: "anthropic", Family: "claude", ContextSize: 200_000, SupportsThinking: true, ThinkingFormat: ThinkingAnthropic},
	"claude-opus-4-20250514":     {Name: "Claude Opus 4", Provider: "anthropic", Family: "claude", ContextSize: 200_000, SupportsThinking: true, ThinkingFormat: ThinkingAnthropic},

	"gpt-4o":      {Name: "GPT-4o", Provider: "openai", Family: "gpt", ContextSize: 128_000},
	"gpt-4o-mini": {Name: "GPT-4o mini", Provider: "openai", Family: "gpt", ContextSize: 128_000},
	"gpt-4.1":     {Name: "GPT-4.1", Provider: "openai", Family: "gpt", ContextSize: 1_000_000},
	"gpt-5":       {Name: "GPT-5", Provider: "openai", Family: "gpt", ContextSize: 400_000, SupportsThinking: true, ThinkingFormat: ThinkingOpenAI},
	"o1":          {Name: "o1", Provider: "openai", Family: "gpt", ContextSize: 200_000, SupportsThinking: true, ThinkingFormat: ThinkingOpenAI},
	"o1-mini":     {Name: "o1 mini", Provider: "openai", Family: "gpt", ContextSize: 128_000, SupportsThinking: true, ThinkingFormat: ThinkingOpenAI},

	"gemini-2.0-flash": {Name: "Gemini 2.0 Flash", Provider: "google", Family: "gemini", ContextSize: 1_000_000, SupportsVideo: true},
	"gemini-2.5-flash": {Name: "Gemini 2.5 Flash", Provider: "google", Family: "gemini", ContextSize: 1_000_000, SupportsThinking: true, ThinkingFormat: ThinkingGoogle, SupportsVideo: true},
	"gemini-2.5-pro":   {Name: "Gemini 2.5 Pro", Provider: "google", Family: "gemini", ContextSize: 1_000_000, SupportsThinking: true, ThinkingFormat: ThinkingGoogle, SupportsVideo: true},

	"meta-llama/Llama-4-Maverick-17B-128E-Instruct-FP8": {Name: "Llama 4 Maverick", Provider: "together", Family: "llama", ContextSize: 1_000_000},
	"Qwen/Qwen2.5-VL-72B-Instruct":                      {Name: "Qwen2.5 VL 72B", Provider: "together", Family: "qwen", ContextSize: 32_000},
	"deepseek-ai/DeepSeek-V3":                           {Name: "DeepSeek V3", Provider: "together", Family: "deepseek", ContextSize: 128_000},

	"grok-2-vision": {Name: "Grok 2 Vision", Provider: "xai", Family: "grok", ContextSize: 32_000},
	"grok-4":        {Name: "Grok 4", Provider: "xai", Family: "grok", ContextSize: 256_000, SupportsThinking: true, ThinkingFormat: ThinkingOpenAI},
}

func init() {
	for id, m := range catalog {
		m.ID = id
		catalog[id] = m
	}
}

// LookupModel returns the catalog entry for id, when one exists.
func LookupModel(id string) (Model, bool) {
	m, ok := catalog[id]
	return m, ok
}

// ModelFamily classifies a model id for token estimation. Falls back to
// substring matching for ids missing from the catalog.
func ModelFamily(id string) string {
	if m, ok := catalog[id]; ok {
		return m.Family
	}
	lower := strings.ToLower(id)
	switch {
	case strings.Contains(lower, "claude"):
		return "claude"
	case strings.Contains(lower, "gpt"), strings.HasPrefix(lower, "o1"):
		return "gpt"
	case strings.Contains(lower, "gemini"):
		return "gemini"
	case strings.Contains(lower, "qwen"):
		return "qwen"
	case strings.Contains(lower, "deepseek"):
		return "deepseek"
	case strings.Contains(lower, "llama"):
		return "llama"
	case strings.Contains(lower, "grok"):
		return "grok"
	default:
		return ""
	}
}

// SupportsThinking reports whether extended reasoning can be requested
// for the given model id. Unknown models are assumed not to support it.
func SupportsThinking(id string) bool {
	m, ok := catalog[id]
	return ok && m.SupportsThinking
}

// Models returns all catalog entries for a provider. Order is unspecified.
func Models(provider string) []Model {
	var out []Model
	for _, m := range catalog {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	return out
}
