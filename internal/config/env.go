// Package config provides centralized configuration management.
// All os.Getenv access goes through the singleton here.
package config

import (
	"os"
	"path/filepath"
	"sync"
)

// GameEnv holds all gamepilot environment variables.
type GameEnv struct {
	// SessionID is the current session identifier (GAMEPILOT_SESSION)
	SessionID string

	// Model is the default model spec, provider:model (DEFAULT_MODEL)
	Model string

	// ResultsDir is where run artifacts are written (GAMEPILOT_RESULTS)
	ResultsDir string

	// AnthropicKey is the Anthropic API key (ANTHROPIC_API_KEY)
	AnthropicKey string

	// AnthropicBaseURL overrides the Anthropic API base URL (ANTHROPIC_BASE_URL)
	AnthropicBaseURL string

	// OpenAIKey is the OpenAI API key (OPENAI_API_KEY)
	OpenAIKey string

	// OpenAIBaseURL overrides the OpenAI API base URL (OPENAI_BASE_URL)
	OpenAIBaseURL string

	// GoogleKey is the Google API key (GOOGLE_API_KEY, falls back to GEMINI_API_KEY)
	GoogleKey string

	// TogetherKey is the Together AI API key (TOGETHER_API_KEY)
	TogetherKey string

	// XAIKey is the xAI API key (XAI_API_KEY)
	XAIKey string

	// BrowserBin overrides the browser binary path (GAMEPILOT_BROWSER)
	BrowserBin string
}

var (
	env     *GameEnv
	envOnce sync.Once
)

// Env returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func Env() *GameEnv {
	envOnce.Do(func() {
		googleKey := os.Getenv("GOOGLE_API_KEY")
		if googleKey == "" {
			googleKey = os.Getenv("GEMINI_API_KEY")
		}
		env = &GameEnv{
			SessionID:        os.Getenv("GAMEPILOT_SESSION"),
			Model:            getEnvDefault("DEFAULT_MODEL", "anthropic:claude-sonnet-4-20250514"),
			ResultsDir:       getEnvDefault("GAMEPILOT_RESULTS", "results"),
			AnthropicKey:     os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicBaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
			OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
			GoogleKey:        googleKey,
			TogetherKey:      os.Getenv("TOGETHER_API_KEY"),
			XAIKey:           os.Getenv("XAI_API_KEY"),
			BrowserBin:       os.Getenv("GAMEPILOT_BROWSER"),
		}
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Paths holds standard gamepilot directory paths.
type Paths struct {
	// Home is the gamepilot home directory (~/.gamepilot)
	Home string

	// Cache is the cache directory for tokenizer data (~/.gamepilot/cache)
	Cache string

	// Prompts is the prompt template directory (~/.gamepilot/prompts)
	Prompts string

	// EnvFile is the .env file path (~/.gamepilot/.env)
	EnvFile string
}

var (
	paths     *Paths
	pathsOnce sync.Once
)

// GetPaths returns the singleton paths configuration.
func GetPaths() *Paths {
	pathsOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		pilotHome := filepath.Join(home, ".gamepilot")

		paths = &Paths{
			Home:    pilotHome,
			Cache:   filepath.Join(pilotHome, "cache"),
			Prompts: filepath.Join(pilotHome, "prompts"),
			EnvFile: filepath.Join(pilotHome, ".env"),
		}
	})
	return paths
}

// Path returns a path under the gamepilot home directory.
func Path(parts ...string) string {
	p := GetPaths()
	allParts := append([]string{p.Home}, parts...)
	return filepath.Join(allParts...)
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
