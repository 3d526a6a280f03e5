package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnv(t *testing.T) {
	// Reset env for clean test
	ResetEnv()

	// Set test environment
	os.Setenv("GAMEPILOT_SESSION", "sess-123")
	os.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	os.Setenv("GAMEPILOT_RESULTS", "/tmp/runs")
	defer func() {
		os.Unsetenv("GAMEPILOT_SESSION")
		os.Unsetenv("ANTHROPIC_API_KEY")
		os.Unsetenv("GAMEPILOT_RESULTS")
		ResetEnv()
	}()

	env := Env()

	assert.Equal(t, "sess-123", env.SessionID)
	assert.Equal(t, "sk-ant-test", env.AnthropicKey)
	assert.Equal(t, "/tmp/runs", env.ResultsDir)
}

func TestEnvDefaults(t *testing.T) {
	ResetEnv()

	os.Unsetenv("DEFAULT_MODEL")
	os.Unsetenv("GAMEPILOT_RESULTS")
	defer ResetEnv()

	env := Env()

	assert.Equal(t, "anthropic:claude-sonnet-4-20250514", env.Model)
	assert.Equal(t, "results", env.ResultsDir)
}

func TestEnvGoogleKeyFallback(t *testing.T) {
	ResetEnv()

	os.Unsetenv("GOOGLE_API_KEY")
	os.Setenv("GEMINI_API_KEY", "gemini-key")
	defer func() {
		os.Unsetenv("GEMINI_API_KEY")
		ResetEnv()
	}()

	env := Env()
	assert.Equal(t, "gemini-key", env.GoogleKey)

	// GOOGLE_API_KEY takes precedence when set
	os.Setenv("GOOGLE_API_KEY", "google-key")
	defer os.Unsetenv("GOOGLE_API_KEY")
	ResetEnv()

	env = Env()
	assert.Equal(t, "google-key", env.GoogleKey)
}

func TestEnvSingleton(t *testing.T) {
	ResetEnv()
	defer ResetEnv()

	env1 := Env()
	env2 := Env()

	// Should return same instance
	assert.Same(t, env1, env2)
}

func TestResetEnv(t *testing.T) {
	os.Setenv("GAMEPILOT_SESSION", "first")
	ResetEnv()
	env1 := Env()
	assert.Equal(t, "first", env1.SessionID)

	os.Setenv("GAMEPILOT_SESSION", "second")
	ResetEnv()

	env2 := Env()
	assert.Equal(t, "second", env2.SessionID)

	// Cleanup
	os.Unsetenv("GAMEPILOT_SESSION")
	ResetEnv()
}

func TestGetEnvDefault(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"env set", "TEST_KEY", "value", "default", "value"},
		{"env empty", "TEST_KEY", "", "default", "default"},
		{"env not set", "TEST_KEY_NOTSET", "", "fallback", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envVal != "" {
				os.Setenv(tt.key, tt.envVal)
				defer os.Unsetenv(tt.key)
			}
			got := getEnvDefault(tt.key, tt.fallback)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetPaths(t *testing.T) {
	paths := GetPaths()

	assert.NotEmpty(t, paths.Home)
	assert.Contains(t, paths.Home, ".gamepilot")
	assert.Equal(t, filepath.Join(paths.Home, "cache"), paths.Cache)
	assert.Equal(t, filepath.Join(paths.Home, "prompts"), paths.Prompts)
	assert.Equal(t, filepath.Join(paths.Home, ".env"), paths.EnvFile)
}

func TestPath(t *testing.T) {
	result := Path("subdir", "file.txt")

	assert.Contains(t, result, ".gamepilot")
	assert.Contains(t, result, "subdir")
	assert.Contains(t, result, "file.txt")
}

func TestEnsureDir(t *testing.T) {
	tempDir := filepath.Join(os.TempDir(), "gamepilot-test-ensure")
	defer os.RemoveAll(tempDir)

	os.RemoveAll(tempDir)

	err := EnsureDir(tempDir)
	assert.NoError(t, err)

	info, err := os.Stat(tempDir)
	assert.NoError(t, err)
	assert.True(t, info.IsDir())

	// Running again should be idempotent
	err = EnsureDir(tempDir)
	assert.NoError(t, err)
}
