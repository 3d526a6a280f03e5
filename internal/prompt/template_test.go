package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplateSplits(t *testing.T) {
	tpl := Default()

	assert.NotEmpty(t, tpl.Context)
	assert.NotEmpty(t, tpl.Output)
	assert.Contains(t, tpl.Context, "{GAME_DESCRIPTION}")
	assert.Contains(t, tpl.Output, "<keys>")
	assert.NotContains(t, tpl.Context, "**Output:**")
	assert.True(t, len(tpl.Output) > 0 && tpl.Output[0] == '*')
}

func TestRenderFillsPlaceholders(t *testing.T) {
	tpl := Default()
	ctx, out := tpl.Render(Fill{
		GameDescription:  "Dodge the rocks.",
		GameControls:     "LEFT/RIGHT to move",
		Scratchpad:       "stay center",
		PreviousActions:  "seg0: LEFT",
		AvailableActions: []string{"NOOP", "LEFT", "RIGHT"},
	})

	assert.Contains(t, ctx, "Dodge the rocks.")
	assert.Contains(t, ctx, "LEFT/RIGHT to move")
	assert.Contains(t, ctx, "stay center")
	assert.Contains(t, ctx, "seg0: LEFT")
	assert.Contains(t, out, "NOOP, LEFT, RIGHT")
	assert.NotContains(t, ctx, "{GAME_DESCRIPTION}")
	assert.NotContains(t, ctx, "{SCRATCHPAD}")
}

func TestRenderEmptyScratchpad(t *testing.T) {
	tpl := Default()
	ctx, _ := tpl.Render(Fill{GameDescription: "g", GameControls: "c"})

	assert.Contains(t, ctx, "first decision")
	assert.Contains(t, ctx, "(none yet)")
}

func TestLoadCustomTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.md")
	content := "Play {GAME_DESCRIPTION}\n\n**Output:**\n\nUse {AVAILABLE_ACTIONS}"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tpl, err := Load(path)
	require.NoError(t, err)

	ctx, out := tpl.Render(Fill{
		GameDescription:  "pong",
		AvailableActions: []string{"UP", "DOWN"},
	})
	assert.Equal(t, "Play pong", ctx)
	assert.Equal(t, "**Output:**\n\nUse UP, DOWN", out)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/template.md")
	assert.Error(t, err)
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	tpl, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Context, tpl.Context)
}

func TestSplitWithoutMarker(t *testing.T) {
	tpl := split("just context, no marker")
	assert.Equal(t, "just context, no marker", tpl.Context)
	assert.Empty(t, tpl.Output)
}
