package record

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/gamepilot/internal/domain"
	"github.com/joss/gamepilot/internal/gameplay"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStepStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.CreateRun(ctx, "run1", "sess", "anthropic:claude", "pong", time.Now()))

	rec := StepRecord{
		Episode: 0,
		Step:    1,
		Score:   42,
		Actions: [][]string{{"UP"}, {"NOOP"}, {"NOOP"}, {"NOOP"}, {"NOOP"}},
		Usage:   domain.TokenUsage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120},
	}
	rec.Timestamp = time.Now()
	require.NoError(t, store.RecordStep(ctx, "run1", rec))
	require.NoError(t, store.FinishRun(ctx, "run1", 42, 1))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run1", runs[0].ID)
	assert.Equal(t, "pong", runs[0].Game)
	assert.Equal(t, 42.0, runs[0].FinalScore)
	assert.Equal(t, 1, runs[0].Steps)
	assert.Equal(t, 120, runs[0].Tokens)
}

func TestStepStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.CreateRun(ctx, "run1", "s", "m", "g", time.Now()))

	rec := StepRecord{Episode: 0, Step: 0, Score: 1, Actions: [][]string{}, Timestamp: time.Now()}
	require.NoError(t, store.RecordStep(ctx, "run1", rec))
	rec.Score = 5
	require.NoError(t, store.RecordStep(ctx, "run1", rec))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, runs[0].Steps)
}

func TestStepStoreListUnfinishedRun(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	started := time.Now()
	require.NoError(t, store.CreateRun(ctx, "run1", "s", "m", "g", started))

	// No FinishRun: ended_at is NULL and the listing must still work
	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.WithinDuration(t, started, runs[0].EndedAt, time.Second)
}

func TestDownscale(t *testing.T) {
	data := testPNG(t, 800, 600)
	scaled, err := Downscale(data)
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(scaled))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dy(), "short side capped at 256")
	assert.InDelta(t, 341, img.Bounds().Dx(), 1, "aspect ratio preserved")
}

func TestDownscaleSmallImagePassthrough(t *testing.T) {
	data := testPNG(t, 100, 80)
	scaled, err := Downscale(data)
	require.NoError(t, err)
	assert.Equal(t, data, scaled)
}

func TestRecorderLifecycle(t *testing.T) {
	ctx := context.Background()
	results := t.TempDir()

	r, err := NewRun(ctx, results, "sess1", "anthropic:claude-sonnet-4", "breakout")
	require.NoError(t, err)

	assert.Contains(t, r.Dir, "sess1_anthropic-claude-sonnet-4_breakout")
	for _, sub := range []string{"screenshots", "gameplay", "prompts", "temp_screenshots"} {
		info, err := os.Stat(filepath.Join(r.Dir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	shot := testPNG(t, 64, 48)
	path, err := r.SaveScreenshot(0, 1, shot)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = r.SaveFrame(gameplay.Frame{
		Episode: 0, Step: 1, Segment: 2,
		Actions: []string{"LEFT", "RIGHT"},
		PNG:     shot,
	})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(r.Dir, "gameplay", "e0_s1_seg2_LEFT+RIGHT.png"))

	r.SampleSink(shot, time.Now())
	r.SampleSink(shot, time.Now().Add(time.Millisecond))

	require.NoError(t, r.RecordStep(ctx, StepRecord{
		Episode: 0, Step: 1, Score: 10,
		Actions: [][]string{{"LEFT"}},
		Usage:   domain.TokenUsage{InputTokens: 50, OutputTokens: 10, TotalTokens: 60},
	}))
	require.NoError(t, r.RecordStep(ctx, StepRecord{
		Episode: 0, Step: 2, Score: 15,
		Actions: [][]string{{"RIGHT"}},
		Usage:   domain.TokenUsage{InputTokens: 40, OutputTokens: 10, TotalTokens: 50},
	}))
	assert.Equal(t, 110, r.Cumulative().TotalTokens)

	r.AppendHistory(domain.RoleUser, "prompt text", 2)
	r.AppendHistory(domain.RoleAssistant, "response text", 0)

	require.NoError(t, r.Close(ctx, 15, 1))

	assert.FileExists(t, filepath.Join(r.Dir, "content_history_"+r.ID+".json"))
	assert.FileExists(t, filepath.Join(r.Dir, "gameplay_log_"+r.ID+".json"))
	assert.FileExists(t, filepath.Join(r.Dir, "gameplay_"+r.ID+".gif"))
	assert.NoDirExists(t, filepath.Join(r.Dir, "temp_screenshots"))

	// Second step carries the running total
	var steps []StepRecord
	data, err := os.ReadFile(filepath.Join(r.Dir, "gameplay_log_"+r.ID+".json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &steps))
	require.Len(t, steps, 2)
	assert.Equal(t, 60, steps[0].Cumulative.TotalTokens)
	assert.Equal(t, 110, steps[1].Cumulative.TotalTokens)
}

func TestSavePromptTruncatesBase64(t *testing.T) {
	ctx := context.Background()
	r, err := NewRun(ctx, t.TempDir(), "s", "m", "g")
	require.NoError(t, err)
	defer r.Close(ctx, 0, 0)

	long := strings.Repeat("A", 500)
	msgs := []domain.Message{{
		Role: domain.RoleUser,
		Parts: []domain.Part{
			domain.TextPart{Text: "look at this"},
			domain.ImagePart{Base64: long, MediaType: "image/png"},
		},
	}}
	require.NoError(t, r.SavePrompt(1, 3, msgs))

	data, err := os.ReadFile(filepath.Join(r.Dir, "prompts", "prompt_e1_s3.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "look at this")
	assert.Contains(t, string(data), "(truncated)")
	assert.NotContains(t, string(data), long)
}

func TestBuildGIF(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(
			filepath.Join(dir, time.Now().Add(time.Duration(i)*time.Millisecond).Format("150405.000")+".png"),
			testPNG(t, 32, 32), 0o644))
	}

	out := filepath.Join(t.TempDir(), "out.gif")
	require.NoError(t, BuildGIF(dir, "*.png", out))
	assert.FileExists(t, out)
}

func TestBuildGIFNoFrames(t *testing.T) {
	err := BuildGIF(t.TempDir(), "*.png", filepath.Join(t.TempDir(), "out.gif"))
	assert.Error(t, err)
}
