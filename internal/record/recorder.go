package record

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joss/gamepilot/internal/domain"
	"github.com/joss/gamepilot/internal/gameplay"
	"github.com/joss/gamepilot/internal/logging"
)

const (
	screenshotsDir = "screenshots"
	gameplayDir    = "gameplay"
	promptsDir     = "prompts"
	tempDir        = "temp_screenshots"

	// base64 payloads in prompt dumps are cut to this many characters
	dumpBase64Limit = 64
)

// HistoryEntry is one archived exchange with the model.
type HistoryEntry struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Images    int       `json:"images,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// Recorder owns one run's directory tree and its row in the run
// database.
type Recorder struct {
	ID      string
	Dir     string
	session string
	model   string
	game    string

	store *StepStore
	log   *logging.Logger

	mu         sync.Mutex
	history    []HistoryEntry
	steps      []StepRecord
	cumulative domain.TokenUsage
	samples    int
}

// NewRun creates the run directory tree under resultsDir and registers
// the run in the shared run database.
func NewRun(ctx context.Context, resultsDir, session, model, game string) (*Recorder, error) {
	id := ulid.Make().String()
	dir := filepath.Join(resultsDir, fmt.Sprintf("%s_%s_%s", session, sanitize(model), sanitize(game)))

	for _, sub := range []string{screenshotsDir, gameplayDir, promptsDir, tempDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("create run dir: %w", err)
		}
	}

	store, err := OpenStore(filepath.Join(resultsDir, "runs.db"))
	if err != nil {
		return nil, err
	}
	if err := store.CreateRun(ctx, id, session, model, game, time.Now()); err != nil {
		store.Close()
		return nil, fmt.Errorf("register run: %w", err)
	}

	r := &Recorder{
		ID:      id,
		Dir:     dir,
		session: session,
		model:   model,
		game:    game,
		store:   store,
		log:     logging.New("record").WithSession(session).WithGame(game),
	}
	r.log.Info("run_started", map[string]interface{}{"run": id, "dir": dir})
	return r, nil
}

// sanitize makes a model or game name safe as a path component.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\', ' ':
			return '-'
		}
		return r
	}, s)
}

// SaveScreenshot stores the pre-decision screenshot for a step.
func (r *Recorder) SaveScreenshot(episode, step int, png []byte) (string, error) {
	path := filepath.Join(r.Dir, screenshotsDir, fmt.Sprintf("e%d_s%d.png", episode, step))
	if err := os.WriteFile(path, png, 0644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

// SaveFrame stores one segment-boundary frame.
func (r *Recorder) SaveFrame(frame gameplay.Frame) (string, error) {
	path := filepath.Join(r.Dir, gameplayDir, frame.Label()+".png")
	if err := os.WriteFile(path, frame.PNG, 0644); err != nil {
		return "", fmt.Errorf("write frame: %w", err)
	}
	return path, nil
}

// SampleSink accepts opportunistic sampler frames. Safe for concurrent
// use; matches the gameplay.Sampler sink signature.
func (r *Recorder) SampleSink(png []byte, taken time.Time) {
	r.mu.Lock()
	r.samples++
	n := r.samples
	r.mu.Unlock()

	name := fmt.Sprintf("%013d_%06d.png", taken.UnixMilli(), n)
	if err := os.WriteFile(filepath.Join(r.Dir, tempDir, name), png, 0644); err != nil {
		r.log.Warn("sample_write_failed", nil, err)
	}
}

// promptDump mirrors a message with image payloads truncated so the
// JSON stays readable.
type promptDump struct {
	Role  string           `json:"role"`
	Parts []map[string]any `json:"parts"`
}

// SavePrompt writes the full outgoing message list for a step, with
// base64 truncated.
func (r *Recorder) SavePrompt(episode, step int, msgs []domain.Message) error {
	dumps := make([]promptDump, 0, len(msgs))
	for _, m := range msgs {
		d := promptDump{Role: string(m.Role)}
		for _, p := range m.Parts {
			switch v := p.(type) {
			case domain.TextPart:
				d.Parts = append(d.Parts, map[string]any{"type": "text", "text": v.Text})
			case domain.ImagePart:
				b64 := v.Base64
				if len(b64) > dumpBase64Limit {
					b64 = b64[:dumpBase64Limit] + "...(truncated)"
				}
				d.Parts = append(d.Parts, map[string]any{
					"type": "image", "media_type": v.MediaType, "base64": b64,
				})
			case domain.ImageRefPart:
				d.Parts = append(d.Parts, map[string]any{"type": "image_ref", "path": v.Path})
			case domain.VideoRefPart:
				d.Parts = append(d.Parts, map[string]any{"type": "video_ref", "path": v.Path})
			}
		}
		dumps = append(dumps, d)
	}

	data, err := json.MarshalIndent(dumps, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal prompt dump: %w", err)
	}
	path := filepath.Join(r.Dir, promptsDir, fmt.Sprintf("prompt_e%d_s%d.json", episode, step))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write prompt dump: %w", err)
	}
	return nil
}

// AppendHistory archives one exchange for the final content history.
func (r *Recorder) AppendHistory(role domain.Role, text string, images int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, HistoryEntry{
		Role:      string(role),
		Text:      text,
		Images:    images,
		Timestamp: time.Now(),
	})
}

// RecordStep appends a step record, folding its usage into the run's
// cumulative counters, and indexes it in sqlite.
func (r *Recorder) RecordStep(ctx context.Context, rec StepRecord) error {
	r.mu.Lock()
	r.cumulative.Add(rec.Usage)
	rec.Cumulative = r.cumulative
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	r.steps = append(r.steps, rec)
	r.mu.Unlock()

	if err := r.store.RecordStep(ctx, r.ID, rec); err != nil {
		return fmt.Errorf("index step: %w", err)
	}
	return nil
}

// Cumulative returns the run's token totals so far.
func (r *Recorder) Cumulative() domain.TokenUsage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cumulative
}

// Close writes the final artifacts, assembles the replay GIF from the
// sampled frames, removes the temp directory, and closes the database.
func (r *Recorder) Close(ctx context.Context, finalScore float64, episodes int) error {
	r.mu.Lock()
	history := r.history
	steps := r.steps
	r.mu.Unlock()

	if err := r.writeJSON(fmt.Sprintf("content_history_%s.json", r.ID), history); err != nil {
		r.log.Warn("history_write_failed", nil, err)
	}
	if err := r.writeJSON(fmt.Sprintf("gameplay_log_%s.json", r.ID), steps); err != nil {
		r.log.Warn("gameplay_log_write_failed", nil, err)
	}

	temp := filepath.Join(r.Dir, tempDir)
	gifPath := filepath.Join(r.Dir, fmt.Sprintf("gameplay_%s.gif", r.ID))
	if err := BuildGIF(temp, "*.png", gifPath); err != nil {
		r.log.Warn("gif_build_failed", nil, err)
	} else {
		r.log.Info("gif_written", map[string]interface{}{"path": gifPath})
	}
	if err := os.RemoveAll(temp); err != nil {
		r.log.Warn("temp_cleanup_failed", nil, err)
	}

	if err := r.store.FinishRun(ctx, r.ID, finalScore, episodes); err != nil {
		r.log.Warn("run_finish_failed", nil, err)
	}
	return r.store.Close()
}

func (r *Recorder) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(r.Dir, name), data, 0644)
}
