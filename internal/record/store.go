// Package record persists everything a run produces: screenshots,
// gameplay frames, prompt dumps, step records, a sqlite index, and a
// replay GIF.
package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/joss/gamepilot/internal/domain"
)

// StepRecord is one decision cycle's outcome.
type StepRecord struct {
	Episode    int               `json:"episode"`
	Step       int               `json:"step"`
	Score      float64           `json:"score"`
	Actions    [][]string        `json:"actions"`
	Scratchpad string            `json:"scratchpad,omitempty"`
	Usage      domain.TokenUsage `json:"usage"`
	Cumulative domain.TokenUsage `json:"cumulative_usage"`
	Elapsed    time.Duration     `json:"elapsed"`
	Timestamp  time.Time         `json:"ts"`
}

// RunSummary describes one recorded run for the runs listing.
type RunSummary struct {
	ID         string
	Session    string
	Model      string
	Game       string
	StartedAt  time.Time
	EndedAt    time.Time
	FinalScore float64
	Episodes   int
	Steps      int
	Tokens     int
}

// StepStore is the sqlite index of runs and their steps.
type StepStore struct {
	db *sql.DB
}

// OpenStore opens (and migrates) the run database at dbPath.
func OpenStore(dbPath string) (*StepStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}

	s := &StepStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *StepStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		session TEXT NOT NULL,
		model TEXT NOT NULL,
		game TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		final_score REAL NOT NULL DEFAULT 0,
		episodes INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

	CREATE TABLE IF NOT EXISTS steps (
		run_id TEXT NOT NULL,
		episode INTEGER NOT NULL,
		step INTEGER NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		reasoning_tokens INTEGER NOT NULL DEFAULT 0,
		actions_json TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, episode, step),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_steps_run ON steps(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *StepStore) Close() error {
	return s.db.Close()
}

// CreateRun registers a new run.
func (s *StepStore) CreateRun(ctx context.Context, id, session, model, game string, started time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, session, model, game, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, session, model, game, started)
	return err
}

// RecordStep writes one step row.
func (s *StepStore) RecordStep(ctx context.Context, runID string, rec StepRecord) error {
	actionsJSON, err := json.Marshal(rec.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO steps (run_id, episode, step, score, input_tokens, output_tokens,
						   total_tokens, reasoning_tokens, actions_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, episode, step) DO UPDATE SET
			score = excluded.score,
			actions_json = excluded.actions_json
	`, runID, rec.Episode, rec.Step, rec.Score,
		rec.Usage.InputTokens, rec.Usage.OutputTokens,
		rec.Usage.TotalTokens, rec.Usage.ReasoningTokens,
		actionsJSON, rec.Timestamp)
	return err
}

// FinishRun stamps the run's end time, final score, and episode count.
func (s *StepStore) FinishRun(ctx context.Context, runID string, finalScore float64, episodes int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET ended_at = ?, final_score = ?, episodes = ? WHERE id = ?
	`, time.Now(), finalScore, episodes, runID)
	return err
}

// ListRuns returns the most recent runs with their step and token
// totals.
func (s *StepStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.session, r.model, r.game, r.started_at,
			   r.ended_at, r.final_score, r.episodes,
			   COUNT(s.run_id), COALESCE(SUM(s.total_tokens), 0)
		FROM runs r LEFT JOIN steps s ON s.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var ended sql.NullTime
		if err := rows.Scan(&r.ID, &r.Session, &r.Model, &r.Game, &r.StartedAt,
			&ended, &r.FinalScore, &r.Episodes, &r.Steps, &r.Tokens); err != nil {
			return nil, err
		}
		// A run that never reached teardown has no ended_at
		r.EndedAt = r.StartedAt
		if ended.Valid {
			r.EndedAt = ended.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
