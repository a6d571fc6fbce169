package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LetsVenture2021/FollowGPT/pkg/planner"
)

const defaultRunLimit = 20

// RunRecord is one logged run
type RunRecord struct {
	ID        string          `json:"id"`
	Prompt    string          `json:"prompt"`
	Plan      json.RawMessage `json:"plan"`
	Result    json.RawMessage `json:"result"`
	CreatedAt time.Time       `json:"createdAt"`
}

// LogRun appends a finished run
func (s *Store) LogRun(ctx context.Context, runID, prompt string, plan *planner.Plan, result *planner.PlanResult) error {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, prompt, plan, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, prompt, string(planJSON), string(resultJSON), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to log run %s: %w", runID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A non-positive limit uses 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prompt, plan, result, created_at FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var (
			r         RunRecord
			plan      string
			result    string
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.Prompt, &plan, &result, &createdAt); err != nil {
			return nil, err
		}
		r.Plan = json.RawMessage(plan)
		r.Result = json.RawMessage(result)
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
