package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LetsVenture2021/FollowGPT/pkg/macro"
)

// SaveMacro inserts or replaces the macro called name
func (s *Store) SaveMacro(ctx context.Context, name string, steps []macro.Step) error {
	data, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to encode macro steps: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO macros (name, steps, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET steps=excluded.steps, updated_at=excluded.updated_at
	`, name, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save macro %s: %w", name, err)
	}

	s.logger.Debug().Str("macro", name).Int("steps", len(steps)).Msg("Macro saved")
	return nil
}

// LoadMacros returns every stored macro sorted by name
func (s *Store) LoadMacros(ctx context.Context) ([]macro.Macro, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, steps, updated_at FROM macros ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to load macros: %w", err)
	}
	defer rows.Close()

	macros := []macro.Macro{}
	for rows.Next() {
		m, err := scanMacro(rows)
		if err != nil {
			return nil, err
		}
		macros = append(macros, *m)
	}
	return macros, rows.Err()
}

// GetMacro returns the macro called name or an error wrapping macro.ErrMacroNotFound
func (s *Store) GetMacro(ctx context.Context, name string) (*macro.Macro, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name, steps, updated_at FROM macros WHERE name = ?`, name)
	m, err := scanMacro(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", macro.ErrMacroNotFound, name)
	}
	return m, err
}

// DeleteMacro removes the macro called name and reports whether it existed
func (s *Store) DeleteMacro(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM macros WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete macro %s: %w", name, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMacro(row scanner) (*macro.Macro, error) {
	var (
		name      string
		stepsJSON string
		updatedAt int64
	)
	if err := row.Scan(&name, &stepsJSON, &updatedAt); err != nil {
		return nil, err
	}

	var steps []macro.Step
	if err := json.Unmarshal([]byte(stepsJSON), &steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps of macro %s: %w", name, err)
	}
	return &macro.Macro{
		Name:      name,
		Steps:     steps,
		UpdatedAt: time.UnixMilli(updatedAt).UTC(),
	}, nil
}
