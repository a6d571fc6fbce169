package store

import (
	"context"
	"fmt"
	"time"
)

// TagFile records tag for file
func (s *Store) TagFile(ctx context.Context, file, tag string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (file, tag, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(file, tag) DO UPDATE SET updated_at=excluded.updated_at
	`, file, tag, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to tag %s: %w", file, err)
	}
	return nil
}

// TagsForFile returns the tags recorded for file, sorted
func (s *Store) TagsForFile(ctx context.Context, file string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM tags WHERE file = ? ORDER BY tag`, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
