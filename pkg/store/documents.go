package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/LetsVenture2021/FollowGPT/internal/observability"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 200

	// MaxIndexBytes bounds the size of a file read by IndexFile
	MaxIndexBytes = 2 << 20

	snippetRadius = 40
)

// SearchHit is one ranked document match
type SearchHit struct {
	Path    string  `json:"path"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// IndexDocument stores content under path, replacing any earlier document for path
func (s *Store) IndexDocument(ctx context.Context, path, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if s.fts {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fts_docs WHERE path = ?`, path); err != nil {
			return fmt.Errorf("failed to replace document %s: %w", path, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO fts_docs (path, content) VALUES (?, ?)`, path, content); err != nil {
			return fmt.Errorf("failed to index document %s: %w", path, err)
		}
	} else {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO docs (path, content) VALUES (?, ?)
			ON CONFLICT(path) DO UPDATE SET content=excluded.content
		`, path, content)
		if err != nil {
			return fmt.Errorf("failed to index document %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document %s: %w", path, err)
	}
	observability.RecordIndexedDocuments(1)
	return nil
}

// IndexFile reads a text file and indexes it under its path. Files larger
// than MaxIndexBytes or that are not valid UTF-8 are skipped and reported
// as not indexed.
func (s *Store) IndexFile(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if info.IsDir() || info.Size() > MaxIndexBytes {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if !utf8.Valid(data) {
		s.logger.Debug().Str("path", path).Msg("Skipping non-text file")
		return false, nil
	}

	if err := s.IndexDocument(ctx, path, string(data)); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveDocument drops the document stored under path
func (s *Store) RemoveDocument(ctx context.Context, path string) error {
	table := "docs"
	if s.fts {
		table = "fts_docs"
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE path = ?`, path); err != nil {
		return fmt.Errorf("failed to remove document %s: %w", path, err)
	}
	return nil
}

// CountDocuments returns the number of indexed documents
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	table := "docs"
	if s.fts {
		table = "fts_docs"
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// SearchDocuments returns up to limit documents matching every term of
// query, best match first. Matched terms are marked with [ ] in snippets.
func (s *Store) SearchDocuments(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	terms := strings.Fields(query)
	if len(terms) == 0 {
		return []SearchHit{}, nil
	}

	if s.fts {
		return s.searchFTS(ctx, terms, limit)
	}
	return s.searchLike(ctx, terms, limit)
}

func (s *Store) searchFTS(ctx context.Context, terms []string, limit int) ([]SearchHit, error) {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT path, snippet(fts_docs, 1, '[', ']', '...', 10), bm25(fts_docs) AS rank
		FROM fts_docs
		WHERE fts_docs MATCH ?
		ORDER BY rank
		LIMIT ?
	`, strings.Join(quoted, " "), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	hits := []SearchHit{}
	for rows.Next() {
		var (
			h    SearchHit
			rank float64
		)
		if err := rows.Scan(&h.Path, &h.Snippet, &rank); err != nil {
			return nil, err
		}
		// bm25 is lower-is-better
		h.Score = -rank
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *Store) searchLike(ctx context.Context, terms []string, limit int) ([]SearchHit, error) {
	clauses := make([]string, len(terms))
	args := make([]interface{}, 0, len(terms)+1)
	for i, t := range terms {
		clauses[i] = `content LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(t)+"%")
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, content FROM docs WHERE `+strings.Join(clauses, " AND ")+` ORDER BY path LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	hits := []SearchHit{}
	for rows.Next() {
		var path, content string
		if err := rows.Scan(&path, &content); err != nil {
			return nil, err
		}
		hits = append(hits, SearchHit{
			Path:    path,
			Snippet: likeSnippet(content, terms[0]),
			Score:   float64(countFold(content, terms)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortHits(hits)
	return hits, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func countFold(content string, terms []string) int {
	lower := strings.ToLower(content)
	n := 0
	for _, t := range terms {
		n += strings.Count(lower, strings.ToLower(t))
	}
	return n
}

// likeSnippet marks the first case-insensitive occurrence of term with
// surrounding context, in the same shape FTS5 snippets use.
func likeSnippet(content, term string) string {
	idx := strings.Index(strings.ToLower(content), strings.ToLower(term))
	if idx < 0 || idx+len(term) > len(content) {
		return ""
	}
	start := idx - snippetRadius
	prefix := "..."
	if start <= 0 {
		start = 0
		prefix = ""
	}
	end := idx + len(term) + snippetRadius
	suffix := "..."
	if end >= len(content) {
		end = len(content)
		suffix = ""
	}
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}

	snippet := content[start:idx] + "[" + content[idx:idx+len(term)] + "]" + content[idx+len(term):end]
	return prefix + strings.Join(strings.Fields(snippet), " ") + suffix
}

func sortHits(hits []SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}
