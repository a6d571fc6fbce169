package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
)

const (
	defaultMaxMatches = 200
	maxGrepFileBytes  = 10 << 20
)

type grepMatch struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

func grepSearchTool() toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "grep_search",
		Description:  "Search text files for a pattern (regex optional).",
		Capabilities: []toolexecutor.Capability{toolexecutor.CapSearchRead, toolexecutor.CapFilesRead},
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"glob":       nonEmptyString(),
				"pattern":    nonEmptyString(),
				"regex":      map[string]interface{}{"type": "boolean", "default": false},
				"ignoreCase": map[string]interface{}{"type": "boolean", "default": true},
				"cwd":        stringType(),
				"maxMatches": map[string]interface{}{"type": "integer", "minimum": 1, "default": defaultMaxMatches},
			},
			"required":             []string{"glob", "pattern"},
			"additionalProperties": false,
		},
		OutputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"matches": map[string]interface{}{"type": "array"}},
			"required":   []string{"matches"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
			base := baseDir(input, "cwd", execCtx)
			files, err := expandGlob(base, stringParam(input, "glob", ""))
			if err != nil {
				return nil, err
			}
			if err := toolexecutor.AuthorizePaths(files, execCtx); err != nil {
				return nil, err
			}

			re, err := compilePattern(stringParam(input, "pattern", ""), boolParam(input, "regex", false), boolParam(input, "ignoreCase", true))
			if err != nil {
				return nil, err
			}
			limit := intParam(input, "maxMatches", defaultMaxMatches)

			matches := []grepMatch{}
			for _, f := range files {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				matches = grepFile(f, re, matches, limit)
				if len(matches) >= limit {
					break
				}
			}
			return map[string]interface{}{"matches": matches}, nil
		},
	}
}

func compilePattern(pattern string, isRegex, ignoreCase bool) (*regexp.Regexp, error) {
	if !isRegex {
		pattern = regexp.QuoteMeta(pattern)
	}
	if ignoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return re, nil
}

// grepFile appends matching lines of path to matches until limit is
// reached. Unreadable and oversized files are skipped.
func grepFile(path string, re *regexp.Regexp, matches []grepMatch, limit int) []grepMatch {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxGrepFileBytes {
		return matches
	}
	f, err := os.Open(path)
	if err != nil {
		return matches
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxGrepFileBytes)
	line := 0
	for scanner.Scan() && len(matches) < limit {
		line++
		text := scanner.Text()
		if re.MatchString(text) {
			matches = append(matches, grepMatch{File: path, Line: line, Text: text})
		}
	}
	return matches
}

func searchIndexTool(index DocumentIndex) toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "search_index",
		Description:  "Search the indexed document corpus (SQLite FTS).",
		Capabilities: []toolexecutor.Capability{toolexecutor.CapSearchRead},
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": nonEmptyString(),
				"limit": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 200, "default": 50},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
		OutputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"hits": map[string]interface{}{"type": "array"}},
			"required":   []string{"hits"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}, _ *toolexecutor.ExecutionContext) (interface{}, error) {
			hits, err := index.SearchDocuments(ctx, stringParam(input, "query", ""), intParam(input, "limit", 50))
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"hits": hits}, nil
		},
	}
}

func indexFilesTool(index DocumentIndex) toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "index_files",
		Description:  "Add matched text files to the search index.",
		Mutate:       true,
		Capabilities: []toolexecutor.Capability{toolexecutor.CapSearchRead, toolexecutor.CapFilesRead},
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"glob": nonEmptyString(),
				"cwd":  stringType(),
			},
			"required":             []string{"glob"},
			"additionalProperties": false,
		},
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"indexed": map[string]interface{}{"type": "integer"},
				"skipped": map[string]interface{}{"type": "integer"},
			},
			"required": []string{"indexed"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
			base := baseDir(input, "cwd", execCtx)
			files, err := expandGlob(base, stringParam(input, "glob", ""))
			if err != nil {
				return nil, err
			}
			if err := toolexecutor.AuthorizePaths(files, execCtx); err != nil {
				return nil, err
			}

			indexed, skipped := 0, 0
			for _, f := range files {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				ok, err := index.IndexFile(ctx, f)
				if err != nil {
					return nil, err
				}
				if ok {
					indexed++
				} else {
					skipped++
				}
			}
			execCtx.Log(fmt.Sprintf("Indexed %d files", indexed), map[string]interface{}{"skipped": skipped})
			return map[string]interface{}{"indexed": indexed, "skipped": skipped}, nil
		},
	}
}
