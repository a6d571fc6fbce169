package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"syscall"

	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
	"github.com/dustin/go-humanize"
)

const (
	defaultTopN = 15
	topExtCount = 10
)

func findPDFsTool() toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "find_pdfs",
		Description:  "Find all PDF files under a root (case-insensitive).",
		Capabilities: []toolexecutor.Capability{toolexecutor.CapFilesRead},
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"root":     stringType(),
				"maxDepth": map[string]interface{}{"type": "integer", "minimum": 1},
			},
			"additionalProperties": false,
		},
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"count": map[string]interface{}{"type": "integer"},
				"files": stringArray(),
			},
			"required": []string{"count", "files"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
			root := baseDir(input, "root", execCtx)
			if err := toolexecutor.AuthorizePaths([]string{root}, execCtx); err != nil {
				return nil, err
			}

			files := []string{}
			err := walkFiles(root, intParam(input, "maxDepth", 0), func(path string, _ fs.FileInfo) error {
				if strings.EqualFold(filepath.Ext(path), ".pdf") {
					files = append(files, path)
				}
				return ctx.Err()
			})
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{"count": len(files), "files": files}, nil
		},
	}
}

type sizedFile struct {
	File  string `json:"file"`
	Bytes int64  `json:"bytes"`
}

type extUsage struct {
	Ext   string `json:"ext"`
	Count int    `json:"count"`
	Bytes int64  `json:"bytes"`
}

func diskReportTool() toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "disk_report",
		Description:  "Summarize disk usage: totals, largest files, breakdown by extension.",
		Capabilities: []toolexecutor.Capability{toolexecutor.CapFilesRead},
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"root": stringType(),
				"topN": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 100, "default": defaultTopN},
			},
			"additionalProperties": false,
		},
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"totalFiles": map[string]interface{}{"type": "integer"},
				"totalBytes": map[string]interface{}{"type": "integer"},
				"largest":    map[string]interface{}{"type": "array"},
				"byExt":      map[string]interface{}{"type": "array"},
				"human":      map[string]interface{}{"type": "object"},
			},
			"required": []string{"totalFiles", "totalBytes", "largest", "byExt", "human"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
			root := baseDir(input, "root", execCtx)
			if err := toolexecutor.AuthorizePaths([]string{root}, execCtx); err != nil {
				return nil, err
			}
			topN := intParam(input, "topN", defaultTopN)

			var (
				totalFiles int
				totalBytes int64
				all        []sizedFile
			)
			exts := map[string]*extUsage{}

			err := walkFiles(root, 0, func(path string, info fs.FileInfo) error {
				size := info.Size()
				totalFiles++
				totalBytes += size
				all = append(all, sizedFile{File: path, Bytes: size})

				ext := strings.ToLower(filepath.Ext(path))
				if ext == "" {
					ext = "<none>"
				}
				u, ok := exts[ext]
				if !ok {
					u = &extUsage{Ext: ext}
					exts[ext] = u
				}
				u.Count++
				u.Bytes += size
				return ctx.Err()
			})
			if err != nil {
				return nil, err
			}

			sort.SliceStable(all, func(i, j int) bool { return all[i].Bytes > all[j].Bytes })
			largest := all
			if len(largest) > topN {
				largest = largest[:topN]
			}
			if largest == nil {
				largest = []sizedFile{}
			}

			byExt := make([]extUsage, 0, len(exts))
			for _, u := range exts {
				byExt = append(byExt, *u)
			}
			sort.Slice(byExt, func(i, j int) bool {
				if byExt[i].Bytes != byExt[j].Bytes {
					return byExt[i].Bytes > byExt[j].Bytes
				}
				return byExt[i].Ext < byExt[j].Ext
			})

			humanLargest := make([]map[string]interface{}, len(largest))
			for i, f := range largest {
				humanLargest[i] = map[string]interface{}{"file": f.File, "bytes": f.Bytes, "human": humanize.Bytes(uint64(f.Bytes))}
			}
			top := byExt
			if len(top) > topExtCount {
				top = top[:topExtCount]
			}
			humanExts := make([]map[string]interface{}, len(top))
			for i, u := range top {
				humanExts[i] = map[string]interface{}{"ext": u.Ext, "count": u.Count, "bytes": u.Bytes, "human": humanize.Bytes(uint64(u.Bytes))}
			}

			return map[string]interface{}{
				"totalFiles": totalFiles,
				"totalBytes": totalBytes,
				"largest":    largest,
				"byExt":      byExt,
				"human": map[string]interface{}{
					"totalBytes":    humanize.Bytes(uint64(totalBytes)),
					"largest":       humanLargest,
					"topExtensions": humanExts,
				},
			}, nil
		},
	}
}

type dupGroup struct {
	Hash  string   `json:"hash"`
	Files []string `json:"files"`
}

func dedupeFilesTool() toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "dedupe_files",
		Description:  "Detect and delete duplicate files by SHA-256 hash.",
		Mutate:       true,
		Capabilities: []toolexecutor.Capability{toolexecutor.CapFilesRead, toolexecutor.CapFilesDelete},
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"root":     stringType(),
				"minBytes": map[string]interface{}{"type": "integer", "minimum": 1, "default": 1},
				"apply":    map[string]interface{}{"type": "boolean", "default": true},
				"keep":     map[string]interface{}{"type": "string", "enum": []string{"first", "newest", "smallest"}, "default": "first"},
			},
			"additionalProperties": false,
		},
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"groups":  map[string]interface{}{"type": "array"},
				"deleted": stringArray(),
			},
			"required": []string{"groups", "deleted"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
			root := baseDir(input, "root", execCtx)
			if err := toolexecutor.AuthorizePaths([]string{root}, execCtx); err != nil {
				return nil, err
			}
			minBytes := int64(intParam(input, "minBytes", 1))
			keep := stringParam(input, "keep", "first")

			infos := map[string]fs.FileInfo{}
			byHash := map[string][]string{}
			var order []string
			err := walkFiles(root, 0, func(path string, info fs.FileInfo) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if info.Size() < minBytes {
					return nil
				}
				sum, err := hashFile(path)
				if err != nil {
					return nil
				}
				if _, seen := byHash[sum]; !seen {
					order = append(order, sum)
				}
				byHash[sum] = append(byHash[sum], path)
				infos[path] = info
				return nil
			})
			if err != nil {
				return nil, err
			}

			groups := []dupGroup{}
			for _, sum := range order {
				files := byHash[sum]
				if len(files) < 2 {
					continue
				}
				groups = append(groups, dupGroup{Hash: sum, Files: orderForKeep(files, infos, keep)})
			}

			deleted := []string{}
			if boolParam(input, "apply", true) {
				for _, g := range groups {
					for _, f := range g.Files[1:] {
						if err := toolexecutor.AuthorizePaths([]string{f}, execCtx); err != nil {
							return nil, err
						}
						if err := os.Remove(f); err != nil {
							return nil, fmt.Errorf("failed to delete %s: %w", f, err)
						}
						execCtx.Log("Deleted "+f, map[string]interface{}{"hash": g.Hash})
						deleted = append(deleted, f)
					}
				}
			}

			return map[string]interface{}{"groups": groups, "deleted": deleted}, nil
		},
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// orderForKeep puts the file to keep first
func orderForKeep(files []string, infos map[string]fs.FileInfo, keep string) []string {
	out := append([]string(nil), files...)
	switch keep {
	case "newest":
		sort.SliceStable(out, func(i, j int) bool { return infos[out[i]].ModTime().After(infos[out[j]].ModTime()) })
	case "smallest":
		sort.SliceStable(out, func(i, j int) bool { return infos[out[i]].Size() < infos[out[j]].Size() })
	}
	return out
}

func transferSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"glob": nonEmptyString(),
			"dest": nonEmptyString(),
			"cwd":  stringType(),
		},
		"required":             []string{"glob", "dest"},
		"additionalProperties": false,
	}
}

func moveFilesTool() toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "move_files",
		Description:  "Move matched files to a destination directory.",
		Mutate:       true,
		Capabilities: []toolexecutor.Capability{toolexecutor.CapFilesRead, toolexecutor.CapFilesWrite, toolexecutor.CapFilesDelete},
		InputSchema:  transferSchema(),
		OutputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"moved": stringArray()},
			"required":   []string{"moved"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
			moved, err := transferFiles(ctx, input, execCtx, moveFile)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"moved": moved}, nil
		},
	}
}

func copyFilesTool() toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "copy_files",
		Description:  "Copy matched files to a destination directory.",
		Mutate:       true,
		Capabilities: []toolexecutor.Capability{toolexecutor.CapFilesRead, toolexecutor.CapFilesWrite},
		InputSchema:  transferSchema(),
		OutputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"copied": stringArray()},
			"required":   []string{"copied"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
			copied, err := transferFiles(ctx, input, execCtx, copyFile)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"copied": copied}, nil
		},
	}
}

// transferFiles expands the glob, authorizes every source and the
// destination, then applies op to each file. Targets keep the base name.
func transferFiles(ctx context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext, op func(src, dst string) error) ([]string, error) {
	base := baseDir(input, "cwd", execCtx)
	files, err := expandGlob(base, stringParam(input, "glob", ""))
	if err != nil {
		return nil, err
	}
	dest := resolve(base, stringParam(input, "dest", ""))

	if err := toolexecutor.AuthorizePaths(append(append([]string{}, files...), dest), execCtx); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	done := []string{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := filepath.Join(dest, filepath.Base(f))
		if err := op(f, target); err != nil {
			return nil, err
		}
		done = append(done, target)
	}
	return done, nil
}

func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return fmt.Errorf("failed to move %s: %w", src, err)
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

type renamed struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func renamePatternTool() toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "rename_pattern",
		Description:  "Rename files by replacing a substring or regex.",
		Mutate:       true,
		Capabilities: []toolexecutor.Capability{toolexecutor.CapFilesWrite},
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"glob":    nonEmptyString(),
				"search":  nonEmptyString(),
				"replace": stringType(),
				"regex":   map[string]interface{}{"type": "boolean", "default": false},
				"cwd":     stringType(),
			},
			"required":             []string{"glob", "search", "replace"},
			"additionalProperties": false,
		},
		OutputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"renamed": map[string]interface{}{"type": "array"}},
			"required":   []string{"renamed"},
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

			search := stringParam(input, "search", "")
			replace, _ := input["replace"].(string)
			rename := func(name string) string { return strings.Replace(name, search, replace, 1) }
			if boolParam(input, "regex", false) {
				re, err := regexp.Compile(search)
				if err != nil {
					return nil, fmt.Errorf("invalid search pattern: %w", err)
				}
				rename = func(name string) string { return re.ReplaceAllString(name, replace) }
			}

			out := []renamed{}
			for _, f := range files {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				name := filepath.Base(f)
				next := rename(name)
				if next == name || next == "" {
					continue
				}
				target := filepath.Join(filepath.Dir(f), next)
				if err := toolexecutor.AuthorizePaths([]string{target}, execCtx); err != nil {
					return nil, err
				}
				if err := os.Rename(f, target); err != nil {
					return nil, fmt.Errorf("failed to rename %s: %w", f, err)
				}
				out = append(out, renamed{From: f, To: target})
			}
			return map[string]interface{}{"renamed": out}, nil
		},
	}
}
