package tools

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
)

func zipFilesTool() toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "zip_files",
		Description:  "Zip matched files into an archive.",
		Mutate:       true,
		Capabilities: []toolexecutor.Capability{toolexecutor.CapArchiveManage, toolexecutor.CapFilesRead, toolexecutor.CapFilesWrite},
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"glob":    nonEmptyString(),
				"cwd":     stringType(),
				"outFile": nonEmptyString(),
			},
			"required":             []string{"glob", "outFile"},
			"additionalProperties": false,
		},
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"archive": stringType(),
				"count":   map[string]interface{}{"type": "integer"},
			},
			"required": []string{"archive", "count"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
			base := baseDir(input, "cwd", execCtx)
			files, err := expandGlob(base, stringParam(input, "glob", ""))
			if err != nil {
				return nil, err
			}
			outFile := resolve(base, stringParam(input, "outFile", ""))
			if err := toolexecutor.AuthorizePaths(append(append([]string{}, files...), outFile), execCtx); err != nil {
				return nil, err
			}

			// The archive may match its own glob on reruns
			sources := files[:0:0]
			for _, f := range files {
				if f != outFile {
					sources = append(sources, f)
				}
			}

			if err := os.MkdirAll(filepath.Dir(outFile), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(outFile), err)
			}
			if err := writeZip(ctx, outFile, base, sources); err != nil {
				os.Remove(outFile)
				return nil, err
			}

			execCtx.Log(fmt.Sprintf("Archived %d files into %s", len(sources), outFile), nil)
			return map[string]interface{}{"archive": outFile, "count": len(sources)}, nil
		},
	}
}

// writeZip stores files under their path relative to base, or their base
// name when they live outside it.
func writeZip(ctx context.Context, outFile, base string, files []string) error {
	out, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	zw := zip.NewWriter(out)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			zw.Close()
			out.Close()
			return err
		}
		if err := addZipEntry(zw, f, entryName(base, f)); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return out.Close()
}

func entryName(base, file string) string {
	rel, err := filepath.Rel(base, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(file)
	}
	return filepath.ToSlash(rel)
}

func addZipEntry(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func unzipArchiveTool() toolexecutor.ToolDescriptor {
	return toolexecutor.ToolDescriptor{
		Name:         "unzip_archive",
		Description:  "Unzip an archive into a destination directory.",
		Mutate:       true,
		Capabilities: []toolexecutor.Capability{toolexecutor.CapArchiveManage, toolexecutor.CapFilesWrite},
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"archive": nonEmptyString(),
				"dest":    nonEmptyString(),
			},
			"required":             []string{"archive", "dest"},
			"additionalProperties": false,
		},
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"dest":  stringType(),
				"files": map[string]interface{}{"type": "integer"},
			},
			"required": []string{"dest"},
		},
		Handler: func(ctx context.Context, input map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
			cwd := execCtx.WorkingDir()
			archive := resolve(cwd, stringParam(input, "archive", ""))
			dest := resolve(cwd, stringParam(input, "dest", ""))
			if err := toolexecutor.AuthorizePaths([]string{archive, dest}, execCtx); err != nil {
				return nil, err
			}

			n, err := extractZip(ctx, archive, dest, execCtx)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"dest": dest, "files": n}, nil
		},
	}
}

func extractZip(ctx context.Context, archive, dest string, execCtx *toolexecutor.ExecutionContext) (int, error) {
	zr, err := zip.OpenReader(archive)
	if errors.Is(err, zip.ErrInsecurePath) {
		zr.Close()
		return 0, fmt.Errorf("archive entry escapes destination: %w", err)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	// Validate every entry before writing anything
	targets := make([]string, len(zr.File))
	for i, f := range zr.File {
		target, err := entryTarget(dest, f.Name)
		if err != nil {
			return 0, err
		}
		targets[i] = target
	}
	if err := toolexecutor.AuthorizePaths(targets, execCtx); err != nil {
		return 0, err
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	files := 0
	for i, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(targets[i], 0o755); err != nil {
				return files, err
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}
		if err := extractEntry(f, targets[i]); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

// entryTarget maps an archive entry to a path inside dest, rejecting
// absolute names and names that climb out of dest.
func entryTarget(dest, name string) (string, error) {
	cleaned := filepath.FromSlash(name)
	if filepath.IsAbs(cleaned) || filepath.VolumeName(cleaned) != "" {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	target := filepath.Join(dest, cleaned)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}

func extractEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode().Perm()|0o200)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}
