package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/LetsVenture2021/FollowGPT/pkg/store"
	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	indexWatch bool
	indexCwd   string
)

var indexCmd = &cobra.Command{
	Use:   "index <glob>",
	Short: "Add text files to the search index",
	Long: `Index every text file matching the glob (for example "docs/**/*.md").
With --watch the command keeps running and re-indexes matching files as
they change until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "keep re-indexing files as they change")
	indexCmd.Flags().StringVar(&indexCwd, "cwd", "", "directory the glob is relative to (default is the current directory)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cwd, err := workingDir(indexCwd)
	if err != nil {
		return err
	}
	execCtx := a.executionContext("index "+args[0], cwd, toolexecutor.AutoApproveHandler{})

	output, err := a.executor.Invoke(cmd.Context(), "index_files", map[string]interface{}{
		"glob": args[0],
		"cwd":  cwd,
	}, execCtx)
	if err != nil {
		return err
	}
	if m, ok := output.(map[string]interface{}); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %v files (%v skipped)\n", m["indexed"], m["skipped"])
	}

	if !indexWatch {
		return nil
	}
	return watchIndex(cmd.Context(), a, execCtx, cwd, args[0])
}

func watchIndex(ctx context.Context, a *app, execCtx *toolexecutor.ExecutionContext, cwd, pattern string) error {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(cwd, pattern)
	}
	pattern = filepath.ToSlash(pattern)
	root, _ := doublestar.SplitPattern(pattern)

	include := func(path string) bool {
		ok, err := doublestar.PathMatch(filepath.FromSlash(pattern), path)
		if err != nil || !ok {
			return false
		}
		return toolexecutor.AuthorizePaths([]string{path}, execCtx) == nil
	}

	watcher, err := store.NewFileWatcher(store.WatcherConfig{
		Logger:  a.log.GetZerolog(),
		Include: include,
		OnChange: func(set store.ChangeSet) {
			indexed, failed := a.store.Reindex(ctx, set)
			log.Info().
				Int("indexed", indexed).
				Int("removed", len(set.Removed)).
				Int("failed", failed).
				Msg("Index updated")
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Stop()

	if err := watcher.Watch(filepath.FromSlash(root)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("root", root).Str("pattern", pattern).Msg("Watching for changes")
	<-ctx.Done()
	return nil
}
