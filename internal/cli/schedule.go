package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/LetsVenture2021/FollowGPT/internal/observability"
	"github.com/LetsVenture2021/FollowGPT/pkg/hooks"
	"github.com/LetsVenture2021/FollowGPT/pkg/scheduler"
	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var scheduleCwd string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run configured macros on their cron schedules",
	Long: `Start the scheduler daemon. Every entry under "schedules" in the config
runs its macro on the given cron expression under the configured policy.
Mutating steps are denied unless approval.auto_approve is set. Prometheus
metrics are served on metrics.addr at /metrics.`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured schedules and their next run",
	Args:  cobra.NoArgs,
	RunE:  runScheduleList,
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run one configured schedule now",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleNow,
}

func init() {
	scheduleCmd.PersistentFlags().StringVar(&scheduleCwd, "cwd", "", "working directory for scheduled runs (default is the current directory)")
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func newScheduler(a *app) (*scheduler.Service, error) {
	cwd, err := workingDir(scheduleCwd)
	if err != nil {
		return nil, err
	}

	var confirmer toolexecutor.ApprovalHandler = toolexecutor.DenyAllHandler{}
	if a.cfg.Approval.AutoApprove {
		confirmer = toolexecutor.AutoApproveHandler{}
	}

	hookList := make([]hooks.Hook, 0, len(a.cfg.Hooks))
	for _, h := range a.cfg.Hooks {
		hookList = append(hookList, hooks.Hook{
			Name:    h.Name,
			Event:   h.Event,
			Command: h.Command,
			Job:     h.Job,
			Timeout: time.Duration(h.TimeoutSeconds) * time.Second,
		})
	}
	hookManager, err := hooks.NewManager(hooks.Config{
		Hooks:  hookList,
		Runner: a.shell,
		Logger: log.Logger,
	})
	if err != nil {
		return nil, err
	}

	svc, err := scheduler.NewService(scheduler.Options{
		Runner:    a.macros,
		Policy:    a.policy,
		Confirmer: confirmer,
		Cwd:       cwd,
		OnEvent:   hookManager.HandleEvent,
	})
	if err != nil {
		return nil, err
	}

	for _, s := range a.cfg.Schedules {
		if _, err := svc.Add(scheduler.Schedule{Name: s.Name, Macro: s.Macro, Cron: s.Cron}); err != nil {
			svc.Stop()
			return nil, err
		}
	}
	return svc, nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(a.cfg.Schedules) == 0 {
		return fmt.Errorf("no schedules configured")
	}

	pidFile := getPIDFilePath(a.cfg.DataDir)
	if isRunning(pidFile) {
		return fmt.Errorf("scheduler is already running (PID file: %s)", pidFile)
	}
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer os.Remove(pidFile)

	svc, err := newScheduler(a)
	if err != nil {
		return err
	}

	var server *http.Server
	if a.cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		server = &http.Server{
			Addr:              a.cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", server.Addr).Msg("Metrics server failed")
			}
		}()
		log.Info().Str("addr", server.Addr).Msg("Serving metrics")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc.Start()
	fmt.Fprintf(cmd.OutOrStdout(), "Scheduler running with %d jobs (PID %d)\n", len(a.cfg.Schedules), os.Getpid())
	<-ctx.Done()

	log.Info().Msg("Shutting down scheduler")
	svc.Stop()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	return nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if len(a.cfg.Schedules) == 0 {
		fmt.Fprintln(out, "No schedules configured.")
		return nil
	}

	svc, err := newScheduler(a)
	if err != nil {
		return err
	}
	defer svc.Stop()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMACRO\tCRON\tNEXT RUN")
	for _, job := range svc.Jobs() {
		next := "-"
		if job.State.NextRunAt != nil {
			next = job.State.NextRunAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", job.Schedule.Name, job.Schedule.Macro, job.Schedule.Cron, next)
	}
	return tw.Flush()
}

func runScheduleNow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := newScheduler(a)
	if err != nil {
		return err
	}
	defer svc.Stop()

	if err := svc.RunNow(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s completed\n", args[0])
	return nil
}
