package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LetsVenture2021/FollowGPT/internal/config"
	"github.com/LetsVenture2021/FollowGPT/internal/logger"
	"github.com/LetsVenture2021/FollowGPT/internal/observability"
	"github.com/LetsVenture2021/FollowGPT/internal/tracing"
	"github.com/LetsVenture2021/FollowGPT/pkg/agent"
	"github.com/LetsVenture2021/FollowGPT/pkg/macro"
	"github.com/LetsVenture2021/FollowGPT/pkg/sandbox"
	"github.com/LetsVenture2021/FollowGPT/pkg/store"
	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
	"github.com/LetsVenture2021/FollowGPT/pkg/tools"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app holds the collaborators shared by every command
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *store.Store
	registry *toolexecutor.Registry
	executor *toolexecutor.Executor
	macros   *macro.Runner
	shell    sandbox.Runner
	policy   *toolexecutor.Policy
}

// newApp loads configuration and wires the store, tools and macro runner
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		Console:    cfg.Logging.Console,
		Pretty:     cfg.Logging.Pretty,
		Redaction:  cfg.Logging.Redaction,
		MaxSize:    cfg.Logging.MaxSize,
		MaxAge:     cfg.Logging.MaxAge,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
		ConsoleOut: cmd.ErrOrStderr(),
		Secrets:    []string{cfg.LLM.APIKey},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	for _, w := range config.NewValidator().ValidateConfig(cfg) {
		log.Warn().Err(w).Msg("Configuration warning")
	}

	policy, err := cfg.ToPolicy()
	if err != nil {
		lg.Close()
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		lg.Close()
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := store.Open(store.Config{Path: cfg.DBPath, Logger: lg.GetZerolog()})
	if err != nil {
		lg.Close()
		return nil, err
	}

	shell, err := sandbox.NewHostRunner(sandbox.DefaultConfig())
	if err != nil {
		db.Close()
		lg.Close()
		return nil, err
	}

	approvals := toolexecutor.NewApprovalManager(time.Duration(cfg.Approval.TimeoutSeconds) * time.Second)

	registry := toolexecutor.NewRegistry()
	executor := toolexecutor.NewExecutorWithPolicy(registry, toolexecutor.NewPolicyEngine(approvals))
	runner := macro.NewRunner(executor, db, shell)
	if err := tools.RegisterAll(registry, tools.Options{Macros: db, Runner: runner, Index: db, Tags: db}); err != nil {
		db.Close()
		lg.Close()
		return nil, err
	}

	observability.EnsureRegistered()
	if err := observability.InitAuditLogger(filepath.Join(cfg.DataDir, "audit.log")); err != nil {
		log.Warn().Err(err).Msg("Audit log disabled")
	}
	if err := tracing.InitOpenTelemetry(tracing.ServiceName); err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	}

	return &app{
		cfg:      cfg,
		log:      lg,
		store:    db,
		registry: registry,
		executor: executor,
		macros:   runner,
		shell:    shell,
		policy:   policy,
	}, nil
}

// Close releases the store and log file
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
		log.Debug().Err(err).Msg("Tracer shutdown failed")
	}
	if err := observability.GetAuditLogger().Close(); err != nil {
		log.Debug().Err(err).Msg("Failed to close audit log")
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
	a.log.Close()
}

// confirmer returns the approval handler for interactive commands
func (a *app) confirmer(yes bool) toolexecutor.ApprovalHandler {
	if yes || a.cfg.Approval.AutoApprove {
		return toolexecutor.AutoApproveHandler{}
	}
	return toolexecutor.NewTerminalApprovalHandler()
}

// executionContext builds a context for a command invoked directly by the user
func (a *app) executionContext(prompt, cwd string, confirmer toolexecutor.ApprovalHandler) *toolexecutor.ExecutionContext {
	execCtx := toolexecutor.NewExecutionContext(prompt)
	if cwd != "" {
		execCtx.Cwd = cwd
	}
	execCtx.Policy = a.policy
	execCtx.Confirmer = confirmer
	return execCtx
}

// runtime builds the plan-and-execute runtime using the configured LLM
func (a *app) runtime(confirmer toolexecutor.ApprovalHandler) (*agent.Runtime, error) {
	client, err := agent.NewClient(agent.Config{
		Provider:       a.cfg.LLM.Provider,
		APIKey:         a.cfg.LLM.APIKey,
		Model:          a.cfg.LLM.Model,
		BaseURL:        a.cfg.LLM.BaseURL,
		MaxTokens:      a.cfg.LLM.MaxTokens,
		Temperature:    a.cfg.LLM.Temperature,
		StaticResponse: a.cfg.LLM.StaticResponse,
	})
	if err != nil {
		return nil, err
	}

	return agent.NewRuntime(agent.RuntimeConfig{
		Registry:  a.registry,
		Client:    client,
		Executor:  a.executor,
		RunLogger: a.store,
		Policy:    a.policy,
		Confirmer: confirmer,
		Logger:    a.log.GetZerolog(),
	})
}

func workingDir(flag string) (string, error) {
	if flag == "" {
		return os.Getwd()
	}
	abs, err := filepath.Abs(flag)
	if err != nil {
		return "", fmt.Errorf("invalid working directory %s: %w", flag, err)
	}
	return abs, nil
}
