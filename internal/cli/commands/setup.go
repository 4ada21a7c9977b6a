// Package commands implements the snapmatrix subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/snapmatrix/internal/cache"
	"github.com/leapstack-labs/snapmatrix/internal/cli/config"
	"github.com/leapstack-labs/snapmatrix/internal/cli/output"
	"github.com/leapstack-labs/snapmatrix/internal/compile"
	"github.com/leapstack-labs/snapmatrix/internal/harness"
	"github.com/leapstack-labs/snapmatrix/internal/snapshot"
	"github.com/leapstack-labs/snapmatrix/internal/state"
	"github.com/leapstack-labs/snapmatrix/internal/toolchain"
	"github.com/leapstack-labs/snapmatrix/pkg/analysis"
	"github.com/leapstack-labs/snapmatrix/pkg/matrix"
)

// CommandContext holds common dependencies for command execution.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Matrix   *matrix.Registry
}

// NewCommandContext loads the matrix and creates a renderer.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := getConfig()
	reg, err := loadMatrix(cfg)
	if err != nil {
		return nil, err
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
		Matrix:   reg,
	}, nil
}

// getConfig returns the current configuration, falling back to defaults.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg, err := config.LoadConfig("", nil)
	if err != nil {
		return &config.Config{
			FixturesDir:  config.DefaultFixturesDir,
			SnapshotsDir: config.DefaultSnapshotsDir,
			StatePath:    config.DefaultStateFile,
			LockDir:      config.DefaultLockDir,
			OutputFormat: config.DefaultOutput,
			Toolchain:    config.ToolchainConfig{BaseURL: toolchain.DefaultBaseURL, InstallTimeout: config.DefaultInstallTimeout},
			Analyzer:     config.AnalyzerConfig{Command: config.DefaultAnalyzerCommand},
		}
	}
	return cfg
}

func loadMatrix(cfg *config.Config) (*matrix.Registry, error) {
	if cfg.Matrix == "" {
		return matrix.Default()
	}
	return matrix.LoadFile(cfg.Matrix)
}

// newManager creates the toolchain manager for cfg.
func newManager(cfg *config.Config, logger *slog.Logger) (*toolchain.Manager, error) {
	installer, err := toolchain.NewReleaseInstaller(toolchain.ReleaseConfig{
		Home:    cfg.Toolchain.Home,
		BaseURL: cfg.Toolchain.BaseURL,
		Client:  &http.Client{Timeout: cfg.Toolchain.InstallTimeout},
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return toolchain.NewManager(installer, logger), nil
}

// openLedger opens and migrates the ledger at cfg.StatePath.
func openLedger(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// harnessDeps are the wired collaborators shared by run and compile.
type harnessDeps struct {
	Ledger *state.SQLiteStore
	Cache  *cache.Cache
	Runner *harness.Runner
}

// Close releases the ledger.
func (d *harnessDeps) Close() {
	if d.Ledger != nil {
		_ = d.Ledger.Close()
	}
}

func newHarnessDeps(cc *CommandContext) (*harnessDeps, error) {
	cfg := cc.Cfg
	if err := cfg.ValidateDirectories(); err != nil {
		return nil, err
	}

	manager, err := newManager(cfg, cc.Logger)
	if err != nil {
		return nil, err
	}

	ledger, err := openLedger(cfg, cc.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	artifacts := cache.New(manager, compile.NewSolc(cc.Logger),
		cache.WithLogger(cc.Logger),
		cache.WithLedger(ledger),
		cache.WithLockDir(cfg.LockDir))

	detectors := analysis.NewRegistry()
	if err := analysis.RegisterExternal(detectors, cc.Matrix.Arguments(), cfg.Analyzer.Command); err != nil {
		_ = ledger.Close()
		return nil, err
	}

	runner := harness.NewRunner(harness.RunnerConfig{
		FixturesDir: cfg.FixturesDir,
		Artifacts:   artifacts,
		Detectors:   detectors,
		Logger:      cc.Logger,
	})

	return &harnessDeps{Ledger: ledger, Cache: artifacts, Runner: runner}, nil
}

func (d *harnessDeps) pipeline(cc *CommandContext, reg *matrix.Registry, update, keepGoing bool) *harness.Pipeline {
	return harness.NewPipeline(harness.PipelineConfig{
		Cases:     reg.Cases(),
		Runner:    d.Runner,
		Oracle:    snapshot.NewFileOracle(cc.Cfg.SnapshotsDir, update),
		Jobs:      cc.Cfg.Jobs,
		KeepGoing: keepGoing,
		Ledger:    d.Ledger,
		Logger:    cc.Logger,
	})
}

// selectCases narrows the matrix by rule and compiler version.
func selectCases(reg *matrix.Registry, rules, versions []string) (*matrix.Registry, error) {
	for _, v := range versions {
		if err := matrix.ValidateVersion(v); err != nil {
			return nil, err
		}
	}
	sel := reg.Select(rules, versions)
	if sel.Len() == 0 {
		return nil, fmt.Errorf("no test cases match the selection (rules=%v versions=%v)", rules, versions)
	}
	return sel, nil
}
