package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/snapmatrix/internal/cache"
	"github.com/leapstack-labs/snapmatrix/pkg/analysis"
	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

// Stages reported in core.CaseError.
const (
	StageBuild   = "build"
	StageAnalyze = "analyze"
	StageCompare = "compare"
)

// Artifacts is the subset of the artifact cache the harness needs.
type Artifacts interface {
	GetOrBuild(ctx context.Context, fixturePath, version string, opts ...cache.BuildOption) (*core.CompilationUnits, error)
	Exists(fixturePath, version string) bool
}

// Runner executes single test cases.
type Runner struct {
	root      string
	artifacts Artifacts
	detectors *analysis.Registry
	engines   analysis.EngineFactory
	logger    *slog.Logger
}

// RunnerConfig holds Runner dependencies.
type RunnerConfig struct {
	// FixturesDir is the root of the fixture tree.
	FixturesDir string
	Artifacts   Artifacts
	Detectors   *analysis.Registry
	// Engines creates the engine for each case. Defaults to analysis.NewEngineFactory.
	Engines analysis.EngineFactory
	Logger  *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	engines := cfg.Engines
	if engines == nil {
		engines = analysis.NewEngineFactory(logger)
	}
	detectors := cfg.Detectors
	if detectors == nil {
		detectors = analysis.Default()
	}
	return &Runner{
		root:      cfg.FixturesDir,
		artifacts: cfg.Artifacts,
		detectors: detectors,
		engines:   engines,
		logger:    logger,
	}
}

// FixturePath resolves tc against the runner's fixture root.
func (r *Runner) FixturePath(tc core.TestCase) string {
	return FixturePath(r.root, tc)
}

// Run produces the canonical output of tc. Errors are *core.CaseError.
func (r *Runner) Run(ctx context.Context, tc core.TestCase) (string, error) {
	fixture := r.FixturePath(tc)

	units, err := r.artifacts.GetOrBuild(ctx, fixture, tc.Version,
		cache.Auxiliary(AuxiliaryPaths(r.root, tc)...))
	if err != nil {
		return "", core.WrapCase(tc, fixture, StageBuild, err)
	}

	d, ok := r.detectors.Get(tc.Rule)
	if !ok {
		err := fmt.Errorf("%w: no detector registered for rule %s", core.ErrAnalysisExecution, tc.Rule)
		return "", core.WrapCase(tc, fixture, StageAnalyze, err)
	}

	engine := r.engines(units)
	if err := engine.Register(d); err != nil {
		return "", core.WrapCase(tc, fixture, StageAnalyze, fmt.Errorf("%w: %w", core.ErrAnalysisExecution, err))
	}
	results, err := engine.Run(ctx)
	if err != nil {
		return "", core.WrapCase(tc, fixture, StageAnalyze, err)
	}

	out := Canonicalize(results)
	r.logger.Debug("case analyzed",
		slog.String("case", tc.ID()),
		slog.Int("bytes", len(out)))
	return out, nil
}

// Canonicalize joins every finding description, each followed by a newline,
// in emission order across all results.
func Canonicalize(results []core.DetectorResult) string {
	var b strings.Builder
	for _, res := range results {
		for _, f := range res.Findings {
			b.WriteString(f.Description)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
