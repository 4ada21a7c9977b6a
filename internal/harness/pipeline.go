package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/snapmatrix/internal/snapshot"
	"github.com/leapstack-labs/snapmatrix/internal/state"
	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

// ErrBuildPhaseIncomplete is returned by Verify when artifacts may still be
// missing: Build has not completed and at least one archive does not exist.
var ErrBuildPhaseIncomplete = errors.New("build phase incomplete")

// Status is the outcome of one verified case.
type Status string

// Case statuses.
const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusError Status = "error"
)

// CaseResult is the outcome of verifying one case.
type CaseResult struct {
	Case     core.TestCase
	Status   Status
	Output   string
	Diff     string
	Updated  bool
	Err      error
	Duration time.Duration
}

// Summary tallies a verification run.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Errored  int
	Updated  int
	Duration time.Duration
}

// OK reports whether every case passed.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Errored == 0
}

// Report is the result of Verify, in matrix order.
type Report struct {
	RunID   string
	Results []CaseResult
	Summary Summary
}

// RunRecorder records verification runs.
type RunRecorder interface {
	CreateRun(ctx context.Context, total int) (*state.Run, error)
	RecordCaseResult(ctx context.Context, r *state.CaseResult) error
	CompleteRun(ctx context.Context, id string, status state.RunStatus, passed, failed int) error
}

// PipelineConfig holds Pipeline dependencies.
type PipelineConfig struct {
	Cases  []core.TestCase
	Runner *Runner
	Oracle snapshot.Oracle
	// Jobs bounds concurrent verification. Zero means GOMAXPROCS.
	Jobs int
	// KeepGoing continues the build phase past failures. Cases whose
	// fixture failed to build are then reported as errors by Verify while
	// the rest are verified.
	KeepGoing bool
	Ledger    RunRecorder
	Logger    *slog.Logger
}

// Pipeline runs the two phases: Build, then Verify.
type Pipeline struct {
	cfg    PipelineConfig
	logger *slog.Logger
	built  atomic.Bool

	// written by Build, read by Verify
	buildFailures map[core.CacheKey]error
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Jobs <= 0 {
		cfg.Jobs = runtime.GOMAXPROCS(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

// Build compiles every case and marks the build phase complete on success.
//
// With KeepGoing, fixture build failures still complete the phase: Build
// returns the joined failures, Built reports true, and Verify reports the
// affected cases as errors. Cancellation never completes the phase.
func (p *Pipeline) Build(ctx context.Context, skipExisting bool) (PrebuildReport, error) {
	report, err := p.cfg.Runner.Prebuild(ctx, p.cfg.Cases, PrebuildOptions{
		SkipExisting: skipExisting,
		KeepGoing:    p.cfg.KeepGoing,
	})
	p.logger.Info("build phase finished",
		slog.Int("built", report.Built),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed))
	if err == nil {
		p.buildFailures = nil
		p.built.Store(true)
		return report, nil
	}
	if !p.cfg.KeepGoing || ctx.Err() != nil {
		return report, err
	}

	failures := buildFailures(err)
	if len(failures) == 0 {
		return report, err
	}
	p.buildFailures = failures
	p.built.Store(true)
	return report, err
}

// buildFailures indexes the case errors joined in err by cache key.
func buildFailures(err error) map[core.CacheKey]error {
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}

	out := make(map[core.CacheKey]error, len(errs))
	for _, e := range errs {
		var caseErr *core.CaseError
		if errors.As(e, &caseErr) {
			out[core.NewCacheKey(caseErr.Fixture, caseErr.Case.Version)] = caseErr.Err
		}
	}
	return out
}

// Built reports whether the build phase completed.
func (p *Pipeline) Built() bool {
	return p.built.Load()
}

func (p *Pipeline) ready() error {
	if p.built.Load() {
		return nil
	}
	var missing []string
	for _, tc := range p.cfg.Cases {
		if !p.cfg.Runner.artifacts.Exists(p.cfg.Runner.FixturePath(tc), tc.Version) {
			missing = append(missing, tc.ID())
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d artifacts missing (first: %s)",
		ErrBuildPhaseIncomplete, len(missing), len(p.cfg.Cases), missing[0])
}

// Verify runs every case concurrently and compares its output with the
// oracle. Results are returned in matrix order. Case failures are reported in
// the Report, not as an error.
func (p *Pipeline) Verify(ctx context.Context) (*Report, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &Report{Results: make([]CaseResult, len(p.cfg.Cases))}
	run := p.startRun(ctx)

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Jobs)
	for i, tc := range p.cfg.Cases {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report.Results[i] = p.verifyCase(ctx, tc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.finishRun(ctx, run, report, state.RunStatusCancelled)
		return nil, err
	}

	s := &report.Summary
	s.Total = len(report.Results)
	for _, res := range report.Results {
		switch res.Status {
		case StatusPass:
			s.Passed++
		case StatusFail:
			s.Failed++
		case StatusError:
			s.Errored++
		}
		if res.Updated {
			s.Updated++
		}
	}
	s.Duration = time.Since(start)

	status := state.RunStatusPassed
	if !s.OK() {
		status = state.RunStatusFailed
	}
	p.finishRun(ctx, run, report, status)
	return report, nil
}

func (p *Pipeline) verifyCase(ctx context.Context, tc core.TestCase) CaseResult {
	start := time.Now()
	res := CaseResult{Case: tc}

	fixture := p.cfg.Runner.FixturePath(tc)
	if err, ok := p.buildFailures[core.NewCacheKey(fixture, tc.Version)]; ok {
		res.Status = StatusError
		res.Err = core.WrapCase(tc, fixture, StageBuild, err)
		return res
	}

	out, err := p.cfg.Runner.Run(ctx, tc)
	if err != nil {
		res.Status = StatusError
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}
	res.Output = out

	cmp, err := p.cfg.Oracle.Compare(ctx, tc.ID(), out)
	if err != nil {
		res.Status = StatusError
		res.Err = core.WrapCase(tc, fixture, StageCompare, err)
		res.Duration = time.Since(start)
		return res
	}

	res.Diff = cmp.Diff
	res.Updated = cmp.Updated
	if err := cmp.Err(tc.ID()); err != nil {
		res.Status = StatusFail
		res.Err = core.WrapCase(tc, fixture, StageCompare, err)
	} else {
		res.Status = StatusPass
	}
	res.Duration = time.Since(start)
	return res
}

func (p *Pipeline) startRun(ctx context.Context) *state.Run {
	if p.cfg.Ledger == nil {
		return nil
	}
	run, err := p.cfg.Ledger.CreateRun(ctx, len(p.cfg.Cases))
	if err != nil {
		p.logger.Warn("failed to record run", slog.Any("error", err))
		return nil
	}
	return run
}

func (p *Pipeline) finishRun(ctx context.Context, run *state.Run, report *Report, status state.RunStatus) {
	if run == nil {
		return
	}
	report.RunID = run.ID

	// the run is over; record it even when ctx was cancelled
	ctx = context.WithoutCancel(ctx)
	for _, res := range report.Results {
		if res.Status == "" {
			continue
		}
		cr := &state.CaseResult{
			RunID:    run.ID,
			CaseID:   res.Case.ID(),
			Rule:     res.Case.Rule,
			Fixture:  res.Case.Fixture,
			Version:  res.Case.Version,
			Status:   string(res.Status),
			Duration: res.Duration,
		}
		if res.Err != nil {
			cr.Error = res.Err.Error()
		}
		if err := p.cfg.Ledger.RecordCaseResult(ctx, cr); err != nil {
			p.logger.Warn("failed to record case result", slog.String("case", cr.CaseID), slog.Any("error", err))
		}
	}
	if err := p.cfg.Ledger.CompleteRun(ctx, run.ID, status, report.Summary.Passed, report.Summary.Failed+report.Summary.Errored); err != nil {
		p.logger.Warn("failed to complete run", slog.String("run", run.ID), slog.Any("error", err))
	}
}
