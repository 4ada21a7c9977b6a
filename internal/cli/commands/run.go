package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/snapmatrix/internal/cli/output"
	"github.com/leapstack-labs/snapmatrix/internal/harness"
)

// ErrCasesFailed is returned when verification finished with failures.
var ErrCasesFailed = errors.New("test cases failed")

// RunOptions holds options for the run command.
type RunOptions struct {
	Rules     []string
	Versions  []string
	Update    bool
	NoBuild   bool
	KeepGoing bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build missing artifacts, then verify every case against its snapshot",
		Long: `Run the detector regression matrix.

The build phase compiles every (fixture, compiler version) pair whose archive
is missing, one at a time. The verify phase then runs each case's detector
concurrently and compares its canonical output with the stored snapshot.

With --update the snapshots are rewritten instead of compared. With
--keep-going a fixture that fails to build does not stop the run: its cases
are reported as errors and every other case is verified.`,
		Example: `  # Verify the whole matrix
  snapmatrix run

  # One detector across two compiler versions
  snapmatrix run --rule ReentrancyEth --solc 0.4.25 --solc 0.7.6

  # Record new snapshots
  snapmatrix run --rule tx-origin --update`,
		Aliases: []string{"test"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunTests(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Rules, "rule", "r", nil, "Only run these rules (name or argument)")
	cmd.Flags().StringSliceVar(&opts.Versions, "solc", nil, "Only run these compiler versions")
	cmd.Flags().BoolVarP(&opts.Update, "update", "u", false, "Rewrite snapshots with current output")
	cmd.Flags().BoolVar(&opts.NoBuild, "no-build", false, "Skip the build phase; every archive must already exist")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "Verify the remaining cases when some fixtures fail to build")

	return cmd
}

// RunOutput is the JSON output of the run command.
type RunOutput struct {
	RunID   string       `json:"run_id,omitempty"`
	Summary SummaryJSON  `json:"summary"`
	Results []CaseOutput `json:"results"`
}

// SummaryJSON is the JSON form of harness.Summary.
type SummaryJSON struct {
	Total      int   `json:"total"`
	Passed     int   `json:"passed"`
	Failed     int   `json:"failed"`
	Errored    int   `json:"errored"`
	Updated    int   `json:"updated"`
	DurationMS int64 `json:"duration_ms"`
}

// CaseOutput is the JSON form of one case result.
type CaseOutput struct {
	ID         string `json:"id"`
	Rule       string `json:"rule"`
	Fixture    string `json:"fixture"`
	Version    string `json:"version"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Diff       string `json:"diff,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// RunTests executes the build and verify phases.
func RunTests(cmd *cobra.Command, opts *RunOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	sel, err := selectCases(cc.Matrix, opts.Rules, opts.Versions)
	if err != nil {
		return err
	}

	deps, err := newHarnessDeps(cc)
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx := cmd.Context()
	p := deps.pipeline(cc, sel, opts.Update, opts.KeepGoing)
	r := cc.Renderer

	if !opts.NoBuild {
		build, err := p.Build(ctx, true)
		if err != nil {
			if !p.Built() {
				return fmt.Errorf("build phase failed: %w", err)
			}
			r.Warning(fmt.Sprintf("%s failed to build; affected cases are reported as errors",
				plural(build.Failed, "fixture", "fixtures")))
		}
	}

	report, err := p.Verify(ctx)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(buildRunOutput(report)); err != nil {
			return err
		}
	} else {
		renderRunText(r, report)
	}

	if !report.Summary.OK() {
		return fmt.Errorf("%w: %d failed, %d errored of %d", ErrCasesFailed,
			report.Summary.Failed, report.Summary.Errored, report.Summary.Total)
	}
	return nil
}

func buildRunOutput(report *harness.Report) RunOutput {
	out := RunOutput{
		RunID: report.RunID,
		Summary: SummaryJSON{
			Total:      report.Summary.Total,
			Passed:     report.Summary.Passed,
			Failed:     report.Summary.Failed,
			Errored:    report.Summary.Errored,
			Updated:    report.Summary.Updated,
			DurationMS: report.Summary.Duration.Milliseconds(),
		},
		Results: make([]CaseOutput, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		co := CaseOutput{
			ID:         res.Case.ID(),
			Rule:       res.Case.Rule,
			Fixture:    res.Case.Fixture,
			Version:    res.Case.Version,
			Status:     string(res.Status),
			Diff:       res.Diff,
			DurationMS: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			co.Error = res.Err.Error()
		}
		out.Results = append(out.Results, co)
	}
	return out
}

func renderRunText(r *output.Renderer, report *harness.Report) {
	styles := r.Styles()

	for _, res := range report.Results {
		if res.Status == harness.StatusPass {
			continue
		}
		r.Printf("%s %s %s\n", r.Status(string(res.Status)), styles.CaseID.Render(res.Case.ID()),
			r.Muted(fmt.Sprintf("(%s)", res.Duration.Round(time.Millisecond))))
		switch {
		case res.Diff != "":
			r.Println(res.Diff)
		case res.Err != nil:
			r.Println("  " + res.Err.Error())
		}
	}

	s := report.Summary
	line := fmt.Sprintf("%d passed, %d failed, %d errored of %d in %s",
		s.Passed, s.Failed, s.Errored, s.Total, s.Duration.Round(time.Millisecond))
	if s.Updated > 0 {
		line += fmt.Sprintf(" (%d snapshots updated)", s.Updated)
	}
	if s.OK() {
		r.Success(line)
	} else {
		r.Println(styles.Error.Render("✗ " + line))
	}
}
