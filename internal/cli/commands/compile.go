package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/snapmatrix/internal/cli/output"
)

// CompileOptions holds options for the compile command.
type CompileOptions struct {
	Rules     []string
	Versions  []string
	Force     bool
	KeepGoing bool
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	opts := &CompileOptions{}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Pre-build compiled artifacts for the matrix",
		Long: `Compile every (fixture, compiler version) pair in the matrix and write its
archive next to the fixture. Cases are built one at a time.

By default pairs that already have an archive are skipped. Use --force to
rebuild everything.`,
		Example: `  # Build missing artifacts
  snapmatrix compile

  # Rebuild all 0.4.25 artifacts, reporting every failure
  snapmatrix compile --solc 0.4.25 --force --keep-going`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunCompile(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Rules, "rule", "r", nil, "Only build these rules (name or argument)")
	cmd.Flags().StringSliceVar(&opts.Versions, "solc", nil, "Only build these compiler versions")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Rebuild artifacts that already exist")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "Continue past failures and report all of them")

	return cmd
}

// CompileOutput is the JSON output of the compile command.
type CompileOutput struct {
	Built   int    `json:"built"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// RunCompile runs the batch pre-builder.
func RunCompile(cmd *cobra.Command, opts *CompileOptions) error {
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

	p := deps.pipeline(cc, sel, false, opts.KeepGoing)
	report, buildErr := p.Build(cmd.Context(), !opts.Force)

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		out := CompileOutput{Built: report.Built, Skipped: report.Skipped, Failed: report.Failed}
		if buildErr != nil {
			out.Error = buildErr.Error()
		}
		if err := r.JSON(out); err != nil {
			return err
		}
	} else {
		line := fmt.Sprintf("%d built, %d skipped, %d failed", report.Built, report.Skipped, report.Failed)
		if buildErr == nil {
			r.Success(line)
		} else {
			r.Println(r.Styles().Error.Render("✗ " + line))
		}
	}
	return buildErr
}
