package commands

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/snapmatrix/internal/cli/output"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that compilers and the analyzer are available",
		Long: `Report which compiler versions required by the matrix are installed and
whether the configured analyzer command can be found.

Missing compilers are installed on demand by run and compile; doctor only
reports.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

// DoctorOutput is the JSON output of the doctor command.
type DoctorOutput struct {
	Compilers []CompilerCheck `json:"compilers"`
	Installed int             `json:"installed"`
	Required  int             `json:"required"`
	Analyzer  AnalyzerCheck   `json:"analyzer"`
}

// CompilerCheck is the install state of one compiler version.
type CompilerCheck struct {
	Version   string `json:"version"`
	Installed bool   `json:"installed"`
	Binary    string `json:"binary"`
}

// AnalyzerCheck reports whether the analyzer executable was found.
type AnalyzerCheck struct {
	Command string `json:"command"`
	Path    string `json:"path,omitempty"`
	Found   bool   `json:"found"`
}

func runDoctor(cmd *cobra.Command) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	manager, err := newManager(cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	statuses, err := manager.Installed(cc.Matrix.Versions())
	if err != nil {
		return err
	}

	out := DoctorOutput{Required: len(statuses)}
	for _, s := range statuses {
		out.Compilers = append(out.Compilers, CompilerCheck{Version: s.Version, Installed: s.Installed, Binary: s.Binary})
		if s.Installed {
			out.Installed++
		}
	}
	if len(cc.Cfg.Analyzer.Command) > 0 {
		out.Analyzer.Command = cc.Cfg.Analyzer.Command[0]
		if p, err := exec.LookPath(out.Analyzer.Command); err == nil {
			out.Analyzer.Path = p
			out.Analyzer.Found = true
		}
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	styles := r.Styles()
	r.Header(1, "Compilers")
	rows := make([][]any, len(out.Compilers))
	for i, c := range out.Compilers {
		mark := styles.Success.Render("installed")
		if !c.Installed {
			mark = styles.Warning.Render("missing")
		}
		rows[i] = []any{c.Version, mark, c.Binary}
	}
	r.Table([]string{"Solc", "Status", "Binary"}, rows)
	r.Println(r.Muted(fmt.Sprintf("%d of %d required versions installed", out.Installed, out.Required)))

	r.Println()
	r.Header(1, "Analyzer")
	if out.Analyzer.Found {
		r.Success(fmt.Sprintf("%s (%s)", out.Analyzer.Command, out.Analyzer.Path))
	} else {
		r.Warning(fmt.Sprintf("%s not found in PATH", out.Analyzer.Command))
	}
	return nil
}
