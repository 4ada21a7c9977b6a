package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/snapmatrix/internal/cli/output"
)

// ListOptions holds options for the list command.
type ListOptions struct {
	Rules    []string
	Versions []string
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the test matrix",
		Long:  `List every test case in the matrix, in matrix order.`,
		Example: `  snapmatrix list
  snapmatrix list --rule ConstantPragma -o json`,
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Rules, "rule", "r", nil, "Only list these rules (name or argument)")
	cmd.Flags().StringSliceVar(&opts.Versions, "solc", nil, "Only list these compiler versions")

	return cmd
}

// CaseInfo is the JSON form of a test case.
type CaseInfo struct {
	ID        string   `json:"id"`
	Rule      string   `json:"rule"`
	Argument  string   `json:"argument"`
	Fixture   string   `json:"fixture"`
	Version   string   `json:"version"`
	Auxiliary []string `json:"auxiliary,omitempty"`
}

func runList(cmd *cobra.Command, opts *ListOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	sel, err := selectCases(cc.Matrix, opts.Rules, opts.Versions)
	if err != nil {
		return err
	}

	cases := sel.Cases()
	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		infos := make([]CaseInfo, len(cases))
		for i, tc := range cases {
			infos[i] = CaseInfo{
				ID:        tc.ID(),
				Rule:      tc.Rule,
				Argument:  tc.Argument,
				Fixture:   tc.Fixture,
				Version:   tc.Version,
				Auxiliary: tc.Auxiliary,
			}
		}
		return r.JSON(infos)
	}

	rows := make([][]any, len(cases))
	for i, tc := range cases {
		rows[i] = []any{tc.Rule, tc.Argument, tc.Fixture, tc.Version, strings.Join(tc.Auxiliary, ", ")}
	}
	r.Table([]string{"Rule", "Argument", "Fixture", "Solc", "Auxiliary"}, rows)
	r.Println(r.Muted(pluralCases(len(cases), len(sel.Rules()), len(sel.Versions()))))
	return nil
}
