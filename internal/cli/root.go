// Package cli provides the command-line interface for snapmatrix.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/leapstack-labs/snapmatrix/internal/cli/commands"
	"github.com/leapstack-labs/snapmatrix/internal/cli/config"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var compileMode bool

	rootCmd := &cobra.Command{
		Use:   "snapmatrix",
		Short: "snapmatrix - detector regression harness",
		Long: `snapmatrix runs static-analysis detectors over a matrix of smart-contract
fixtures and compiler versions and compares their output with stored snapshots.

Compiled artifacts are cached next to each fixture, keyed by fixture path and
compiler version, so each (fixture, version) pair is compiled at most once.

Without a subcommand snapmatrix behaves like "snapmatrix run". With --compile
it only pre-builds missing artifacts, like "snapmatrix compile".`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
			ctx := context.WithValue(cmd.Context(), config.LoggerKey(), logger)
			cmd.SetContext(ctx)

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					logger.Debug("using config file", "path", configFile)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if compileMode {
				return commands.RunCompile(cmd, &commands.CompileOptions{})
			}
			return commands.RunTests(cmd, &commands.RunOptions{})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} {{.Version}} (commit %s, built %s)\n", GitCommit, BuildDate))

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./snapmatrix.yaml)")
	rootCmd.PersistentFlags().String("fixtures-dir", "", "Path to the fixture tree")
	rootCmd.PersistentFlags().String("snapshots-dir", "", "Path to stored snapshots")
	rootCmd.PersistentFlags().String("matrix", "", "Matrix file (default: embedded matrix)")
	rootCmd.PersistentFlags().String("state", "", "Path to the ledger database")
	rootCmd.PersistentFlags().String("lock-dir", "", "Directory for the cross-process build lock")
	rootCmd.PersistentFlags().String("solc-home", "", "Directory holding .solc-select (default: home directory)")
	rootCmd.PersistentFlags().String("analyzer", "", `Analyzer command, e.g. "slither {archive} --detect {argument} --json -"`)
	rootCmd.PersistentFlags().IntP("jobs", "j", 0, "Concurrent verification jobs (default: number of CPUs)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|json)")

	rootCmd.Flags().BoolVar(&compileMode, "compile", false, "Only pre-build missing artifacts, then exit")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewCompileCommand())
	rootCmd.AddCommand(commands.NewListCommand())
	rootCmd.AddCommand(commands.NewCacheCommand())
	rootCmd.AddCommand(commands.NewDoctorCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for snapmatrix.

Bash:
  $ source <(snapmatrix completion bash)

Zsh:
  $ snapmatrix completion zsh > "${fpath[1]}/_snapmatrix"

Fish:
  $ snapmatrix completion fish | source

PowerShell:
  PS> snapmatrix completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}
