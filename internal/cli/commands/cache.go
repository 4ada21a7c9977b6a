package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/snapmatrix/internal/archive"
	"github.com/leapstack-labs/snapmatrix/internal/cli/output"
	"github.com/leapstack-labs/snapmatrix/internal/harness"
	"github.com/leapstack-labs/snapmatrix/internal/state"
	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the artifact cache",
	}
	cmd.AddCommand(newCacheStatusCommand())
	return cmd
}

// CacheStatusOptions holds options for cache status.
type CacheStatusOptions struct {
	Rules    []string
	Versions []string
	Missing  bool
}

func newCacheStatusCommand() *cobra.Command {
	opts := &CacheStatusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which artifacts exist and when they were built",
		Example: `  snapmatrix cache status
  snapmatrix cache status --missing`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheStatus(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Rules, "rule", "r", nil, "Only show these rules (name or argument)")
	cmd.Flags().StringSliceVar(&opts.Versions, "solc", nil, "Only show these compiler versions")
	cmd.Flags().BoolVar(&opts.Missing, "missing", false, "Only show cases without an archive")

	return cmd
}

// ArtifactStatus is the cache state of one case.
type ArtifactStatus struct {
	ID      string     `json:"id"`
	Archive string     `json:"archive"`
	Present bool       `json:"present"`
	BuiltAt *time.Time `json:"built_at,omitempty"`
	Digest  string     `json:"digest,omitempty"`
	Stale   bool       `json:"stale,omitempty"`
}

func runCacheStatus(cmd *cobra.Command, opts *CacheStatusOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	sel, err := selectCases(cc.Matrix, opts.Rules, opts.Versions)
	if err != nil {
		return err
	}

	ledger, err := openLedger(cc.Cfg, cc.Logger)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer func() { _ = ledger.Close() }()

	ctx := cmd.Context()
	var statuses []ArtifactStatus
	present := 0
	for _, tc := range sel.Cases() {
		key := core.NewCacheKey(harness.FixturePath(cc.Cfg.FixturesDir, tc), tc.Version)
		st := ArtifactStatus{
			ID:      tc.ID(),
			Archive: key.ArchivePath(),
			Present: archive.Exists(key.ArchivePath()),
		}
		if st.Present {
			present++
		}
		if opts.Missing && st.Present {
			continue
		}

		b, err := ledger.LatestBuild(ctx, key.String())
		switch {
		case err == nil:
			st.BuiltAt = &b.BuiltAt
			st.Digest = b.Digest
			if st.Present {
				// archive replaced outside the harness since the last recorded build
				if d, err := archive.Digest(key.ArchivePath()); err == nil && d != b.Digest {
					st.Stale = true
				}
			}
		case !errors.Is(err, state.ErrNotFound):
			return err
		}
		statuses = append(statuses, st)
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(statuses)
	}

	rows := make([][]any, 0, len(statuses))
	for _, st := range statuses {
		mark := r.Styles().Success.Render("present")
		if !st.Present {
			mark = r.Styles().Error.Render("missing")
		} else if st.Stale {
			mark = r.Styles().Warning.Render("changed")
		}
		built := "-"
		if st.BuiltAt != nil {
			built = st.BuiltAt.Local().Format(time.DateTime)
		}
		digest := st.Digest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		rows = append(rows, []any{st.ID, mark, built, digest})
	}
	r.Table([]string{"Case", "Archive", "Built", "Digest"}, rows)
	r.Println(r.Muted(fmt.Sprintf("%d of %d artifacts present", present, sel.Len())))
	return nil
}
