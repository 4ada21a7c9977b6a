package harness

import (
	"context"
	"errors"
	"log/slog"

	"github.com/leapstack-labs/snapmatrix/internal/cache"
	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

// PrebuildOptions configures Prebuild.
type PrebuildOptions struct {
	// SkipExisting leaves cases whose archive already exists untouched.
	// Without it every case is rebuilt.
	SkipExisting bool
	// KeepGoing continues past failures and reports all of them.
	KeepGoing bool
}

// PrebuildReport counts what Prebuild did.
type PrebuildReport struct {
	Built   int
	Skipped int
	Failed  int
}

// Prebuild compiles cases in order on the calling goroutine.
// Cases sharing a cache key are built once per call.
func (r *Runner) Prebuild(ctx context.Context, cases []core.TestCase, opts PrebuildOptions) (PrebuildReport, error) {
	var (
		report PrebuildReport
		errs   []error
		seen   = make(map[core.CacheKey]struct{}, len(cases))
	)

	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		fixture := r.FixturePath(tc)
		key := core.NewCacheKey(fixture, tc.Version)
		if _, ok := seen[key]; ok {
			report.Skipped++
			continue
		}
		seen[key] = struct{}{}

		if opts.SkipExisting && r.artifacts.Exists(fixture, tc.Version) {
			report.Skipped++
			continue
		}

		r.logger.Info("compiling fixture",
			slog.String("case", tc.ID()),
			slog.String("fixture", fixture),
			slog.String("version", tc.Version))

		_, err := r.artifacts.GetOrBuild(ctx, fixture, tc.Version,
			cache.Force(), cache.Auxiliary(AuxiliaryPaths(r.root, tc)...))
		if err != nil {
			report.Failed++
			err = core.WrapCase(tc, fixture, StageBuild, err)
			if !opts.KeepGoing {
				return report, err
			}
			r.logger.Error("build failed", slog.String("case", tc.ID()), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		report.Built++
	}
	return report, errors.Join(errs...)
}
