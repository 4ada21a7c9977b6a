package analysis

import (
	"context"

	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

// Detector inspects compiled artifacts and reports findings.
type Detector interface {
	// Name is the rule name used by the matrix, e.g. "ReentrancyEth".
	Name() string
	// Argument is the stable slug, e.g. "reentrancy-eth".
	Argument() string
	// Description is a one-line summary of what the detector reports.
	Description() string
	// Detect returns findings in a deterministic order.
	Detect(ctx context.Context, units *core.CompilationUnits) ([]core.Finding, error)
}

// Engine runs registered detectors over one set of compilation units.
// An Engine is single use: register detectors, then Run once.
type Engine interface {
	Register(d Detector) error
	Run(ctx context.Context) ([]core.DetectorResult, error)
}

// EngineFactory creates a fresh Engine for the given units.
type EngineFactory func(units *core.CompilationUnits) Engine

// FuncDetector adapts a function to the Detector interface.
type FuncDetector struct {
	RuleName string
	Slug     string
	Summary  string
	Fn       func(ctx context.Context, units *core.CompilationUnits) ([]core.Finding, error)
}

// Name implements Detector.
func (f *FuncDetector) Name() string { return f.RuleName }

// Argument implements Detector.
func (f *FuncDetector) Argument() string { return f.Slug }

// Description implements Detector.
func (f *FuncDetector) Description() string { return f.Summary }

// Detect implements Detector.
func (f *FuncDetector) Detect(ctx context.Context, units *core.CompilationUnits) ([]core.Finding, error) {
	if f.Fn == nil {
		return nil, nil
	}
	return f.Fn(ctx, units)
}
