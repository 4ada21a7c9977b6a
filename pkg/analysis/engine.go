package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

// Context is the in-process Engine over one set of compilation units.
// Detectors run sequentially in registration order.
type Context struct {
	units     *core.CompilationUnits
	detectors []Detector
	names     map[string]struct{}
	ran       bool
	logger    *slog.Logger
}

// NewContext creates an Engine over units.
func NewContext(units *core.CompilationUnits, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Context{
		units:  units,
		names:  make(map[string]struct{}),
		logger: logger,
	}
}

// NewEngineFactory returns an EngineFactory producing Contexts.
func NewEngineFactory(logger *slog.Logger) EngineFactory {
	return func(units *core.CompilationUnits) Engine {
		return NewContext(units, logger)
	}
}

// Register implements Engine.
func (c *Context) Register(d Detector) error {
	if c.ran {
		return errors.New("cannot register detectors after Run")
	}
	if d == nil {
		return errors.New("nil detector")
	}
	if _, ok := c.names[d.Name()]; ok {
		return fmt.Errorf("detector %q already registered", d.Name())
	}
	c.names[d.Name()] = struct{}{}
	c.detectors = append(c.detectors, d)
	return nil
}

// Detectors returns the registered detectors in registration order.
func (c *Context) Detectors() []Detector {
	return append([]Detector(nil), c.detectors...)
}

// Run implements Engine. Results follow registration order and each
// detector's findings keep emission order.
func (c *Context) Run(ctx context.Context) ([]core.DetectorResult, error) {
	if c.ran {
		return nil, errors.New("engine already ran")
	}
	c.ran = true
	if c.units == nil {
		return nil, fmt.Errorf("%w: no compilation units", core.ErrAnalysisExecution)
	}

	results := make([]core.DetectorResult, 0, len(c.detectors))
	for _, d := range c.detectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		findings, err := c.detect(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("detector %s: %w: %w", d.Name(), core.ErrAnalysisExecution, err)
		}
		c.logger.Debug("detector finished",
			slog.String("detector", d.Name()),
			slog.Int("findings", len(findings)))

		for i := range findings {
			if findings[i].Rule == "" {
				findings[i].Rule = d.Name()
			}
		}
		results = append(results, core.DetectorResult{Detector: d.Name(), Findings: findings})
	}
	return results, nil
}

func (c *Context) detect(ctx context.Context, d Detector) (findings []core.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.Detect(ctx, c.units)
}
