// Package cache provides the artifact cache: compiled fixtures addressed by
// (fixture path, compiler version) and persisted as archives next to the
// fixture.
//
// A cache hit reads the archive without taking any lock. A miss serializes on
// a process-wide mutex and a cross-process file lock, re-checks for a hit, and
// only then installs the toolchain, compiles, and writes the archive.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/leapstack-labs/snapmatrix/internal/archive"
	"github.com/leapstack-labs/snapmatrix/internal/compile"
	"github.com/leapstack-labs/snapmatrix/internal/state"
	"github.com/leapstack-labs/snapmatrix/internal/toolchain"
	"github.com/leapstack-labs/snapmatrix/pkg/core"
	"github.com/leapstack-labs/snapmatrix/pkg/matrix"
)

const lockName = "snapmatrix-build.lock"

// Toolchains provides compiler handles.
type Toolchains interface {
	Ensure(ctx context.Context, version string) (*toolchain.Handle, error)
}

// BuildRecorder records completed builds.
type BuildRecorder interface {
	RecordBuild(ctx context.Context, b *state.Build) error
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits     int64
	Builds   int64
	Failures int64
}

// Cache is the artifact cache.
type Cache struct {
	toolchains Toolchains
	compiler   compile.Compiler
	ledger     BuildRecorder
	logger     *slog.Logger
	lockDir    string

	mu sync.Mutex // serializes builds within the process

	hits     atomic.Int64
	builds   atomic.Int64
	failures atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLedger records every build in the ledger.
func WithLedger(ledger BuildRecorder) Option {
	return func(c *Cache) { c.ledger = ledger }
}

// WithLockDir sets the directory holding the cross-process build lock.
func WithLockDir(dir string) Option {
	return func(c *Cache) { c.lockDir = dir }
}

// New creates a cache that installs compilers through toolchains and builds
// with compiler.
func New(toolchains Toolchains, compiler compile.Compiler, opts ...Option) *Cache {
	c := &Cache{
		toolchains: toolchains,
		compiler:   compiler,
		logger:     slog.New(slog.DiscardHandler),
		lockDir:    filepath.Join(os.TempDir(), "snapmatrix"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type buildOptions struct {
	force     bool
	auxiliary []string
}

// BuildOption configures a single GetOrBuild call.
type BuildOption func(*buildOptions)

// Force rebuilds even when an archive exists.
func Force() BuildOption {
	return func(o *buildOptions) { o.force = true }
}

// Auxiliary adds extra fixture files to the compilation. They take part in
// source mapping but do not change the cache key.
func Auxiliary(paths ...string) BuildOption {
	return func(o *buildOptions) { o.auxiliary = append(o.auxiliary, paths...) }
}

// ArchivePath returns where the archive for (fixturePath, version) lives.
func (c *Cache) ArchivePath(fixturePath, version string) string {
	return core.NewCacheKey(fixturePath, version).ArchivePath()
}

// Exists reports whether an archive for (fixturePath, version) is present.
func (c *Cache) Exists(fixturePath, version string) bool {
	return archive.Exists(c.ArchivePath(fixturePath, version))
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Builds:   c.builds.Load(),
		Failures: c.failures.Load(),
	}
}

// GetOrBuild returns the compilation units for fixturePath at version,
// building and persisting them first when no archive exists.
//
// version must be a plain MAJOR.MINOR.PATCH release; a dash in the version
// would let two different keys share one archive name.
func (c *Cache) GetOrBuild(ctx context.Context, fixturePath, version string, opts ...BuildOption) (*core.CompilationUnits, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := matrix.ValidateVersion(strings.TrimSpace(version)); err != nil {
		c.failures.Add(1)
		return nil, fmt.Errorf("cache key %s: %w: %w", fixturePath, core.ErrArtifactIO, err)
	}

	key := core.NewCacheKey(fixturePath, version)
	path := key.ArchivePath()

	if !o.force && archive.Exists(path) {
		c.hits.Add(1)
		units, err := archive.Read(path)
		if err != nil {
			c.failures.Add(1)
			return nil, err
		}
		return units, nil
	}

	units, err := c.build(ctx, key, o)
	if err != nil {
		c.failures.Add(1)
		return nil, err
	}
	return units, nil
}

func (c *Cache) build(ctx context.Context, key core.CacheKey, o buildOptions) (*core.CompilationUnits, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	path := key.ArchivePath()

	// another builder may have finished while we waited
	if !o.force && archive.Exists(path) {
		c.hits.Add(1)
		return archive.Read(path)
	}

	start := time.Now()
	handle, err := c.toolchains.Ensure(ctx, key.Version)
	if err != nil {
		return nil, err
	}

	paths := append([]string{key.FixturePath}, o.auxiliary...)
	units, err := c.compiler.Compile(ctx, handle, paths)
	if err != nil {
		return nil, err
	}

	if err := archive.Write(path, units); err != nil {
		return nil, err
	}
	units.Archive = path
	c.builds.Add(1)

	c.logger.Info("built artifact",
		slog.String("fixture", key.FixturePath),
		slog.String("version", key.Version),
		slog.String("archive", path),
		slog.Int("units", len(units.Units)),
		slog.Duration("elapsed", time.Since(start)))

	c.record(ctx, key, units, time.Since(start))
	return units, nil
}

func (c *Cache) lock(ctx context.Context) (func(), error) {
	if c.lockDir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(c.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w: %w", core.ErrArtifactIO, err)
	}

	fl := flock.New(filepath.Join(c.lockDir, lockName))
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquire build lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire build lock: %w", ctx.Err())
	}
	return func() { _ = fl.Unlock() }, nil
}

// record writes the build to the ledger. Ledger failures are logged, not
// returned: the archive is already in place.
func (c *Cache) record(ctx context.Context, key core.CacheKey, units *core.CompilationUnits, elapsed time.Duration) {
	if c.ledger == nil {
		return
	}

	digest, err := archive.Digest(units.Archive)
	if err != nil {
		c.logger.Warn("failed to digest archive", slog.String("archive", units.Archive), slog.Any("error", err))
	}

	b := &state.Build{
		CacheKey:        key.String(),
		FixturePath:     key.FixturePath,
		CompilerVersion: key.Version,
		ArchivePath:     units.Archive,
		Digest:          digest,
		Units:           len(units.Units),
		Duration:        elapsed,
	}
	if err := c.ledger.RecordBuild(ctx, b); err != nil {
		c.logger.Warn("failed to record build", slog.String("cache_key", key.String()), slog.Any("error", err))
	}
}
