package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/blang/semver/v4"
	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

// VersionEnv is the environment variable the compiler wrapper reads to pick a release.
const VersionEnv = "SOLC_VERSION"

// Installer is the toolchain installer collaborator.
type Installer interface {
	// IsInstalled reports whether the release is present locally.
	IsInstalled(version string) (bool, error)
	// Install fetches and installs the release.
	Install(ctx context.Context, version string) error
	// BinaryPath returns where the release's compiler binary lives.
	BinaryPath(version string) string
}

// Handle is a ready compiler for one release.
type Handle struct {
	Version string
	Binary  string
}

// Env returns base with VersionEnv set to the handle's version.
// Any existing VersionEnv entry in base is replaced; base is not modified.
func (h *Handle) Env(base []string) []string {
	prefix := VersionEnv + "="
	env := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if strings.HasPrefix(kv, prefix) {
			continue
		}
		env = append(env, kv)
	}
	return append(env, prefix+h.Version)
}

// Status describes whether a release is installed.
type Status struct {
	Version   string
	Installed bool
	Binary    string
}

// Manager ensures compiler releases are installed and hands out Handles.
// It is safe for concurrent use; concurrent requests for the same missing
// release share a single installation.
type Manager struct {
	installer Installer
	logger    *slog.Logger
	group     singleflight.Group
	installs  atomic.Int64
}

// NewManager creates a Manager backed by installer.
func NewManager(installer Installer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{installer: installer, logger: logger}
}

// Ensure makes sure version is installed and returns a Handle for it.
// Installation failures wrap core.ErrToolchainInstall.
func (m *Manager) Ensure(ctx context.Context, version string) (*Handle, error) {
	if _, err := semver.Parse(version); err != nil {
		return nil, fmt.Errorf("invalid compiler version %q: %w: %w", version, core.ErrToolchainInstall, err)
	}

	ok, err := m.installer.IsInstalled(version)
	if err != nil {
		return nil, fmt.Errorf("check solc %s: %w: %w", version, core.ErrToolchainInstall, err)
	}
	if !ok {
		if err := m.install(ctx, version); err != nil {
			return nil, err
		}
	}

	return &Handle{Version: version, Binary: m.installer.BinaryPath(version)}, nil
}

func (m *Manager) install(ctx context.Context, version string) error {
	ch := m.group.DoChan(version, func() (any, error) {
		// another caller may have finished the install while we waited
		if ok, err := m.installer.IsInstalled(version); err == nil && ok {
			return nil, nil
		}

		m.logger.Info("Installing solc version", "version", version)
		m.installs.Add(1)
		if err := m.installer.Install(context.WithoutCancel(ctx), version); err != nil {
			return nil, err
		}
		m.logger.Debug("installed solc", "version", version, "binary", m.installer.BinaryPath(version))
		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("install solc %s: %w: %w", version, core.ErrToolchainInstall, res.Err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("install solc %s: %w: %w", version, core.ErrToolchainInstall, ctx.Err())
	}
}

// Installs returns how many installations this manager has started.
func (m *Manager) Installs() int64 {
	return m.installs.Load()
}

// Installed reports the install state of each version, in the order given.
func (m *Manager) Installed(versions []string) ([]Status, error) {
	out := make([]Status, 0, len(versions))
	for _, v := range versions {
		ok, err := m.installer.IsInstalled(v)
		if err != nil {
			return nil, fmt.Errorf("check solc %s: %w", v, err)
		}
		out = append(out, Status{Version: v, Installed: ok, Binary: m.installer.BinaryPath(v)})
	}
	return out, nil
}
