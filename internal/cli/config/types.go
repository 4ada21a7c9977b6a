// Package config provides configuration management for the snapmatrix CLI.
package config

import (
	"time"

	"github.com/leapstack-labs/snapmatrix/internal/toolchain"
)

// Config holds all CLI configuration options.
type Config struct {
	FixturesDir  string          `koanf:"fixtures_dir"`
	SnapshotsDir string          `koanf:"snapshots_dir"`
	Matrix       string          `koanf:"matrix"` // empty selects the embedded matrix
	StatePath    string          `koanf:"state_path"`
	LockDir      string          `koanf:"lock_dir"`
	Jobs         int             `koanf:"jobs"`
	Verbose      bool            `koanf:"verbose"`
	OutputFormat string          `koanf:"output"`
	Toolchain    ToolchainConfig `koanf:"toolchain"`
	Analyzer     AnalyzerConfig  `koanf:"analyzer"`
}

// ToolchainConfig configures compiler installation.
type ToolchainConfig struct {
	Home           string        `koanf:"home"`
	BaseURL        string        `koanf:"base_url"`
	InstallTimeout time.Duration `koanf:"install_timeout"`
}

// AnalyzerConfig configures the external analyzer invoked per case.
// Command arguments may use {archive}, {argument} and {target}.
type AnalyzerConfig struct {
	Command []string `koanf:"command"`
}

// Default configuration values.
const (
	DefaultFixturesDir    = "test_data"
	DefaultSnapshotsDir   = "snapshots"
	DefaultStateFile      = ".snapmatrix/state.db"
	DefaultLockDir        = ".snapmatrix/locks"
	DefaultOutput         = "auto" // TTY=text, non-TTY=plain text without styles
	DefaultInstallTimeout = 10 * time.Minute
)

// DefaultAnalyzerCommand runs slither over an archive with one detector.
var DefaultAnalyzerCommand = []string{"slither", "{archive}", "--detect", "{argument}", "--json", "-"}

func defaults() map[string]any {
	return map[string]any{
		"fixtures_dir":              DefaultFixturesDir,
		"snapshots_dir":             DefaultSnapshotsDir,
		"matrix":                    "",
		"state_path":                DefaultStateFile,
		"lock_dir":                  DefaultLockDir,
		"jobs":                      0,
		"verbose":                   false,
		"output":                    DefaultOutput,
		"toolchain.home":            "",
		"toolchain.base_url":        toolchain.DefaultBaseURL,
		"toolchain.install_timeout": DefaultInstallTimeout.String(),
		"analyzer.command":          DefaultAnalyzerCommand,
	}
}
