package config

import (
	"errors"
	"fmt"
	"os"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.FixturesDir == "" {
		errs = append(errs, errors.New("fixtures_dir is required"))
	}
	if c.SnapshotsDir == "" {
		errs = append(errs, errors.New("snapshots_dir is required"))
	}
	if c.StatePath == "" {
		errs = append(errs, errors.New("state_path is required"))
	}
	if c.Jobs < 0 {
		errs = append(errs, fmt.Errorf("jobs must be >= 0, got %d", c.Jobs))
	}
	switch c.OutputFormat {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("output must be one of auto, text, json; got %q", c.OutputFormat))
	}
	if c.Toolchain.InstallTimeout <= 0 {
		errs = append(errs, errors.New("toolchain.install_timeout must be positive"))
	}
	if len(c.Analyzer.Command) == 0 {
		errs = append(errs, errors.New("analyzer.command is required"))
	}
	return errors.Join(errs...)
}

// ValidateDirectories checks that the fixture tree exists.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.FixturesDir); os.IsNotExist(err) {
		return fmt.Errorf("fixtures directory does not exist: %s\nHint: use --fixtures-dir to specify a different path", c.FixturesDir)
	}
	return nil
}
