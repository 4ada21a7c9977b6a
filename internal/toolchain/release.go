package toolchain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL serves official compiler release binaries.
const DefaultBaseURL = "https://binaries.soliditylang.org"

// ReleaseConfig configures a ReleaseInstaller.
type ReleaseConfig struct {
	// Home is the directory holding .solc-select. Defaults to the user's home.
	Home string
	// BaseURL is the release server. Defaults to DefaultBaseURL.
	BaseURL string
	// Platform selects the release channel, e.g. "linux-amd64".
	// Defaults to the running platform.
	Platform string
	// Client performs downloads. Defaults to http.DefaultClient.
	Client *http.Client
	// Logger is optional.
	Logger *slog.Logger
}

// ReleaseInstaller installs official compiler releases into a solc-select
// compatible layout: {home}/.solc-select/artifacts/solc-{v}/solc-{v}.
type ReleaseInstaller struct {
	artifacts string
	baseURL   string
	platform  string
	client    *http.Client
	logger    *slog.Logger
}

// NewReleaseInstaller creates a ReleaseInstaller, filling in defaults.
func NewReleaseInstaller(cfg ReleaseConfig) (*ReleaseInstaller, error) {
	home := cfg.Home
	if home == "" {
		dir, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		home = dir
	} else {
		expanded, err := homedir.Expand(home)
		if err != nil {
			return nil, fmt.Errorf("failed to expand toolchain home %q: %w", home, err)
		}
		home = expanded
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	platform := cfg.Platform
	if platform == "" {
		p, err := hostPlatform()
		if err != nil {
			return nil, err
		}
		platform = p
	}

	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &ReleaseInstaller{
		artifacts: filepath.Join(home, ".solc-select", "artifacts"),
		baseURL:   baseURL,
		platform:  platform,
		client:    client,
		logger:    logger,
	}, nil
}

// hostPlatform maps the running OS to a release channel.
func hostPlatform() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "linux-amd64", nil
	case "darwin":
		return "macosx-amd64", nil
	case "windows":
		return "windows-amd64", nil
	default:
		return "", fmt.Errorf("no compiler releases for %s/%s", runtime.GOOS, runtime.GOARCH)
	}
}

// ArtifactsDir returns the directory holding installed releases.
func (r *ReleaseInstaller) ArtifactsDir() string {
	return r.artifacts
}

// BinaryPath implements Installer.
func (r *ReleaseInstaller) BinaryPath(version string) string {
	name := "solc-" + version
	return filepath.Join(r.artifacts, name, name)
}

// IsInstalled implements Installer.
func (r *ReleaseInstaller) IsInstalled(version string) (bool, error) {
	info, err := os.Stat(r.BinaryPath(version))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// release is the list.json entry for one version.
type release struct {
	file   string
	sha256 string
}

// Install implements Installer. It resolves the version in the platform's
// list.json, downloads the binary, and verifies its sha256 before moving it
// into place.
func (r *ReleaseInstaller) Install(ctx context.Context, version string) error {
	rel, err := r.lookup(ctx, version)
	if err != nil {
		return err
	}

	dest := r.BinaryPath(version)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", r.baseURL, r.platform, rel.file)
	r.logger.Debug("downloading solc", "version", version, "url", url)

	body, err := r.get(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".solc-*.download")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", tmpName, err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if rel.sha256 != "" && !strings.EqualFold(got, rel.sha256) {
		return fmt.Errorf("checksum mismatch for solc %s: got %s, want %s", version, got, rel.sha256)
	}

	if err := os.Chmod(tmpName, 0o755); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("install %s: %w", dest, err)
	}
	return nil
}

// lookup resolves version in the platform's release list.
func (r *ReleaseInstaller) lookup(ctx context.Context, version string) (release, error) {
	url := fmt.Sprintf("%s/%s/list.json", r.baseURL, r.platform)
	body, err := r.get(ctx, url)
	if err != nil {
		return release{}, err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return release{}, fmt.Errorf("read %s: %w", url, err)
	}
	if !gjson.ValidBytes(data) {
		return release{}, fmt.Errorf("invalid release list at %s", url)
	}

	list := gjson.ParseBytes(data)
	file := list.Get("releases." + escapePath(version))
	if !file.Exists() {
		return release{}, fmt.Errorf("solc %s is not available for %s", version, r.platform)
	}

	sum := list.Get(fmt.Sprintf(`builds.#(version==%q).sha256`, version)).String()
	return release{
		file:   file.String(),
		sha256: strings.TrimPrefix(sum, "0x"),
	}, nil
}

func (r *ReleaseInstaller) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	return resp.Body, nil
}

// escapePath escapes gjson path metacharacters in a map key.
func escapePath(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}
