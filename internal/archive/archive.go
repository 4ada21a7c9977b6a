// Package archive persists core.CompilationUnits as versioned zip archives.
//
// Layout:
//
//	manifest.json     format, format_version, compiler_version, target, units
//	units/0000.json   one entry per compilation unit, in order
//
// Archives are written to a temporary file in the destination directory and
// renamed into place, so readers never observe a partially written archive
// and a rebuild replaces the previous archive wholesale.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

const (
	// Format identifies snapmatrix archives.
	Format = "snapmatrix-archive"
	// FormatVersion is bumped whenever the layout or unit encoding changes.
	FormatVersion = 1

	manifestName = "manifest.json"
)

// Manifest describes an archive's contents.
type Manifest struct {
	Format          string `json:"format"`
	FormatVersion   int    `json:"format_version"`
	CompilerVersion string `json:"compiler_version"`
	Target          string `json:"target"`
	Units           int    `json:"units"`
}

func unitName(i int) string {
	return fmt.Sprintf("units/%04d.json", i)
}

// Write serializes units to path, replacing any existing archive.
// Failures wrap core.ErrArtifactIO.
func Write(path string, units *core.CompilationUnits) error {
	if units == nil {
		return fmt.Errorf("write %s: no compilation units: %w", path, core.ErrArtifactIO)
	}
	if err := write(path, units); err != nil {
		return fmt.Errorf("write %s: %w: %w", path, core.ErrArtifactIO, err)
	}
	return nil
}

func write(path string, units *core.CompilationUnits) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	zw := zip.NewWriter(tmp)
	manifest := Manifest{
		Format:          Format,
		FormatVersion:   FormatVersion,
		CompilerVersion: units.CompilerVersion,
		Target:          units.Target,
		Units:           len(units.Units),
	}
	if err := writeJSON(zw, manifestName, manifest); err != nil {
		return err
	}
	for i, u := range units.Units {
		if err := writeJSON(zw, unitName(i), u); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func writeJSON(zw *zip.Writer, name string, v any) error {
	// fixed header fields keep archive bytes stable across rebuilds
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Read loads the archive at path. A missing, corrupt, or incompatible archive
// wraps core.ErrArtifactIO.
func Read(path string) (*core.CompilationUnits, error) {
	units, err := read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, core.ErrArtifactIO, err)
	}
	units.Archive = path
	return units, nil
}

func read(path string) (*core.CompilationUnits, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var manifest Manifest
	if err := readJSON(files, manifestName, &manifest); err != nil {
		return nil, err
	}
	if manifest.Format != Format {
		return nil, fmt.Errorf("unknown archive format %q", manifest.Format)
	}
	if manifest.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("archive format version %d, want %d; rebuild with --force", manifest.FormatVersion, FormatVersion)
	}

	// each unit is its own entry, so a sane count never exceeds the entry count
	if manifest.Units < 0 || manifest.Units > len(zr.File) {
		return nil, fmt.Errorf("manifest declares %d units in an archive of %d entries", manifest.Units, len(zr.File))
	}

	units := &core.CompilationUnits{
		Target:          manifest.Target,
		CompilerVersion: manifest.CompilerVersion,
		Units:           make([]core.CompilationUnit, manifest.Units),
	}
	for i := range units.Units {
		if err := readJSON(files, unitName(i), &units.Units[i]); err != nil {
			return nil, err
		}
	}
	return units, nil
}

func readJSON(files map[string]*zip.File, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("archive entry %s is missing", name)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// ReadManifest returns only the manifest of the archive at path.
func ReadManifest(path string) (*Manifest, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, core.ErrArtifactIO, err)
	}
	defer func() { _ = zr.Close() }()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	var m Manifest
	if err := readJSON(files, manifestName, &m); err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, core.ErrArtifactIO, err)
	}
	return &m, nil
}

// Exists reports whether an archive file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Digest returns the hex sha256 of the archive at path.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w: %w", path, core.ErrArtifactIO, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digest %s: %w: %w", path, core.ErrArtifactIO, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
