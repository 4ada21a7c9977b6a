package archive_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/snapmatrix/internal/archive"
	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

func sampleUnits() *core.CompilationUnits {
	return &core.CompilationUnits{
		Target:          "test_data/pragma/0.4.25/pragma.0.4.25.sol",
		CompilerVersion: "0.4.25",
		Units: []core.CompilationUnit{
			{
				Name: "pragma.0.4.25.sol",
				Sources: []core.SourceFile{
					{Path: "pragma.0.4.25.sol", Content: "pragma solidity 0.4.25;\n"},
					{Path: "pragma.0.4.24.sol", Content: "pragma solidity 0.4.24;\n"},
				},
				Contracts: []core.Contract{{Name: "A", Source: "pragma.0.4.25.sol"}},
				Output:    json.RawMessage(`{"version":"0.4.25"}`),
			},
		},
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pragma.0.4.25.sol-0.4.25.zip")
	want := sampleUnits()

	require.NoError(t, archive.Write(path, want))
	assert.True(t, archive.Exists(path))

	got, err := archive.Read(path)
	require.NoError(t, err)

	assert.Equal(t, path, got.Archive)
	got.Archive = ""
	assert.Equal(t, want.Target, got.Target)
	assert.Equal(t, want.CompilerVersion, got.CompilerVersion)
	require.Len(t, got.Units, 1)
	assert.Equal(t, want.Units[0].Sources, got.Units[0].Sources)
	assert.Equal(t, want.Units[0].Contracts, got.Units[0].Contracts)
	assert.JSONEq(t, string(want.Units[0].Output), string(got.Units[0].Output))
}

func TestWrite_OverwritesWholesale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.sol-0.5.16.zip")

	first := sampleUnits()
	require.NoError(t, archive.Write(path, first))

	second := sampleUnits()
	second.Units = append(second.Units, core.CompilationUnit{Name: "extra"})
	require.NoError(t, archive.Write(path, second))

	got, err := archive.Read(path)
	require.NoError(t, err)
	assert.Len(t, got.Units, 2)

	// no temp files left next to the archive
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWrite_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.zip")
	b := filepath.Join(dir, "b.zip")

	require.NoError(t, archive.Write(a, sampleUnits()))
	require.NoError(t, archive.Write(b, sampleUnits()))

	da, err := archive.Digest(a)
	require.NoError(t, err)
	db, err := archive.Digest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Len(t, da, 64)
}

func TestRead_Missing(t *testing.T) {
	_, err := archive.Read(filepath.Join(t.TempDir(), "missing.zip"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrArtifactIO)
	assert.False(t, archive.Exists(filepath.Join(t.TempDir(), "missing.zip")))
}

func TestRead_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := archive.Read(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrArtifactIO)
}

func writeManifestOnly(t *testing.T, manifest string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest-only.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("manifest.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(manifest))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestRead_WrongFormatVersion(t *testing.T) {
	path := writeManifestOnly(t, `{"format":"snapmatrix-archive","format_version":0,"units":0}`)

	_, err := archive.Read(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrArtifactIO)
	assert.Contains(t, err.Error(), "format version 0")
}

func TestRead_BadUnitCount(t *testing.T) {
	tests := []struct {
		name  string
		units int
	}{
		{name: "negative", units: -1},
		{name: "more units than entries", units: 5},
		{name: "huge", units: 1 << 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manifest, err := json.Marshal(archive.Manifest{
				Format:        archive.Format,
				FormatVersion: archive.FormatVersion,
				Units:         tt.units,
			})
			require.NoError(t, err)
			path := writeManifestOnly(t, string(manifest))

			var units *core.CompilationUnits
			require.NotPanics(t, func() { units, err = archive.Read(path) })
			assert.Nil(t, units)
			assert.ErrorIs(t, err, core.ErrArtifactIO)
			assert.Contains(t, err.Error(), "declares")
		})
	}
}

func TestDigest_Errors(t *testing.T) {
	_, err := archive.Digest(filepath.Join(t.TempDir(), "missing.zip"))
	assert.ErrorIs(t, err, core.ErrArtifactIO)

	// a directory opens but cannot be read
	_, err = archive.Digest(t.TempDir())
	assert.ErrorIs(t, err, core.ErrArtifactIO)
}

func TestReadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.zip")
	require.NoError(t, archive.Write(path, sampleUnits()))

	m, err := archive.ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, archive.Format, m.Format)
	assert.Equal(t, archive.FormatVersion, m.FormatVersion)
	assert.Equal(t, "0.4.25", m.CompilerVersion)
	assert.Equal(t, 1, m.Units)
}

func TestWrite_NilUnits(t *testing.T) {
	err := archive.Write(filepath.Join(t.TempDir(), "x.zip"), nil)
	assert.ErrorIs(t, err, core.ErrArtifactIO)
}
