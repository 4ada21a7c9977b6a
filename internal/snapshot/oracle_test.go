package snapshot_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/snapmatrix/internal/snapshot"
	"github.com/leapstack-labs/snapmatrix/internal/testutil"
	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

const name = "ReentrancyEth-0.7.6-reentrancy.sol"

func TestFileOracle_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	text := "Reentrancy in Bank.withdraw():\n"

	res, err := snapshot.NewFileOracle(dir, true).Compare(ctx, name, text)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.NoError(t, res.Err(name))

	data, err := os.ReadFile(filepath.Join(dir, name+".txt"))
	require.NoError(t, err)
	assert.Equal(t, text, string(data))

	res, err = snapshot.NewFileOracle(dir, false).Compare(ctx, name, text)
	require.NoError(t, err)
	assert.True(t, res.Match)
	assert.False(t, res.Updated)
}

func TestFileOracle_Mismatch(t *testing.T) {
	dir := t.TempDir()
	oracle := snapshot.NewFileOracle(dir, false)
	testutil.WriteFile(t, oracle.Path(name), "Reentrancy in Bank.withdraw():\n")

	res, err := oracle.Compare(context.Background(), name, "Reentrancy in Bank.withdraw():\nReentrancy in Bank.drain():\n")
	require.NoError(t, err)
	assert.False(t, res.Match)
	assert.False(t, res.Missing)
	assert.Contains(t, res.Diff, "+Reentrancy in Bank.drain():")
	assert.Contains(t, res.Diff, name+" (snapshot)")

	err = res.Err(name)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSnapshotMismatch)
}

func TestFileOracle_EmptyOutput(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	quiet := "TxOrigin-0.4.25-clean.sol"

	// missing and empty are different outcomes
	res, err := snapshot.NewFileOracle(dir, false).Compare(ctx, quiet, "")
	require.NoError(t, err)
	assert.True(t, res.Missing)
	assert.False(t, res.Match)
	assert.ErrorIs(t, res.Err(quiet), core.ErrSnapshotMismatch)

	_, err = snapshot.NewFileOracle(dir, true).Compare(ctx, quiet, "")
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(dir, quiet+".txt"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	res, err = snapshot.NewFileOracle(dir, false).Compare(ctx, quiet, "")
	require.NoError(t, err)
	assert.True(t, res.Match)

	res, err = snapshot.NewFileOracle(dir, false).Compare(ctx, quiet, "finding\n")
	require.NoError(t, err)
	assert.False(t, res.Match)
}

func TestFileOracle_TrailingNewline(t *testing.T) {
	oracle := snapshot.NewFileOracle(t.TempDir(), false)
	testutil.WriteFile(t, oracle.Path(name), "finding\n")

	res, err := oracle.Compare(context.Background(), name, "finding")
	require.NoError(t, err)
	assert.False(t, res.Match)
	assert.NotEmpty(t, res.Diff)
}

func TestFileOracle_InvalidName(t *testing.T) {
	oracle := snapshot.NewFileOracle(t.TempDir(), true)
	for _, bad := range []string{"", "../escape", `a\b`} {
		_, err := oracle.Compare(context.Background(), bad, "x")
		assert.Error(t, err, bad)
	}
}

func TestFileOracle_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots", "nested")
	_, err := snapshot.NewFileOracle(dir, true).Compare(context.Background(), name, "x\n")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, name+".txt"))
}
