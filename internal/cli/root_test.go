package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/snapmatrix/internal/cli/commands"
	"github.com/leapstack-labs/snapmatrix/internal/cli/config"
)

const testMatrix = `version: 1
rules:
  ReentrancyEth: reentrancy-eth
  TxOrigin: tx-origin
cases:
  - {rule: ReentrancyEth, fixture: reentrancy.sol, version: 0.4.25}
  - {rule: TxOrigin, fixture: tx_origin.sol, version: 0.4.25}
  - {rule: TxOrigin, fixture: tx_origin.sol, version: 0.7.6, auxiliary: [lib.sol]}
`

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "snapmatrix", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotNil(t, cmd.Flags().Lookup("compile"))

	persistent := []string{"config", "fixtures-dir", "snapshots-dir", "matrix", "state", "lock-dir", "solc-home", "analyzer", "jobs", "verbose", "output"}
	for _, flag := range persistent {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "persistent flag %q should exist", flag)
	}

	for _, name := range []string{"version", "run", "compile", "list", "cache", "doctor", "completion"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(config.ResetConfig)

	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestList_JSON(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	matrixPath := filepath.Join(dir, "matrix.yaml")
	require.NoError(t, os.WriteFile(matrixPath, []byte(testMatrix), 0o600))

	out, err := executeRoot(t, "list", "--matrix", matrixPath, "-o", "json", "--rule", "tx-origin")
	require.NoError(t, err)

	var cases []commands.CaseInfo
	require.NoError(t, json.Unmarshal([]byte(out), &cases))
	require.Len(t, cases, 2)
	assert.Equal(t, "TxOrigin", cases[0].Rule)
	assert.Equal(t, "0.4.25", cases[0].Version)
	assert.Equal(t, "0.7.6", cases[1].Version)
	assert.Equal(t, []string{"lib.sol"}, cases[1].Auxiliary)
}

func TestList_Text(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	matrixPath := filepath.Join(dir, "matrix.yaml")
	require.NoError(t, os.WriteFile(matrixPath, []byte(testMatrix), 0o600))

	out, err := executeRoot(t, "list", "--matrix", matrixPath, "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "reentrancy.sol")
	assert.Contains(t, out, "3 cases across 2 rules and 2 compiler versions")
}

func TestList_NoMatch(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	matrixPath := filepath.Join(dir, "matrix.yaml")
	require.NoError(t, os.WriteFile(matrixPath, []byte(testMatrix), 0o600))

	_, err := executeRoot(t, "list", "--matrix", matrixPath, "--solc", "0.8.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no test cases match")
}

func TestInvalidOutputFlag(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := executeRoot(t, "list", "-o", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output must be one of")
}
