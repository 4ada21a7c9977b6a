package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/snapmatrix/internal/testutil"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	assert.Equal(t, ":memory:", store.Path())
	require.NoError(t, store.Close())
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"builds", "runs", "case_results"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s", table)
		_ = rows.Close()
	}

	version, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// idempotent
	require.NoError(t, store.Migrate())
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	require.NoError(t, store.Migrate())
	require.NoError(t, store.RecordBuild(context.Background(), &Build{CacheKey: "k", FixturePath: "f", CompilerVersion: "0.4.25", ArchivePath: "f-0.4.25.zip"}))
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path))
	defer func() { _ = reopened.Close() }()
	builds, err := reopened.ListBuilds(context.Background())
	require.NoError(t, err)
	assert.Len(t, builds, 1)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	assert.Error(t, store.Migrate())
	assert.Error(t, store.RecordBuild(ctx, &Build{}))
	_, err := store.CreateRun(ctx, 1)
	assert.Error(t, err)
	_, err = store.ListBuilds(ctx)
	assert.Error(t, err)
}

func TestSQLiteStore_Builds(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	older := &Build{
		CacheKey:        "test_data/tx-origin/0.4.25/tx_origin.sol-0.4.25",
		FixturePath:     "test_data/tx-origin/0.4.25/tx_origin.sol",
		CompilerVersion: "0.4.25",
		ArchivePath:     "test_data/tx-origin/0.4.25/tx_origin.sol-0.4.25.zip",
		Digest:          "aaaa",
		Units:           1,
		Duration:        1500 * time.Millisecond,
		BuiltAt:         time.Now().UTC().Add(-time.Hour),
	}
	newer := *older
	newer.ID = ""
	newer.Digest = "bbbb"
	newer.BuiltAt = time.Now().UTC()
	other := &Build{CacheKey: "other-0.5.16", FixturePath: "other", CompilerVersion: "0.5.16", ArchivePath: "other-0.5.16.zip"}

	require.NoError(t, store.RecordBuild(ctx, older))
	require.NoError(t, store.RecordBuild(ctx, &newer))
	require.NoError(t, store.RecordBuild(ctx, other))
	assert.NotEmpty(t, older.ID)
	assert.False(t, other.BuiltAt.IsZero())

	latest, err := store.LatestBuild(ctx, older.CacheKey)
	require.NoError(t, err)
	assert.Equal(t, "bbbb", latest.Digest)
	assert.Equal(t, newer.ID, latest.ID)
	assert.Equal(t, 1500*time.Millisecond, latest.Duration)
	assert.Equal(t, 1, latest.Units)

	builds, err := store.ListBuilds(ctx)
	require.NoError(t, err)
	assert.Len(t, builds, 3)

	_, err = store.LatestBuild(ctx, "missing-0.4.25")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name   string
		status RunStatus
		passed int
		failed int
	}{
		{name: "passing run", status: RunStatusPassed, passed: 2},
		{name: "failing run", status: RunStatusFailed, passed: 1, failed: 1},
		{name: "cancelled run", status: RunStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			ctx := context.Background()

			run, err := store.CreateRun(ctx, 2)
			require.NoError(t, err)
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, RunStatusRunning, run.Status)

			got, err := store.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, RunStatusRunning, got.Status)
			assert.Nil(t, got.CompletedAt)
			assert.Equal(t, 2, got.Total)

			require.NoError(t, store.CompleteRun(ctx, run.ID, tt.status, tt.passed, tt.failed))

			got, err = store.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.NotNil(t, got.CompletedAt)
			assert.Equal(t, tt.passed, got.Passed)
			assert.Equal(t, tt.failed, got.Failed)
		})
	}
}

func TestSQLiteStore_RunNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.CompleteRun(ctx, "nope", RunStatusPassed, 0, 0), ErrNotFound)
}

func TestSQLiteStore_CaseResults(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run, err := store.CreateRun(ctx, 2)
	require.NoError(t, err)

	results := []*CaseResult{
		{RunID: run.ID, CaseID: "TxOrigin-0.4.25-tx_origin.sol", Rule: "TxOrigin", Fixture: "tx_origin.sol", Version: "0.4.25", Status: "pass", Duration: 20 * time.Millisecond},
		{RunID: run.ID, CaseID: "ReentrancyEth-0.7.6-reentrancy.sol", Rule: "ReentrancyEth", Fixture: "reentrancy.sol", Version: "0.7.6", Status: "fail", Error: "snapshot mismatch"},
	}
	for _, r := range results {
		require.NoError(t, store.RecordCaseResult(ctx, r))
	}
	// replacing a result keeps one row per case
	results[1].Status = "pass"
	results[1].Error = ""
	require.NoError(t, store.RecordCaseResult(ctx, results[1]))

	got, err := store.ListCaseResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ReentrancyEth-0.7.6-reentrancy.sol", got[0].CaseID)
	assert.Equal(t, "pass", got[0].Status)
	assert.Equal(t, 20*time.Millisecond, got[1].Duration)

	none, err := store.ListCaseResults(ctx, "other-run")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_ErrorPaths(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		call      func(s *SQLiteStore) error
		errMsg    string
	}{
		{
			name: "record build fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO builds").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				return s.RecordBuild(context.Background(), &Build{CacheKey: "k"})
			},
			errMsg: "failed to record build",
		},
		{
			name: "list builds fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM builds").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				_, err := s.ListBuilds(context.Background())
				return err
			},
			errMsg: "failed to list builds",
		},
		{
			name: "create run fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO runs").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				_, err := s.CreateRun(context.Background(), 3)
				return err
			},
			errMsg: "failed to create run",
		},
		{
			name: "complete run fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE runs").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				return s.CompleteRun(context.Background(), "r", RunStatusFailed, 0, 1)
			},
			errMsg: "failed to complete run",
		},
		{
			name: "record case result fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT OR REPLACE INTO case_results").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				return s.RecordCaseResult(context.Background(), &CaseResult{RunID: "r", CaseID: "c"})
			},
			errMsg: "failed to record case result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			tt.setupMock(mock)
			err = tt.call(NewWithDB(db, nil))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.ErrorIs(t, err, assert.AnError)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
