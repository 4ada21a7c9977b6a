// Package state provides the snapmatrix ledger using SQLite.
// It records artifact builds and verification runs so that cache status and
// past results can be inspected after the fact.
package state

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus is the lifecycle state of a verification run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusPassed    RunStatus = "passed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Build is one successful artifact build.
type Build struct {
	ID              string
	CacheKey        string
	FixturePath     string
	CompilerVersion string
	ArchivePath     string
	Digest          string
	Units           int
	Duration        time.Duration
	BuiltAt         time.Time
}

// Run is one verification run over a set of test cases.
type Run struct {
	ID          string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      RunStatus
	Total       int
	Passed      int
	Failed      int
}

// CaseResult is the outcome of one test case within a run.
type CaseResult struct {
	RunID    string
	CaseID   string
	Rule     string
	Fixture  string
	Version  string
	Status   string
	Error    string
	Duration time.Duration
}
