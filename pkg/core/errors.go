package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the harness wraps exactly one of these.
var (
	// ErrToolchainInstall indicates a compiler release could not be installed.
	ErrToolchainInstall = errors.New("toolchain install failed")
	// ErrCompilation indicates the compiler rejected a fixture.
	ErrCompilation = errors.New("compilation failed")
	// ErrArtifactIO indicates an archive could not be read or written.
	ErrArtifactIO = errors.New("artifact io failed")
	// ErrAnalysisExecution indicates a detector failed while running.
	ErrAnalysisExecution = errors.New("analysis execution failed")
	// ErrSnapshotMismatch indicates canonical output differs from its baseline.
	ErrSnapshotMismatch = errors.New("snapshot mismatch")
)

// CaseError attaches test case context to a failure so it can be reproduced.
type CaseError struct {
	Case    TestCase
	Fixture string // resolved fixture path, if known
	Stage   string // e.g. "build", "analyze", "compare"
	Err     error
}

// Error implements error.
func (e *CaseError) Error() string {
	loc := e.Fixture
	if loc == "" {
		loc = e.Case.Fixture
	}
	return fmt.Sprintf("%s [rule=%s fixture=%s version=%s] %s: %v",
		e.Case.ID(), e.Case.Rule, loc, e.Case.Version, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *CaseError) Unwrap() error {
	return e.Err
}

// WrapCase wraps err with test case context. It returns nil when err is nil.
func WrapCase(tc TestCase, fixture, stage string, err error) error {
	if err == nil {
		return nil
	}
	return &CaseError{Case: tc, Fixture: fixture, Stage: stage, Err: err}
}

// Kind returns the error kind wrapped by err, or nil when it wraps none.
func Kind(err error) error {
	for _, kind := range []error{
		ErrToolchainInstall,
		ErrCompilation,
		ErrArtifactIO,
		ErrAnalysisExecution,
		ErrSnapshotMismatch,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
