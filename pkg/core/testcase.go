package core

import "fmt"

// TestCase is one entry of the test matrix: a rule exercised against a
// fixture compiled with a specific compiler version.
//
// TestCase values are immutable once constructed; the matrix hands out copies.
type TestCase struct {
	// Rule is the detector name, e.g. "ReentrancyEth".
	Rule string
	// Argument is the detector's stable slug, e.g. "reentrancy-eth".
	// It names the fixture directory.
	Argument string
	// Fixture is the primary fixture file name, e.g. "reentrancy.sol".
	Fixture string
	// Version is the compiler release, e.g. "0.7.6".
	Version string
	// Auxiliary lists extra fixture files that take part in source mapping.
	Auxiliary []string
}

// CaseKey is the identity of a TestCase.
type CaseKey struct {
	Rule    string
	Fixture string
	Version string
}

// Key returns the identity triple of the test case.
func (tc TestCase) Key() CaseKey {
	return CaseKey{Rule: tc.Rule, Fixture: tc.Fixture, Version: tc.Version}
}

// ID returns the stable test identifier "{Rule}-{Version}-{Fixture}".
// Snapshot names and CLI selectors use this form.
func (tc TestCase) ID() string {
	return fmt.Sprintf("%s-%s-%s", tc.Rule, tc.Version, tc.Fixture)
}

// String implements fmt.Stringer.
func (tc TestCase) String() string {
	return tc.ID()
}

// Clone returns a deep copy of the test case.
func (tc TestCase) Clone() TestCase {
	out := tc
	if tc.Auxiliary != nil {
		out.Auxiliary = append([]string(nil), tc.Auxiliary...)
	}
	return out
}
