package matrix

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/blang/semver/v4"

	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

// TestCaseRow pairs a row with its position in the source file and its
// resolved rule argument.
type TestCaseRow struct {
	Index    int
	Row      Row
	Argument string
}

// DuplicateError reports a (rule, fixture, version) triple that appears twice.
type DuplicateError struct {
	Key    core.CaseKey
	First  int
	Second int
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate case %s/%s/%s at rows %d and %d",
		e.Key.Rule, e.Key.Fixture, e.Key.Version, e.First, e.Second)
}

// Registry is an immutable, ordered set of test cases.
type Registry struct {
	cases []core.TestCase
	index map[core.CaseKey]int
	byID  map[string]int
}

// New validates cases and builds a Registry preserving their order.
func New(cases []core.TestCase) (*Registry, error) {
	rows := make([]TestCaseRow, len(cases))
	for i, tc := range cases {
		rows[i] = TestCaseRow{
			Index:    i,
			Argument: tc.Argument,
			Row: Row{
				Rule:      tc.Rule,
				Fixture:   tc.Fixture,
				Version:   tc.Version,
				Auxiliary: tc.Auxiliary,
			},
		}
	}
	return newRegistry(rows)
}

func newRegistry(rows []TestCaseRow) (*Registry, error) {
	reg := &Registry{
		cases: make([]core.TestCase, 0, len(rows)),
		index: make(map[core.CaseKey]int, len(rows)),
		byID:  make(map[string]int, len(rows)),
	}

	firstRow := make(map[core.CaseKey]int, len(rows))
	var errs []error
	for _, r := range rows {
		tc := core.TestCase{
			Rule:     strings.TrimSpace(r.Row.Rule),
			Argument: strings.TrimSpace(r.Argument),
			Fixture:  strings.TrimSpace(r.Row.Fixture),
			Version:  strings.TrimSpace(r.Row.Version),
		}
		if len(r.Row.Auxiliary) > 0 {
			tc.Auxiliary = append([]string(nil), r.Row.Auxiliary...)
		}

		if err := validateCase(tc); err != nil {
			errs = append(errs, fmt.Errorf("case %d: %w", r.Index, err))
			continue
		}

		key := tc.Key()
		if first, dup := firstRow[key]; dup {
			errs = append(errs, &DuplicateError{Key: key, First: first, Second: r.Index})
			continue
		}
		firstRow[key] = r.Index

		reg.index[key] = len(reg.cases)
		reg.byID[tc.ID()] = len(reg.cases)
		reg.cases = append(reg.cases, tc)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return reg, nil
}

// validateCase checks the fields of a single case.
func validateCase(tc core.TestCase) error {
	switch {
	case tc.Rule == "":
		return fmt.Errorf("rule is required")
	case tc.Argument == "":
		return fmt.Errorf("rule %q has no argument", tc.Rule)
	case tc.Fixture == "":
		return fmt.Errorf("fixture is required")
	case tc.Version == "":
		return fmt.Errorf("version is required")
	}

	if err := ValidateVersion(tc.Version); err != nil {
		return err
	}

	for _, name := range append([]string{tc.Fixture, tc.Argument}, tc.Auxiliary...) {
		if name != path.Base(name) || name == "." || name == ".." {
			return fmt.Errorf("%q must be a plain file or directory name", name)
		}
	}
	return nil
}

// ValidateVersion checks that v is a plain MAJOR.MINOR.PATCH release.
// Pre-release and build suffixes are rejected; compiler releases never carry
// them, and keeping versions dash-free keeps archive names unambiguous.
func ValidateVersion(v string) error {
	parsed, err := semver.Parse(v)
	if err != nil {
		return fmt.Errorf("invalid compiler version %q: %w", v, err)
	}
	if len(parsed.Pre) > 0 || len(parsed.Build) > 0 {
		return fmt.Errorf("invalid compiler version %q: pre-release and build metadata are not allowed", v)
	}
	return nil
}

// Cases returns a copy of all test cases in matrix order.
func (r *Registry) Cases() []core.TestCase {
	out := make([]core.TestCase, len(r.cases))
	for i, tc := range r.cases {
		out[i] = tc.Clone()
	}
	return out
}

// Len returns the number of test cases.
func (r *Registry) Len() int {
	return len(r.cases)
}

// Lookup finds a test case by its ID ("{Rule}-{Version}-{Fixture}").
func (r *Registry) Lookup(id string) (core.TestCase, bool) {
	i, ok := r.byID[id]
	if !ok {
		return core.TestCase{}, false
	}
	return r.cases[i].Clone(), true
}

// Contains reports whether the registry holds a case with the given identity.
func (r *Registry) Contains(key core.CaseKey) bool {
	_, ok := r.index[key]
	return ok
}

// Filter returns a new Registry containing the cases for which keep returns true.
func (r *Registry) Filter(keep func(core.TestCase) bool) *Registry {
	out := &Registry{
		index: make(map[core.CaseKey]int),
		byID:  make(map[string]int),
	}
	for _, tc := range r.cases {
		if !keep(tc) {
			continue
		}
		out.index[tc.Key()] = len(out.cases)
		out.byID[tc.ID()] = len(out.cases)
		out.cases = append(out.cases, tc.Clone())
	}
	return out
}

// Select narrows the registry to the given rule names and compiler versions.
// An empty list matches everything. Rule names also match argument slugs.
func (r *Registry) Select(rules, versions []string) *Registry {
	if len(rules) == 0 && len(versions) == 0 {
		return r
	}
	return r.Filter(func(tc core.TestCase) bool {
		if len(rules) > 0 && !slices.Contains(rules, tc.Rule) && !slices.Contains(rules, tc.Argument) {
			return false
		}
		if len(versions) > 0 && !slices.Contains(versions, tc.Version) {
			return false
		}
		return true
	})
}

// Versions returns the distinct compiler versions, oldest first.
func (r *Registry) Versions() []string {
	seen := make(map[string]bool)
	var parsed semver.Versions
	for _, tc := range r.cases {
		if seen[tc.Version] {
			continue
		}
		seen[tc.Version] = true
		// versions were validated at construction
		parsed = append(parsed, semver.MustParse(tc.Version))
	}
	semver.Sort(parsed)

	out := make([]string, len(parsed))
	for i, v := range parsed {
		out[i] = v.String()
	}
	return out
}

// Rules returns the distinct rule names in first-seen order.
func (r *Registry) Rules() []string {
	seen := make(map[string]bool)
	var out []string
	for _, tc := range r.cases {
		if !seen[tc.Rule] {
			seen[tc.Rule] = true
			out = append(out, tc.Rule)
		}
	}
	return out
}

// Arguments maps each rule name to its argument slug.
func (r *Registry) Arguments() map[string]string {
	out := make(map[string]string)
	for _, tc := range r.cases {
		out[tc.Rule] = tc.Argument
	}
	return out
}
