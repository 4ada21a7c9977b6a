package harness

import (
	"path/filepath"

	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

// FixturePath returns {root}/{argument}/{version}/{fixture}.
func FixturePath(root string, tc core.TestCase) string {
	return filepath.Join(root, tc.Argument, tc.Version, tc.Fixture)
}

// AuxiliaryPaths resolves the auxiliary fixtures of tc. They live next to
// the primary fixture.
func AuxiliaryPaths(root string, tc core.TestCase) []string {
	if len(tc.Auxiliary) == 0 {
		return nil
	}
	dir := filepath.Join(root, tc.Argument, tc.Version)
	out := make([]string, len(tc.Auxiliary))
	for i, aux := range tc.Auxiliary {
		out[i] = filepath.Join(dir, aux)
	}
	return out
}
