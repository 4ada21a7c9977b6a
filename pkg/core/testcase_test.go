package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

func TestTestCase_ID(t *testing.T) {
	tc := core.TestCase{
		Rule:     "ReentrancyEth",
		Argument: "reentrancy-eth",
		Fixture:  "reentrancy.sol",
		Version:  "0.7.6",
	}

	assert.Equal(t, "ReentrancyEth-0.7.6-reentrancy.sol", tc.ID())
	assert.Equal(t, tc.ID(), tc.String())
	assert.Equal(t, core.CaseKey{Rule: "ReentrancyEth", Fixture: "reentrancy.sol", Version: "0.7.6"}, tc.Key())
}

func TestTestCase_KeyIgnoresAuxiliary(t *testing.T) {
	a := core.TestCase{Rule: "ConstantPragma", Fixture: "pragma.0.4.25.sol", Version: "0.4.25"}
	b := a
	b.Auxiliary = []string{"pragma.0.4.24.sol"}

	assert.Equal(t, a.Key(), b.Key())
}

func TestTestCase_Clone(t *testing.T) {
	orig := core.TestCase{Rule: "ConstantPragma", Auxiliary: []string{"pragma.0.4.24.sol"}}
	clone := orig.Clone()
	clone.Auxiliary[0] = "mutated.sol"

	assert.Equal(t, "pragma.0.4.24.sol", orig.Auxiliary[0])
}
