// Package matrix holds the declarative test matrix: which rule runs against
// which fixture under which compiler version.
//
// The matrix is data, not code. It is read from YAML, validated once at load
// time, and exposed as an immutable, ordered Registry:
//
//	reg, err := matrix.Default()
//	for _, tc := range reg.Cases() {
//		fmt.Println(tc.ID())
//	}
//
// A matrix file has a rules table and an ordered list of cases:
//
//	version: 1
//	rules:
//	  ReentrancyEth: reentrancy-eth
//	cases:
//	  - {rule: ReentrancyEth, fixture: reentrancy.sol, version: 0.7.6}
//
// Each (rule, fixture, version) triple may appear once. A repeated triple is
// an authoring bug and makes Load fail with a *DuplicateError.
package matrix
