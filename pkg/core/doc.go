// Package core defines the shared language of the snapmatrix harness.
//
// This package contains:
//   - Matrix entities (TestCase, CaseKey)
//   - Cache addressing (CacheKey)
//   - Compiled artifacts (CompilationUnits, CompilationUnit)
//   - Analysis results (Finding, DetectorResult)
//   - The error taxonomy shared by every stage (CaseError and its kinds)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
