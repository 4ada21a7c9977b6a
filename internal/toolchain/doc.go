// Package toolchain makes compiler releases available on demand.
//
// A Manager turns a version string into a ready-to-use Handle, installing the
// release first when it is missing. There is no process-wide "active"
// version: the Handle carries the binary path and the SOLC_VERSION
// environment that the compilation step passes to the compiler explicitly, so
// builds for different versions can run side by side.
package toolchain
