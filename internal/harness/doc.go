// Package harness drives the regression matrix end to end.
//
// A Runner turns one test case into canonical text: it resolves the fixture,
// loads or builds its artifact through the cache, and runs exactly one
// detector over it. Prebuild compiles every case ahead of time on a single
// goroutine. A Pipeline chains the two phases and refuses to verify until the
// build phase has completed, so concurrent verification only ever reads
// archives.
package harness
