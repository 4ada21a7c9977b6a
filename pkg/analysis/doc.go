// Package analysis defines the contract between the harness and the
// analysis engine: detectors, the registry that names them, and the Engine
// that runs a set of registered detectors over compiled artifacts.
//
// The harness never runs detection heuristics itself. Detectors either live
// in-process (anything implementing Detector) or delegate to an external
// analyzer through ExternalDetector.
package analysis
