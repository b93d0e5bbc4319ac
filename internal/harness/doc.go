// Package harness provides a conformance testing framework for the
// reconciliation engine.
//
// Scenarios are YAML files describing a reader topology, a sequence of
// sensor steps (detections, disappearances, clock advances, sweeps), and
// assertions over the final state. Each scenario runs against a real engine
// over a fresh in-memory SQLite store with a manual clock and sequential
// event tokens, so every run of the same scenario produces the same trace.
//
// The trace can additionally be compared against a golden file with
// RunWithGolden; regenerate goldens with:
//
//	go test ./internal/harness -update
package harness
