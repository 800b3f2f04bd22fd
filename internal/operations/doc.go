// Package operations runs the analysis pipeline as a sequence of steps
// with observable state.
//
// A run is described by a RunSpec (input file, sheet, event-study
// parameters, optional sensitivity grid) and executed by the Manager: it
// resolves step order from the Registry, drives each step under its own
// timeout and OTel span, and publishes progress through the
// StatusBroadcaster, which keeps the authoritative OperationSnapshot per
// run and pushes every change to the WebSocket hub.
//
// Steps share data through the OperationState: load_panel stores the
// parsed panel, detect_shocks the shock set, convergence the stacked
// event windows and study result, and so on down the chain. Every file a
// step writes is recorded in the run's ArtifactManifest, which is part of
// the snapshot and saved as run_manifest.json next to the outputs.
//
// The step order is load_panel → detect_shocks → convergence →
// robustness → charts, plus an optional sensitivity step at the end.
package operations
