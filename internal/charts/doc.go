// Package charts renders the static PNG companions of the result CSVs:
// the σ-convergence path, the β-convergence path and the implied half-life
// by event time. Charts degrade gracefully: event times without a defined
// value are left out, and a chart with nothing to show is skipped rather
// than written empty.
package charts
