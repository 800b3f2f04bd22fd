// Package exporter writes the event-study result files: the shock-month
// list, the σ and β convergence paths, the robustness and sensitivity
// tables, and the plain-text summary. It also reads those files back, so
// the CSV schemas live in exactly one package.
//
// CSV files are written with a UTF-8 BOM so Excel opens them correctly,
// and missing values round-trip as empty cells.
package exporter
