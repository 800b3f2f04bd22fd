// Package files discovers panel input files and generated result
// artifacts on disk.
//
// Input discovery scans the data directory for the spreadsheet and CSV
// formats the panel loader understands (.csv, .xlsx, .xlsm, .xls) and
// orders candidates newest first, so callers that are not given an
// explicit file can fall back to the most recently dropped-in panel.
//
// Result discovery reports which of the well-known output artifacts
// (CSV paths, summary.txt, PNG charts) exist under the output directory,
// which drives the dashboard's download listing and the health check's
// notion of "results available".
package files
