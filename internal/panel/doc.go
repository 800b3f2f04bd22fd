// Package panel loads the state-month vegetable price panel from CSV or
// Excel workbooks and normalizes it into a long format ready for the
// event-study pipeline.
//
// # Architecture
//
// The package is organized into three main components:
//
// 1. Table: A raw header + string-cell view of the input file
// 2. Column detection: Heuristics that identify the state, date, and
//    convergence-variable columns without requiring a fixed schema
// 3. Loader: Reads CSV/XLSX files, applies detection, and emits clean rows
//
// # Column Detection
//
// Column names are lowercased and trimmed before matching. The state column
// is taken from a list of common names (state, state_name, statename,
// st_name, states); when none match, any non-numeric column with 28-40
// distinct values is accepted, which covers Indian state panels. Dates come
// from a 'date' column or from 'year' + 'month' columns, where month may be
// a number or a full English month name. The convergence variable prefers
// relc, then relu, then relr, then any numeric column starting with "rel",
// and finally the first numeric column that is not a key column. Columns
// whose name contains "veg" are treated as vegetable price series.
//
// # Usage
//
//	loader := panel.NewLoader(logger)
//	p, err := loader.Load(ctx, "data/halflife_q.xlsx", "Sheet1")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(p.Meta.Columns.Rel, len(p.Rows))
//
// Rows missing the state, date, or convergence value are dropped. The
// result is sorted by state then date, matching the order the estimators
// expect for lag and difference computations.
package panel
