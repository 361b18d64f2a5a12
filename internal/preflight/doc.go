// Package preflight provides readiness checks for the external tools and
// filesystem paths that webmpipe depends on.
//
// These checks run in two contexts:
//   - The encode command calls RunAll before starting a pipeline. If any
//     check fails, the run is refused rather than failing mid-encode.
//   - The CLI "webmpipe check" command renders every result as a table.
//
// The history directory is only checked when the journal is enabled.
package preflight
