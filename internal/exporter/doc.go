// Package exporter persists audit results: the cumulative master
// workbook and the per-run snapshot CSV.
//
// MasterStore owns the master workbook (xlsx). It loads the table at
// the start of a run and saves the updated table at the end, writing to
// a temporary file and renaming so a failed run never corrupts the
// existing workbook. Alongside each row's visible summary it persists
// the retained session fact identifiers, which is what lets the next
// run deduplicate an overlapping re-extract instead of summing counts.
//
// SnapshotWriter emits the per-run CSV: the merged rows sorted by
// session count (desc) then student name, each tagged with the change
// the run made to it (new/updated/unchanged).
//
// The merge engine itself performs no I/O; this package is the
// output-side collaborator behind it.
package exporter
