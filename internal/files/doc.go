// Package files locates and decodes chronicle extract files for the
// audit pipeline.
//
// This package contains two main components:
//
// Discovery: finds extract files matching the configured glob pattern
// and selects the newest one, mirroring the weekly export-then-audit
// workflow where several dated extracts accumulate in one directory.
//
// Loader: decodes an extract CSV into domain.ChronicleRow values using
// header-driven column mapping, so column reordering in the source
// report does not break ingestion. Timestamps are parsed tolerantly:
// the school system exports day-first timestamps with and without
// seconds.
//
// The merge engine itself never touches the file system; this package
// is the input-side collaborator in front of it.
//
// Example usage:
//
//	path, err := files.FindLatestExtract("StudentChronicleOverview*.csv")
//	if err != nil {
//	    return err
//	}
//	rows, err := files.ReadExtract(path)
package files
