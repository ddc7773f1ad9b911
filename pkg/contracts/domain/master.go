package domain

import (
	"time"
)

// MasterTable is the cumulative audit table: one row per student code,
// in first-seen insertion order. The order is part of the contract:
// a row's position, once assigned on first append, never changes on
// later updates, and rows are never removed.
//
// The table is a value: reconciliation returns a new table rather than
// mutating the one it was given, so atomicity of persistence stays with
// the writer collaborator.
type MasterTable struct {
	Rows []StudentSummary `json:"rows"`
}

// Len returns the number of rows.
func (t MasterTable) Len() int { return len(t.Rows) }

// Index builds a student-code → row-position lookup.
func (t MasterTable) Index() map[string]int {
	idx := make(map[string]int, len(t.Rows))
	for i, row := range t.Rows {
		idx[row.StudentCode] = i
	}
	return idx
}

// Lookup returns the row for the given student code, if present.
func (t MasterTable) Lookup(code string) (StudentSummary, bool) {
	for _, row := range t.Rows {
		if row.StudentCode == code {
			return row, true
		}
	}
	return StudentSummary{}, false
}

// Clone returns a deep copy of the table.
func (t MasterTable) Clone() MasterTable {
	out := MasterTable{Rows: make([]StudentSummary, len(t.Rows))}
	for i, row := range t.Rows {
		out.Rows[i] = row.Clone()
	}
	return out
}

// ChangeKind classifies what a run did to a master row.
type ChangeKind string

const (
	// ChangeNew marks a row appended this run.
	ChangeNew ChangeKind = "new"
	// ChangeUpdated marks an existing row whose content changed.
	ChangeUpdated ChangeKind = "updated"
	// ChangeUnchanged marks an existing row the run left byte-identical.
	ChangeUnchanged ChangeKind = "unchanged"
)

// ChangeSummary reports what a reconciliation run did: row counts by
// outcome, the per-code outcome map, and the row errors collected while
// expanding the extract. It is the sole surfaced diagnostic for
// recoverable issues.
type ChangeSummary struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Appended  int `json:"appended"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`

	// Changes maps each incoming student code to its outcome.
	Changes map[string]ChangeKind `json:"changes,omitempty"`

	// Errors lists the source rows skipped during expansion.
	Errors []RowError `json:"errors,omitempty"`
}

// Total returns the number of incoming rows the run touched.
func (c ChangeSummary) Total() int {
	return c.Appended + c.Updated + c.Unchanged
}
