package domain

import (
	"time"
)

// ChronicleRow represents one raw row from a chronicle re-extraction.
// The Details column packs one or more logical sub-records (sessions and
// goal entries) behind a documented delimiter convention; everything else
// is flat passthrough identity data. Rows are immutable once read and are
// the source of truth for a given extraction window.
type ChronicleRow struct {
	StudentCode string    `json:"student_code" csv:"Display Code" validate:"required"`
	StudentName string    `json:"student_name,omitempty" csv:"Student Name"`
	Gender      string    `json:"gender,omitempty" csv:"Gender"`
	YearLevel   string    `json:"year_level,omitempty" csv:"Year Level"`
	House       string    `json:"house,omitempty" csv:"House"`
	Category    string    `json:"category,omitempty" csv:"Category"`
	OccurredAt  time.Time `json:"occurred_at,omitempty" csv:"OccurredTimestamp"`

	// Details is the packed column. See config.ExtractConfig for the
	// delimiter and sub-field conventions used to expand it.
	Details string `json:"details" csv:"Details"`

	// RowNumber is the 1-based position in the source extract, carried
	// for error reporting only.
	RowNumber int `json:"row_number,omitempty"`
}

// FactKind tags the type of an expanded fact.
type FactKind string

const (
	// FactSession is a single learning-session (meeting) occurrence.
	FactSession FactKind = "session"
	// FactGoal is a single IEP goal entry with a category and status.
	FactGoal FactKind = "goal"
)

// Fact is one atomic field-value record recovered from a ChronicleRow's
// packed Details column. Multiple Facts originate from one row.
//
// For session facts, Value is the session identifier (template name,
// entry id or similar) and Status is empty. For goal facts, Value is the
// goal category (e.g. "numeracy", "wellbeing") and Status carries the
// reported goal status.
type Fact struct {
	StudentCode string     `json:"student_code"`
	Kind        FactKind   `json:"kind"`
	Date        time.Time  `json:"date"`
	Value       string     `json:"value"`
	Status      GoalStatus `json:"status,omitempty"`
}

// SessionKey returns the deduplication identity of a session fact.
// Two session facts from overlapping extracts are the same occurrence
// exactly when their keys are equal.
func (f Fact) SessionKey() string {
	return f.Date.Format("2006-01-02") + "|" + f.Value
}

// RowError identifies a source row that could not be expanded, together
// with the reason it was skipped. Row errors never abort a batch; they
// are collected and surfaced through the ChangeSummary.
type RowError struct {
	StudentCode string `json:"student_code,omitempty"`
	RowNumber   int    `json:"row_number,omitempty"`
	Reason      string `json:"reason"`
}
