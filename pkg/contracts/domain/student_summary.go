package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// GoalStatus is the reported state of an IEP goal category.
type GoalStatus string

const (
	// GoalActive means the goal exists and the student is progressing.
	GoalActive GoalStatus = "active"
	// GoalMet means the goal has been achieved.
	GoalMet GoalStatus = "met"
	// GoalNotApplicable means the goal entry exists but carries no
	// progress information.
	GoalNotApplicable GoalStatus = "not_applicable"
)

// ValidGoalStatus reports whether s is one of the known statuses.
func ValidGoalStatus(s GoalStatus) bool {
	switch s {
	case GoalActive, GoalMet, GoalNotApplicable:
		return true
	}
	return false
}

// rank orders statuses by informativeness for date-tie resolution:
// a met or active status always beats not_applicable on the same date.
func (s GoalStatus) rank() int {
	switch s {
	case GoalMet:
		return 2
	case GoalActive:
		return 1
	default:
		return 0
	}
}

// MoreInformative reports whether s should win a same-date tie against
// other. The more informative recent state wins: met > active >
// not_applicable.
func (s GoalStatus) MoreInformative(other GoalStatus) bool {
	return s.rank() > other.rank()
}

// GoalState is the retained state for one goal category: the latest
// known status and the date of the fact that produced it. The date is
// carried so later extracts can be merged most-recent-wins without
// re-reading historical batches.
type GoalState struct {
	Status    GoalStatus `json:"status"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// StudentSummary is one master-table row: per-student derived metrics
// plus passthrough identity fields.
//
// SessionCount always equals len(SessionKeys): the count of deduplicated
// session facts ever observed for the student across all extracts to
// date, not just the current batch. SessionKeys is retained precisely so
// overlapping re-extraction can be deduplicated at merge time rather
// than naively summing counts.
type StudentSummary struct {
	StudentCode string `json:"student_code" csv:"Display Code" validate:"required"`
	StudentName string `json:"student_name,omitempty" csv:"Student Name"`
	Gender      string `json:"gender,omitempty" csv:"Gender"`
	YearLevel   string `json:"year_level,omitempty" csv:"Year Level"`
	House       string `json:"house,omitempty" csv:"House"`

	SessionCount int `json:"session_count" csv:"Session Count" validate:"min=0"`

	// SessionKeys holds the deduplication identities of every session
	// fact incorporated so far, sorted and unique. Persisted alongside
	// the visible summary (see exporter) so future runs can merge
	// against it.
	SessionKeys []string `json:"session_keys,omitempty" csv:"Session Keys"`

	// GoalStatus maps goal category to its latest known state.
	GoalStatus map[string]GoalState `json:"goal_status,omitempty"`

	// LastSeen is the date of the most recent contributing fact.
	LastSeen time.Time `json:"last_seen,omitempty" csv:"Last Seen"`
}

// HasGoal reports whether any goal fact has ever been recorded for the
// given category.
func (s StudentSummary) HasGoal(category string) bool {
	_, ok := s.GoalStatus[category]
	return ok
}

// Clone returns a deep copy. Reconciliation works on copies so a failed
// run never leaves the caller's table partially mutated.
func (s StudentSummary) Clone() StudentSummary {
	out := s
	if s.SessionKeys != nil {
		out.SessionKeys = make([]string, len(s.SessionKeys))
		copy(out.SessionKeys, s.SessionKeys)
	}
	if s.GoalStatus != nil {
		out.GoalStatus = make(map[string]GoalState, len(s.GoalStatus))
		for k, v := range s.GoalStatus {
			out.GoalStatus[k] = v
		}
	}
	return out
}

// Equal reports whether two summaries are materially identical. Used by
// the reconciler to leave untouched rows byte-identical between runs,
// which keeps re-runs idempotent and diffs stable.
func (s StudentSummary) Equal(other StudentSummary) bool {
	if s.StudentCode != other.StudentCode ||
		s.StudentName != other.StudentName ||
		s.Gender != other.Gender ||
		s.YearLevel != other.YearLevel ||
		s.House != other.House ||
		s.SessionCount != other.SessionCount ||
		!s.LastSeen.Equal(other.LastSeen) {
		return false
	}
	if len(s.SessionKeys) != len(other.SessionKeys) {
		return false
	}
	for i := range s.SessionKeys {
		if s.SessionKeys[i] != other.SessionKeys[i] {
			return false
		}
	}
	if len(s.GoalStatus) != len(other.GoalStatus) {
		return false
	}
	for k, v := range s.GoalStatus {
		o, ok := other.GoalStatus[k]
		if !ok || o.Status != v.Status || !o.UpdatedAt.Equal(v.UpdatedAt) {
			return false
		}
	}
	return true
}

// FormatSessionKeysForCell formats SessionKeys as a single comma-joined
// cell value for workbook persistence. The session value inside a key
// is free text from the extract, so commas and backslashes within a key
// are backslash-escaped before joining.
//
// Format: "2025-01-01|Compass Meeting,2025-01-08|Compass Meeting"
// Empty set returns the empty string.
func (s *StudentSummary) FormatSessionKeysForCell() string {
	if len(s.SessionKeys) == 0 {
		return ""
	}
	parts := make([]string, len(s.SessionKeys))
	for i, key := range s.SessionKeys {
		parts[i] = escapeCellKey(key)
	}
	return strings.Join(parts, ",")
}

// ParseSessionKeysFromCell parses a persisted cell value back into the
// SessionKeys set, restoring sorted unique order regardless of how the
// cell was written.
func (s *StudentSummary) ParseSessionKeysFromCell(cell string) error {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		s.SessionKeys = nil
		s.SessionCount = 0
		return nil
	}

	seen := make(map[string]struct{})
	for i, part := range splitCellKeys(cell) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "|") {
			return fmt.Errorf("invalid session key at position %d: %q", i, part)
		}
		seen[part] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.SessionKeys = keys
	s.SessionCount = len(keys)
	return nil
}

// escapeCellKey backslash-escapes the cell separator and the escape
// character itself within a session key.
func escapeCellKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		if key[i] == '\\' || key[i] == ',' {
			b.WriteByte('\\')
		}
		b.WriteByte(key[i])
	}
	return b.String()
}

// splitCellKeys splits a persisted cell on unescaped commas and strips
// the escapes, restoring the original keys.
func splitCellKeys(cell string) []string {
	var keys []string
	var b strings.Builder
	escaped := false
	for i := 0; i < len(cell); i++ {
		c := cell[i]
		switch {
		case escaped:
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == ',':
			keys = append(keys, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	keys = append(keys, b.String())
	return keys
}

// GoalCategories returns the categories present in GoalStatus in sorted
// order, for deterministic output.
func (s StudentSummary) GoalCategories() []string {
	cats := make([]string, 0, len(s.GoalStatus))
	for c := range s.GoalStatus {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// ValidateStudentSummary performs structural validation on a summary.
// It is defensive: summaries produced by the aggregator always pass.
func ValidateStudentSummary(s *StudentSummary) error {
	if s == nil {
		return fmt.Errorf("student summary cannot be nil")
	}
	if strings.TrimSpace(s.StudentCode) == "" {
		return fmt.Errorf("student code is required")
	}
	if s.SessionCount < 0 {
		return fmt.Errorf("session count cannot be negative: %d", s.SessionCount)
	}
	if s.SessionCount != len(s.SessionKeys) {
		return fmt.Errorf("session count %d does not match %d retained session keys",
			s.SessionCount, len(s.SessionKeys))
	}
	for cat, state := range s.GoalStatus {
		if !ValidGoalStatus(state.Status) {
			return fmt.Errorf("goal category %q has unknown status %q", cat, state.Status)
		}
	}
	return nil
}
