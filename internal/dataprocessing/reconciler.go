package dataprocessing

import (
	"context"
	"log/slog"
	"sort"

	apperrors "auditcli/internal/errors"
	"auditcli/pkg/contracts/domain"
)

// Reconciler merges freshly aggregated student summaries into the
// existing master table. Rows whose student code already exists are
// merged in place; unseen codes are appended, preserving first-seen
// insertion order. The input table is never mutated: Reconcile returns
// a new table value, so a fatal failure leaves the caller's state
// untouched.
type Reconciler struct {
	logger *slog.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{logger: logger}
}

// Reconcile merges incoming summaries into master and returns the
// updated table plus per-run change counts.
//
// Merging an existing row re-deduplicates the union of the retained and
// incoming session fact identities rather than summing counts, and
// merges goal statuses most-recent-wins. A merged row identical to the
// existing one is left untouched and counted as unchanged, which keeps
// re-runs idempotent and diffs between runs stable.
//
// Structural invariant violations (duplicate student codes in the
// incoming batch or in the loaded master, or a summary whose session
// count disagrees with its retained fact set) abort the run with a
// RECONCILE error and a zero-value table.
func (r *Reconciler) Reconcile(ctx context.Context, master domain.MasterTable, incoming []domain.StudentSummary) (domain.MasterTable, domain.ChangeSummary, error) {
	r.logger.InfoContext(ctx, "reconciling batch into master table",
		slog.Int("master_rows", master.Len()),
		slog.Int("incoming_rows", len(incoming)))

	if err := r.checkInvariants(master, incoming); err != nil {
		return domain.MasterTable{}, domain.ChangeSummary{}, err
	}

	updated := master.Clone()
	index := updated.Index()
	changes := domain.ChangeSummary{
		Changes: make(map[string]domain.ChangeKind, len(incoming)),
	}

	for _, summary := range incoming {
		code := summary.StudentCode

		pos, exists := index[code]
		if !exists {
			updated.Rows = append(updated.Rows, summary.Clone())
			index[code] = len(updated.Rows) - 1
			changes.Appended++
			changes.Changes[code] = domain.ChangeNew
			continue
		}

		merged := mergeSummaries(updated.Rows[pos], summary)
		if merged.Equal(updated.Rows[pos]) {
			changes.Unchanged++
			changes.Changes[code] = domain.ChangeUnchanged
			continue
		}

		updated.Rows[pos] = merged
		changes.Updated++
		changes.Changes[code] = domain.ChangeUpdated
	}

	r.logger.InfoContext(ctx, "reconciliation complete",
		slog.Int("appended", changes.Appended),
		slog.Int("updated", changes.Updated),
		slog.Int("unchanged", changes.Unchanged))

	return updated, changes, nil
}

// checkInvariants verifies the structural preconditions. The aggregator
// keys its output by student code, so duplicates here should be
// impossible; a corrupted persisted master is the realistic way to trip
// these checks.
func (r *Reconciler) checkInvariants(master domain.MasterTable, incoming []domain.StudentSummary) error {
	seen := make(map[string]struct{}, master.Len())
	for _, row := range master.Rows {
		if _, dup := seen[row.StudentCode]; dup {
			return apperrors.NewReconciliationError("duplicate student code in master table").
				WithContext("student_code", row.StudentCode)
		}
		seen[row.StudentCode] = struct{}{}
	}

	batch := make(map[string]struct{}, len(incoming))
	for i := range incoming {
		summary := incoming[i]
		if _, dup := batch[summary.StudentCode]; dup {
			return apperrors.NewReconciliationError("duplicate student code in incoming batch").
				WithContext("student_code", summary.StudentCode)
		}
		batch[summary.StudentCode] = struct{}{}

		if err := domain.ValidateStudentSummary(&summary); err != nil {
			return apperrors.NewReconciliationError("invalid incoming summary").
				WithContext("student_code", summary.StudentCode).
				WithContext("cause", err.Error())
		}
	}

	return nil
}

// mergeSummaries merges an incoming summary into the existing master
// row. Session facts are unioned and re-deduplicated; goal statuses are
// merged with the same most-recent-wins rule the aggregator applies
// within a batch; identity fields are refreshed from non-empty incoming
// values so renames and class moves propagate.
func mergeSummaries(existing, incoming domain.StudentSummary) domain.StudentSummary {
	merged := existing.Clone()

	keys := make(map[string]struct{}, len(existing.SessionKeys)+len(incoming.SessionKeys))
	for _, k := range existing.SessionKeys {
		keys[k] = struct{}{}
	}
	for _, k := range incoming.SessionKeys {
		keys[k] = struct{}{}
	}
	merged.SessionKeys = make([]string, 0, len(keys))
	for k := range keys {
		merged.SessionKeys = append(merged.SessionKeys, k)
	}
	sort.Strings(merged.SessionKeys)
	merged.SessionCount = len(merged.SessionKeys)

	for category, state := range incoming.GoalStatus {
		if merged.GoalStatus == nil {
			merged.GoalStatus = make(map[string]domain.GoalState)
		}
		current, exists := merged.GoalStatus[category]
		if !exists || supersedes(state.UpdatedAt, state.Status, current) {
			merged.GoalStatus[category] = state
		}
	}

	if incoming.StudentName != "" {
		merged.StudentName = incoming.StudentName
	}
	if incoming.Gender != "" {
		merged.Gender = incoming.Gender
	}
	if incoming.YearLevel != "" {
		merged.YearLevel = incoming.YearLevel
	}
	if incoming.House != "" {
		merged.House = incoming.House
	}

	if incoming.LastSeen.After(merged.LastSeen) {
		merged.LastSeen = incoming.LastSeen
	}

	return merged
}
