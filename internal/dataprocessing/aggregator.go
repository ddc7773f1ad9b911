package dataprocessing

import (
	"context"
	"log/slog"
	"sort"
	"time"

	apperrors "auditcli/internal/errors"
	"auditcli/pkg/contracts/domain"
)

// Aggregator groups expanded facts by student code and computes the
// per-student derived metrics: deduplicated session count, goal
// existence/status summary, and last-seen date.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates a new aggregator.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// Aggregate computes one StudentSummary per student code present in the
// input, sorted by code for deterministic output.
//
// Session facts are deduplicated by (date, value) identity before
// counting, so a fact re-sent by an overlapping extract counts once.
// For each goal category the retained status is the one with the most
// recent date; same-date ties go to the more informative status.
//
// Calling Aggregate with no facts returns an EMPTY_BATCH error; callers
// that can face an empty batch should skip aggregation instead.
func (a *Aggregator) Aggregate(ctx context.Context, facts []domain.Fact) ([]domain.StudentSummary, error) {
	if len(facts) == 0 {
		return nil, apperrors.NewEmptyBatchError()
	}

	a.logger.InfoContext(ctx, "aggregating facts",
		slog.Int("fact_count", len(facts)))

	groups := make(map[string][]domain.Fact)
	for _, fact := range facts {
		groups[fact.StudentCode] = append(groups[fact.StudentCode], fact)
	}

	summaries := make([]domain.StudentSummary, 0, len(groups))
	for code, group := range groups {
		summaries = append(summaries, a.summarize(code, group))
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StudentCode < summaries[j].StudentCode
	})

	a.logger.InfoContext(ctx, "aggregated facts into summaries",
		slog.Int("student_count", len(summaries)))

	return summaries, nil
}

// summarize derives the metrics for one student's facts.
func (a *Aggregator) summarize(code string, facts []domain.Fact) domain.StudentSummary {
	summary := domain.StudentSummary{StudentCode: code}

	sessionKeys := make(map[string]struct{})

	for _, fact := range facts {
		if fact.Date.After(summary.LastSeen) {
			summary.LastSeen = fact.Date
		}

		switch fact.Kind {
		case domain.FactSession:
			sessionKeys[fact.SessionKey()] = struct{}{}

		case domain.FactGoal:
			if summary.GoalStatus == nil {
				summary.GoalStatus = make(map[string]domain.GoalState)
			}
			current, exists := summary.GoalStatus[fact.Value]
			if !exists || supersedes(fact.Date, fact.Status, current) {
				summary.GoalStatus[fact.Value] = domain.GoalState{
					Status:    fact.Status,
					UpdatedAt: fact.Date,
				}
			}
		}
	}

	summary.SessionKeys = sortedKeys(sessionKeys)
	summary.SessionCount = len(summary.SessionKeys)

	return summary
}

// supersedes reports whether a goal fact with the given date and status
// should replace the current retained state. Most recent wins; on an
// equal date the more informative status wins, so a not_applicable entry
// never masks a real status reported the same day.
func supersedes(date time.Time, status domain.GoalStatus, current domain.GoalState) bool {
	if date.After(current.UpdatedAt) {
		return true
	}
	if date.Equal(current.UpdatedAt) {
		return status.MoreInformative(current.Status)
	}
	return false
}

// sortedKeys returns the set's members in sorted order.
func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
