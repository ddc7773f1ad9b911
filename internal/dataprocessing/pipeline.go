package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"auditcli/internal/config"
	"auditcli/internal/infrastructure"
	"auditcli/pkg/contracts/domain"
)

// Pipeline composes the expander, aggregator, and reconciler into the
// single-pass merge engine: one extract batch in, one updated master
// table and change summary out.
type Pipeline struct {
	logger      *slog.Logger
	expander    *Expander
	aggregator  *Aggregator
	reconciler  *Reconciler
	minSessions int
}

// NewPipeline creates the full merge pipeline for the given extract
// convention.
func NewPipeline(logger *slog.Logger, cfg config.ExtractConfig) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger:      logger,
		expander:    NewExpander(logger, cfg),
		aggregator:  NewAggregator(logger),
		reconciler:  NewReconciler(logger),
		minSessions: cfg.MinSessionCount,
	}
}

// Run processes one extract batch to completion. It either returns a
// fully updated table plus change summary, or an error, in which case
// the returned table must be discarded; the input table is never
// mutated either way.
//
// A batch that expands to no facts (all rows malformed, or an empty
// extract) skips aggregation and returns the master unchanged with the
// collected row errors.
func (p *Pipeline) Run(ctx context.Context, rows []domain.ChronicleRow, master domain.MasterTable) (domain.MasterTable, domain.ChangeSummary, error) {
	runID := uuid.NewString()
	ctx = infrastructure.WithRunID(ctx, runID)

	p.logger.InfoContext(ctx, "starting audit run",
		slog.Int("extract_rows", len(rows)),
		slog.Int("master_rows", master.Len()))

	facts, rowErrors := p.expander.Expand(rows)
	if len(facts) == 0 {
		p.logger.WarnContext(ctx, "extract produced no facts, master left unchanged",
			slog.Int("row_errors", len(rowErrors)))
		return master, domain.ChangeSummary{
			RunID:       runID,
			GeneratedAt: time.Now(),
			Errors:      rowErrors,
		}, nil
	}

	summaries, err := p.aggregator.Aggregate(ctx, facts)
	if err != nil {
		return domain.MasterTable{}, domain.ChangeSummary{}, fmt.Errorf("aggregate batch: %w", err)
	}

	summaries = applyIdentity(summaries, rows)
	summaries = p.filterBelowThreshold(ctx, summaries)

	updated, changes, err := p.reconciler.Reconcile(ctx, master, summaries)
	if err != nil {
		return domain.MasterTable{}, domain.ChangeSummary{}, fmt.Errorf("reconcile batch: %w", err)
	}

	changes.RunID = runID
	changes.GeneratedAt = time.Now()
	changes.Errors = rowErrors

	p.logger.InfoContext(ctx, "audit run complete",
		slog.Int("appended", changes.Appended),
		slog.Int("updated", changes.Updated),
		slog.Int("unchanged", changes.Unchanged),
		slog.Int("row_errors", len(changes.Errors)))

	return updated, changes, nil
}

// applyIdentity copies the flat passthrough identity fields from the
// extract rows onto the aggregated summaries. Later rows win, matching
// the extract's most-recent-last ordering.
func applyIdentity(summaries []domain.StudentSummary, rows []domain.ChronicleRow) []domain.StudentSummary {
	identity := make(map[string]domain.ChronicleRow, len(rows))
	for _, row := range rows {
		identity[row.StudentCode] = row
	}

	for i := range summaries {
		row, ok := identity[summaries[i].StudentCode]
		if !ok {
			continue
		}
		summaries[i].StudentName = row.StudentName
		summaries[i].Gender = row.Gender
		summaries[i].YearLevel = row.YearLevel
		summaries[i].House = row.House
	}

	return summaries
}

// filterBelowThreshold drops students with no goal facts who have not
// reached the configured minimum session count. Disabled when the
// threshold is zero. Students with any goal history are always kept.
func (p *Pipeline) filterBelowThreshold(ctx context.Context, summaries []domain.StudentSummary) []domain.StudentSummary {
	if p.minSessions <= 0 {
		return summaries
	}

	kept := summaries[:0]
	dropped := 0
	for _, s := range summaries {
		if len(s.GoalStatus) > 0 || s.SessionCount >= p.minSessions {
			kept = append(kept, s)
		} else {
			dropped++
		}
	}

	if dropped > 0 {
		p.logger.InfoContext(ctx, "filtered students below session threshold",
			slog.Int("dropped", dropped),
			slog.Int("min_sessions", p.minSessions))
	}

	return kept
}
