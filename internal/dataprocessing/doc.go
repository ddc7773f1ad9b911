// Package dataprocessing implements the chronicle audit merge engine.
// It consolidates expansion, aggregation, and reconciliation into a
// cohesive package that takes a freshly re-extracted batch of chronicle
// rows and merges it into the cumulative master table.
//
// # Architecture
//
// The package is organized into three components composed as a linear
// pipeline:
//
// 1. Expander: unpacks each row's packed Details column into atomic facts
// 2. Aggregator: groups facts by student code and derives per-student metrics
// 3. Reconciler: upserts the aggregated summaries into the master table
//
// Data flows strictly Expander → Aggregator → Reconciler. No component
// depends on a later one, and none performs I/O: the caller supplies
// in-memory rows and the loaded master table and receives a new table
// value plus a change summary. Atomicity of persistence stays with the
// writer collaborator.
//
// # Usage
//
//	pipeline := dataprocessing.NewPipeline(logger, cfg.Extract)
//	updated, changes, err := pipeline.Run(ctx, rows, master)
//	if err != nil {
//	    // fatal: discard output, nothing was persisted
//	}
//
// # Error Handling
//
// Row-level expansion failures are collected into the change summary's
// error list and never abort a batch. Structural invariant violations
// during reconciliation (duplicate student codes, inconsistent retained
// fact sets) are fatal and abort the run without partial output.
//
// # Idempotence
//
// Re-running with an extract whose date range overlaps a previously
// processed extract never double-counts sessions or regresses goal
// status. Each master row retains the deduplication identities of every
// session fact incorporated so far, and merging re-deduplicates the
// union of old and new facts instead of summing counts.
//
// # Testing
//
// The package includes comprehensive tests for all components.
// Use table-driven tests when adding new functionality.
package dataprocessing
