// Package migrate composes the source reader, normalizer, identifier
// mapper, projector and target writer into one re-runnable pass per
// collection. Re-running after a partial failure converges to the same
// end state because every write is an upsert by canonical id.
package migrate

import (
	"context"
	"log"

	"petalsync/migrate/internal/checkpoint"
	"petalsync/migrate/internal/domain"
	"petalsync/migrate/internal/source"
	"petalsync/migrate/internal/store"
)

type Runner struct {
	src         source.Reader
	dst         store.Store
	checkpoints checkpoint.Store
	runID       string
	pageSize    int
}

// NewRunner wires a migration run. An empty runID gets a fresh one; pass
// the previous run's id to resume from its checkpoints.
func NewRunner(src source.Reader, dst store.Store, checkpoints checkpoint.Store, runID string, pageSize int) *Runner {
	if runID == "" {
		runID = newRunID()
	}
	if pageSize < 1 {
		pageSize = 200
	}
	return &Runner{src: src, dst: dst, checkpoints: checkpoints, runID: runID, pageSize: pageSize}
}

func (r *Runner) RunID() string {
	return r.runID
}

// CollectionOptions names one source collection and its target table.
// OrderBy must be a monotonic, indexed field so offset pagination cannot
// skip or repeat documents mid-scan; __name__ (the document id) is the
// safe default.
type CollectionOptions struct {
	Collection string
	Table      string
	OrderBy    string
}

// MigrateCollection moves one collection end to end. Per-record problems
// are counted and logged, never fatal; only an unrecoverable source read
// stops the pass. Progress is checkpointed after every page.
func (r *Runner) MigrateCollection(ctx context.Context, opts CollectionOptions) (domain.MigrationSummary, error) {
	if opts.Table == "" {
		opts.Table = opts.Collection
	}
	if opts.OrderBy == "" {
		opts.OrderBy = "__name__"
	}
	summary := domain.MigrationSummary{Collection: opts.Collection}

	offset, err := r.checkpoints.Get(ctx, r.runID, opts.Collection)
	if err != nil {
		log.Printf("[migrate] checkpoint read failed for %s: %v; starting from 0", opts.Collection, err)
		offset = 0
	}
	if offset > 0 {
		log.Printf("[migrate] resuming %s at offset %d", opts.Collection, offset)
	}

	pager := source.NewPagerAt(r.src, opts.Collection, source.Options{OrderBy: opts.OrderBy}, r.pageSize, offset)
	for {
		var docs []source.Document
		err := withRetry(ctx, "read "+opts.Collection, func() error {
			var readErr error
			docs, readErr = pager.Next(ctx)
			return readErr
		})
		if err != nil {
			return summary, err
		}
		if len(docs) == 0 {
			break
		}

		rows := make([]domain.Record, 0, len(docs))
		for _, doc := range docs {
			if doc.ID == "" {
				log.Printf("[migrate] skip document without id in %s", opts.Collection)
				summary.Skipped++
				continue
			}
			rows = append(rows, TransformDocument(opts.Table, doc))
		}

		var res store.UpsertResult
		err = withRetry(ctx, "write "+opts.Table, func() error {
			var writeErr error
			res, writeErr = r.dst.UpsertBatch(ctx, opts.Table, rows)
			return writeErr
		})
		if err != nil {
			// Keep moving: a migration run maximizes records moved and
			// surfaces failures for manual follow-up.
			log.Printf("[migrate] batch write failed for %s rows=%d: %v", opts.Table, len(rows), err)
			summary.Failed += len(rows)
		} else {
			summary.Migrated += res.Upserted
			summary.Skipped += res.Skipped
			summary.Failed += res.Failed
		}

		if err := r.checkpoints.Set(ctx, r.runID, opts.Collection, pager.Offset()); err != nil {
			log.Printf("[migrate] checkpoint write failed for %s: %v", opts.Collection, err)
		}
		log.Printf("[migrate] %s: %d migrated, %d skipped, %d failed", opts.Collection, summary.Migrated, summary.Skipped, summary.Failed)
	}

	return summary, nil
}
