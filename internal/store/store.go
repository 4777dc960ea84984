package store

import (
	"context"
	"errors"
	"time"

	"petalsync/migrate/internal/domain"
)

// ErrUnknownTable rejects writes to tables outside the declared schema.
var ErrUnknownTable = errors.New("unknown target table")

// UpsertResult tallies a batched upsert. Failed rows were logged and left
// behind for manual follow-up; the batch as a whole still succeeded.
type UpsertResult struct {
	Upserted int
	Skipped  int
	Failed   int
}

// Store is the v4 target-store contract: idempotent upsert-by-id in
// bounded batches, wholesale rollup replacement, the live increment RPC,
// and stable-ordered order reads for audits and rebuilds.
type Store interface {
	UpsertBatch(ctx context.Context, table string, rows []domain.Record) (UpsertResult, error)
	FetchOrders(ctx context.Context, from, to time.Time) ([]domain.Order, error)
	ReplaceDailyStats(ctx context.Context, fromDate, toDate string, rows []domain.DailyStats) error
	IncrementDailyStats(ctx context.Context, date, branchKey string, delta domain.BranchStats) error
	Close() error
}
