package stats

import (
	"context"
	"fmt"
	"log"
	"time"

	"petalsync/migrate/internal/domain"
	"petalsync/migrate/internal/store"
)

// Engine persists rebuilt rollups. The batch path is always a full
// recompute over the order set followed by delete-and-insert; it never
// patches rows in place.
type Engine struct {
	store store.Store
}

func NewEngine(st store.Store) *Engine {
	return &Engine{store: st}
}

// RebuildAll recomputes and replaces every rollup row.
func (e *Engine) RebuildAll(ctx context.Context) (int, error) {
	return e.rebuild(ctx, "", "")
}

// RebuildRange recomputes from the full order set but replaces only the
// rows whose KST date falls in [fromDate, toDate]. The full fetch is
// deliberate: an order's attribution day can come from its payment
// timestamp, so no ordered_at window is guaranteed to cover a date range.
func (e *Engine) RebuildRange(ctx context.Context, fromDate, toDate string) (int, error) {
	if fromDate == "" || toDate == "" {
		return 0, fmt.Errorf("rebuild range requires both dates")
	}
	return e.rebuild(ctx, fromDate, toDate)
}

func (e *Engine) rebuild(ctx context.Context, fromDate, toDate string) (int, error) {
	orders, err := e.store.FetchOrders(ctx, time.Time{}, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("fetch orders: %w", err)
	}

	rows := Rebuild(orders)
	if fromDate != "" {
		kept := rows[:0]
		for _, row := range rows {
			if row.Date >= fromDate && row.Date <= toDate {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	if err := e.store.ReplaceDailyStats(ctx, fromDate, toDate, rows); err != nil {
		return 0, fmt.Errorf("replace daily stats: %w", err)
	}
	log.Printf("[stats] rebuilt %d rollup rows from %d orders", len(rows), len(orders))
	return len(rows), nil
}

// ApplyOrder is the live-increment path for a single new order. It must
// stay numerically reconcilable with Rebuild: applying each settled order
// once produces the same rollup a full rebuild would.
func (e *Engine) ApplyOrder(ctx context.Context, o domain.Order) error {
	if domain.IsCanceledStatus(o.Status) || !domain.IsSettledPayment(o.Payment.Status) {
		return nil
	}
	delta := domain.BranchStats{Revenue: o.Total, OrderCount: 1, SettledAmount: o.Total}
	return e.store.IncrementDailyStats(ctx, DayKey(o.AttributionTime()), SanitizeBranchKey(o.Branch.Name), delta)
}
