package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"petalsync/migrate/internal/domain"
	"petalsync/migrate/internal/store"
)

func TestUpsertBatchIsIdempotent(t *testing.T) {
	st := New()
	rows := []domain.Record{
		{"id": "a1", "name": "강남점"},
		{"id": "a2", "name": "서초점"},
	}

	for i := 0; i < 2; i++ {
		res, err := st.UpsertBatch(context.Background(), "branches", rows)
		if err != nil {
			t.Fatalf("UpsertBatch: %v", err)
		}
		if res.Upserted != 2 || res.Skipped != 0 || res.Failed != 0 {
			t.Fatalf("pass %d: unexpected result %+v", i, res)
		}
	}

	got := st.Rows("branches")
	if len(got) != 2 {
		t.Fatalf("expected 2 rows after double upsert, got %d", len(got))
	}
}

func TestUpsertBatchSkipsRowsWithoutID(t *testing.T) {
	st := New()
	res, err := st.UpsertBatch(context.Background(), "branches", []domain.Record{
		{"name": "no id"},
		{"id": "", "name": "empty id"},
		{"id": "a1", "name": "강남점"},
	})
	if err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}
	if res.Upserted != 1 || res.Skipped != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestUpsertBatchRejectsUnknownTable(t *testing.T) {
	st := New()
	_, err := st.UpsertBatch(context.Background(), "legacy_counters", []domain.Record{{"id": "x"}})
	if !errors.Is(err, store.ErrUnknownTable) {
		t.Fatalf("expected ErrUnknownTable, got %v", err)
	}
}

func TestUpsertBatchStoresCopies(t *testing.T) {
	st := New()
	row := domain.Record{"id": "a1", "name": "강남점"}
	if _, err := st.UpsertBatch(context.Background(), "branches", []domain.Record{row}); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}
	row["name"] = "mutated"
	if got := st.Rows("branches")[0]["name"]; got != "강남점" {
		t.Fatalf("stored row aliases caller memory: %v", got)
	}
}

func TestReplaceDailyStatsReplacesOnlyRange(t *testing.T) {
	st := New()
	seed := []domain.DailyStats{
		{Date: "2026-02-01", TotalRevenue: 47000, TotalOrders: 2},
		{Date: "2026-02-05", TotalRevenue: 9000, TotalOrders: 1},
	}
	if err := st.ReplaceDailyStats(context.Background(), "", "", seed); err != nil {
		t.Fatalf("ReplaceDailyStats: %v", err)
	}

	replacement := []domain.DailyStats{{Date: "2026-02-01", TotalRevenue: 35000, TotalOrders: 1}}
	if err := st.ReplaceDailyStats(context.Background(), "2026-02-01", "2026-02-01", replacement); err != nil {
		t.Fatalf("ReplaceDailyStats: %v", err)
	}

	rows := st.StatsRows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].TotalRevenue != 35000 {
		t.Fatalf("range row not replaced: %+v", rows[0])
	}
	if rows[1].Date != "2026-02-05" || rows[1].TotalRevenue != 9000 {
		t.Fatalf("out-of-range row touched: %+v", rows[1])
	}
}

func TestIncrementDailyStatsAccumulates(t *testing.T) {
	st := New()
	delta := domain.BranchStats{Revenue: 35000, OrderCount: 1, SettledAmount: 35000}
	for i := 0; i < 2; i++ {
		if err := st.IncrementDailyStats(context.Background(), "2026-02-01", "강남점", delta); err != nil {
			t.Fatalf("IncrementDailyStats: %v", err)
		}
	}

	rows := st.StatsRows()
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	want := domain.BranchStats{Revenue: 70000, OrderCount: 2, SettledAmount: 70000}
	if rows[0].TotalRevenue != 70000 || !reflect.DeepEqual(rows[0].Branches["강남점"], want) {
		t.Fatalf("unexpected accumulation: %+v", rows[0])
	}
}
