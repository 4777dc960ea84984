package domain

import (
	"testing"
	"time"
)

func TestAttributionTimeChain(t *testing.T) {
	paid := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	done := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	ordered := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	created := time.Date(2026, 2, 1, 7, 0, 0, 0, time.UTC)

	o := Order{Payment: Payment{CompletedAt: paid}, CompletedAt: done, OrderedAt: ordered, CreatedAt: created}
	if got := o.AttributionTime(); !got.Equal(paid) {
		t.Fatalf("payment completion must win, got %v", got)
	}

	o.Payment.CompletedAt = time.Time{}
	if got := o.AttributionTime(); !got.Equal(done) {
		t.Fatalf("order completion is next, got %v", got)
	}

	o.CompletedAt = time.Time{}
	if got := o.AttributionTime(); !got.Equal(ordered) {
		t.Fatalf("order entry is next, got %v", got)
	}

	o.OrderedAt = time.Time{}
	if got := o.AttributionTime(); !got.Equal(created) {
		t.Fatalf("record creation is last, got %v", got)
	}

	if got := (Order{}).AttributionTime(); !got.IsZero() {
		t.Fatalf("dateless order must yield zero, got %v", got)
	}
}

func TestIsCanceledStatusSpellings(t *testing.T) {
	for _, s := range []string{"canceled", "cancelled", "cancel", "취소", "주문취소", "canceled_request", "CANCELLED", " canceled "} {
		if !IsCanceledStatus(s) {
			t.Fatalf("%q must read as canceled", s)
		}
	}
	for _, s := range []string{"completed", "pending", "", "환불"} {
		if IsCanceledStatus(s) {
			t.Fatalf("%q must not read as canceled", s)
		}
	}
}

func TestIsSettledPaymentSpellings(t *testing.T) {
	for _, s := range []string{"paid", "completed", "settled", "결제완료", "입금완료", "Paid"} {
		if !IsSettledPayment(s) {
			t.Fatalf("%q must read as settled", s)
		}
	}
	for _, s := range []string{"pending", "failed", ""} {
		if IsSettledPayment(s) {
			t.Fatalf("%q must not read as settled", s)
		}
	}
}

func TestAsAmount(t *testing.T) {
	cases := []struct {
		in   any
		want int64
	}{
		{int64(35000), 35000},
		{35000, 35000},
		{35000.4, 35000},
		{34999.5, 35000},
		{"35000", 35000},
		{" 35000.7 ", 35001},
		{"무료", 0},
		{nil, 0},
		{true, 0},
	}
	for _, tc := range cases {
		if got := AsAmount(tc.in); got != tc.want {
			t.Fatalf("AsAmount(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestAsTime(t *testing.T) {
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	if got := AsTime(at); !got.Equal(at) {
		t.Fatalf("time.Time mangled: %v", got)
	}
	if got := AsTime("2026-02-01T09:00:00Z"); !got.Equal(at) {
		t.Fatalf("RFC3339 not parsed: %v", got)
	}
	if got := AsTime("2026-02-01"); got.IsZero() {
		t.Fatalf("date-only form not parsed")
	}
	for _, in := range []any{"", "tomorrow", nil, 42} {
		if got := AsTime(in); !got.IsZero() {
			t.Fatalf("AsTime(%v) = %v, want zero", in, got)
		}
	}
}

func TestOrderFromRecord(t *testing.T) {
	rec := Record{
		"id":                   "a1b2",
		"order_number":         "FL-2026-0042",
		"branch_id":            "br_main",
		"branch_name":          "강남점",
		"ordered_at":           "2026-02-01T03:00:00Z",
		"orderer_name":         "김민지",
		"payment_method":       "card",
		"payment_status":       "paid",
		"payment_completed_at": "2026-02-01T03:05:00Z",
		"status":               "completed",
		"total":                int64(35000),
		"items": []any{
			map[string]any{"name": "장미 꽃다발", "quantity": int64(1), "unit_price": int64(35000)},
		},
		"extra": map[string]any{"legacy_flag": true},
	}

	o := OrderFromRecord(rec)
	if o.ID != "a1b2" || o.OrderNumber != "FL-2026-0042" {
		t.Fatalf("identity fields wrong: %+v", o)
	}
	if o.Branch.ID != "br_main" || o.Branch.Name != "강남점" {
		t.Fatalf("branch wrong: %+v", o.Branch)
	}
	if o.Payment.Status != "paid" || o.Payment.CompletedAt.IsZero() {
		t.Fatalf("payment wrong: %+v", o.Payment)
	}
	if len(o.Items) != 1 || o.Items[0].UnitPrice != 35000 || o.Items[0].Quantity != 1 {
		t.Fatalf("items wrong: %+v", o.Items)
	}
	if o.Total != 35000 || o.Extra["legacy_flag"] != true {
		t.Fatalf("total/extra wrong: %+v", o)
	}

	// A sparse or malformed record degrades to zero values, never panics.
	sparse := OrderFromRecord(Record{"id": "x", "total": "무료", "ordered_at": 12})
	if sparse.ID != "x" || sparse.Total != 0 || !sparse.OrderedAt.IsZero() {
		t.Fatalf("sparse record handling wrong: %+v", sparse)
	}
}
