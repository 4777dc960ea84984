package postgres

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"petalsync/migrate/internal/domain"
)

func TestUpsertSQL(t *testing.T) {
	got := upsertSQL("branches", []string{"id", "name", "active"}, 2)
	want := "INSERT INTO branches (id, name, active) VALUES ($1, $2, $3), ($4, $5, $6)" +
		" ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, active = EXCLUDED.active"
	if got != want {
		t.Fatalf("upsertSQL mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestEncodeArgMarshalsStructuredValues(t *testing.T) {
	got, err := encodeArg(map[string]any{"legacy_flag": true})
	if err != nil {
		t.Fatalf("encodeArg: %v", err)
	}
	if got != `{"legacy_flag":true}` {
		t.Fatalf("expected JSON text, got %#v", got)
	}

	items, err := encodeArg([]domain.OrderItem{{Name: "장미", Quantity: 1, UnitPrice: 35000}})
	if err != nil {
		t.Fatalf("encodeArg items: %v", err)
	}
	if _, ok := items.(string); !ok {
		t.Fatalf("expected item list as JSON text, got %T", items)
	}
}

func TestEncodeArgPassesScalarsThrough(t *testing.T) {
	if got, _ := encodeArg(int64(35000)); got != int64(35000) {
		t.Fatalf("int64 mangled: %#v", got)
	}
	if got, _ := encodeArg(nil); got != nil {
		t.Fatalf("nil mangled: %#v", got)
	}
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))
	if got, _ := encodeArg(at); got != at.UTC() {
		t.Fatalf("time not normalized to UTC: %#v", got)
	}
}

func TestFKColumn(t *testing.T) {
	violation := &pgconn.PgError{Code: "23503", ConstraintName: "orders_customer_id_fkey"}
	if got := fkColumn(violation, "orders"); got != "customer_id" {
		t.Fatalf("fkColumn = %q, want customer_id", got)
	}
	if got := fkColumn(violation, "branches"); got != "" {
		t.Fatalf("constraint of another table must not match, got %q", got)
	}
	if got := fkColumn(errors.New("connection reset"), "orders"); got != "" {
		t.Fatalf("non-pg error must not match, got %q", got)
	}
	notNull := &pgconn.PgError{Code: "23502", ConstraintName: "orders_customer_id_fkey"}
	if got := fkColumn(notNull, "orders"); got != "" {
		t.Fatalf("non-FK violation must not match, got %q", got)
	}
}

func TestFetchOrdersPaginatesOnNullProofKey(t *testing.T) {
	// An undated order must survive both the sort and the cursor
	// comparison, so the coalesced key has to appear in each.
	if !strings.Contains(fetchOrdersSQL, "("+fetchSortKey+", id) > ($4, $5)") {
		t.Fatalf("cursor comparison does not use the coalesced key:\n%s", fetchOrdersSQL)
	}
	if !strings.Contains(fetchOrdersSQL, "ORDER BY "+fetchSortKey+", id") {
		t.Fatalf("sort does not use the coalesced key:\n%s", fetchOrdersSQL)
	}
}

func TestCursorKeyMirrorsSortKey(t *testing.T) {
	ordered := time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC)
	created := time.Date(2026, 1, 30, 2, 0, 0, 0, time.UTC)

	if got := cursorKey(domain.Order{OrderedAt: ordered, CreatedAt: created}); !got.Equal(ordered) {
		t.Fatalf("ordered_at must win, got %v", got)
	}
	if got := cursorKey(domain.Order{CreatedAt: created}); !got.Equal(created) {
		t.Fatalf("created_at is the fallback, got %v", got)
	}
	if got := cursorKey(domain.Order{}); !got.Equal(time.Unix(0, 0)) {
		t.Fatalf("dateless row must key at epoch, got %v", got)
	}
}
