package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is a flat key/value row bound for (or read from) the target store.
type Record = map[string]any

type Branch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type OrderItem struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type Orderer struct {
	Name       string `json:"name"`
	Contact    string `json:"contact"`
	CustomerID string `json:"customer_id,omitempty"`
}

type Payment struct {
	Method      string    `json:"method"`
	Status      string    `json:"status"`
	CompletedAt time.Time `json:"completed_at"`
}

type TransferInfo struct {
	FromBranch    string    `json:"from_branch"`
	ToBranch      string    `json:"to_branch"`
	TransferredAt time.Time `json:"transferred_at"`
}

type OutsourceInfo struct {
	Vendor string `json:"vendor"`
	Cost   int64  `json:"cost"`
}

// Order is the central migrated entity. Amounts are integers in the
// smallest currency unit (KRW has no subunit).
type Order struct {
	ID          string         `json:"id"`
	OrderNumber string         `json:"order_number"`
	Branch      Branch         `json:"branch"`
	OrderedAt   time.Time      `json:"ordered_at"`
	ReceiptType string         `json:"receipt_type"`
	Orderer     Orderer        `json:"orderer"`
	Items       []OrderItem    `json:"items"`
	Total       int64          `json:"total"`
	Payment     Payment        `json:"payment"`
	Status      string         `json:"status"`
	CompletedAt time.Time      `json:"completed_at"`
	Transfer    *TransferInfo  `json:"transfer_info,omitempty"`
	Outsource   *OutsourceInfo `json:"outsource_info,omitempty"`
	Message     string         `json:"message,omitempty"`
	RequestNote string         `json:"request_note,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// AttributionTime is the timestamp revenue for this order is booked under:
// payment completion, then order completion, then order entry, then record
// creation. First non-zero wins; an order is never dropped from a rollup
// for lack of a date.
func (o Order) AttributionTime() time.Time {
	for _, t := range []time.Time{o.Payment.CompletedAt, o.CompletedAt, o.OrderedAt, o.CreatedAt} {
		if !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

// The v3 system accumulated several spellings for the same lifecycle state
// across UI revisions and languages. Both sets are closed enumerations:
// a new spelling upstream requires a change here.
var canceledStatuses = map[string]struct{}{
	"canceled":         {},
	"cancelled":        {},
	"cancel":           {},
	"취소":               {},
	"주문취소":             {},
	"canceled_request": {},
}

var settledPaymentStatuses = map[string]struct{}{
	"paid":      {},
	"completed": {},
	"settled":   {},
	"결제완료":      {},
	"입금완료":      {},
}

func IsCanceledStatus(status string) bool {
	_, ok := canceledStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

func IsSettledPayment(status string) bool {
	_, ok := settledPaymentStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

type BranchStats struct {
	Revenue       int64 `json:"revenue"`
	OrderCount    int64 `json:"orderCount"`
	SettledAmount int64 `json:"settledAmount"`
}

// DailyStats is the per-day rollup. Derived data: rebuilt wholesale from
// the order set, never hand-edited. Branch keys are sanitized names.
type DailyStats struct {
	Date         string                 `json:"date"`
	TotalRevenue int64                  `json:"total_revenue"`
	TotalOrders  int64                  `json:"total_orders"`
	TotalSettled int64                  `json:"total_settled"`
	Branches     map[string]BranchStats `json:"branches"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

type MigrationSummary struct {
	Collection string `json:"collection"`
	Migrated   int    `json:"migrated"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

func (s MigrationSummary) Total() int {
	return s.Migrated + s.Skipped + s.Failed
}

type StatusMismatch struct {
	ID           string `json:"id"`
	SourceStatus string `json:"source_status"`
	TargetStatus string `json:"target_status"`
}

// AuditReport is the read-only cross-store comparison for a date window.
type AuditReport struct {
	From          time.Time        `json:"from"`
	To            time.Time        `json:"to"`
	SourceCount   int              `json:"source_count"`
	TargetCount   int              `json:"target_count"`
	SourceRevenue int64            `json:"source_revenue"`
	TargetRevenue int64            `json:"target_revenue"`
	OnlyInSource  []string         `json:"only_in_source"`
	OnlyInTarget  []string         `json:"only_in_target"`
	Mismatches    []StatusMismatch `json:"mismatches"`
}

// OrderFromRecord rebuilds an Order from a flat snake_case record, as
// produced by the normalizer/projector or read back from the target store.
// Missing or malformed fields yield zero values; the record is never
// rejected here.
func OrderFromRecord(rec Record) Order {
	o := Order{
		ID:          asString(rec["id"]),
		OrderNumber: asString(rec["order_number"]),
		ReceiptType: asString(rec["receipt_type"]),
		Status:      asString(rec["status"]),
		Message:     asString(rec["message"]),
		RequestNote: asString(rec["request_note"]),
	}
	o.Branch = Branch{ID: asString(rec["branch_id"]), Name: asString(rec["branch_name"])}
	o.Orderer = Orderer{
		Name:       asString(rec["orderer_name"]),
		Contact:    asString(rec["orderer_contact"]),
		CustomerID: asString(rec["customer_id"]),
	}
	o.Payment = Payment{
		Method:      asString(rec["payment_method"]),
		Status:      asString(rec["payment_status"]),
		CompletedAt: AsTime(rec["payment_completed_at"]),
	}
	o.OrderedAt = AsTime(rec["ordered_at"])
	o.CompletedAt = AsTime(rec["completed_at"])
	o.CreatedAt = AsTime(rec["created_at"])
	o.Total = AsAmount(rec["total"])
	o.Items = itemsFromValue(rec["items"])
	if extra, ok := rec["extra"].(map[string]any); ok && len(extra) > 0 {
		o.Extra = extra
	}
	return o
}

func itemsFromValue(v any) []OrderItem {
	switch list := v.(type) {
	case []OrderItem:
		return list
	case []any:
		items := make([]OrderItem, 0, len(list))
		for _, el := range list {
			m, ok := el.(map[string]any)
			if !ok {
				continue
			}
			items = append(items, OrderItem{
				Name:      asString(m["name"]),
				Quantity:  int(AsAmount(m["quantity"])),
				UnitPrice: AsAmount(m["unit_price"]),
			})
		}
		if len(items) == 0 {
			return nil
		}
		return items
	default:
		return nil
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// AsAmount coerces a loosely typed numeric value to an integer amount,
// rounding to the nearest unit. Fractional amounts only occur in records
// written before the v3 system switched to integer totals.
func AsAmount(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(math.Round(n))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return int64(math.Round(f))
	default:
		return 0
	}
}

// AsTime parses a time from either a time.Time or an RFC3339 string.
func AsTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if t == "" {
			return time.Time{}
		}
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", t)
			if err != nil {
				return time.Time{}
			}
		}
		return parsed
	default:
		return time.Time{}
	}
}
