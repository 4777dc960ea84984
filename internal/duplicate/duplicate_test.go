package duplicate

import (
	"testing"
	"time"

	"petalsync/migrate/internal/domain"
)

func order(id string, at time.Time, orderer string, total int64, items ...domain.OrderItem) domain.Order {
	return domain.Order{
		ID:        id,
		OrderedAt: at,
		Branch:    domain.Branch{ID: "br_main", Name: "강남점"},
		Orderer:   domain.Orderer{Name: orderer},
		Total:     total,
		Items:     items,
	}
}

func TestDetectFlagsNearbyIdenticalOrders(t *testing.T) {
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rose := domain.OrderItem{Name: "장미 꽃다발", Quantity: 1, UnitPrice: 35000}
	report := Detect([]domain.Order{
		order("o1", at, "김민지", 35000, rose),
		order("o2", at.Add(90*time.Second), "김민지", 35000, rose),
	})

	if len(report.Candidates) != 1 {
		t.Fatalf("expected one candidate, got %d", len(report.Candidates))
	}
	c := report.Candidates[0]
	if c.Confidence != ConfidenceHigh {
		t.Fatalf("expected high confidence, got %q", c.Confidence)
	}
	if c.FirstID != "o1" || c.SecondID != "o2" || c.Delta != 90*time.Second {
		t.Fatalf("unexpected pair: %+v", c)
	}
}

func TestDetectIgnoresIdenticalOrdersFarApart(t *testing.T) {
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rose := domain.OrderItem{Name: "장미 꽃다발", Quantity: 1, UnitPrice: 35000}
	report := Detect([]domain.Order{
		order("o1", at, "김민지", 35000, rose),
		order("o2", at.Add(15*time.Minute), "김민지", 35000, rose),
	})
	if len(report.Candidates) != 0 {
		t.Fatalf("15 minutes apart must not be flagged: %+v", report.Candidates)
	}
}

func TestDetectLooseMatchNeedsOnlyOrdererAndAmount(t *testing.T) {
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	report := Detect([]domain.Order{
		order("o1", at, "김민지", 35000, domain.OrderItem{Name: "장미 꽃다발", Quantity: 1}),
		order("o2", at.Add(5*time.Minute), "김민지", 35000, domain.OrderItem{Name: "튤립 꽃다발", Quantity: 1}),
	})
	if len(report.Candidates) != 1 {
		t.Fatalf("expected one loose candidate, got %+v", report.Candidates)
	}
	if report.Candidates[0].Confidence != ConfidenceLow {
		t.Fatalf("expected low confidence, got %q", report.Candidates[0].Confidence)
	}
}

func TestDetectItemOrderDoesNotDefeatStrictMatch(t *testing.T) {
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	a := domain.OrderItem{Name: "장미", Quantity: 1}
	b := domain.OrderItem{Name: "안개꽃", Quantity: 2}
	report := Detect([]domain.Order{
		order("o1", at, "김민지", 42000, a, b),
		order("o2", at.Add(time.Minute), "김민지", 42000, b, a),
	})
	if len(report.Candidates) != 1 || report.Candidates[0].Confidence != ConfidenceHigh {
		t.Fatalf("reordered items must still match strictly: %+v", report.Candidates)
	}
}

func TestDetectDoesNotDoubleReportAPair(t *testing.T) {
	// A strict match is also a loose match; the pair must appear once.
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rose := domain.OrderItem{Name: "장미 꽃다발", Quantity: 1}
	report := Detect([]domain.Order{
		order("o1", at, "김민지", 35000, rose),
		order("o2", at.Add(time.Minute), "김민지", 35000, rose),
	})
	if len(report.Candidates) != 1 {
		t.Fatalf("pair reported twice: %+v", report.Candidates)
	}
}

func TestDetectReportsOrderNumberCollisions(t *testing.T) {
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	first := order("o1", at, "김민지", 35000)
	first.OrderNumber = "FL-2026-0042"
	second := order("o2", at.Add(48*time.Hour), "박서준", 12000)
	second.OrderNumber = "FL-2026-0042"

	report := Detect([]domain.Order{first, second})
	if len(report.NumberCollisions) != 1 {
		t.Fatalf("expected one collision, got %+v", report.NumberCollisions)
	}
	col := report.NumberCollisions[0]
	if col.OrderNumber != "FL-2026-0042" || len(col.OrderIDs) != 2 {
		t.Fatalf("unexpected collision: %+v", col)
	}
}
