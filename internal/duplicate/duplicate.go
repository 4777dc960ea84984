// Package duplicate flags probable accidental double-entries among orders.
// The output is advisory: a report for a human operator, never a merge or
// delete.
package duplicate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"petalsync/migrate/internal/domain"
)

const (
	// strictWindow applies when the full content fingerprint matches.
	strictWindow = 2 * time.Minute
	// looseWindow applies to name+amount matches without an item
	// signature match, reflecting lower confidence.
	looseWindow = 10 * time.Minute
)

const (
	ConfidenceHigh = "high"
	ConfidenceLow  = "low"
)

// Candidate is one suspected duplicate pair.
type Candidate struct {
	Fingerprint string        `json:"fingerprint"`
	Reason      string        `json:"reason"`
	Confidence  string        `json:"confidence"`
	FirstID     string        `json:"first_id"`
	SecondID    string        `json:"second_id"`
	FirstAt     time.Time     `json:"first_at"`
	SecondAt    time.Time     `json:"second_at"`
	Delta       time.Duration `json:"delta"`
}

// NumberCollision is a group of orders sharing one order number,
// suspicious regardless of timing.
type NumberCollision struct {
	OrderNumber string   `json:"order_number"`
	OrderIDs    []string `json:"order_ids"`
}

type Report struct {
	Candidates       []Candidate       `json:"candidates"`
	NumberCollisions []NumberCollision `json:"number_collisions"`
}

// Detect groups orders by similarity fingerprint and flags adjacent pairs
// whose timestamps fall within the window for that fingerprint's
// confidence. Order-number collisions are reported separately.
func Detect(orders []domain.Order) Report {
	var report Report
	flagged := make(map[string]struct{})

	strict := groupBy(orders, strictFingerprint)
	for _, key := range sortedKeys(strict) {
		report.Candidates = append(report.Candidates,
			adjacentPairs(key, strict[key], strictWindow, ConfidenceHigh, "same branch, orderer, amount and items", flagged)...)
	}

	loose := groupBy(orders, looseFingerprint)
	for _, key := range sortedKeys(loose) {
		report.Candidates = append(report.Candidates,
			adjacentPairs(key, loose[key], looseWindow, ConfidenceLow, "same orderer and amount", flagged)...)
	}

	numbers := make(map[string][]string)
	for _, o := range orders {
		if o.OrderNumber == "" {
			continue
		}
		numbers[o.OrderNumber] = append(numbers[o.OrderNumber], o.ID)
	}
	for _, number := range sortedKeys(numbers) {
		ids := numbers[number]
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		report.NumberCollisions = append(report.NumberCollisions, NumberCollision{OrderNumber: number, OrderIDs: ids})
	}

	return report
}

func strictFingerprint(o domain.Order) string {
	return strings.Join([]string{o.Branch.ID, o.Orderer.Name, fmt.Sprint(o.Total), itemSignature(o.Items)}, "|")
}

func looseFingerprint(o domain.Order) string {
	return strings.Join([]string{o.Orderer.Name, fmt.Sprint(o.Total)}, "|")
}

// itemSignature is the sorted, joined name×quantity signature of the item
// list, so line ordering differences do not defeat the match.
func itemSignature(items []domain.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%sx%d", item.Name, item.Quantity))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func groupBy(orders []domain.Order, fingerprint func(domain.Order) string) map[string][]domain.Order {
	groups := make(map[string][]domain.Order)
	for _, o := range orders {
		groups[fingerprint(o)] = append(groups[fingerprint(o)], o)
	}
	return groups
}

func adjacentPairs(fingerprint string, group []domain.Order, window time.Duration, confidence, reason string, flagged map[string]struct{}) []Candidate {
	if len(group) < 2 {
		return nil
	}
	sort.Slice(group, func(i, j int) bool {
		if group[i].OrderedAt.Equal(group[j].OrderedAt) {
			return group[i].ID < group[j].ID
		}
		return group[i].OrderedAt.Before(group[j].OrderedAt)
	})

	var out []Candidate
	for i := 1; i < len(group); i++ {
		first, second := group[i-1], group[i]
		delta := second.OrderedAt.Sub(first.OrderedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta > window {
			continue
		}
		pair := first.ID + "|" + second.ID
		if _, seen := flagged[pair]; seen {
			continue
		}
		flagged[pair] = struct{}{}
		out = append(out, Candidate{
			Fingerprint: fingerprint,
			Reason:      reason,
			Confidence:  confidence,
			FirstID:     first.ID,
			SecondID:    second.ID,
			FirstAt:     first.OrderedAt,
			SecondAt:    second.OrderedAt,
			Delta:       delta,
		})
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
