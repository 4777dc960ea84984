// Package stats rebuilds the per-day revenue rollups from the order set.
// Attribution days follow the store-local business day (UTC+9), not UTC.
package stats

import (
	"sort"
	"strings"
	"time"

	"petalsync/migrate/internal/domain"
)

// KST is the fixed target timezone for day bucketing.
var KST = time.FixedZone("KST", 9*60*60)

// DayKey truncates a timestamp to the KST calendar day it falls in.
func DayKey(t time.Time) string {
	return t.In(KST).Format("2006-01-02")
}

var branchKeyReplacer = strings.NewReplacer(" ", "_", ".", "_")

// SanitizeBranchKey makes a branch name usable as a structured-object key:
// spaces and periods become underscores.
func SanitizeBranchKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	return branchKeyReplacer.Replace(name)
}

// Rebuild recomputes one rollup row per KST calendar day from scratch.
// Canceled orders are excluded in every spelling; unsettled orders are
// excluded entirely (revenue recognition, not display). Output is sorted
// by date so repeated rebuilds of the same order set are identical.
func Rebuild(orders []domain.Order) []domain.DailyStats {
	buckets := make(map[string]*domain.DailyStats)

	for _, o := range orders {
		if domain.IsCanceledStatus(o.Status) {
			continue
		}
		if !domain.IsSettledPayment(o.Payment.Status) {
			continue
		}

		day := DayKey(o.AttributionTime())
		bucket := buckets[day]
		if bucket == nil {
			bucket = &domain.DailyStats{Date: day, Branches: make(map[string]domain.BranchStats)}
			buckets[day] = bucket
		}

		amount := o.Total
		bucket.TotalRevenue += amount
		bucket.TotalOrders++
		bucket.TotalSettled += amount

		key := SanitizeBranchKey(o.Branch.Name)
		branch := bucket.Branches[key]
		branch.Revenue += amount
		branch.OrderCount++
		branch.SettledAmount += amount
		bucket.Branches[key] = branch
	}

	out := make([]domain.DailyStats, 0, len(buckets))
	for _, bucket := range buckets {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
