// Package memory implements the target-store contract in process memory,
// mirroring the Postgres semantics closely enough for unit tests.
package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"petalsync/migrate/internal/domain"
	"petalsync/migrate/internal/project"
	"petalsync/migrate/internal/store"
)

type Store struct {
	mu     sync.Mutex
	tables map[string]map[string]domain.Record
	stats  map[string]domain.DailyStats
}

func New() *Store {
	return &Store{
		tables: make(map[string]map[string]domain.Record),
		stats:  make(map[string]domain.DailyStats),
	}
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) UpsertBatch(_ context.Context, table string, rows []domain.Record) (store.UpsertResult, error) {
	var res store.UpsertResult
	if project.Columns(table) == nil {
		return res, fmt.Errorf("%w: %s", store.ErrUnknownTable, table)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.tables[table]
	if bucket == nil {
		bucket = make(map[string]domain.Record)
		s.tables[table] = bucket
	}

	for _, row := range rows {
		id, _ := row["id"].(string)
		if id == "" {
			log.Printf("[memory] skip row without id in table %s", table)
			res.Skipped++
			continue
		}
		clone := make(domain.Record, len(row))
		for k, v := range row {
			clone[k] = v
		}
		bucket[id] = clone
		res.Upserted++
	}
	return res, nil
}

func (s *Store) FetchOrders(_ context.Context, from, to time.Time) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]domain.Order, 0, len(s.tables["orders"]))
	for _, rec := range s.tables["orders"] {
		o := domain.OrderFromRecord(rec)
		if !from.IsZero() && o.OrderedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !o.OrderedAt.Before(to) {
			continue
		}
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].OrderedAt.Equal(orders[j].OrderedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].OrderedAt.Before(orders[j].OrderedAt)
	})
	return orders, nil
}

func (s *Store) ReplaceDailyStats(_ context.Context, fromDate, toDate string, rows []domain.DailyStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for date := range s.stats {
		if fromDate == "" && toDate == "" {
			delete(s.stats, date)
			continue
		}
		if date >= fromDate && date <= toDate {
			delete(s.stats, date)
		}
	}
	for _, row := range rows {
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = time.Now().UTC()
		}
		s.stats[row.Date] = row
	}
	return nil
}

func (s *Store) IncrementDailyStats(_ context.Context, date, branchKey string, delta domain.BranchStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.stats[date]
	if !ok {
		row = domain.DailyStats{Date: date, Branches: make(map[string]domain.BranchStats)}
	}
	if row.Branches == nil {
		row.Branches = make(map[string]domain.BranchStats)
	}
	row.TotalRevenue += delta.Revenue
	row.TotalOrders += delta.OrderCount
	row.TotalSettled += delta.SettledAmount
	branch := row.Branches[branchKey]
	branch.Revenue += delta.Revenue
	branch.OrderCount += delta.OrderCount
	branch.SettledAmount += delta.SettledAmount
	row.Branches[branchKey] = branch
	row.UpdatedAt = time.Now().UTC()
	s.stats[date] = row
	return nil
}

// Rows returns a copy of every record in a table, sorted by id. Test
// helper; not part of the store contract.
func (s *Store) Rows(table string) []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.tables[table]
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		clone := make(domain.Record, len(bucket[id]))
		for k, v := range bucket[id] {
			clone[k] = v
		}
		rows = append(rows, clone)
	}
	return rows
}

// StatsRows returns the rollup rows sorted by date. Test helper.
func (s *Store) StatsRows() []domain.DailyStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]domain.DailyStats, 0, len(s.stats))
	for _, row := range s.stats {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows
}
