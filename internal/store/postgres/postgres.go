package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"petalsync/migrate/internal/canonical"
	"petalsync/migrate/internal/domain"
	"petalsync/migrate/internal/project"
	"petalsync/migrate/internal/store"
)

const (
	// upsertChunkSize bounds rows per round trip: large enough to
	// amortize latency, small enough to stay under parameter limits.
	upsertChunkSize = 500
	fetchPageSize   = 500
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertBatch inserts-or-replaces rows by id in bounded chunks. A failing
// chunk falls back to row-at-a-time writes so one bad record cannot sink
// its neighbors; rows that still fail are logged and counted, never
// aborting the run.
func (s *Store) UpsertBatch(ctx context.Context, table string, rows []domain.Record) (store.UpsertResult, error) {
	var res store.UpsertResult

	cols := project.Columns(table)
	if cols == nil {
		return res, fmt.Errorf("%w: %s", store.ErrUnknownTable, table)
	}
	cols = append(append(make([]string, 0, len(cols)+1), cols...), "extra")

	valid := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		id, _ := row["id"].(string)
		if id == "" {
			log.Printf("[store] skip row without id in table %s", table)
			res.Skipped++
			continue
		}
		valid = append(valid, row)
	}

	for start := 0; start < len(valid); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(valid) {
			end = len(valid)
		}
		chunk := valid[start:end]

		err := s.upsertChunk(ctx, table, cols, chunk)
		if err == nil {
			res.Upserted += len(chunk)
			continue
		}
		log.Printf("[store] chunk upsert failed table=%s rows=%d: %v; retrying row by row", table, len(chunk), err)

		for _, row := range chunk {
			if err := s.upsertRow(ctx, table, cols, row); err != nil {
				log.Printf("[store] row upsert failed table=%s id=%v: %v", table, row["id"], err)
				res.Failed++
				continue
			}
			res.Upserted++
		}
	}

	return res, nil
}

func (s *Store) upsertRow(ctx context.Context, table string, cols []string, row domain.Record) error {
	err := s.upsertChunk(ctx, table, cols, []domain.Record{row})
	if err == nil {
		return nil
	}

	// Foreign-key failures get one retry with the offending reference
	// nulled out; the dangling id is preserved in the log line.
	column := fkColumn(err, table)
	if column == "" {
		return err
	}
	retry := make(domain.Record, len(row))
	for k, v := range row {
		retry[k] = v
	}
	log.Printf("[store] fk violation on %s.%s id=%v ref=%v; retrying with null reference", table, column, row["id"], row[column])
	retry[column] = nil
	return s.upsertChunk(ctx, table, cols, []domain.Record{retry})
}

func (s *Store) upsertChunk(ctx context.Context, table string, cols []string, rows []domain.Record) error {
	args := make([]any, 0, len(rows)*len(cols))
	for _, row := range rows {
		for _, col := range cols {
			arg, err := encodeArg(row[col])
			if err != nil {
				return fmt.Errorf("encode %s: %w", col, err)
			}
			args = append(args, arg)
		}
	}
	_, err := s.db.ExecContext(ctx, upsertSQL(table, cols, len(rows)), args...)
	return err
}

func upsertSQL(table string, cols []string, rowCount int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES ")

	arg := 1
	for row := 0; row < rowCount; row++ {
		if row > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for i := range cols {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}
		b.WriteString(")")
	}

	b.WriteString(" ON CONFLICT (id) DO UPDATE SET ")
	first := true
	for _, col := range cols {
		if col == "id" {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(col)
		b.WriteString(" = EXCLUDED.")
		b.WriteString(col)
	}
	return b.String()
}

// encodeArg prepares one record value as a query argument. Structured
// values go out as JSON text for jsonb columns; pgx encodes strings in
// the text format of whatever type the server describes.
func encodeArg(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any, []any, []domain.OrderItem, domain.TransferInfo, domain.OutsourceInfo:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case time.Time:
		return t.UTC(), nil
	default:
		return v, nil
	}
}

// fkColumn extracts the referencing column from a foreign-key violation,
// relying on the v4 convention of <table>_<column>_fkey constraint names.
func fkColumn(err error, table string) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23503" {
		return ""
	}
	name := pgErr.ConstraintName
	if !strings.HasPrefix(name, table+"_") || !strings.HasSuffix(name, "_fkey") {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, table+"_"), "_fkey")
}

// fetchSortKey is the keyset pagination key. An order without ordered_at
// still has to reach rollups and audits, so the key coalesces through
// created_at down to epoch instead of letting a NULL knock the row out of
// the cursor comparison. cursorKey mirrors this expression in Go.
const fetchSortKey = "COALESCE(ordered_at, created_at, 'epoch'::timestamptz)"

const fetchOrdersSQL = `
	SELECT id, COALESCE(order_number,''), COALESCE(branch_id,''), COALESCE(branch_name,''),
		ordered_at, COALESCE(receipt_type,''), COALESCE(orderer_name,''), COALESCE(orderer_contact,''),
		COALESCE(customer_id,''), items, COALESCE(total,0), COALESCE(payment_method,''),
		COALESCE(payment_status,''), payment_completed_at, COALESCE(status,''), completed_at,
		COALESCE(message,''), COALESCE(request_note,''), extra, created_at
	FROM orders
	WHERE ($1::timestamptz IS NULL OR ordered_at >= $1)
		AND ($2::timestamptz IS NULL OR ordered_at < $2)
		AND (NOT $3::bool OR (` + fetchSortKey + `, id) > ($4, $5))
	ORDER BY ` + fetchSortKey + `, id
	LIMIT $6`

// cursorKey is the Go side of fetchSortKey, computed from the last scanned
// row to position the next page.
func cursorKey(o domain.Order) time.Time {
	if !o.OrderedAt.IsZero() {
		return o.OrderedAt
	}
	if !o.CreatedAt.IsZero() {
		return o.CreatedAt
	}
	return time.Unix(0, 0).UTC()
}

// FetchOrders reads orders in [from, to) in stable keyset pages, so a
// table mutated mid-scan cannot make the cursor skip or repeat rows. Zero
// bounds mean unbounded; explicit bounds window on ordered_at, matching
// the source side's field filters.
func (s *Store) FetchOrders(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, 256)
	cursorAt := time.Unix(0, 0).UTC()
	cursorID := uuid.Nil.String()
	haveCursor := false

	for {
		rows, err := s.db.QueryContext(ctx, fetchOrdersSQL,
			nullTime(from), nullTime(to), haveCursor, cursorAt, cursorID, fetchPageSize)
		if err != nil {
			return nil, err
		}

		fetched := 0
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			orders = append(orders, o)
			cursorAt, cursorID = cursorKey(o), o.ID
			fetched++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		if fetched < fetchPageSize {
			return orders, nil
		}
		haveCursor = true
	}
}

func scanOrder(rows *sql.Rows) (domain.Order, error) {
	var o domain.Order
	var orderedAt, paymentCompletedAt, completedAt, createdAt sql.NullTime
	var itemsRaw, extraRaw []byte

	err := rows.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.Branch.ID,
		&o.Branch.Name,
		&orderedAt,
		&o.ReceiptType,
		&o.Orderer.Name,
		&o.Orderer.Contact,
		&o.Orderer.CustomerID,
		&itemsRaw,
		&o.Total,
		&o.Payment.Method,
		&o.Payment.Status,
		&paymentCompletedAt,
		&o.Status,
		&completedAt,
		&o.Message,
		&o.RequestNote,
		&extraRaw,
		&createdAt,
	)
	if err != nil {
		return o, err
	}

	if orderedAt.Valid {
		o.OrderedAt = orderedAt.Time.UTC()
	}
	if paymentCompletedAt.Valid {
		o.Payment.CompletedAt = paymentCompletedAt.Time.UTC()
	}
	if completedAt.Valid {
		o.CompletedAt = completedAt.Time.UTC()
	}
	if createdAt.Valid {
		o.CreatedAt = createdAt.Time.UTC()
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &o.Items); err != nil {
			log.Printf("[store] WARN: bad items payload on order %s: %v", o.ID, err)
		}
	}
	if len(extraRaw) > 0 {
		_ = json.Unmarshal(extraRaw, &o.Extra)
	}
	return o, nil
}

// ReplaceDailyStats rebuilds the rollup rows for a date range wholesale:
// delete then insert inside one transaction. Empty bounds replace the
// whole table. This is the only batch write path for daily_stats; the
// live flows use IncrementDailyStats instead.
func (s *Store) ReplaceDailyStats(ctx context.Context, fromDate, toDate string, rows []domain.DailyStats) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if fromDate == "" && toDate == "" {
		_, err = tx.ExecContext(ctx, `DELETE FROM daily_stats`)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM daily_stats WHERE date >= $1 AND date <= $2`, fromDate, toDate)
	}
	if err != nil {
		return err
	}

	for _, row := range rows {
		branches, err := json.Marshal(row.Branches)
		if err != nil {
			return err
		}
		updatedAt := row.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO daily_stats (id, date, total_revenue, total_orders, total_settled, branches, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, canonical.ID("daily_stats:"+row.Date), row.Date, row.TotalRevenue, row.TotalOrders, row.TotalSettled, string(branches), updatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// IncrementDailyStats calls the server-side increment function used by the
// live order-entry flow. It adds the deltas to the existing rollup row for
// (date, branch) or creates it when absent, atomically.
func (s *Store) IncrementDailyStats(ctx context.Context, date, branchKey string, delta domain.BranchStats) error {
	_, err := s.db.ExecContext(ctx,
		`SELECT increment_daily_stats($1, $2, $3, $4, $5)`,
		date, branchKey, delta.Revenue, delta.OrderCount, delta.SettledAmount)
	return err
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
