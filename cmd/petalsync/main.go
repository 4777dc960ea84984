package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"petalsync/migrate/internal/audit"
	"petalsync/migrate/internal/checkpoint"
	"petalsync/migrate/internal/config"
	"petalsync/migrate/internal/duplicate"
	"petalsync/migrate/internal/migrate"
	"petalsync/migrate/internal/source"
	"petalsync/migrate/internal/stats"
	"petalsync/migrate/internal/store"
	pgstore "petalsync/migrate/internal/store/postgres"
)

// collections maps v3 collection names to their v4 tables. Every scan
// orders by __name__: the source store's field-ordered scans exclude
// documents that lack the field, and an order without orderedAt still has
// to migrate.
var collections = []migrate.CollectionOptions{
	{Collection: "branches", Table: "branches", OrderBy: "__name__"},
	{Collection: "customers", Table: "customers", OrderBy: "__name__"},
	{Collection: "orders", Table: "orders", OrderBy: "__name__"},
	{Collection: "hrDocuments", Table: "hr_documents", OrderBy: "__name__"},
	{Collection: "calendarEvents", Table: "calendar_events", OrderBy: "__name__"},
}

func main() {
	_ = godotenv.Load()
	log.SetFlags(log.LstdFlags)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg := config.Load()
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "migrate":
		err = runMigrate(ctx, cfg, os.Args[2:])
	case "rebuild-stats":
		err = runRebuildStats(ctx, cfg, os.Args[2:])
	case "find-duplicates":
		err = runFindDuplicates(ctx, cfg, os.Args[2:])
	case "audit":
		err = runAudit(ctx, cfg, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: petalsync <command> [flags]

commands:
  migrate          copy v3 collections into the v4 store (idempotent)
  rebuild-stats    recompute daily revenue rollups from the order set
  find-duplicates  report probable double-entered orders
  audit            cross-check both stores for a date window`)
}

func runMigrate(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	collection := fs.String("collection", "", "migrate a single collection (default: all)")
	table := fs.String("table", "", "target table (default: derived from collection)")
	orderBy := fs.String("order-by", "", "source sort field (default: per-collection)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	dst, err := openTarget(ctx, cfg)
	if err != nil {
		return err
	}
	defer dst.Close()

	checkpoints, closeCheckpoints := openCheckpoints(ctx, cfg)
	defer closeCheckpoints()

	runner := migrate.NewRunner(src, dst, checkpoints, cfg.RunID, cfg.PageSize)
	log.Printf("[petalsync] run %s starting", runner.RunID())

	todo := collections
	if *collection != "" {
		todo = []migrate.CollectionOptions{{Collection: *collection, Table: *table, OrderBy: *orderBy}}
	}

	failed := 0
	for _, opts := range todo {
		summary, err := runner.MigrateCollection(ctx, opts)
		if err != nil {
			return fmt.Errorf("migrate %s: %w", opts.Collection, err)
		}
		log.Printf("[petalsync] %s done: %d migrated, %d skipped, %d failed (of %d)",
			summary.Collection, summary.Migrated, summary.Skipped, summary.Failed, summary.Total())
		failed += summary.Failed
	}
	if failed > 0 {
		return fmt.Errorf("%d records failed; see log for ids", failed)
	}
	return nil
}

func runRebuildStats(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("rebuild-stats", flag.ExitOnError)
	from := fs.String("from", "", "first date to rebuild (YYYY-MM-DD, store-local)")
	to := fs.String("to", "", "last date to rebuild (YYYY-MM-DD, store-local)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dst, err := openTarget(ctx, cfg)
	if err != nil {
		return err
	}
	defer dst.Close()

	engine := stats.NewEngine(dst)
	var rows int
	if *from == "" && *to == "" {
		rows, err = engine.RebuildAll(ctx)
	} else {
		rows, err = engine.RebuildRange(ctx, *from, *to)
	}
	if err != nil {
		return err
	}
	log.Printf("[petalsync] rebuilt %d rollup rows", rows)
	return nil
}

func runFindDuplicates(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("find-duplicates", flag.ExitOnError)
	from := fs.String("from", "", "window start (YYYY-MM-DD)")
	to := fs.String("to", "", "window end (YYYY-MM-DD, exclusive)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dst, err := openTarget(ctx, cfg)
	if err != nil {
		return err
	}
	defer dst.Close()

	fromTime, toTime, err := parseWindow(*from, *to)
	if err != nil {
		return err
	}
	orders, err := dst.FetchOrders(ctx, fromTime, toTime)
	if err != nil {
		return err
	}

	report := duplicate.Detect(orders)
	for _, c := range report.Candidates {
		log.Printf("[duplicates] %s confidence: %s and %s, %s apart (%s)",
			c.Confidence, c.FirstID, c.SecondID, c.Delta, c.Reason)
	}
	for _, n := range report.NumberCollisions {
		log.Printf("[duplicates] order number %s shared by %d orders: %v", n.OrderNumber, len(n.OrderIDs), n.OrderIDs)
	}
	log.Printf("[petalsync] %d orders scanned, %d candidate pairs, %d number collisions",
		len(orders), len(report.Candidates), len(report.NumberCollisions))
	return nil
}

func runAudit(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	from := fs.String("from", "", "window start (YYYY-MM-DD, required)")
	to := fs.String("to", "", "window end (YYYY-MM-DD, exclusive, required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *from == "" || *to == "" {
		return fmt.Errorf("audit requires -from and -to")
	}

	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	dst, err := openTarget(ctx, cfg)
	if err != nil {
		return err
	}
	defer dst.Close()

	fromTime, toTime, err := parseWindow(*from, *to)
	if err != nil {
		return err
	}

	report, err := audit.NewReporter(src, dst).Compare(ctx, fromTime, toTime)
	if err != nil {
		return err
	}

	log.Printf("[audit] source: %d orders, revenue %d", report.SourceCount, report.SourceRevenue)
	log.Printf("[audit] target: %d orders, revenue %d", report.TargetCount, report.TargetRevenue)
	log.Printf("[audit] only in source: %d %v", len(report.OnlyInSource), report.OnlyInSource)
	log.Printf("[audit] only in target: %d %v", len(report.OnlyInTarget), report.OnlyInTarget)
	for _, m := range report.Mismatches {
		log.Printf("[audit] status mismatch %s: source=%q target=%q", m.ID, m.SourceStatus, m.TargetStatus)
	}
	log.Printf("[audit] %d status mismatches", len(report.Mismatches))
	return nil
}

func openSource(cfg config.Config) (source.Reader, error) {
	if err := cfg.RequireSource(); err != nil {
		return nil, err
	}
	account, err := source.LoadServiceAccount(cfg.ServiceAccountFile)
	if err != nil {
		return nil, err
	}
	return source.NewFirestore(cfg.SourceProjectID, account), nil
}

func openTarget(ctx context.Context, cfg config.Config) (store.Store, error) {
	if err := cfg.RequireTarget(); err != nil {
		return nil, err
	}
	return pgstore.New(ctx, cfg.DatabaseURL)
}

func openCheckpoints(ctx context.Context, cfg config.Config) (checkpoint.Store, func()) {
	if cfg.RedisAddr == "" {
		log.Println("[petalsync] checkpoints: in-memory (no REDIS_ADDR)")
		return checkpoint.NewMemory(), func() {}
	}
	redisCheckpoints := checkpoint.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCheckpoints.Ping(ctx); err != nil {
		log.Printf("[petalsync] redis unavailable (%v); checkpoints: in-memory", err)
		return checkpoint.NewMemory(), func() {}
	}
	log.Println("[petalsync] checkpoints: redis")
	return redisCheckpoints, func() { _ = redisCheckpoints.Close() }
}

func parseWindow(from, to string) (time.Time, time.Time, error) {
	var fromTime, toTime time.Time
	var err error
	if from != "" {
		fromTime, err = time.ParseInLocation("2006-01-02", from, stats.KST)
		if err != nil {
			return fromTime, toTime, fmt.Errorf("bad -from date: %w", err)
		}
	}
	if to != "" {
		toTime, err = time.ParseInLocation("2006-01-02", to, stats.KST)
		if err != nil {
			return fromTime, toTime, fmt.Errorf("bad -to date: %w", err)
		}
	}
	return fromTime, toTime, nil
}
