package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/sujit-maker/move-sub000/migrations"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		t.Fatalf("open sql db: %v", err)
	}
	defer sqlDB.Close()
	if _, err := sqlDB.ExecContext(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		t.Fatalf("goose dialect: %v", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		t.Fatalf("goose up: %v", err)
	}

	pool, err := Connect(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect test db: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestImportRunLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	q := New(pool)

	requestID := "req-1"
	run, err := q.CreateImportRun(ctx, CreateImportRunParams{
		Category:   "container",
		Mode:       "apply",
		Filename:   "containers.csv",
		FileSha256: "abc123",
		RequestID:  &requestID,
	})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if run.Status != "running" || run.CompletedAt != nil {
		t.Fatalf("expected running run, got %+v", run)
	}

	kind := "duplicate"
	recordID := int32(42)
	inserted, err := q.InsertImportRowResults(ctx, []InsertImportRowResultsParams{
		{ImportRunID: run.ID, RowNumber: 2, Severity: "info", Result: "created", NaturalKey: "TANK0000001", Message: "Container created", RecordID: &recordID},
		{ImportRunID: run.ID, RowNumber: 3, Severity: "error", Kind: &kind, Result: "failed", NaturalKey: "TANK0000001", Message: "already exists"},
	})
	if err != nil {
		t.Fatalf("insert rows: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("expected 2 rows copied, got %d", inserted)
	}

	completed, err := q.CompleteImportRun(ctx, CompleteImportRunParams{
		ID:          run.ID,
		Status:      "completed",
		RowsTotal:   2,
		Succeeded:   1,
		Failed:      1,
		SummaryJson: []byte(`{"succeeded":1,"failed":1}`),
	})
	if err != nil {
		t.Fatalf("complete run: %v", err)
	}
	if completed.CompletedAt == nil || completed.Succeeded != 1 || completed.Failed != 1 {
		t.Fatalf("unexpected completed run %+v", completed)
	}

	rows, err := q.ListImportRowResultsByRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}
	if len(rows) != 2 || rows[0].RecordID == nil || *rows[0].RecordID != 42 || rows[1].Kind == nil || *rows[1].Kind != "duplicate" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	runs, err := q.ListImportRuns(ctx, ListImportRunsParams{Category: "container", LimitRows: 10})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestGetImportRunByIDMissing(t *testing.T) {
	pool := setupTestDB(t)
	_, err := New(pool).GetImportRunByID(context.Background(), [16]byte{1})
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestRowResultsRollBackWithTransaction(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	run, err := New(pool).CreateImportRun(ctx, CreateImportRunParams{Category: "port", Mode: "apply", Filename: "ports.csv", FileSha256: "def"})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := New(pool).WithTx(tx).InsertImportRowResults(ctx, []InsertImportRowResultsParams{
		{ImportRunID: run.ID, RowNumber: 2, Severity: "info", Result: "created", NaturalKey: "Mumbai", Message: "Port created"},
	}); err != nil {
		t.Fatalf("insert rows: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	rows, err := New(pool).ListImportRowResultsByRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected rolled back rows to be gone, got %d", len(rows))
	}
}

func TestFinishImportRunStoresRowsAndStatus(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(pool)

	run, err := store.CreateImportRun(ctx, CreateImportRunParams{Category: "company", Mode: "dry_run", Filename: "companies.csv", FileSha256: "ghi"})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	finished, err := store.FinishImportRun(ctx, CompleteImportRunParams{
		ID:          run.ID,
		Status:      "rejected",
		RowsTotal:   1,
		Failed:      1,
		SummaryJson: []byte(`{"rejected":true}`),
	}, []InsertImportRowResultsParams{
		{ImportRunID: run.ID, RowNumber: 2, Severity: "error", Result: "rejected", Message: "Company Name is required"},
	})
	if err != nil {
		t.Fatalf("finish run: %v", err)
	}
	if finished.Status != "rejected" || finished.CompletedAt == nil {
		t.Fatalf("unexpected run %+v", finished)
	}
	rows, err := store.ListImportRowResultsByRun(ctx, run.ID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected one stored row, got %d (%v)", len(rows), err)
	}
}
