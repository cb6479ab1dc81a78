package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const importRunColumns = `id, category, mode, filename, file_sha256, status, rows_total, succeeded, failed, summary_json, request_id, created_at, completed_at`

func scanImportRun(row pgx.Row) (ImportRun, error) {
	var i ImportRun
	err := row.Scan(
		&i.ID,
		&i.Category,
		&i.Mode,
		&i.Filename,
		&i.FileSha256,
		&i.Status,
		&i.RowsTotal,
		&i.Succeeded,
		&i.Failed,
		&i.SummaryJson,
		&i.RequestID,
		&i.CreatedAt,
		&i.CompletedAt,
	)
	return i, err
}

const createImportRun = `
INSERT INTO import_runs (category, mode, filename, file_sha256, status, request_id)
VALUES ($1, $2, $3, $4, 'running', $5)
RETURNING ` + importRunColumns

type CreateImportRunParams struct {
	Category   string
	Mode       string
	Filename   string
	FileSha256 string
	RequestID  *string
}

func (q *Queries) CreateImportRun(ctx context.Context, arg CreateImportRunParams) (ImportRun, error) {
	row := q.db.QueryRow(ctx, createImportRun, arg.Category, arg.Mode, arg.Filename, arg.FileSha256, arg.RequestID)
	return scanImportRun(row)
}

const completeImportRun = `
UPDATE import_runs
SET status = $2, rows_total = $3, succeeded = $4, failed = $5, summary_json = $6, completed_at = now()
WHERE id = $1
RETURNING ` + importRunColumns

type CompleteImportRunParams struct {
	ID          uuid.UUID
	Status      string
	RowsTotal   int32
	Succeeded   int32
	Failed      int32
	SummaryJson []byte
}

func (q *Queries) CompleteImportRun(ctx context.Context, arg CompleteImportRunParams) (ImportRun, error) {
	row := q.db.QueryRow(ctx, completeImportRun, arg.ID, arg.Status, arg.RowsTotal, arg.Succeeded, arg.Failed, arg.SummaryJson)
	return scanImportRun(row)
}

const getImportRunByID = `SELECT ` + importRunColumns + ` FROM import_runs WHERE id = $1`

func (q *Queries) GetImportRunByID(ctx context.Context, id uuid.UUID) (ImportRun, error) {
	return scanImportRun(q.db.QueryRow(ctx, getImportRunByID, id))
}

const listImportRuns = `
SELECT ` + importRunColumns + `
FROM import_runs
WHERE ($1::text = '' OR category = $1)
ORDER BY created_at DESC
LIMIT $2`

type ListImportRunsParams struct {
	Category  string
	LimitRows int32
}

func (q *Queries) ListImportRuns(ctx context.Context, arg ListImportRunsParams) ([]ImportRun, error) {
	rows, err := q.db.Query(ctx, listImportRuns, arg.Category, arg.LimitRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ImportRun
	for rows.Next() {
		i, err := scanImportRun(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type InsertImportRowResultsParams struct {
	ImportRunID uuid.UUID
	RowNumber   int32
	Severity    string
	Kind        *string
	Result      string
	NaturalKey  string
	Message     string
	RecordID    *int32
}

var importRowResultColumns = []string{"import_run_id", "row_number", "severity", "kind", "result", "natural_key", "message", "record_id"}

// InsertImportRowResults bulk-loads a run's per-row report with COPY.
func (q *Queries) InsertImportRowResults(ctx context.Context, arg []InsertImportRowResultsParams) (int64, error) {
	return q.db.CopyFrom(ctx, pgx.Identifier{"import_row_results"}, importRowResultColumns, pgx.CopyFromSlice(len(arg), func(i int) ([]any, error) {
		r := arg[i]
		return []any{r.ImportRunID, r.RowNumber, r.Severity, r.Kind, r.Result, r.NaturalKey, r.Message, r.RecordID}, nil
	}))
}

const listImportRowResultsByRun = `
SELECT id, import_run_id, row_number, severity, kind, result, natural_key, message, record_id, created_at
FROM import_row_results
WHERE import_run_id = $1
ORDER BY row_number, id`

func (q *Queries) ListImportRowResultsByRun(ctx context.Context, importRunID uuid.UUID) ([]ImportRowResult, error) {
	rows, err := q.db.Query(ctx, listImportRowResultsByRun, importRunID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ImportRowResult
	for rows.Next() {
		var i ImportRowResult
		if err := rows.Scan(
			&i.ID,
			&i.ImportRunID,
			&i.RowNumber,
			&i.Severity,
			&i.Kind,
			&i.Result,
			&i.NaturalKey,
			&i.Message,
			&i.RecordID,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertAuditLog = `
INSERT INTO audit_log (action, entity_type, entity_id, request_id, metadata)
VALUES ($1, $2, $3, $4, $5)`

type InsertAuditLogParams struct {
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	RequestID  *string
	Metadata   []byte
}

func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error {
	_, err := q.db.Exec(ctx, insertAuditLog, arg.Action, arg.EntityType, arg.EntityID, arg.RequestID, arg.Metadata)
	return err
}

const listAuditLogByEntity = `
SELECT id, action, entity_type, entity_id, request_id, metadata, created_at
FROM audit_log
WHERE entity_type = $1 AND entity_id = $2
ORDER BY id`

type ListAuditLogByEntityParams struct {
	EntityType string
	EntityID   uuid.UUID
}

func (q *Queries) ListAuditLogByEntity(ctx context.Context, arg ListAuditLogByEntityParams) ([]AuditLog, error) {
	rows, err := q.db.Query(ctx, listAuditLogByEntity, arg.EntityType, arg.EntityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AuditLog
	for rows.Next() {
		var i AuditLog
		if err := rows.Scan(&i.ID, &i.Action, &i.EntityType, &i.EntityID, &i.RequestID, &i.Metadata, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
