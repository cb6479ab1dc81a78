package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store adds the multi-statement operations that need a transaction.
type Store struct {
	*Queries
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Queries: New(pool), pool: pool}
}

// FinishImportRun writes the per-row report and closes the run in one
// transaction, so a stored run is never marked complete without its rows.
func (s *Store) FinishImportRun(ctx context.Context, complete CompleteImportRunParams, rows []InsertImportRowResultsParams) (ImportRun, error) {
	var run ImportRun
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		q := s.WithTx(tx)
		if len(rows) > 0 {
			if _, err := q.InsertImportRowResults(ctx, rows); err != nil {
				return fmt.Errorf("insert row results: %w", err)
			}
		}
		completed, err := q.CompleteImportRun(ctx, complete)
		if err != nil {
			return fmt.Errorf("complete import run: %w", err)
		}
		run = completed
		return nil
	})
	return run, err
}
