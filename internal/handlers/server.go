package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sujit-maker/move-sub000/internal/audit"
	"github.com/sujit-maker/move-sub000/internal/config"
	"github.com/sujit-maker/move-sub000/internal/db"
	"github.com/sujit-maker/move-sub000/internal/httpx"
	"github.com/sujit-maker/move-sub000/internal/importer"
)

// RunStore persists import runs and their per-row reports. *db.Store
// satisfies it.
type RunStore interface {
	audit.Inserter
	CreateImportRun(ctx context.Context, arg db.CreateImportRunParams) (db.ImportRun, error)
	FinishImportRun(ctx context.Context, complete db.CompleteImportRunParams, rows []db.InsertImportRowResultsParams) (db.ImportRun, error)
	CompleteImportRun(ctx context.Context, arg db.CompleteImportRunParams) (db.ImportRun, error)
	GetImportRunByID(ctx context.Context, id uuid.UUID) (db.ImportRun, error)
	ListImportRuns(ctx context.Context, arg db.ListImportRunsParams) ([]db.ImportRun, error)
	ListImportRowResultsByRun(ctx context.Context, importRunID uuid.UUID) ([]db.ImportRowResult, error)
}

type Server struct {
	Config config.Config
	Store  RunStore
	Audit  *audit.Logger
	Deps   importer.Deps
	Logger *slog.Logger
}

func NewServer(cfg config.Config, store RunStore, deps importer.Deps, logger *slog.Logger) *Server {
	return &Server{
		Config: cfg,
		Store:  store,
		Audit:  audit.NewLogger(store),
		Deps:   deps,
		Logger: logger,
	}
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type appError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *appError) write(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, r, e.Status, e.Code, e.Message, e.Details)
}
