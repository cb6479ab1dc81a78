package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sujit-maker/move-sub000/internal/audit"
	"github.com/sujit-maker/move-sub000/internal/db"
	"github.com/sujit-maker/move-sub000/internal/httpx"
	"github.com/sujit-maker/move-sub000/internal/importer"
)

const (
	multipartMemory     = 32 << 20
	defaultRunListLimit = 20
	maxRunListLimit     = 100
	defaultUploadName   = "upload.csv"
	importRunEntityType = "import_run"
	runStatusFailed     = "failed"
)

type uploadedFile struct {
	filename   string
	fileSHA256 string
	content    []byte
}

// PostImportsCategory runs one uploaded file through the import engine and
// stores the outcome. Rejected files answer 422 with the same body shape.
func (s *Server) PostImportsCategory(w http.ResponseWriter, r *http.Request, rawCategory string) {
	category, err := importer.ParseCategory(rawCategory)
	if err != nil {
		httpx.WriteError(w, r, http.StatusNotFound, "unknown_category", err.Error(), nil)
		return
	}
	mode, err := importer.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_mode", err.Error(), nil)
		return
	}

	upload, appErr := parseImportUpload(r, s.Config.ImportMaxFileBytes)
	if appErr != nil {
		appErr.write(w, r)
		return
	}

	requestID := httpx.RequestIDFromContext(r.Context())
	run, err := s.Store.CreateImportRun(r.Context(), db.CreateImportRunParams{
		Category:   string(category),
		Mode:       string(mode),
		Filename:   upload.filename,
		FileSha256: upload.fileSHA256,
		RequestID:  stringPtrOrNil(requestID),
	})
	if err != nil {
		s.Logger.Error("create import run", "error", err, "request_id", requestID)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to create import run", nil)
		return
	}

	runID := run.ID
	if err := s.Audit.Log(r.Context(), audit.Entry{
		Action:     audit.ActionImportStarted,
		EntityType: importRunEntityType,
		EntityID:   &runID,
		RequestID:  requestID,
		Metadata: map[string]any{
			"category":   category,
			"mode":       mode,
			"filename":   upload.filename,
			"fileSha256": upload.fileSHA256,
			"bytes":      len(upload.content),
		},
	}); err != nil {
		s.Logger.Warn("audit_failed", "action", audit.ActionImportStarted, "error", err)
	}

	engine, err := importer.NewRun(category, s.Deps,
		importer.WithMode(mode),
		importer.WithLogger(s.Logger.With("import_run_id", runID.String(), "request_id", requestID)),
		importer.WithLocation(s.Config.ImportTimeZone),
		importer.WithMaxRows(s.Config.ImportMaxRows),
	)
	if err != nil {
		s.Logger.Error("build import run", "error", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Import engine is not available", nil)
		return
	}

	// The run finishes and is recorded even if the client disconnects;
	// rows already written to the backend cannot be taken back.
	ctx := context.WithoutCancel(r.Context())
	outcome, err := engine.Execute(ctx, importer.Upload{Name: upload.filename, Content: upload.content})
	if err != nil {
		s.Logger.Error("execute import run", "error", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Import run failed to execute", nil)
		return
	}

	summary := summaryFromOutcome(outcome)
	summaryJSON, _ := json.Marshal(summary)
	rows := reportRows(runID, outcome)
	complete := db.CompleteImportRunParams{
		ID:          runID,
		Status:      outcome.Status(),
		RowsTotal:   int32(outcome.Total()),
		Succeeded:   int32(outcome.Succeeded),
		Failed:      int32(outcome.Failed),
		SummaryJson: summaryJSON,
	}
	finished, err := s.Store.FinishImportRun(ctx, complete, rows)
	if err != nil {
		s.Logger.Error("finish import run", "import_run_id", runID.String(), "error", err)
		// Keep the counts but leave no run stuck in running.
		complete.Status = runStatusFailed
		if _, markErr := s.Store.CompleteImportRun(ctx, complete); markErr != nil {
			s.Logger.Error("mark import run failed", "import_run_id", runID.String(), "error", markErr)
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Import ran but its report could not be saved", map[string]any{
			"importRunId": runID,
			"succeeded":   outcome.Succeeded,
			"failed":      outcome.Failed,
		})
		return
	}

	if err := s.Audit.Log(ctx, audit.Entry{
		Action:     audit.ActionImportCompleted,
		EntityType: importRunEntityType,
		EntityID:   &runID,
		RequestID:  requestID,
		Metadata: map[string]any{
			"category":  category,
			"mode":      mode,
			"status":    outcome.Status(),
			"succeeded": outcome.Succeeded,
			"failed":    outcome.Failed,
			"warnings":  len(outcome.Warnings),
		},
	}); err != nil {
		s.Logger.Warn("audit_failed", "action", audit.ActionImportCompleted, "error", err)
	}

	status := http.StatusOK
	if outcome.Rejected {
		status = http.StatusUnprocessableEntity
	}
	httpx.WriteJSON(w, status, mapImportRunResponse(finished, summary, mapRowParams(rows), requestID))
}

func (s *Server) GetImportRunsImportRunId(w http.ResponseWriter, r *http.Request, rawID string) {
	run, ok := s.loadRun(w, r, rawID)
	if !ok {
		return
	}
	rows, err := s.Store.ListImportRowResultsByRun(r.Context(), run.ID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import rows", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapImportRunResponse(
		run,
		parseRunSummary(run.SummaryJson),
		mapRowResults(rows),
		httpx.RequestIDFromContext(r.Context()),
	))
}

func (s *Server) GetImportRuns(w http.ResponseWriter, r *http.Request) {
	params := db.ListImportRunsParams{LimitRows: defaultRunListLimit}
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		category, err := importer.ParseCategory(raw)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "unknown_category", err.Error(), nil)
			return
		}
		params.Category = string(category)
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxRunListLimit {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid_limit", fmt.Sprintf("limit must be between 1 and %d", maxRunListLimit), nil)
			return
		}
		params.LimitRows = int32(limit)
	}

	runs, err := s.Store.ListImportRuns(r.Context(), params)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to list import runs", nil)
		return
	}
	response := importRunListResponse{
		Runs:      make([]importRunResponse, 0, len(runs)),
		RequestID: httpx.RequestIDFromContext(r.Context()),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, mapImportRunResponse(run, parseRunSummary(run.SummaryJson), nil, ""))
	}
	httpx.WriteJSON(w, http.StatusOK, response)
}

func (s *Server) GetImportRunsImportRunIdErrorsCsv(w http.ResponseWriter, r *http.Request, rawID string) {
	run, ok := s.loadRun(w, r, rawID)
	if !ok {
		return
	}
	rows, err := s.Store.ListImportRowResultsByRun(r.Context(), run.ID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import rows", nil)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"import-%s-errors.csv\"", run.ID.String()))
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"row_number", "severity", "kind", "result", "key", "message", "record_id"})
	for _, row := range rows {
		if row.Severity != importer.SeverityError && row.Severity != importer.SeverityWarn {
			continue
		}
		recordID := ""
		if row.RecordID != nil {
			recordID = strconv.Itoa(int(*row.RecordID))
		}
		rowNumber := ""
		if row.RowNumber > 0 {
			rowNumber = strconv.Itoa(int(row.RowNumber))
		}
		_ = writer.Write([]string{
			rowNumber,
			row.Severity,
			derefString(row.Kind),
			row.Result,
			row.NaturalKey,
			row.Message,
			recordID,
		})
	}
	writer.Flush()
}

func (s *Server) GetImportsCategoryTemplateCsv(w http.ResponseWriter, r *http.Request, rawCategory string) {
	category, err := importer.ParseCategory(rawCategory)
	if err != nil {
		httpx.WriteError(w, r, http.StatusNotFound, "template_not_found", "Import template not found", nil)
		return
	}
	content, err := importer.Template(category)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to build template", nil)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s-template.csv\"", category.Plural()))
	_, _ = w.Write(content)
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request, rawID string) (db.ImportRun, bool) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_id", "importRunId must be a UUID", nil)
		return db.ImportRun{}, false
	}
	run, err := s.Store.GetImportRunByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpx.WriteError(w, r, http.StatusNotFound, "import_run_not_found", "Import run not found", nil)
			return db.ImportRun{}, false
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import run", nil)
		return db.ImportRun{}, false
	}
	return run, true
}

func parseImportUpload(r *http.Request, maxBytes int64) (uploadedFile, *appError) {
	if !strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data") {
		return uploadedFile{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_content_type",
			Message: "Content-Type must be multipart/form-data",
		}
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return uploadedFile{}, fileTooLarge(tooLarge.Limit)
		}
		return uploadedFile{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_multipart",
			Message: "Failed to parse multipart form",
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return uploadedFile{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "missing_file",
			Message: "file is required",
		}
	}
	defer file.Close()

	var reader io.Reader = file
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return uploadedFile{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_file",
			Message: "Failed to read uploaded file",
		}
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return uploadedFile{}, fileTooLarge(maxBytes)
	}

	filename := filepath.Base(strings.TrimSpace(header.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		filename = defaultUploadName
	}
	sum := sha256.Sum256(content)
	return uploadedFile{
		filename:   filename,
		fileSHA256: hex.EncodeToString(sum[:]),
		content:    content,
	}, nil
}

func fileTooLarge(limit int64) *appError {
	return &appError{
		Status:  http.StatusRequestEntityTooLarge,
		Code:    "file_too_large",
		Message: fmt.Sprintf("file must be %d bytes or smaller", limit),
	}
}

func stringPtrOrNil(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
