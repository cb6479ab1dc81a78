package handlers

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/sujit-maker/move-sub000/internal/db"
	"github.com/sujit-maker/move-sub000/internal/importer"
)

const maxStoredMessage = 1000

// runSummary is the part of an Outcome stored in import_runs.summary_json.
// Per-row results live in import_row_results.
type runSummary struct {
	Rejected         bool                       `json:"rejected"`
	Errors           []string                   `json:"errors"`
	Warnings         []string                   `json:"warnings"`
	ValidationErrors []importer.ValidationError `json:"validationErrors"`
	ParseErrors      []importer.ParseError      `json:"parseErrors"`
	StartedAt        time.Time                  `json:"startedAt"`
	CompletedAt      time.Time                  `json:"completedAt"`
}

type importRowMessage struct {
	RowNumber int    `json:"rowNumber"`
	Severity  string `json:"severity"`
	Kind      string `json:"kind,omitempty"`
	Result    string `json:"result"`
	Key       string `json:"key"`
	Message   string `json:"message"`
	RecordID  *int   `json:"recordId,omitempty"`
}

type importRunResponse struct {
	ID               openapi_types.UUID         `json:"id"`
	Category         string                     `json:"category"`
	Mode             string                     `json:"mode"`
	Filename         string                     `json:"filename"`
	FileSha256       string                     `json:"fileSha256"`
	Status           string                     `json:"status"`
	Rejected         bool                       `json:"rejected"`
	Total            int                        `json:"total"`
	Succeeded        int                        `json:"succeeded"`
	Failed           int                        `json:"failed"`
	Errors           []string                   `json:"errors"`
	Warnings         []string                   `json:"warnings"`
	ValidationErrors []importer.ValidationError `json:"validationErrors"`
	ParseErrors      []importer.ParseError      `json:"parseErrors"`
	Rows             []importRowMessage         `json:"rows,omitempty"`
	CreatedAt        time.Time                  `json:"createdAt"`
	CompletedAt      *time.Time                 `json:"completedAt,omitempty"`
	RequestID        string                     `json:"requestId,omitempty"`
}

type importRunListResponse struct {
	Runs      []importRunResponse `json:"runs"`
	RequestID string              `json:"requestId"`
}

func summaryFromOutcome(outcome importer.Outcome) runSummary {
	return runSummary{
		Rejected:         outcome.Rejected,
		Errors:           outcome.Errors,
		Warnings:         outcome.Warnings,
		ValidationErrors: outcome.ValidationErrors,
		ParseErrors:      outcome.ParseErrors,
		StartedAt:        outcome.StartedAt,
		CompletedAt:      outcome.CompletedAt,
	}
}

func parseRunSummary(raw []byte) runSummary {
	summary := runSummary{}
	_ = json.Unmarshal(raw, &summary)
	if summary.Errors == nil {
		summary.Errors = []string{}
	}
	if summary.Warnings == nil {
		summary.Warnings = []string{}
	}
	if summary.ValidationErrors == nil {
		summary.ValidationErrors = []importer.ValidationError{}
	}
	if summary.ParseErrors == nil {
		summary.ParseErrors = []importer.ParseError{}
	}
	return summary
}

// reportRows flattens an Outcome into stored rows. Parse errors and
// file-level rejections have no row result of their own, so they are
// stored against their line, or row 0.
func reportRows(runID uuid.UUID, outcome importer.Outcome) []db.InsertImportRowResultsParams {
	rows := make([]db.InsertImportRowResultsParams, 0, len(outcome.Rows)+len(outcome.ParseErrors))
	for _, parseErr := range outcome.ParseErrors {
		rows = append(rows, rejectedRow(runID, parseErr.Line, importer.KindParse, parseErr.Message))
	}
	if outcome.Rejected && len(outcome.ParseErrors) == 0 && len(outcome.ValidationErrors) == 0 {
		for _, message := range outcome.Errors {
			rows = append(rows, rejectedRow(runID, 0, importer.KindStructural, message))
		}
	}
	for _, row := range outcome.Rows {
		params := db.InsertImportRowResultsParams{
			ImportRunID: runID,
			RowNumber:   int32(row.RowNumber),
			Severity:    row.Severity,
			Result:      row.Result,
			NaturalKey:  truncateText(row.Key, 200),
			Message:     truncateText(row.Message, maxStoredMessage),
		}
		if row.Kind != "" {
			kind := string(row.Kind)
			params.Kind = &kind
		}
		if row.RecordID != 0 {
			id := int32(row.RecordID)
			params.RecordID = &id
		}
		rows = append(rows, params)
	}
	return rows
}

func rejectedRow(runID uuid.UUID, line int, kind importer.ErrorKind, message string) db.InsertImportRowResultsParams {
	k := string(kind)
	return db.InsertImportRowResultsParams{
		ImportRunID: runID,
		RowNumber:   int32(line),
		Severity:    importer.SeverityError,
		Kind:        &k,
		Result:      importer.ResultRejected,
		Message:     truncateText(message, maxStoredMessage),
	}
}

func mapRowParams(rows []db.InsertImportRowResultsParams) []importRowMessage {
	mapped := make([]importRowMessage, 0, len(rows))
	for _, row := range rows {
		mapped = append(mapped, importRowMessage{
			RowNumber: int(row.RowNumber),
			Severity:  row.Severity,
			Kind:      derefString(row.Kind),
			Result:    row.Result,
			Key:       row.NaturalKey,
			Message:   row.Message,
			RecordID:  intPtr(row.RecordID),
		})
	}
	return mapped
}

func mapRowResults(rows []db.ImportRowResult) []importRowMessage {
	mapped := make([]importRowMessage, 0, len(rows))
	for _, row := range rows {
		mapped = append(mapped, importRowMessage{
			RowNumber: int(row.RowNumber),
			Severity:  row.Severity,
			Kind:      derefString(row.Kind),
			Result:    row.Result,
			Key:       row.NaturalKey,
			Message:   row.Message,
			RecordID:  intPtr(row.RecordID),
		})
	}
	return mapped
}

func mapImportRunResponse(run db.ImportRun, summary runSummary, rows []importRowMessage, requestID string) importRunResponse {
	var completedAt *time.Time
	if run.CompletedAt != nil {
		t := run.CompletedAt.UTC()
		completedAt = &t
	}
	return importRunResponse{
		ID:               run.ID,
		Category:         run.Category,
		Mode:             run.Mode,
		Filename:         run.Filename,
		FileSha256:       run.FileSha256,
		Status:           run.Status,
		Rejected:         summary.Rejected,
		Total:            int(run.RowsTotal),
		Succeeded:        int(run.Succeeded),
		Failed:           int(run.Failed),
		Errors:           summary.Errors,
		Warnings:         summary.Warnings,
		ValidationErrors: summary.ValidationErrors,
		ParseErrors:      summary.ParseErrors,
		Rows:             rows,
		CreatedAt:        run.CreatedAt.UTC(),
		CompletedAt:      completedAt,
		RequestID:        requestID,
	}
}

func truncateText(value string, max int) string {
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func intPtr(value *int32) *int {
	if value == nil {
		return nil
	}
	v := int(*value)
	return &v
}
