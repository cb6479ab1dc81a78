package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/sujit-maker/move-sub000/internal/httpx"
	"github.com/sujit-maker/move-sub000/internal/importer"
)

func decodeRun(t *testing.T, rec *httptest.ResponseRecorder) importRunResponse {
	t.Helper()
	var run importRunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode run: %v (%s)", err, rec.Body.String())
	}
	return run
}

func TestPostImportsAppliesAndStoresReport(t *testing.T) {
	env := newTestServer(t)
	content := portHeader + "\nINMAA,Chennai,Chennai Port,Main,,India\nINNSA,Mumbai,Nhava Sheva,Main,,India\n"

	rec := httptest.NewRecorder()
	env.server.PostImportsCategory(rec, uploadRequest(t, "/api/imports/ports", "ports.csv", content), "ports")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	run := decodeRun(t, rec)
	if run.Status != "completed" || run.Succeeded != 1 || run.Failed != 1 || run.Total != 2 {
		t.Fatalf("unexpected summary %+v", run)
	}
	if run.Category != string(importer.CategoryPort) || run.Mode != string(importer.ModeApply) || run.RequestID != "req-test" {
		t.Fatalf("unexpected run identity %+v", run)
	}
	if len(run.FileSha256) != 64 {
		t.Fatalf("expected sha256 hex digest, got %q", run.FileSha256)
	}
	if env.backend.createdCount() != 1 {
		t.Fatalf("expected one port created, got %d", env.backend.createdCount())
	}
	if got := env.store.auditActions(); len(got) != 2 || got[0] != "import.started" || got[1] != "import.completed" {
		t.Fatalf("unexpected audit trail %v", got)
	}

	rec = httptest.NewRecorder()
	env.server.GetImportRunsImportRunId(rec, httptest.NewRequest(http.MethodGet, "/api/import-runs/"+run.ID.String(), nil), run.ID.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for stored run, got %d", rec.Code)
	}
	stored := decodeRun(t, rec)
	if stored.Succeeded != 1 || stored.Failed != 1 || len(stored.Rows) != 2 || len(stored.Errors) != 1 {
		t.Fatalf("unexpected stored run %+v", stored)
	}

	rec = httptest.NewRecorder()
	env.server.GetImportRunsImportRunIdErrorsCsv(rec, httptest.NewRequest(http.MethodGet, "/", nil), run.ID.String())
	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	if err != nil {
		t.Fatalf("read errors csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header plus one problem row, got %v", records)
	}
	if records[1][0] != "3" || records[1][2] != string(importer.KindDuplicate) || !strings.Contains(records[1][5], "already exists") {
		t.Fatalf("unexpected problem row %v", records[1])
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), run.ID.String()) {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
}

func TestPostImportsRejectedFileAnswers422(t *testing.T) {
	env := newTestServer(t)
	content := "Port Name,Country\nChennai,India\n"

	rec := httptest.NewRecorder()
	env.server.PostImportsCategory(rec, uploadRequest(t, "/api/imports/ports", "ports.csv", content), "port")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%s)", rec.Code, rec.Body.String())
	}
	run := decodeRun(t, rec)
	if !run.Rejected || run.Status != "rejected" || run.Failed != 1 || run.Succeeded != 0 {
		t.Fatalf("unexpected rejected run %+v", run)
	}
	if len(run.Errors) != 1 || !strings.Contains(run.Errors[0], "missing required headers") {
		t.Fatalf("expected missing header error, got %v", run.Errors)
	}
	if len(run.Rows) != 1 || run.Rows[0].Kind != string(importer.KindStructural) || run.Rows[0].RowNumber != 0 {
		t.Fatalf("expected structural report row, got %+v", run.Rows)
	}
	if env.backend.createdCount() != 0 {
		t.Fatal("rejected file must not create records")
	}
}

func TestPostImportsDryRunWritesNothing(t *testing.T) {
	env := newTestServer(t)
	content := portHeader + "\nINMAA,Chennai,Chennai Port,Main,,India\n"

	rec := httptest.NewRecorder()
	env.server.PostImportsCategory(rec, uploadRequest(t, "/api/imports/ports?mode=dry_run", "ports.csv", content), "ports")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	run := decodeRun(t, rec)
	if run.Mode != string(importer.ModeDryRun) || run.Succeeded != 1 {
		t.Fatalf("unexpected dry run %+v", run)
	}
	if len(run.Rows) != 1 || run.Rows[0].Result != importer.ResultWouldCreate {
		t.Fatalf("expected would_create row, got %+v", run.Rows)
	}
	if env.backend.createdCount() != 0 {
		t.Fatal("dry run must not create records")
	}
}

func TestPostImportsRequestErrors(t *testing.T) {
	content := portHeader + "\nINMAA,Chennai,Chennai Port,Main,,India\n"

	t.Run("unknown category", func(t *testing.T) {
		env := newTestServer(t)
		rec := httptest.NewRecorder()
		env.server.PostImportsCategory(rec, uploadRequest(t, "/api/imports/vessels", "v.csv", content), "vessels")
		assertErrorCode(t, rec, http.StatusNotFound, "unknown_category")
	})

	t.Run("unknown mode", func(t *testing.T) {
		env := newTestServer(t)
		rec := httptest.NewRecorder()
		env.server.PostImportsCategory(rec, uploadRequest(t, "/api/imports/ports?mode=upsert", "p.csv", content), "ports")
		assertErrorCode(t, rec, http.StatusBadRequest, "invalid_mode")
	})

	t.Run("not multipart", func(t *testing.T) {
		env := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/api/imports/ports", strings.NewReader(content))
		req.Header.Set("Content-Type", "text/csv")
		rec := httptest.NewRecorder()
		env.server.PostImportsCategory(rec, req, "ports")
		assertErrorCode(t, rec, http.StatusBadRequest, "invalid_content_type")
	})

	t.Run("file too large", func(t *testing.T) {
		env := newTestServer(t)
		env.server.Config.ImportMaxFileBytes = 16
		rec := httptest.NewRecorder()
		env.server.PostImportsCategory(rec, uploadRequest(t, "/api/imports/ports", "p.csv", content), "ports")
		assertErrorCode(t, rec, http.StatusRequestEntityTooLarge, "file_too_large")
	})

	t.Run("report cannot be saved", func(t *testing.T) {
		env := newTestServer(t)
		env.store.finishErr = errors.New("disk full")
		rec := httptest.NewRecorder()
		env.server.PostImportsCategory(rec, uploadRequest(t, "/api/imports/ports", "p.csv", content), "ports")
		assertErrorCode(t, rec, http.StatusInternalServerError, "internal_error")

		if len(env.store.runs) != 1 {
			t.Fatalf("expected one stored run, got %d", len(env.store.runs))
		}
		for _, run := range env.store.runs {
			if run.Status != "failed" || run.CompletedAt == nil {
				t.Fatalf("expected run marked failed, got status %q completed %v", run.Status, run.CompletedAt)
			}
		}
	})
}

func TestGetImportRunErrors(t *testing.T) {
	env := newTestServer(t)

	rec := httptest.NewRecorder()
	env.server.GetImportRunsImportRunId(rec, httptest.NewRequest(http.MethodGet, "/", nil), "not-a-uuid")
	assertErrorCode(t, rec, http.StatusBadRequest, "invalid_id")

	rec = httptest.NewRecorder()
	env.server.GetImportRunsImportRunIdErrorsCsv(rec, httptest.NewRequest(http.MethodGet, "/", nil), uuid.NewString())
	assertErrorCode(t, rec, http.StatusNotFound, "import_run_not_found")
}

func TestGetImportRunsFiltersByCategory(t *testing.T) {
	env := newTestServer(t)
	content := portHeader + "\nINMAA,Chennai,Chennai Port,Main,,India\n"
	env.server.PostImportsCategory(httptest.NewRecorder(), uploadRequest(t, "/api/imports/ports", "ports.csv", content), "ports")

	rec := httptest.NewRecorder()
	env.server.GetImportRuns(rec, httptest.NewRequest(http.MethodGet, "/api/import-runs?category=ports&limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list importRunListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Runs) != 1 || list.Runs[0].Filename != "ports.csv" {
		t.Fatalf("unexpected runs %+v", list.Runs)
	}

	rec = httptest.NewRecorder()
	env.server.GetImportRuns(rec, httptest.NewRequest(http.MethodGet, "/api/import-runs?category=containers", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Runs) != 0 {
		t.Fatalf("expected no container runs, got %d", len(list.Runs))
	}

	rec = httptest.NewRecorder()
	env.server.GetImportRuns(rec, httptest.NewRequest(http.MethodGet, "/api/import-runs?limit=0", nil))
	assertErrorCode(t, rec, http.StatusBadRequest, "invalid_limit")
}

func TestGetImportRunsLimits(t *testing.T) {
	env := newTestServer(t)

	rec := httptest.NewRecorder()
	env.server.GetImportRuns(rec, httptest.NewRequest(http.MethodGet, "/api/import-runs", nil))
	if rec.Code != http.StatusOK || env.store.lastList.LimitRows != 20 {
		t.Fatalf("expected default limit 20, got %d (status %d)", env.store.lastList.LimitRows, rec.Code)
	}

	rec = httptest.NewRecorder()
	env.server.GetImportRuns(rec, httptest.NewRequest(http.MethodGet, "/api/import-runs?limit=100", nil))
	if rec.Code != http.StatusOK || env.store.lastList.LimitRows != 100 {
		t.Fatalf("expected limit 100 accepted, got %d (status %d)", env.store.lastList.LimitRows, rec.Code)
	}

	rec = httptest.NewRecorder()
	env.server.GetImportRuns(rec, httptest.NewRequest(http.MethodGet, "/api/import-runs?limit=101", nil))
	assertErrorCode(t, rec, http.StatusBadRequest, "invalid_limit")
}

func TestGetTemplate(t *testing.T) {
	env := newTestServer(t)

	rec := httptest.NewRecorder()
	env.server.GetImportsCategoryTemplateCsv(rec, httptest.NewRequest(http.MethodGet, "/", nil), "containers")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "Container Number,") {
		t.Fatalf("unexpected template %q", rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "containers-template.csv") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}

	rec = httptest.NewRecorder()
	env.server.GetImportsCategoryTemplateCsv(rec, httptest.NewRequest(http.MethodGet, "/", nil), "vessels")
	assertErrorCode(t, rec, http.StatusNotFound, "template_not_found")
}

func TestTruncateTextKeepsRunes(t *testing.T) {
	if got := truncateText("Zürich", 2); got != "Z" {
		t.Fatalf("expected cut before multi-byte rune, got %q", got)
	}
	if got := truncateText("Pune", 10); got != "Pune" {
		t.Fatalf("expected short text untouched, got %q", got)
	}
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d, got %d (%s)", status, rec.Code, rec.Body.String())
	}
	var envelope httpx.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Error.Code != code {
		t.Fatalf("expected code %q, got %q", code, envelope.Error.Code)
	}
}
