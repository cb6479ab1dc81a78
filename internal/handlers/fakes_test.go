package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sujit-maker/move-sub000/internal/config"
	"github.com/sujit-maker/move-sub000/internal/db"
	"github.com/sujit-maker/move-sub000/internal/httpx"
	"github.com/sujit-maker/move-sub000/internal/importer"
)

const portHeader = "Port Code,Port Name,Port Long Name,Port Type,Parent Port,Country"

type memoryStore struct {
	mu        sync.Mutex
	runs      map[uuid.UUID]db.ImportRun
	rows      map[uuid.UUID][]db.ImportRowResult
	audit     []db.InsertAuditLogParams
	finishErr error
	nextRowID int64
	lastList  db.ListImportRunsParams
}

func newMemoryStore() *memoryStore {
	return &memoryStore{runs: map[uuid.UUID]db.ImportRun{}, rows: map[uuid.UUID][]db.ImportRowResult{}}
}

func (m *memoryStore) CreateImportRun(_ context.Context, arg db.CreateImportRunParams) (db.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := db.ImportRun{
		ID:          uuid.New(),
		Category:    arg.Category,
		Mode:        arg.Mode,
		Filename:    arg.Filename,
		FileSha256:  arg.FileSha256,
		Status:      "running",
		SummaryJson: []byte("{}"),
		RequestID:   arg.RequestID,
		CreatedAt:   time.Now(),
	}
	m.runs[run.ID] = run
	return run, nil
}

func (m *memoryStore) FinishImportRun(_ context.Context, complete db.CompleteImportRunParams, rows []db.InsertImportRowResultsParams) (db.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finishErr != nil {
		return db.ImportRun{}, m.finishErr
	}
	run, ok := m.runs[complete.ID]
	if !ok {
		return db.ImportRun{}, pgx.ErrNoRows
	}
	for _, row := range rows {
		m.nextRowID++
		m.rows[run.ID] = append(m.rows[run.ID], db.ImportRowResult{
			ID:          m.nextRowID,
			ImportRunID: row.ImportRunID,
			RowNumber:   row.RowNumber,
			Severity:    row.Severity,
			Kind:        row.Kind,
			Result:      row.Result,
			NaturalKey:  row.NaturalKey,
			Message:     row.Message,
			RecordID:    row.RecordID,
		})
	}
	return m.complete(run, complete), nil
}

func (m *memoryStore) CompleteImportRun(_ context.Context, arg db.CompleteImportRunParams) (db.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[arg.ID]
	if !ok {
		return db.ImportRun{}, pgx.ErrNoRows
	}
	return m.complete(run, arg), nil
}

func (m *memoryStore) complete(run db.ImportRun, arg db.CompleteImportRunParams) db.ImportRun {
	now := time.Now()
	run.Status = arg.Status
	run.RowsTotal = arg.RowsTotal
	run.Succeeded = arg.Succeeded
	run.Failed = arg.Failed
	run.SummaryJson = arg.SummaryJson
	run.CompletedAt = &now
	m.runs[run.ID] = run
	return run
}

func (m *memoryStore) GetImportRunByID(_ context.Context, id uuid.UUID) (db.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return db.ImportRun{}, pgx.ErrNoRows
	}
	return run, nil
}

func (m *memoryStore) ListImportRuns(_ context.Context, arg db.ListImportRunsParams) ([]db.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastList = arg
	runs := []db.ImportRun{}
	for _, run := range m.runs {
		if arg.Category == "" || run.Category == arg.Category {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	if len(runs) > int(arg.LimitRows) {
		runs = runs[:arg.LimitRows]
	}
	return runs, nil
}

func (m *memoryStore) ListImportRowResultsByRun(_ context.Context, id uuid.UUID) ([]db.ImportRowResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]db.ImportRowResult(nil), m.rows[id]...), nil
}

func (m *memoryStore) InsertAuditLog(_ context.Context, arg db.InsertAuditLogParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, arg)
	return nil
}

func (m *memoryStore) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := make([]string, 0, len(m.audit))
	for _, entry := range m.audit {
		actions = append(actions, entry.Action)
	}
	return actions
}

// stubBackend serves a fixed catalog and records port creations.
type stubBackend struct {
	mu        sync.Mutex
	ports     []importer.Entry
	created   []importer.PortPayload
	createErr error
}

func newStubBackend() *stubBackend {
	return &stubBackend{ports: []importer.Entry{{ID: 5, Name: "Mumbai", Code: "INNSA", Role: "Main"}}}
}

func (b *stubBackend) ListCountries(context.Context) ([]importer.Entry, error) {
	return []importer.Entry{{ID: 1, Name: "India", Code: "IN"}}, nil
}

func (b *stubBackend) ListPorts(context.Context) ([]importer.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]importer.Entry(nil), b.ports...), nil
}

func (b *stubBackend) ListAddressBook(context.Context) ([]importer.Entry, error) {
	return nil, nil
}

func (b *stubBackend) ListInventory(context.Context) ([]importer.ExistingRecord, error) {
	return nil, nil
}

func (b *stubBackend) CreateCompany(context.Context, importer.CompanyPayload) (int, error) {
	return 0, errors.New("not supported")
}

func (b *stubBackend) CreatePort(_ context.Context, payload importer.PortPayload) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return 0, b.createErr
	}
	b.created = append(b.created, payload)
	id := 100 + len(b.created)
	b.ports = append(b.ports, importer.Entry{ID: id, Name: payload.PortName, Code: payload.PortCode, Role: payload.PortType})
	return id, nil
}

func (b *stubBackend) CreateInventory(context.Context, importer.InventoryPayload) (int, error) {
	return 0, errors.New("not supported")
}

func (b *stubBackend) CreateLeasingInfo(context.Context, importer.LeasingInfoPayload) (int, error) {
	return 0, errors.New("not supported")
}

func (b *stubBackend) createdCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.created)
}

type testServer struct {
	server  *Server
	store   *memoryStore
	backend *stubBackend
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	store := newMemoryStore()
	backend := newStubBackend()
	cfg := config.Config{
		Env:                "test",
		ImportMaxFileBytes: 1 << 20,
		ImportMaxRows:      100,
		ImportTimeZone:     time.UTC,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return testServer{
		server:  NewServer(cfg, store, importer.Deps{Source: backend, Writer: backend}, logger),
		store:   store,
		backend: backend,
	}
}

func uploadRequest(t *testing.T, target, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.Copy(part, strings.NewReader(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req.WithContext(httpx.WithRequestID(req.Context(), "req-test"))
}
