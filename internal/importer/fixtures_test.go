package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	companyHeader   = "Company Name,Business Type,Country,Email,Business Ports"
	portHeader      = "Port Code,Port Name,Port Long Name,Port Type,Parent Port,Country"
	containerHeader = "Container Number,Container Category,Container Type,Container Size,Container Class,Capacity,Capacity Unit,Manufacturer,Build Year,Ownership,Lessor Name,On Hire Date,On Hire Location,On Hire Depot"
)

var fixedNow = time.Date(2026, time.June, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func containerLine(number, ownership, lessor string) string {
	return fmt.Sprintf("%s,Tank,T11,20ft,IMO1,21000,L,CIMC,2020,%s,%s,15-01-2024,Mumbai,Depot A", number, ownership, lessor)
}

func csvFile(header string, lines ...string) []byte {
	return []byte(header + "\n" + strings.Join(lines, "\n") + "\n")
}

// canonicalRows parses content and rewrites it to canonical field names.
func canonicalRows(t *testing.T, category Category, content string) []RawRow {
	t.Helper()
	table, errs := ParseDelimited([]byte(content))
	if len(errs) > 0 {
		t.Fatalf("parse fixture: %v", errs)
	}
	return table.Canonical(category).Rows
}

type fakeBackend struct {
	mu sync.Mutex

	countries   []Entry
	ports       []Entry
	addressBook []Entry
	inventory   []ExistingRecord

	nextID       int
	catalogCalls int
	catalogErr   error
	leasingErr   error
	conflicts    map[string]bool

	companies   []CompanyPayload
	createdPort []PortPayload
	inventories []InventoryPayload
	leasing     []LeasingInfoPayload
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nextID: 100,
		countries: []Entry{
			{ID: 1, Name: "India", Code: "IN"},
			{ID: 2, Name: "Singapore", Code: "SG"},
		},
		ports: []Entry{
			{ID: 5, Name: "Mumbai", Code: "INNSA", Role: "Main"},
			{ID: 6, Name: "Singapore", Code: "SGSIN", Role: "Main"},
			{ID: 7, Name: "Ludhiana ICD", Code: "INLUH", Role: "ICD"},
		},
		addressBook: []Entry{
			{ID: 10, Name: "Depot A", Role: "Depot", PortIDs: []int{5}},
			{ID: 11, Name: "Depot A", Role: "Depot", PortIDs: []int{6}},
			{ID: 20, Name: "Acme", Role: "Lessor"},
			{ID: 21, Name: "Acme", Role: "Depot Terminal", PortIDs: []int{5}},
		},
		conflicts: map[string]bool{},
	}
}

func (f *fakeBackend) deps() Deps {
	return Deps{Source: f, Writer: f}
}

func (f *fakeBackend) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.companies) + len(f.createdPort) + len(f.inventories) + len(f.leasing)
}

func (f *fakeBackend) ListCountries(ctx context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalogCalls++
	return append([]Entry(nil), f.countries...), nil
}

func (f *fakeBackend) ListPorts(ctx context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalogCalls++
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return append([]Entry(nil), f.ports...), nil
}

func (f *fakeBackend) ListAddressBook(ctx context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalogCalls++
	return append([]Entry(nil), f.addressBook...), nil
}

func (f *fakeBackend) ListInventory(ctx context.Context) ([]ExistingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalogCalls++
	return append([]ExistingRecord(nil), f.inventory...), nil
}

func (f *fakeBackend) id() int {
	f.nextID++
	return f.nextID
}

func (f *fakeBackend) CreateCompany(ctx context.Context, payload CompanyPayload) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts[payload.CompanyName] {
		return 0, fmt.Errorf("create company: %w", ErrConflict)
	}
	id := f.id()
	f.companies = append(f.companies, payload)
	f.addressBook = append(f.addressBook, Entry{ID: id, Name: payload.CompanyName, Role: payload.BusinessType})
	return id, nil
}

func (f *fakeBackend) CreatePort(ctx context.Context, payload PortPayload) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts[payload.PortName] {
		return 0, fmt.Errorf("create port: %w", ErrConflict)
	}
	id := f.id()
	f.createdPort = append(f.createdPort, payload)
	f.ports = append(f.ports, Entry{ID: id, Name: payload.PortName, Code: payload.PortCode, Role: payload.PortType})
	return id, nil
}

func (f *fakeBackend) CreateInventory(ctx context.Context, payload InventoryPayload) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts[payload.ContainerNumber] {
		return 0, fmt.Errorf("create inventory: %w", ErrConflict)
	}
	id := f.id()
	f.inventories = append(f.inventories, payload)
	f.inventory = append(f.inventory, ExistingRecord{ID: id, Key: payload.ContainerNumber})
	return id, nil
}

func (f *fakeBackend) CreateLeasingInfo(ctx context.Context, payload LeasingInfoPayload) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.leasingErr != nil {
		return 0, f.leasingErr
	}
	f.leasing = append(f.leasing, payload)
	return f.id(), nil
}

var errBackendDown = errors.New("backend unavailable")

func runImport(t *testing.T, category Category, backend *fakeBackend, content []byte, opts ...Option) Outcome {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock), WithLocation(time.UTC)}, opts...)
	run, err := NewRun(category, backend.deps(), opts...)
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	outcome, err := run.Execute(context.Background(), Upload{Name: "upload.csv", Content: content})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if run.State() != StateCompleted {
		t.Fatalf("expected run to end completed, got %s", run.State())
	}
	return outcome
}
