package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sujit-maker/move-sub000/internal/config"
	"github.com/sujit-maker/move-sub000/internal/importer"
)

const maxErrorBody = 4 << 10

const (
	pathCountries   = "/country"
	pathPorts       = "/ports"
	pathAddressBook = "/addressbook"
	pathInventory   = "/inventory"
	pathLeasingInfo = "/leasinginfo"
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// Client talks to the leasing backend. It implements importer.Source and
// importer.Writer.
type Client struct {
	baseURL   string
	token     string
	http      *http.Client
	retries   uint64
	retryBase time.Duration
	logger    *slog.Logger
}

var (
	_ importer.Source = (*Client)(nil)
	_ importer.Writer = (*Client)(nil)
)

func New(cfg config.BackendConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.CatalogRetries
	if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.APIToken,
		http:      &http.Client{Timeout: timeout},
		retries:   uint64(retries),
		retryBase: 200 * time.Millisecond,
		logger:    logger,
	}
}

type countryRecord struct {
	ID          int    `json:"id"`
	CountryName string `json:"countryName"`
	CountryCode string `json:"countryCode"`
}

type portRecord struct {
	ID       int    `json:"id"`
	PortName string `json:"portName"`
	PortCode string `json:"portCode"`
	PortType string `json:"portType"`
}

type addressBookRecord struct {
	ID            int    `json:"id"`
	CompanyName   string `json:"companyName"`
	BusinessType  string `json:"businessType"`
	BusinessPorts []struct {
		PortID int `json:"portId"`
	} `json:"businessPorts"`
}

type inventoryRecord struct {
	ID              int    `json:"id"`
	ContainerNumber string `json:"containerNumber"`
}

type createdRecord struct {
	ID int `json:"id"`
}

func (c *Client) ListCountries(ctx context.Context) ([]importer.Entry, error) {
	var records []countryRecord
	if err := c.getList(ctx, pathCountries, &records); err != nil {
		return nil, err
	}
	entries := make([]importer.Entry, 0, len(records))
	for _, record := range records {
		entries = append(entries, importer.Entry{ID: record.ID, Name: record.CountryName, Code: record.CountryCode})
	}
	return entries, nil
}

func (c *Client) ListPorts(ctx context.Context) ([]importer.Entry, error) {
	var records []portRecord
	if err := c.getList(ctx, pathPorts, &records); err != nil {
		return nil, err
	}
	entries := make([]importer.Entry, 0, len(records))
	for _, record := range records {
		entries = append(entries, importer.Entry{ID: record.ID, Name: record.PortName, Code: record.PortCode, Role: record.PortType})
	}
	return entries, nil
}

func (c *Client) ListAddressBook(ctx context.Context) ([]importer.Entry, error) {
	var records []addressBookRecord
	if err := c.getList(ctx, pathAddressBook, &records); err != nil {
		return nil, err
	}
	entries := make([]importer.Entry, 0, len(records))
	for _, record := range records {
		entry := importer.Entry{ID: record.ID, Name: record.CompanyName, Role: record.BusinessType}
		for _, port := range record.BusinessPorts {
			entry.PortIDs = append(entry.PortIDs, port.PortID)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (c *Client) ListInventory(ctx context.Context) ([]importer.ExistingRecord, error) {
	var records []inventoryRecord
	if err := c.getList(ctx, pathInventory, &records); err != nil {
		return nil, err
	}
	existing := make([]importer.ExistingRecord, 0, len(records))
	for _, record := range records {
		existing = append(existing, importer.ExistingRecord{ID: record.ID, Key: record.ContainerNumber})
	}
	return existing, nil
}

func (c *Client) CreateCompany(ctx context.Context, payload importer.CompanyPayload) (int, error) {
	return c.create(ctx, pathAddressBook, payload)
}

func (c *Client) CreatePort(ctx context.Context, payload importer.PortPayload) (int, error) {
	return c.create(ctx, pathPorts, payload)
}

func (c *Client) CreateInventory(ctx context.Context, payload importer.InventoryPayload) (int, error) {
	return c.create(ctx, pathInventory, payload)
}

func (c *Client) CreateLeasingInfo(ctx context.Context, payload importer.LeasingInfoPayload) (int, error) {
	return c.create(ctx, pathLeasingInfo, payload)
}

// getList fetches a collection, retrying transport failures and 5xx/429
// answers with exponential backoff.
func (c *Client) getList(ctx context.Context, path string, out any) error {
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.retryBase))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		body, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			if retryable(err) {
				c.logger.Warn("backend_retry", "path", path, "attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		if err := decodeList(body, out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	})
}

// create posts payload once. Writes are never retried so a slow backend
// cannot produce two copies of a record.
func (c *Client) create(ctx context.Context, path string, payload any) (int, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode %s payload: %w", path, err)
	}
	body, err := c.do(ctx, http.MethodPost, path, encoded)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && isConflict(statusErr) {
			return 0, fmt.Errorf("%w: %s", importer.ErrConflict, statusErr.Message)
		}
		return 0, err
	}

	var created createdRecord
	if err := json.Unmarshal(body, &created); err != nil {
		return 0, fmt.Errorf("decode %s response: %w", path, err)
	}
	return created.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	return body, nil
}

func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status >= 500 || statusErr.Status == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}

func isConflict(err *StatusError) bool {
	if err.Status == http.StatusConflict {
		return true
	}
	return err.Status == http.StatusBadRequest && strings.Contains(strings.ToLower(err.Message), "already exists")
}

// decodeList accepts a bare JSON array or an object wrapping it in "data".
func decodeList(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return err
		}
		trimmed = wrapped.Data
	}
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	return json.Unmarshal(trimmed, out)
}

// errorMessage extracts "message" from an error body. The backend sends it
// either as a string or as a list of validation messages.
func errorMessage(raw []byte) string {
	var body struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	var single string
	if err := json.Unmarshal(body.Message, &single); err == nil && single != "" {
		return single
	}
	var many []string
	if err := json.Unmarshal(body.Message, &many); err == nil && len(many) > 0 {
		return strings.Join(many, "; ")
	}
	return body.Error
}
