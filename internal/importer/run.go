package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

var ErrRunStarted = errors.New("import run already started")

type Mode string

const (
	ModeApply        Mode = "apply"
	ModeDryRun       Mode = "dry_run"
	ModeValidateOnly Mode = "validate"
)

func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeApply:
		return ModeApply, nil
	case ModeDryRun, "dryrun", "dry-run":
		return ModeDryRun, nil
	case ModeValidateOnly:
		return ModeValidateOnly, nil
	default:
		return "", fmt.Errorf("unknown import mode %q", value)
	}
}

type State string

const (
	StateIdle       State = "idle"
	StateParsing    State = "parsing"
	StateValidating State = "validating"
	StateRejected   State = "rejected"
	StateSubmitting State = "submitting"
	StateCompleted  State = "completed"
)

var transitions = map[State][]State{
	StateIdle:       {StateParsing},
	StateParsing:    {StateValidating, StateRejected},
	StateValidating: {StateSubmitting, StateRejected, StateCompleted},
	StateSubmitting: {StateCompleted, StateRejected},
	StateRejected:   {StateCompleted},
}

// Upload is a file as received from the user.
type Upload struct {
	Name    string
	Content []byte
}

type Deps struct {
	Source Source
	Writer Writer
}

type Option func(*Run)

func WithMode(mode Mode) Option {
	return func(r *Run) { r.mode = mode }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Run) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Run) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(r *Run) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithMaxRows rejects files with more data rows than limit. Zero disables
// the check.
func WithMaxRows(limit int) Option {
	return func(r *Run) { r.maxRows = limit }
}

// Run is a single import of one uploaded file. A Run executes once; every
// upload gets a fresh one.
type Run struct {
	category Category
	deps     Deps
	mode     Mode
	logger   *slog.Logger
	now      func() time.Time
	loc      *time.Location
	maxRows  int

	state   State
	outcome Outcome
}

func NewRun(category Category, deps Deps, opts ...Option) (*Run, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	r := &Run{
		category: category,
		deps:     deps,
		mode:     ModeApply,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		loc:      time.Local,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.mode != ModeValidateOnly && (deps.Source == nil || deps.Writer == nil) {
		return nil, errors.New("import run needs a source and a writer")
	}
	return r, nil
}

func (r *Run) State() State {
	return r.state
}

func (r *Run) transition(next State) {
	for _, allowed := range transitions[r.state] {
		if allowed == next {
			r.state = next
			return
		}
	}
	panic(fmt.Sprintf("importer: illegal transition %s -> %s", r.state, next))
}

// Execute drives the file through parsing, validation and submission. Row
// failures are reported in the Outcome; the error is only for misuse.
func (r *Run) Execute(ctx context.Context, upload Upload) (Outcome, error) {
	if r.state != StateIdle {
		return Outcome{}, ErrRunStarted
	}
	r.outcome = newOutcome(r.category, r.mode, upload.Name, r.now())
	r.logger.Info("import_started", "category", r.category, "mode", r.mode, "filename", upload.Name, "bytes", len(upload.Content))

	r.transition(StateParsing)
	table, ok := r.parse(upload)
	if !ok {
		return r.finish(), nil
	}

	r.transition(StateValidating)
	rows, ok := r.validate(table)
	if !ok {
		return r.finish(), nil
	}
	if r.mode == ModeValidateOnly {
		r.outcome.Succeeded = len(rows)
		r.transition(StateCompleted)
		return r.finish(), nil
	}

	r.transition(StateSubmitting)
	catalog, err := LoadCatalog(ctx, r.deps.Source, r.category)
	if err != nil {
		r.reject(KindStructural, fmt.Sprintf("unable to load reference data: %v", err), len(rows))
		return r.finish(), nil
	}

	keys := NewKeyIndex(catalog.ExistingKeys(r.category))
	for _, row := range rows {
		r.submitRow(ctx, catalog, keys, row)
	}
	r.transition(StateCompleted)
	return r.finish(), nil
}

func (r *Run) parse(upload Upload) (Table, bool) {
	table, parseErrs := ParseUpload(upload.Name, upload.Content)
	if len(parseErrs) > 0 {
		r.outcome.ParseErrors = parseErrs
		for _, parseErr := range parseErrs {
			r.outcome.Errors = append(r.outcome.Errors, parseErr.String())
		}
		r.outcome.Rejected = true
		r.outcome.Failed = len(table.Rows)
		r.transition(StateRejected)
		return Table{}, false
	}
	return table.Canonical(r.category), true
}

func (r *Run) validate(table Table) ([]Row, bool) {
	if missing := MissingHeaders(r.category, table.Headers); len(missing) > 0 {
		r.reject(KindStructural, "missing required headers: "+strings.Join(missing, ", "), len(table.Rows))
		return nil, false
	}
	if r.maxRows > 0 && len(table.Rows) > r.maxRows {
		r.reject(KindStructural, fmt.Sprintf("file has %d data rows; the limit is %d", len(table.Rows), r.maxRows), len(table.Rows))
		return nil, false
	}

	validator := Validator{Now: r.now, Location: r.loc, DecimalComma: table.DecimalComma}
	rows := make([]Row, 0, len(table.Rows))
	for i, raw := range table.Rows {
		row, verr := validator.Validate(r.category, i, raw)
		if verr != nil {
			r.outcome.ValidationErrors = append(r.outcome.ValidationErrors, *verr)
			r.outcome.Errors = append(r.outcome.Errors, verr.Error())
			r.outcome.Rows = append(r.outcome.Rows, RowResult{
				RowNumber: verr.RowNumber,
				Key:       verr.Entity,
				Severity:  SeverityError,
				Result:    ResultRejected,
				Kind:      KindValidation,
				Message:   verr.Message,
			})
			continue
		}
		rows = append(rows, row)
	}

	if len(r.outcome.ValidationErrors) > 0 {
		r.outcome.Rejected = true
		r.outcome.Failed = len(table.Rows)
		r.logger.Warn("import_rejected", "category", r.category, "validation_errors", len(r.outcome.ValidationErrors))
		r.transition(StateRejected)
		return nil, false
	}
	return rows, true
}

func (r *Run) reject(kind ErrorKind, message string, rowCount int) {
	r.outcome.Rejected = true
	r.outcome.Failed = rowCount
	r.outcome.Errors = append(r.outcome.Errors, message)
	r.logger.Warn("import_rejected", "category", r.category, "kind", kind, "error", message)
	r.transition(StateRejected)
}

func (r *Run) finish() Outcome {
	if r.state == StateRejected {
		r.transition(StateCompleted)
	}
	r.outcome.CompletedAt = r.now()
	r.logger.Info("import_completed",
		"category", r.category,
		"mode", r.mode,
		"status", r.outcome.Status(),
		"succeeded", r.outcome.Succeeded,
		"failed", r.outcome.Failed,
	)
	return r.outcome
}

// submitRow runs resolve, duplicate check, build and create for one row.
// Nothing here stops the loop.
func (r *Run) submitRow(ctx context.Context, catalog Catalog, keys *KeyIndex, row Row) {
	var err error
	switch typed := row.(type) {
	case CompanyRow:
		err = r.submitCompany(ctx, catalog, keys, typed)
	case PortRow:
		err = r.submitPort(ctx, catalog, keys, typed)
	case ContainerRow:
		err = r.submitContainer(ctx, catalog, keys, typed)
	default:
		err = rowFailure{kind: KindSubmit, message: fmt.Sprintf("unsupported row type %T", row)}
	}
	if err == nil {
		r.outcome.Succeeded++
		return
	}

	failure := asRowFailure(err)
	r.outcome.Failed++
	r.outcome.rowError(row, failure.kind, ResultFailed, failure.message)
	r.logger.Warn("import_row_failed",
		"category", r.category,
		"row", row.Number(),
		"key", row.Key(),
		"kind", failure.kind,
		"error", failure.message,
	)
}

func (r *Run) submitCompany(ctx context.Context, catalog Catalog, keys *KeyIndex, row CompanyRow) error {
	refs, err := catalog.ResolveCompany(row)
	if err != nil {
		return rowFailure{kind: KindResolution, message: err.Error()}
	}
	if err := r.checkDuplicate(keys, row); err != nil {
		return err
	}
	payload := BuildCompany(row, refs)
	return r.create(row, keys, func() (int, error) {
		return r.deps.Writer.CreateCompany(ctx, payload)
	})
}

func (r *Run) submitPort(ctx context.Context, catalog Catalog, keys *KeyIndex, row PortRow) error {
	refs, err := catalog.ResolvePort(row)
	if err != nil {
		return rowFailure{kind: KindResolution, message: err.Error()}
	}
	if err := r.checkDuplicate(keys, row); err != nil {
		return err
	}
	payload := BuildPort(row, refs)
	return r.create(row, keys, func() (int, error) {
		return r.deps.Writer.CreatePort(ctx, payload)
	})
}

func (r *Run) submitContainer(ctx context.Context, catalog Catalog, keys *KeyIndex, row ContainerRow) error {
	refs, err := catalog.ResolveContainer(row)
	if err != nil {
		return rowFailure{kind: KindResolution, message: err.Error()}
	}
	if err := r.checkDuplicate(keys, row); err != nil {
		return err
	}
	plan, warnings := BuildContainerIn(row, refs, r.loc)

	var inventoryID int
	err = r.create(row, keys, func() (int, error) {
		id, err := r.deps.Writer.CreateInventory(ctx, plan.Inventory)
		inventoryID = id
		return id, err
	})
	if err != nil {
		return err
	}
	for _, warning := range warnings {
		r.outcome.rowWarning(row, r.successResult(), warning)
	}
	if plan.Leasing == nil || r.mode == ModeDryRun {
		return nil
	}

	leasing := *plan.Leasing
	leasing.InventoryID = inventoryID
	if _, err := r.deps.Writer.CreateLeasingInfo(ctx, leasing); err != nil {
		message := fmt.Sprintf("container created, but leasing info failed to attach: %v", err)
		r.outcome.rowError(row, KindDependent, ResultCreated, message)
		r.logger.Warn("import_dependent_failed", "row", row.Number(), "key", row.Key(), "inventory_id", inventoryID, "error", err)
	}
	return nil
}

func (r *Run) checkDuplicate(keys *KeyIndex, row Row) error {
	if !keys.Contains(row.Key()) {
		return nil
	}
	return rowFailure{
		kind:    KindDuplicate,
		message: fmt.Sprintf("%s %q already exists", r.category.EntityLabel(), row.Key()),
	}
}

// create performs the write, or only records it in dry-run mode. Either way
// the key is claimed so later rows of the file see it.
func (r *Run) create(row Row, keys *KeyIndex, write func() (int, error)) error {
	if r.mode == ModeDryRun {
		keys.Add(0, row.Key())
		r.outcome.rowSuccess(row, r.successResult(), fmt.Sprintf("%s would be created", r.category.EntityLabel()), 0)
		return nil
	}

	id, err := write()
	if err != nil {
		if errors.Is(err, ErrConflict) {
			keys.Add(0, row.Key())
			return rowFailure{
				kind:    KindConflict,
				message: fmt.Sprintf("%s %q already exists on the server", r.category.EntityLabel(), row.Key()),
			}
		}
		return rowFailure{
			kind:    KindSubmit,
			message: fmt.Sprintf("failed to create %s: %v", strings.ToLower(r.category.EntityLabel()), err),
		}
	}
	keys.Add(id, row.Key())
	r.outcome.rowSuccess(row, r.successResult(), fmt.Sprintf("%s created", r.category.EntityLabel()), id)
	return nil
}

func (r *Run) successResult() string {
	if r.mode == ModeDryRun {
		return ResultWouldCreate
	}
	return ResultCreated
}

type rowFailure struct {
	kind    ErrorKind
	message string
}

func (f rowFailure) Error() string {
	return f.message
}

func asRowFailure(err error) rowFailure {
	var failure rowFailure
	if errors.As(err, &failure) {
		return failure
	}
	return rowFailure{kind: KindSubmit, message: err.Error()}
}
