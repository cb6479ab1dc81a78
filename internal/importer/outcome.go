package importer

import "time"

type ErrorKind string

const (
	KindParse      ErrorKind = "parse"
	KindStructural ErrorKind = "structural"
	KindValidation ErrorKind = "validation"
	KindResolution ErrorKind = "resolution"
	KindDuplicate  ErrorKind = "duplicate"
	KindConflict   ErrorKind = "conflict"
	KindSubmit     ErrorKind = "submit"
	KindDependent  ErrorKind = "dependent"
)

const (
	SeverityError = "error"
	SeverityWarn  = "warn"
	SeverityInfo  = "info"
)

const (
	ResultCreated     = "created"
	ResultWouldCreate = "would_create"
	ResultFailed      = "failed"
	ResultRejected    = "rejected"
)

// RowResult is one line of the per-row report. A row may carry more than one
// result, e.g. a created container plus a failed leasing attachment.
type RowResult struct {
	RowNumber int       `json:"rowNumber"`
	Key       string    `json:"key"`
	Severity  string    `json:"severity"`
	Result    string    `json:"result"`
	Kind      ErrorKind `json:"kind,omitempty"`
	Message   string    `json:"message"`
	RecordID  int       `json:"recordId,omitempty"`
}

// Outcome is the only artifact a run leaves behind. Every data row ends up
// counted in exactly one of Succeeded or Failed.
type Outcome struct {
	Category         Category          `json:"category"`
	Mode             Mode              `json:"mode"`
	Filename         string            `json:"filename"`
	Rejected         bool              `json:"rejected"`
	Succeeded        int               `json:"succeeded"`
	Failed           int               `json:"failed"`
	Errors           []string          `json:"errors"`
	Warnings         []string          `json:"warnings"`
	ValidationErrors []ValidationError `json:"validationErrors"`
	ParseErrors      []ParseError      `json:"parseErrors"`
	Rows             []RowResult       `json:"rows"`
	StartedAt        time.Time         `json:"startedAt"`
	CompletedAt      time.Time         `json:"completedAt"`
}

func (o Outcome) Total() int {
	return o.Succeeded + o.Failed
}

func (o Outcome) Status() string {
	if o.Rejected {
		return "rejected"
	}
	return "completed"
}

// Problems returns the error and warning rows in report order.
func (o Outcome) Problems() []RowResult {
	problems := make([]RowResult, 0, len(o.Rows))
	for _, row := range o.Rows {
		if row.Severity == SeverityError || row.Severity == SeverityWarn {
			problems = append(problems, row)
		}
	}
	return problems
}

func newOutcome(category Category, mode Mode, filename string, startedAt time.Time) Outcome {
	return Outcome{
		Category:         category,
		Mode:             mode,
		Filename:         filename,
		Errors:           []string{},
		Warnings:         []string{},
		ValidationErrors: []ValidationError{},
		ParseErrors:      []ParseError{},
		Rows:             []RowResult{},
		StartedAt:        startedAt,
	}
}

func (o *Outcome) rowError(row Row, kind ErrorKind, result, message string) {
	o.Errors = append(o.Errors, rowMessage(row.Number(), row.Key(), message))
	o.Rows = append(o.Rows, RowResult{
		RowNumber: row.Number(),
		Key:       row.Key(),
		Severity:  SeverityError,
		Result:    result,
		Kind:      kind,
		Message:   message,
	})
}

func (o *Outcome) rowWarning(row Row, result, message string) {
	o.Warnings = append(o.Warnings, rowMessage(row.Number(), row.Key(), message))
	o.Rows = append(o.Rows, RowResult{
		RowNumber: row.Number(),
		Key:       row.Key(),
		Severity:  SeverityWarn,
		Result:    result,
		Message:   message,
	})
}

func (o *Outcome) rowSuccess(row Row, result, message string, recordID int) {
	o.Rows = append(o.Rows, RowResult{
		RowNumber: row.Number(),
		Key:       row.Key(),
		Severity:  SeverityInfo,
		Result:    result,
		Message:   message,
		RecordID:  recordID,
	})
}

func rowMessage(number int, key, message string) string {
	return ValidationError{RowNumber: number, Entity: key, Message: message}.Error()
}
