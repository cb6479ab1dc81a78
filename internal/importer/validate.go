package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	maxWebsiteLength = 500
	minBuildYear     = 1900
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	containerKinds = map[string]string{
		"tank":         "Tank",
		"dry":          "Dry",
		"refrigerated": "Refrigerated",
	}
	companyStatuses = map[string]string{
		"active":   "Active",
		"inactive": "Inactive",
	}
)

// ValidationError is a row-level defect found before anything is submitted.
type ValidationError struct {
	RowNumber int    `json:"rowNumber"`
	Entity    string `json:"entity,omitempty"`
	Message   string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("Row %d: %s", e.RowNumber, e.Message)
	}
	return fmt.Sprintf("Row %d (%s): %s", e.RowNumber, e.Entity, e.Message)
}

// RowNumber converts a 0-based data index into the line a spreadsheet user
// sees: one for the header and one for 1-based counting.
func RowNumber(index int) int {
	return index + 2
}

// Validator checks rows without touching the network or any catalog.
type Validator struct {
	Now      func() time.Time
	Location *time.Location
	// DecimalComma reads "21,5" as 21.5 instead of rejecting it.
	DecimalComma bool
}

func NewValidator() Validator {
	return Validator{Now: time.Now, Location: time.Local}
}

// ValidateRow validates with the wall clock and local time zone.
func ValidateRow(category Category, index int, row RawRow) (Row, *ValidationError) {
	return NewValidator().Validate(category, index, row)
}

// Validate returns the typed row, or a single error carrying every defect of
// the row joined together. row must already be canonicalized.
func (v Validator) Validate(category Category, index int, row RawRow) (Row, *ValidationError) {
	c := &checker{row: row, category: category, loc: v.location(), decimalComma: v.DecimalComma}
	var typed Row
	switch category {
	case CategoryCompany:
		typed = c.company(index)
	case CategoryPort:
		typed = c.port(index)
	case CategoryContainer:
		typed = c.container(index, v.now())
	default:
		return nil, &ValidationError{RowNumber: RowNumber(index), Message: fmt.Sprintf("unknown category %q", category)}
	}
	if len(c.problems) > 0 {
		return nil, &ValidationError{
			RowNumber: RowNumber(index),
			Entity:    typed.Key(),
			Message:   strings.Join(c.problems, "; "),
		}
	}
	return typed, nil
}

func (v Validator) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}

func (v Validator) location() *time.Location {
	if v.Location == nil {
		return time.Local
	}
	return v.Location
}

type checker struct {
	row          RawRow
	category     Category
	loc          *time.Location
	decimalComma bool
	problems     []string
}

func (c *checker) label(field string) string {
	return Label(c.category, field)
}

func (c *checker) fail(format string, args ...any) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

func (c *checker) optional(field string) string {
	return c.row.Get(field)
}

func (c *checker) required(field string) string {
	value := c.row.Get(field)
	if value == "" {
		c.fail("%s is required", c.label(field))
	}
	return value
}

func (c *checker) number(field string, value string) *decimal.Decimal {
	if value == "" {
		return nil
	}
	parsed, err := parseDecimal(value, c.decimalComma)
	if err != nil {
		c.fail("%s %q must be a number", c.label(field), value)
		return nil
	}
	if parsed.IsNegative() {
		c.fail("%s %q must not be negative", c.label(field), value)
		return nil
	}
	return &parsed
}

func (c *checker) date(field string, value string) *time.Time {
	if value == "" {
		return nil
	}
	parsed, ok := ParseDateIn(value, c.loc)
	if !ok {
		c.fail("%s %q is not a valid date (use %s)", c.label(field), value, DateFormatsHint)
		return nil
	}
	return &parsed
}

func (c *checker) company(index int) CompanyRow {
	row := CompanyRow{
		RowNumber:     RowNumber(index),
		Name:          c.required(FieldCompanyName),
		BusinessType:  c.optional(FieldBusinessType),
		Address:       c.optional(FieldAddress),
		Country:       c.required(FieldCountry),
		Phone:         c.optional(FieldPhone),
		Email:         c.optional(FieldEmail),
		Website:       c.optional(FieldWebsite),
		CreditTerms:   c.optional(FieldCreditTerms),
		BusinessPorts: splitList(c.optional(FieldBusinessPorts)),
		Status:        "Active",
		Remarks:       c.optional(FieldRemarks),
	}

	if row.Email != "" && !emailPattern.MatchString(row.Email) {
		c.fail("%s %q is not a valid email address", c.label(FieldEmail), row.Email)
	}
	if len(row.Website) > maxWebsiteLength {
		c.fail("%s must be %d characters or fewer", c.label(FieldWebsite), maxWebsiteLength)
	}
	if raw := c.optional(FieldStatus); raw != "" {
		status, ok := companyStatuses[strings.ToLower(raw)]
		if !ok {
			c.fail("%s %q must be Active or Inactive", c.label(FieldStatus), raw)
		}
		row.Status = status
	}
	row.CreditLimit = c.number(FieldCreditLimit, c.optional(FieldCreditLimit))
	return row
}

func (c *checker) port(index int) PortRow {
	row := PortRow{
		RowNumber:  RowNumber(index),
		Code:       c.required(FieldPortCode),
		Name:       c.required(FieldPortName),
		LongName:   c.required(FieldPortLongName),
		ParentPort: c.optional(FieldParentPort),
		Country:    c.required(FieldCountry),
		Status:     "Active",
	}

	rawType := c.required(FieldPortType)
	switch strings.ToLower(rawType) {
	case "":
	case "main":
		row.Type = PortTypeMain
	case "icd":
		row.Type = PortTypeICD
	default:
		c.fail("%s %q must be Main or ICD", c.label(FieldPortType), rawType)
	}
	if row.Type == PortTypeICD && row.ParentPort == "" {
		c.fail("Parent Port is required for ICD port types")
	}
	if raw := c.optional(FieldStatus); raw != "" {
		status, ok := companyStatuses[strings.ToLower(raw)]
		if !ok {
			c.fail("%s %q must be Active or Inactive", c.label(FieldStatus), raw)
		}
		row.Status = status
	}
	return row
}

func (c *checker) container(index int, now time.Time) ContainerRow {
	row := ContainerRow{
		RowNumber:       RowNumber(index),
		ContainerNumber: strings.ToUpper(c.required(FieldContainerNumber)),
		Type:            c.required(FieldContainerType),
		Size:            c.required(FieldContainerSize),
		Class:           c.required(FieldContainerClass),
		CapacityUnit:    c.required(FieldCapacityUnit),
		Manufacturer:    c.required(FieldManufacturer),
		Lessor:          c.optional(FieldLessor),
		LeasingRefNo:    c.optional(FieldLeasingRefNo),
		OnHireLocation:  c.required(FieldOnHireLocation),
		OnHireDepot:     c.required(FieldOnHireDepot),
		InspectionDate:  c.optional(FieldInspectionDate),
		InspectionType:  c.optional(FieldInspectionType),
		NextDueDate:     c.optional(FieldNextDueDate),
		Certificate:     c.optional(FieldCertificate),
		ReportDate:      c.optional(FieldReportDate),
		ReportDocument:  c.optional(FieldReportDocument),
		Remarks:         c.optional(FieldRemarks),
	}

	if raw := c.required(FieldContainerCategory); raw != "" {
		kind, ok := containerKinds[strings.ToLower(raw)]
		if !ok {
			c.fail("%s %q must be one of Tank, Dry, Refrigerated", c.label(FieldContainerCategory), raw)
		}
		row.Kind = kind
	}

	if raw := c.required(FieldCapacity); raw != "" {
		if capacity := c.number(FieldCapacity, raw); capacity != nil {
			row.Capacity = *capacity
		}
	}

	maxYear := now.Year() + 1
	if raw := c.required(FieldBuildYear); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year < minBuildYear || year > maxYear {
			c.fail("%s %q must be a year between %d and %d", c.label(FieldBuildYear), raw, minBuildYear, maxYear)
		}
		row.BuildYear = year
	}

	row.GrossWeight = c.number(FieldGrossWeight, c.optional(FieldGrossWeight))
	row.TareWeight = c.number(FieldTareWeight, c.optional(FieldTareWeight))
	row.LeaseRentPerDay = c.number(FieldLeaseRentPerDay, c.optional(FieldLeaseRentPerDay))
	row.InitialSurvey = c.date(FieldInitialSurvey, c.optional(FieldInitialSurvey))

	if raw := c.required(FieldOnHireDate); raw != "" {
		if onHire := c.date(FieldOnHireDate, raw); onHire != nil {
			row.OnHireDate = *onHire
		}
	}

	if raw := c.required(FieldOwnership); raw != "" {
		switch strings.ToLower(raw) {
		case "own", "owned":
			row.Ownership = OwnershipOwn
		case "lease", "leased":
			row.Ownership = OwnershipLease
		default:
			c.fail("%s %q must be Own or Lease", c.label(FieldOwnership), raw)
		}
	}
	if row.Ownership == OwnershipLease && row.Lessor == "" {
		c.fail("%s is required when Ownership is Lease", c.label(FieldLessor))
	}
	return row
}

var (
	thousandsComma = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+(\.\d+)?$`)
	thousandsDot   = regexp.MustCompile(`^[-+]?\d{1,3}(\.\d{3})+(,\d+)?$`)
	commaFraction  = regexp.MustCompile(`^[-+]?\d+,\d+$`)
)

// parseDecimal accepts plain numbers and comma thousands groups ("21,000").
// With decimalComma it reads European forms ("21,5", "1.234,5") instead.
// Any other comma is an error rather than being dropped.
func parseDecimal(value string, decimalComma bool) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	switch {
	case decimalComma && thousandsDot.MatchString(cleaned):
		cleaned = strings.Replace(strings.ReplaceAll(cleaned, ".", ""), ",", ".", 1)
	case decimalComma && commaFraction.MatchString(cleaned):
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case !decimalComma && thousandsComma.MatchString(cleaned):
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	if strings.Contains(cleaned, ",") {
		return decimal.Decimal{}, fmt.Errorf("ambiguous separator in %q", value)
	}
	return decimal.NewFromString(cleaned)
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.FieldsFunc(value, func(r rune) bool { return r == ';' || r == '|' })
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
