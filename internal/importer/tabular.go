package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const maxParseErrors = 100

const errNoData = "file is empty or contains no valid data"

// RawRow is one data line of an uploaded file. Cells are keyed by header as
// read from the file until Canonical rewrites them to field names.
type RawRow struct {
	Line  int
	Cells map[string]string
}

type Table struct {
	Headers []string
	Rows    []RawRow
	// DecimalComma is set for semicolon-delimited exports, whose numbers use
	// a comma as the decimal separator.
	DecimalComma bool
}

type ParseError struct {
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (e ParseError) String() string {
	if e.Line <= 0 {
		return e.Message
	}
	return fmt.Sprintf("Line %d: %s", e.Line, e.Message)
}

// Get returns the trimmed cell value for key.
func (r RawRow) Get(key string) string {
	return strings.TrimSpace(r.Cells[key])
}

// Canonical rewrites headers and cell keys through the category's alias map.
// When two columns map to the same field the leftmost non-empty value wins.
func (t Table) Canonical(category Category) Table {
	headers := make([]string, len(t.Headers))
	for i, header := range t.Headers {
		headers[i] = Canonicalize(category, header)
	}

	rows := make([]RawRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		cells := make(map[string]string, len(row.Cells))
		for i, header := range t.Headers {
			key := headers[i]
			if existing, ok := cells[key]; ok && existing != "" {
				continue
			}
			cells[key] = row.Cells[header]
		}
		rows = append(rows, RawRow{Line: row.Line, Cells: cells})
	}
	return Table{Headers: headers, Rows: rows, DecimalComma: t.DecimalComma}
}

// ParseUpload dispatches on the file extension. Anything that is not a
// workbook is treated as delimited text.
func ParseUpload(filename string, content []byte) (Table, []ParseError) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ParseWorkbook(content)
	case ".xls":
		return Table{}, []ParseError{{Message: "legacy .xls workbooks are not supported; save the sheet as .xlsx or .csv"}}
	default:
		return ParseDelimited(content)
	}
}

func ParseDelimited(content []byte) (Table, []ParseError) {
	data := decodeText(content)
	if len(bytes.TrimSpace(data)) == 0 {
		return Table{}, []ParseError{{Message: errNoData}}
	}

	delimiter := detectDelimiter(data)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		records [][]string
		lines   []int
		errs    []ParseError
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				errs = append(errs, ParseError{Line: parseErr.Line, Message: parseErr.Err.Error()})
				if len(errs) >= maxParseErrors {
					break
				}
				continue
			}
			errs = append(errs, ParseError{Message: err.Error()})
			break
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}

	table, tableErrs := buildTable(records, lines)
	table.DecimalComma = delimiter == ';'
	return table, append(errs, tableErrs...)
}

func buildTable(records [][]string, lines []int) (Table, []ParseError) {
	if len(records) == 0 {
		return Table{}, []ParseError{{Message: errNoData}}
	}

	headers := normalizeHeaderRow(records[0])
	table := Table{Headers: headers}
	var errs []ParseError

	for i, record := range records[1:] {
		line := lines[i+1]
		if isBlankRecord(record) {
			continue
		}
		if extra := nonEmptyBeyond(record, len(headers)); extra > 0 {
			errs = append(errs, ParseError{
				Line:    line,
				Message: fmt.Sprintf("too many fields: expected %d but found %d", len(headers), len(headers)+extra),
			})
			continue
		}

		cells := make(map[string]string, len(headers))
		for col, header := range headers {
			value := ""
			if col < len(record) {
				value = strings.TrimSpace(record[col])
			}
			if existing, ok := cells[header]; ok && existing != "" {
				continue
			}
			cells[header] = value
		}
		table.Rows = append(table.Rows, RawRow{Line: line, Cells: cells})
	}

	if len(table.Rows) == 0 && len(errs) == 0 {
		return table, []ParseError{{Message: errNoData}}
	}
	return table, errs
}

func normalizeHeaderRow(row []string) []string {
	headers := make([]string, len(row))
	for i, col := range row {
		trimmed := strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if trimmed == "" {
			trimmed = fmt.Sprintf("column_%d", i+1)
		}
		headers[i] = trimmed
	}
	return headers
}

func isBlankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// nonEmptyBeyond counts the populated fields past the header width. Trailing
// empty cells are common in spreadsheet exports and are ignored.
func nonEmptyBeyond(record []string, width int) int {
	if len(record) <= width {
		return 0
	}
	for i := len(record) - 1; i >= width; i-- {
		if strings.TrimSpace(record[i]) != "" {
			return i - width + 1
		}
	}
	return 0
}

func detectDelimiter(data []byte) rune {
	firstLine := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		firstLine = data[:idx]
	}
	best, bestCount := ',', bytes.Count(firstLine, []byte{','})
	for _, candidate := range []rune{';', '\t'} {
		if count := bytes.Count(firstLine, []byte(string(candidate))); count > bestCount {
			best, bestCount = candidate, count
		}
	}
	return best
}

// decodeText strips a UTF-8 BOM and recovers Windows-1252 exports, which is
// what spreadsheet tools on Windows produce when saving "CSV" without UTF-8.
func decodeText(content []byte) []byte {
	data := bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return data
	}
	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil || !utf8.Valid(decoded) {
		return data
	}
	return decoded
}
