package importer

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ParseWorkbook reads the first sheet of an .xlsx upload into the same table
// shape as ParseDelimited. Spreadsheet row numbers become line numbers.
func ParseWorkbook(content []byte) (Table, []ParseError) {
	book, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return Table{}, []ParseError{{Message: fmt.Sprintf("unable to open workbook: %v", err)}}
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, []ParseError{{Message: errNoData}}
	}

	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return Table{}, []ParseError{{Message: fmt.Sprintf("unable to read sheet %q: %v", sheets[0], err)}}
	}

	records := make([][]string, 0, len(rows))
	lines := make([]int, 0, len(rows))
	for i, row := range rows {
		if len(records) == 0 && isBlankRecord(row) {
			continue
		}
		records = append(records, row)
		lines = append(lines, i+1)
	}
	return buildTable(records, lines)
}
