package importer

import (
	"bytes"
	"encoding/csv"
)

// Template renders a header-only CSV for category.
func Template(category Category) ([]byte, error) {
	if !category.Valid() {
		return nil, ErrUnknownCategory
	}
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(TemplateHeaders(category)); err != nil {
		return nil, err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
