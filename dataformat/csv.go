package dataformat

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// CSV implements core.CSVService on encoding/csv.
type CSV struct{}

// Parse splits doc into rows. Rows may have differing field counts; a zero
// delim means comma.
func (CSV) Parse(doc string, delim rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(doc))
	if delim != 0 {
		r.Comma = delim
	}
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

// Stringify encodes rows back into CSV text. A zero delim means comma.
func (CSV) Stringify(rows [][]string, delim rune) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if delim != 0 {
		w.Comma = delim
	}
	_ = w.WriteAll(rows) // strings.Builder never errors
	w.Flush()
	return b.String()
}
