package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LoadCSV reads a CSV file from disk.
func LoadCSV(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return ParseCSV(filepath.Base(path), data)
}

// ParseCSV parses comma separated data, falling back to semicolons when the
// header does not split on commas. Headers and cells are trimmed, blank
// lines and malformed rows are skipped.
func ParseCSV(name string, data []byte) (*Frame, error) {
	reader := newCSVReader(data, ',')
	headers, err := reader.Read()
	if err != nil || (len(headers) == 1 && strings.Contains(headers[0], ";")) {
		reader = newCSVReader(data, ';')
		headers, err = reader.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read headers: %w", err)
		}
	}

	for i, h := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := [][]string{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}
		blank := true
		for i, v := range record {
			record[i] = strings.TrimSpace(v)
			if record[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		rows = append(rows, record)
	}

	return &Frame{Name: name, Headers: headers, Rows: rows}, nil
}

func newCSVReader(data []byte, comma rune) *csv.Reader {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return reader
}
