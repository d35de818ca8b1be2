// Package tabular parses an uploaded spreadsheet buffer into a header row
// plus data rows keyed by header. It is a pure transform of bytes to
// structured rows: no side effects, no persistence.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// MaxFileSize bounds a single staged upload. Files above this are
	// rejected before any parsing starts.
	MaxFileSize = 20 * 1024 * 1024

	// DefaultPreviewCap is how many filtered rows a preview pass returns.
	DefaultPreviewCap = 100
)

var (
	ErrSizeLimit  = errors.New("file exceeds the 20 MB size limit")
	ErrEmptyFile  = errors.New("file is empty")
	ErrNoHeaders  = errors.New("no header row detected in file")
	ErrNotTabular = errors.New("file content is not tabular")
)

// Row is one data row keyed by the file's headers. Number is the 1-based
// position in the file, counting the header as row 1, so the first data
// row is 2. The number survives noise filtering, which keeps row-level
// error reports traceable back to the original spreadsheet.
type Row struct {
	Number int
	Cells  map[string]string
}

// Table is the parsed form of an uploaded file.
//
// TotalRows counts all data rows that survived the noise filter, before any
// preview cap. PreviewRows is how many rows were actually returned in Rows.
type Table struct {
	Fields      []string
	Rows        []Row
	TotalRows   int
	PreviewRows int
}

// Parse tabulates raw file bytes. previewCap bounds the returned rows;
// pass previewCap <= 0 to return the full filtered row set (commit mode).
//
// A row is dropped as noise when every cell except the first column is
// blank (section separators and footers common in exported spreadsheets),
// and also when the entire row, first column included, is blank.
func Parse(data []byte, previewCap int) (*Table, error) {
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w (got %d bytes)", ErrSizeLimit, len(data))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	if bytes.IndexByte(data, 0x00) >= 0 {
		return nil, fmt.Errorf("%w: binary content detected", ErrNotTabular)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("%w: %v", ErrNotTabular, err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	if allBlank(headers) {
		return nil, ErrNoHeaders
	}

	t := &Table{Fields: headers}
	rowNum := 1 // header row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrNotTabular, rowNum, err)
		}
		if isNoiseRow(record) {
			continue
		}
		t.TotalRows++
		if previewCap > 0 && len(t.Rows) >= previewCap {
			continue
		}
		cells := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				cells[h] = record[i]
			} else {
				cells[h] = ""
			}
		}
		t.Rows = append(t.Rows, Row{Number: rowNum, Cells: cells})
	}

	t.PreviewRows = len(t.Rows)
	return t, nil
}

// isNoiseRow reports whether a record carries no usable data: either fully
// blank, or populated only in the first column.
func isNoiseRow(record []string) bool {
	if len(record) <= 1 {
		return allBlank(record)
	}
	for i, cell := range record {
		if i == 0 {
			continue
		}
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter picks the separator by counting candidates in the header
// line. Exported spreadsheets commonly use ';' or '\t' instead of ','.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, cand := range []byte{';', '\t'} {
		if n := bytes.Count(line, []byte{cand}); n > bestCount {
			best, bestCount = rune(cand), n
		}
	}
	return best
}
