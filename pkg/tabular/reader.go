package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is a single data row with its 1-based position in the source file,
// header row excluded.
type Row struct {
	Number int
	Cells  []string
}

// Document is a parsed tabular source normalised to an ordered header row
// plus string-valued data rows, regardless of the container format.
type Document struct {
	Headers []string
	Rows    []Row
}

// Record maps the row's cells onto the document headers. Missing trailing
// cells map to empty strings.
func (d *Document) Record(row Row) map[string]string {
	record := make(map[string]string, len(d.Headers))
	for i, header := range d.Headers {
		if i < len(row.Cells) {
			record[header] = strings.TrimSpace(row.Cells[i])
		} else {
			record[header] = ""
		}
	}
	return record
}

// Read parses the source choosing the container format from the filename
// extension. CSV and XLSX are supported.
func Read(r io.Reader, filename string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ReadCSV(r)
	case ".xlsx":
		return ReadXLSX(r)
	default:
		return nil, fmt.Errorf("unsupported file format %q", filepath.Ext(filename))
	}
}

// ReadCSV parses a delimited-text source.
func ReadCSV(r io.Reader) (*Document, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromRecords(records), nil
}

// ReadXLSX parses the first sheet of a spreadsheet source.
func ReadXLSX(r io.Reader) (*Document, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}
	records, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	return fromRecords(records), nil
}

func fromRecords(records [][]string) *Document {
	doc := &Document{}
	if len(records) == 0 {
		return doc
	}

	headers := make([]string, len(records[0]))
	for i, cell := range records[0] {
		headers[i] = strings.TrimSpace(cell)
	}
	doc.Headers = headers

	for i, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		doc.Rows = append(doc.Rows, Row{Number: i + 1, Cells: record})
	}
	return doc
}

func isBlank(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
