// Package export renders tabular rows as CSV or XLSX downloads.
package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/deskflow/helpdesk/internal/csvcodec"
)

// Format is a download file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat returns FormatXLSX for "xlsx" and FormatCSV otherwise.
func ParseFormat(raw string) Format {
	if strings.EqualFold(strings.TrimSpace(raw), string(FormatXLSX)) {
		return FormatXLSX
	}
	return FormatCSV
}

// ContentType returns the MIME type sent with a file of format f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Render encodes rows in format f using columns for order and headers.
func Render(f Format, sheet string, rows []map[string]any, columns []csvcodec.Column) ([]byte, error) {
	if f == FormatXLSX {
		return renderXLSX(sheet, rows, columns)
	}
	return []byte(csvcodec.Encode(rows, columns)), nil
}

func renderXLSX(sheet string, rows []map[string]any, columns []csvcodec.Column) ([]byte, error) {
	book := excelize.NewFile()
	defer book.Close() //nolint:errcheck

	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := book.SetSheetName(book.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, col := range columns {
		header[i] = col.Header
	}
	if err := book.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for r, row := range rows {
		cells := make([]any, len(columns))
		for i, col := range columns {
			cells[i] = csvcodec.FormatValue(row[col.Key])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := book.SetSheetRow(sheet, cell, &cells); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	buf, err := book.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
