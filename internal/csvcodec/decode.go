// Package csvcodec reads and writes the spreadsheet-flavoured CSV used by
// ticket and contact import/export.
package csvcodec

import (
	"strings"
	"unicode"
)

const bom = "\uFEFF"

// Record is one data row keyed by header text.
type Record map[string]string

// Tokenize splits text into rows of fields. Quoted fields keep commas,
// quotes ("" -> ") and line breaks verbatim; whitespace outside quotes is
// trimmed. Rows whose fields are all blank and unquoted are dropped.
func Tokenize(text string) [][]string {
	text = strings.TrimPrefix(text, bom)

	var (
		rows     [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
		// byte offsets into field marking the quoted span, -1 when unquoted
		quoteStart = -1
		quoteEnd   = -1
		rowQuoted  bool
	)

	endField := func() {
		row = append(row, trimOutsideQuotes(field.String(), quoteStart, quoteEnd))
		field.Reset()
		quoteStart, quoteEnd = -1, -1
	}
	endRow := func() {
		endField()
		if rowQuoted || !allBlank(row) {
			rows = append(rows, row)
		}
		row = nil
		rowQuoted = false
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if inQuotes {
			if ch == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					field.WriteRune('"')
					i++
					continue
				}
				inQuotes = false
				quoteEnd = field.Len()
				continue
			}
			field.WriteRune(ch)
			continue
		}

		switch ch {
		case '"':
			inQuotes = true
			rowQuoted = true
			if quoteStart < 0 {
				quoteStart = field.Len()
			}
		case ',':
			endField()
		case '\r', '\n':
			if ch == '\r' && i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			endRow()
		default:
			field.WriteRune(ch)
		}
	}
	if inQuotes {
		quoteEnd = field.Len()
	}
	if field.Len() > 0 || len(row) > 0 || rowQuoted {
		endRow()
	}
	return rows
}

// Decode tokenizes text and zips each data row against the header row.
// It returns nil unless a header and at least one data row are present.
// Missing trailing fields default to "" and surplus fields are ignored.
func Decode(text string) []Record {
	rows := Tokenize(text)
	if len(rows) < 2 {
		return nil
	}
	headers := rows[0]
	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(Record, len(headers))
		for i, header := range headers {
			if i < len(row) {
				rec[header] = row[i]
			} else {
				rec[header] = ""
			}
		}
		records = append(records, rec)
	}
	return records
}

func trimOutsideQuotes(s string, start, end int) string {
	if start < 0 {
		return strings.TrimSpace(s)
	}
	if end < start {
		end = len(s)
	}
	return strings.TrimLeftFunc(s[:start], unicode.IsSpace) +
		s[start:end] +
		strings.TrimRightFunc(s[end:], unicode.IsSpace)
}

func allBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
