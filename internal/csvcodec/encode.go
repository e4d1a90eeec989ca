package csvcodec

import (
	"fmt"
	"strings"
	"time"
)

// Column maps a row key to the header text written for it.
type Column struct {
	Key    string
	Header string
}

// Encode writes a BOM, a header line and one "\n"-terminated line per row.
// Missing and nil values encode as empty fields.
func Encode(rows []map[string]any, columns []Column) string {
	var b strings.Builder
	b.WriteString(bom)

	for i, col := range columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(EscapeField(col.Header))
	}
	b.WriteByte('\n')

	for _, row := range rows {
		for i, col := range columns {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(EscapeField(FormatValue(row[col.Key])))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// EscapeField quotes s, doubling inner quotes, iff it contains a quote,
// comma, CR or LF.
func EscapeField(s string) string {
	if !strings.ContainsAny(s, "\",\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// FormatValue renders a cell value. Times use RFC 3339 in UTC.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.UTC().Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return ""
		}
		return FormatValue(*val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
