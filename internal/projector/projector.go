// Package projector maps raw spreadsheet rows onto a canonical header.
package projector

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dataportal/domain/table"

	"github.com/shopspring/decimal"
)

// Project zips the cells of one row with the header. Values are trimmed,
// blank cells become NULL (absent from the map), cells beyond the header
// are ignored. ok is false when every projected value is blank.
func Project(raw []string, h table.Header) (values map[string]string, ok bool) {
	values = make(map[string]string, len(h))
	for _, col := range h {
		if col.Source < 0 || col.Source >= len(raw) {
			continue
		}
		if v := strings.TrimSpace(raw[col.Source]); v != "" {
			values[col.Name] = v
		}
	}
	if len(values) == 0 {
		return nil, false
	}
	return values, true
}

// ProjectAll projects every row and counts the blank ones it dropped.
func ProjectAll(rows [][]string, h table.Header) (out []map[string]string, skipped int) {
	out = make([]map[string]string, 0, len(rows))
	for _, raw := range rows {
		values, ok := Project(raw, h)
		if !ok {
			skipped++
			continue
		}
		out = append(out, values)
	}
	return out, skipped
}

// Stringify renders a scalar cell value as text. Nil is the empty string.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return decimal.NewFromFloat(t).String()
	case float32:
		return decimal.NewFromFloat32(t).String()
	case decimal.Decimal:
		return t.String()
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// StringifyMap applies Stringify to every value of a decoded record.
func StringifyMap(in map[string]interface{}) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = Stringify(v)
	}
	return out
}

// DetectWidth returns the highest 1-based column index holding a
// non-blank value within the first lookahead rows, capped at max.
// A lookahead or max of zero or less disables that bound.
func DetectWidth(rows [][]string, lookahead, max int) int {
	width := 0
	for i, row := range rows {
		if lookahead > 0 && i >= lookahead {
			break
		}
		for j := len(row) - 1; j >= width; j-- {
			if strings.TrimSpace(row[j]) != "" {
				width = j + 1
				break
			}
		}
	}
	if max > 0 && width > max {
		width = max
	}
	return width
}
