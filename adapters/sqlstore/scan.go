package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dataportal/domain/table"
)

// Layouts seen when timestamps come back as text (SQLite stores them as strings).
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func asString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []byte:
		return string(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case time.Time:
		return t.Format(time.RFC3339), true
	default:
		return fmt.Sprint(t), true
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case []byte:
		n, _ := strconv.ParseInt(string(t), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}

func asTime(v interface{}) time.Time {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t
	case int64:
		return time.Unix(t, 0).UTC()
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// toRow maps one scanned result row onto the domain row.
func toRow(columns []string, values []interface{}) table.Row {
	r := table.Row{Values: make(map[string]string, len(columns))}
	for i, col := range columns {
		v := values[i]
		switch col {
		case table.ColumnID:
			r.ID = asInt64(v)
		case table.ColumnPartition:
			r.Partition, _ = asString(v)
		case table.ColumnCreatedAt:
			r.CreatedAt = asTime(v)
		case table.ColumnUpdatedAt:
			r.UpdatedAt = asTime(v)
		default:
			if s, ok := asString(v); ok {
				r.Values[col] = s
			}
		}
	}
	return r
}
