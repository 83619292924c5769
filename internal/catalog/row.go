// Package catalog provides the building blocks shared by every catalog object
// mapper: a tolerant row abstraction over metadata query results, the
// containers that own catalog objects, and the server version gates that
// decide which metadata columns exist.
package catalog

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is a single record of a catalog query. Every getter reports ok=false
// for a column that is absent from the row or holds NULL; neither case is an
// error.
type Row interface {
	String(column string) (string, bool)
	Int(column string) (int64, bool)
	Bool(column string, trueLiteral string) (bool, bool)
	Time(column string) (time.Time, bool)
}

// db2TimestampLayout is the character form DB2 uses for TIMESTAMP values.
const db2TimestampLayout = "2006-01-02-15.04.05.999999"

var timeLayouts = []string{
	time.RFC3339Nano,
	db2TimestampLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Record is a map-backed Row. Keys are stored upper-cased so lookups are
// case-insensitive, which matches how DB2 reports catalog column names.
type Record map[string]any

// NewRecord builds a Record from column/value pairs.
func NewRecord(values map[string]any) Record {
	r := make(Record, len(values))
	for k, v := range values {
		r.Set(k, v)
	}
	return r
}

// Set stores a column value.
func (r Record) Set(column string, value any) {
	r[strings.ToUpper(column)] = value
}

func (r Record) value(column string) (any, bool) {
	v, ok := r[strings.ToUpper(column)]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String returns the column as text.
func (r Record) String(column string) (string, bool) {
	v, ok := r.value(column)
	if !ok {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case time.Time:
		return x.Format(time.RFC3339Nano), true
	default:
		return fmt.Sprint(x), true
	}
}

// Int returns the column as an integer. Text that does not parse as a number
// is treated as NULL.
func (r Record) Int(column string) (int64, bool) {
	v, ok := r.value(column)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case float64:
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Bool returns true when the column equals trueLiteral (after trimming),
// mirroring the Y/N flag columns of the DB2 catalog. Native booleans and
// integers are accepted as well.
func (r Record) Bool(column string, trueLiteral string) (bool, bool) {
	v, ok := r.value(column)
	if !ok {
		return false, false
	}
	switch x := v.(type) {
	case bool:
		return x, true
	case int64:
		return x != 0, true
	case int:
		return x != 0, true
	}
	s, _ := r.String(column)
	return strings.EqualFold(strings.TrimSpace(s), trueLiteral), true
}

// Time returns the column as a timestamp. Unparseable text is treated as NULL.
func (r Record) Time(column string) (time.Time, bool) {
	v, ok := r.value(column)
	if !ok {
		return time.Time{}, false
	}
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return parseTime(x)
	case []byte:
		return parseTime(string(x))
	}
	return time.Time{}, false
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ScanRecords reads every remaining row of rows into Records keyed by the
// driver-reported column names. It does not close rows.
func ScanRecords(rows *sql.Rows) ([]Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var records []Record
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rec := make(Record, len(columns))
		for i, col := range columns {
			rec.Set(col, values[i])
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}
