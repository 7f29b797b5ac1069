// Package normalize converts loosely typed provider rows into typed values.
//
// Providers emit numbers as strings, floats or json.Number and use several
// markers for missing data. Every coercer here returns "absent" (nil, an
// invalid NullDecimal or "") instead of failing, so one malformed cell never
// rejects the rest of the row.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Row is one raw record: provider column name to primitive value
type Row map[string]any

// Fields maps a logical field to its ordered candidate column names
type Fields map[string][]string

var missingMarkers = map[string]struct{}{
	"":     {},
	"-":    {},
	"--":   {},
	"nan":  {},
	"none": {},
	"null": {},
	"n/a":  {},
	"nat":  {},
}

// Lookup returns the value of the first alias present in row with a
// non-nil value.
func Lookup(row Row, aliases ...string) (any, bool) {
	for _, alias := range aliases {
		if v, ok := row[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func isMissing(s string) bool {
	_, ok := missingMarkers[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// toFloat converts a primitive into a finite float64
func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		if isMissing(x) {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(x), ",", ""), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Float returns the first alias as float64, or nil when absent or malformed
func Float(row Row, aliases ...string) *float64 {
	v, ok := Lookup(row, aliases...)
	if !ok {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

// Int returns the first alias as int64. Values go through float64 so that
// "1200.0" yields 1200; fractions are truncated.
func Int(row Row, aliases ...string) *int64 {
	f := Float(row, aliases...)
	if f == nil || *f > math.MaxInt64 || *f < math.MinInt64 {
		return nil
	}
	n := int64(*f)
	return &n
}

// Decimal returns the first alias as a decimal. Strings are parsed directly
// to keep their precision.
func Decimal(row Row, aliases ...string) decimal.NullDecimal {
	v, ok := Lookup(row, aliases...)
	if !ok {
		return decimal.NullDecimal{}
	}
	var raw string
	switch x := v.(type) {
	case string:
		raw = strings.ReplaceAll(strings.TrimSpace(x), ",", "")
	case json.Number:
		raw = x.String()
	}
	if raw != "" && !isMissing(raw) {
		if d, err := decimal.NewFromString(raw); err == nil {
			return decimal.NullDecimal{Decimal: d, Valid: true}
		}
	}
	f, ok := toFloat(v)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(f), Valid: true}
}

// String returns the first alias as trimmed text. Numbers are rendered
// without exponent; missing markers become "".
func String(row Row, aliases ...string) string {
	v, ok := Lookup(row, aliases...)
	if !ok {
		return ""
	}
	var s string
	switch x := v.(type) {
	case string:
		s = strings.TrimSpace(x)
	case json.Number:
		s = x.String()
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = strings.TrimSpace(fmt.Sprint(x))
	}
	if isMissing(s) {
		return ""
	}
	return s
}

var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
}

// Time parses the first alias as a timestamp in loc. Numeric values are
// epoch milliseconds.
func Time(row Row, loc *time.Location, aliases ...string) (time.Time, bool) {
	v, ok := Lookup(row, aliases...)
	if !ok {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	if s, isString := v.(string); isString {
		s = strings.TrimSpace(s)
		if isMissing(s) {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	n, ok := toFloat(v)
	if !ok || n <= 0 {
		return time.Time{}, false
	}
	// eight-digit numbers are YYYYMMDD, anything else is epoch milliseconds
	if n == math.Trunc(n) && n >= 10000101 && n <= 99991231 {
		if t, err := time.ParseInLocation("20060102", strconv.FormatInt(int64(n), 10), loc); err == nil {
			return t, true
		}
	}
	return time.UnixMilli(int64(n)).In(loc), true
}

// Date returns the first alias as YYYY-MM-DD, or "" when absent
func Date(row Row, aliases ...string) string {
	t, ok := Time(row, time.UTC, aliases...)
	if !ok {
		return ""
	}
	return t.Format("2006-01-02")
}

// DateTime returns the first alias as "YYYY-MM-DD HH:MM:SS", or ""
func DateTime(row Row, aliases ...string) string {
	t, ok := Time(row, time.UTC, aliases...)
	if !ok {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func (f Fields) aliases(field string) []string {
	if names, ok := f[field]; ok {
		return names
	}
	return []string{field}
}

// Float resolves field through the alias table
func (f Fields) Float(row Row, field string) *float64 { return Float(row, f.aliases(field)...) }

// Int resolves field through the alias table
func (f Fields) Int(row Row, field string) *int64 { return Int(row, f.aliases(field)...) }

// Decimal resolves field through the alias table
func (f Fields) Decimal(row Row, field string) decimal.NullDecimal {
	return Decimal(row, f.aliases(field)...)
}

// String resolves field through the alias table
func (f Fields) String(row Row, field string) string { return String(row, f.aliases(field)...) }

// Date resolves field through the alias table
func (f Fields) Date(row Row, field string) string { return Date(row, f.aliases(field)...) }
