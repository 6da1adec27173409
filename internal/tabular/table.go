// Package tabular reads and writes the CSV-like tables the pipeline consumes,
// and transcodes spreadsheet/JSON uploads into CSV.
package tabular

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Table is a header plus string rows. Rows shorter than the header are
// padded on read so every row has len(Header) cells.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string

	index map[string]int
}

// New builds a table and its column index.
func New(name string, header []string, rows [][]string) *Table {
	t := &Table{Name: name, Header: header, Rows: rows}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		h = strings.TrimSpace(h)
		t.Header[i] = h
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Has reports whether every named column exists (case-sensitive).
func (t *Table) Has(cols ...string) bool {
	if t == nil {
		return false
	}
	for _, c := range cols {
		if _, ok := t.index[c]; !ok {
			return false
		}
	}
	return true
}

// Col returns the index of a column or -1.
func (t *Table) Col(name string) int {
	if t == nil {
		return -1
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Missing returns the subset of cols absent from the table.
func (t *Table) Missing(cols ...string) []string {
	var out []string
	for _, c := range cols {
		if t.Col(c) < 0 {
			out = append(out, c)
		}
	}
	return out
}

// String returns the trimmed cell value, or "" when the column is absent.
func (t *Table) String(row int, col string) string {
	i := t.Col(col)
	if i < 0 || i >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][i])
}

// Float parses a numeric cell; absent or unparseable cells yield NaN.
func (t *Table) Float(row int, col string) float64 {
	v := t.String(row, col)
	if v == "" {
		return math.NaN()
	}
	f, ok := ParseNumeric(v)
	if !ok {
		return math.NaN()
	}
	return f
}

// Int parses an integer-valued cell (accepting "12.0").
func (t *Table) Int(row int, col string) (int64, bool) {
	v := t.String(row, col)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, true
	}
	f, ok := ParseNumeric(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// Time parses a timestamp cell.
func (t *Table) Time(row int, col string) (time.Time, bool) {
	return ParseTime(t.String(row, col))
}

// ParseTime tries the timestamp layouts seen in uploads. Slash dates are
// read month-first. Values without a zone are interpreted as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339Nano, time.RFC3339, "2006-01-02", "2006/01/02",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999",
		"01/02/2006", "1/2/2006", "1/2/06", "1/2/2006 15:04", "1/2/2006 15:04:05",
		// day-first only when month-first cannot apply, e.g. 25/12/2024
		"02/01/2006",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	// spreadsheet exports keep dates as serial day numbers
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= excelSerialMin && f < excelSerialMax {
		days := math.Floor(f)
		frac := f - days
		t := excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(frac * float64(24*time.Hour)))
		return t, true
	}
	return time.Time{}, false
}

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const (
	excelSerialMin = 20000 // 1954-10-03
	excelSerialMax = 80000 // 2119-01-10
)

// ParseNumeric parses numbers written with either decimal convention,
// optional thousands separators and a trailing percent sign.
func ParseNumeric(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, true
	}
	// auto detect decimal separator: the right-most of ',' and '.' wins
	dec := '.'
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	if cpos > dpos {
		dec = ','
	}
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
