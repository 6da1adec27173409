package tabular

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// ReadJSON loads a JSON table. Two layouts are accepted:
//   - records: [{"col": v, ...}, ...]
//   - columns: {"col": {"0": v, "1": v}, ...} or {"col": [v, v], ...}
//
// Column order follows first appearance in the document.
func ReadJSON(p string) (*Table, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	name := filepath.Base(p)
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("json %s: empty document", name)
	}
	switch b[0] {
	case '[':
		return readJSONRecords(b, name)
	case '{':
		return readJSONColumns(b, name)
	}
	return nil, fmt.Errorf("json %s: expected array or object at top level", name)
}

type columnOrder struct {
	names []string
	seen  map[string]int
}

func (c *columnOrder) add(k string) int {
	if c.seen == nil {
		c.seen = map[string]int{}
	}
	if i, ok := c.seen[k]; ok {
		return i
	}
	c.seen[k] = len(c.names)
	c.names = append(c.names, k)
	return len(c.names) - 1
}

func readJSONRecords(b []byte, name string) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil { // [
		return nil, fmt.Errorf("json %s: %w", name, err)
	}
	var cols columnOrder
	var recs []map[int]string
	for dec.More() {
		keys, vals, err := decodeObject(dec)
		if err != nil {
			return nil, fmt.Errorf("json %s record %d: %w", name, len(recs)+1, err)
		}
		rec := make(map[int]string, len(keys))
		for i, k := range keys {
			rec[cols.add(k)] = vals[i]
		}
		recs = append(recs, rec)
	}
	rows := make([][]string, len(recs))
	for i, rec := range recs {
		row := make([]string, len(cols.names))
		for j, v := range rec {
			row[j] = v
		}
		rows[i] = row
	}
	return New(name, cols.names, rows), nil
}

// decodeObject reads one JSON object keeping key order; values are rendered
// as cell strings.
func decodeObject(dec *json.Decoder) ([]string, []string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}
	var keys, vals []string
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := kt.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		vals = append(vals, cellString(raw))
	}
	if _, err := dec.Token(); err != nil { // }
		return nil, nil, err
	}
	return keys, vals, nil
}

func cellString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

func readJSONColumns(b []byte, name string) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	colNames, colVals, err := decodeObjectRaw(dec)
	if err != nil {
		return nil, fmt.Errorf("json %s: %w", name, err)
	}
	// each column is either an index->value object or an array
	type column map[int]string
	columns := make([]column, len(colNames))
	nrows := 0
	for i, raw := range colVals {
		col := column{}
		raw = bytes.TrimSpace(raw)
		switch {
		case len(raw) > 0 && raw[0] == '[':
			var arr []json.RawMessage
			if err := json.Unmarshal(raw, &arr); err != nil {
				return nil, fmt.Errorf("json %s column %q: %w", name, colNames[i], err)
			}
			for j, v := range arr {
				col[j] = cellString(v)
			}
		case len(raw) > 0 && raw[0] == '{':
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(raw, &obj); err != nil {
				return nil, fmt.Errorf("json %s column %q: %w", name, colNames[i], err)
			}
			idxs := make([]int, 0, len(obj))
			byIdx := map[int]json.RawMessage{}
			for k, v := range obj {
				n, err := strconv.Atoi(k)
				if err != nil {
					return nil, fmt.Errorf("json %s column %q: non-numeric row key %q", name, colNames[i], k)
				}
				idxs = append(idxs, n)
				byIdx[n] = v
			}
			sort.Ints(idxs)
			for j, n := range idxs {
				col[j] = cellString(byIdx[n])
			}
		default:
			return nil, fmt.Errorf("json %s column %q: expected array or object", name, colNames[i])
		}
		if len(col) > nrows {
			nrows = len(col)
		}
		columns[i] = col
	}
	rows := make([][]string, nrows)
	for r := range rows {
		row := make([]string, len(colNames))
		for c := range columns {
			row[c] = columns[c][r]
		}
		rows[r] = row
	}
	return New(name, colNames, rows), nil
}

func decodeObjectRaw(dec *json.Decoder) ([]string, []json.RawMessage, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}
	var keys []string
	var vals []json.RawMessage
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := kt.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		vals = append(vals, raw)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, nil, err
	}
	return keys, vals, nil
}
