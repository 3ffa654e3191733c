// Package feed fetches raw spreadsheet rows from the external intake and
// sales form endpoints (Google Apps Script JSON APIs).
package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is one raw spreadsheet row: free-text column headers mapped to cell
// values, with the header order preserved. Header text is the only schema
// the feeds have, so the mapper depends on scanning headers in their
// original column order.
type Row struct {
	keys   []string
	values map[string]interface{}
}

// NewRow creates an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]interface{})}
}

// Set stores a header/value pair, keeping first-seen header order.
func (r *Row) Set(key string, value interface{}) {
	if r.values == nil {
		r.values = make(map[string]interface{})
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value for a header.
func (r *Row) Get(key string) (interface{}, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the headers in original column order.
func (r *Row) Keys() []string {
	return r.keys
}

// Len returns the number of columns in the row.
func (r *Row) Len() int {
	return len(r.keys)
}

// UnmarshalJSON decodes a JSON object while preserving its key order,
// which encoding/json's map decoding would destroy. Values decode to
// string, float64, bool or nil; nested values are kept as-is.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("feed row: expected object, got %v", tok)
	}

	r.keys = nil
	r.values = make(map[string]interface{})

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("feed row: non-string key %v", keyTok)
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return err
		}
		r.Set(key, value)
	}

	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON encodes the row back to a JSON object in column order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
