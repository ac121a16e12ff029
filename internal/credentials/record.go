package credentials

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Well-known column names. Any other column is opaque metadata and passes
// through the engine untouched.
const (
	ColUser         = "user"
	ColPassword     = "password"
	ColHashed       = "is_hashed_password"
	ColAdmin        = "admin"
	ColStartTime    = "start_time"
	ColExpireTime   = "expire_time"
	ColApplications = "applications"
)

// Field is a single named value of a credential record.
type Field struct {
	Name  string
	Value string
}

// Record is one row of a normalized credential table. Field order is
// preserved from the source.
type Record []Field

// Get returns the value of the named field and whether it exists.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Has reports whether the record carries the named field.
func (r Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Set returns a copy of the record with the named field replaced, or
// appended when absent. The receiver is never mutated.
func (r Record) Set(name, value string) Record {
	out := make(Record, len(r))
	copy(out, r)
	for i, f := range out {
		if f.Name == name {
			out[i].Value = value
			return out
		}
	}
	return append(out, Field{Name: name, Value: value})
}

// Without returns a copy of the record stripped of the named fields,
// remaining field order preserved.
func (r Record) Without(names ...string) Record {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	out := make(Record, 0, len(r))
	for _, f := range r {
		if _, skip := drop[f.Name]; skip {
			continue
		}
		out = append(out, f)
	}
	return out
}

// MarshalJSON encodes the record as a JSON object with fields in record
// order. A plain map would lose the ordering.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into the record, keeping the key
// order of the document.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("credentials: record must be a JSON object, got %v", tok)
	}
	out := Record{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("credentials: invalid record key %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("credentials: field %q: %w", key, err)
		}
		out = append(out, Field{Name: key, Value: value})
	}
	*r = out
	return nil
}

// Table is a normalized credential set. Columns lists the column set of the
// table; the presence of optional columns determines which decision rules
// apply to every record.
type Table struct {
	Columns []string
	Records []Record
}

// HasColumn reports whether the table's column set contains name.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// NewTable builds a Table from records, deriving the column set from the
// union of record fields in first-seen order.
func NewTable(records ...Record) Table {
	t := Table{Records: records}
	seen := make(map[string]struct{})
	for _, rec := range records {
		for _, f := range rec {
			if _, ok := seen[f.Name]; ok {
				continue
			}
			seen[f.Name] = struct{}{}
			t.Columns = append(t.Columns, f.Name)
		}
	}
	return t
}
