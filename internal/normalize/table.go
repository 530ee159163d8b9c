package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type missing struct{}

func (missing) String() string { return "<missing>" }

// MarshalJSON renders a missing value as null.
func (missing) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Missing marks a value that could not be recovered from the source, such as
// a player name without a "Last, First" comma.
var Missing = missing{}

// IsMissing reports whether v is the Missing marker.
func IsMissing(v any) bool {
	_, ok := v.(missing)
	return ok
}

// Record is one normalized row keyed by stable column name. Values are
// int64, float64, bool, string or Missing.
type Record map[string]any

// Has reports whether the record carries col.
func (r Record) Has(col string) bool {
	_, ok := r[col]
	return ok
}

// Float reads col as a number. Missing, absent and non-numeric values read
// as zero.
func (r Record) Float(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return 0
}

// Int reads col as an integer, truncating floats.
func (r Record) Int(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return int64(r.Float(col))
}

// Text reads col as text. Numbers are formatted; Missing is empty.
func (r Record) Text(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case nil, missing:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Bool reads col as a flag.
func (r Record) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return r.Float(col) != 0
}

// Table is an ordered set of columns over normalized records.
type Table struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// Len is the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// HasColumn reports whether the table carries col.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Drop removes columns from the layout and from every record. Unknown
// columns are ignored.
func (t *Table) Drop(cols ...string) {
	drop := make(map[string]bool, len(cols))
	for _, c := range cols {
		drop[c] = true
	}
	kept := t.Columns[:0]
	for _, c := range t.Columns {
		if !drop[c] {
			kept = append(kept, c)
		}
	}
	t.Columns = kept
	for _, r := range t.Records {
		for _, c := range cols {
			delete(r, c)
		}
	}
}

// Filter keeps the records for which keep returns true.
func (t *Table) Filter(keep func(Record) bool) {
	kept := t.Records[:0]
	for _, r := range t.Records {
		if keep(r) {
			kept = append(kept, r)
		}
	}
	t.Records = kept
}

// Set appends col to the layout if needed and assigns fn's result on every
// record.
func (t *Table) Set(col string, fn func(Record) any) {
	if !t.HasColumn(col) {
		t.Columns = append(t.Columns, col)
	}
	for _, r := range t.Records {
		r[col] = fn(r)
	}
}

// Select returns a new table holding only cols, in that order. Columns the
// table lacks are skipped.
func (t *Table) Select(cols ...string) *Table {
	out := &Table{}
	for _, c := range cols {
		if t.HasColumn(c) {
			out.Columns = append(out.Columns, c)
		}
	}
	for _, r := range t.Records {
		nr := make(Record, len(out.Columns))
		for _, c := range out.Columns {
			nr[c] = r[c]
		}
		out.Records = append(out.Records, nr)
	}
	return out
}

// Append adds other's records, extending the layout with any new columns.
func (t *Table) Append(other *Table) {
	if other == nil {
		return
	}
	for _, c := range other.Columns {
		if !t.HasColumn(c) {
			t.Columns = append(t.Columns, c)
		}
	}
	t.Records = append(t.Records, other.Records...)
}

// Strings renders a record in column order, for CSV output.
func (t *Table) Strings(r Record) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = r.Text(c)
	}
	return out
}

// MarshalJSON emits records as objects. Column order is carried separately.
func (t *Table) MarshalJSON() ([]byte, error) {
	type plain Table
	if t.Records == nil {
		return json.Marshal(&plain{Columns: t.Columns, Records: []Record{}})
	}
	return json.Marshal((*plain)(t))
}

// UnmarshalJSON reverses MarshalJSON. Nulls come back as Missing. Numbers
// take the column's declared type; undeclared columns read integral
// literals as int64 and the rest as float64.
func (t *Table) UnmarshalJSON(data []byte) error {
	var raw struct {
		Columns []string                     `json:"columns"`
		Records []map[string]json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Columns = raw.Columns
	t.Records = make([]Record, 0, len(raw.Records))
	for i, rr := range raw.Records {
		rec := make(Record, len(rr))
		for col, msg := range rr {
			v, err := decodeValue(col, msg)
			if err != nil {
				return fmt.Errorf("record %d column %q: %w", i, col, err)
			}
			rec[col] = v
		}
		t.Records = append(t.Records, rec)
	}
	return nil
}

func decodeValue(col string, msg json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	n, ok := v.(json.Number)
	switch {
	case v == nil:
		return Missing, nil
	case !ok:
		return v, nil
	}

	typ := TypeOf(col)
	integral := !strings.ContainsAny(n.String(), ".eE")
	if typ == Int || typ == PlayerSeq || (typ != Float && integral) {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	return n.Float64()
}
