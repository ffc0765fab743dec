// Package record holds the breeder record model, its identity key and the
// order-preserving deduplicating merge used to aggregate pages.
package record

import (
	"strings"
	"unicode"
)

// Missing is the value stored for a field that is absent or blank.
const Missing = "-"

// Record is one breeder row. Values are normalized on construction and
// never mutated afterwards.
type Record struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

func New(name, phone, location string) Record {
	return Record{
		Name:     normalizeField(name),
		Phone:    normalizeField(phone),
		Location: normalizeField(location),
	}
}

func normalizeField(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return Missing
	}
	return v
}

// Normalize returns a copy with every field trimmed and blanks replaced by Missing.
func (r Record) Normalize() Record {
	return New(r.Name, r.Phone, r.Location)
}

// Key is the content-derived identity used for deduplication.
func (r Record) Key() string {
	n := r.Normalize()
	return squash(n.Name) + "-" + squash(n.Phone) + "-" + squash(n.Location)
}

func squash(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range strings.ToLower(s) {
		if unicode.IsSpace(c) {
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// NormalizeAll normalizes every record in place order into a new slice.
func NormalizeAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Normalize()
	}
	return out
}
