package record

import "strings"

// Criteria narrows a record set. Empty fields match everything.
type Criteria struct {
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
}

func (c Criteria) IsEmpty() bool {
	return strings.TrimSpace(c.Name) == "" &&
		strings.TrimSpace(c.Phone) == "" &&
		strings.TrimSpace(c.Location) == ""
}

func (c Criteria) Match(r Record) bool {
	return contains(r.Name, c.Name) &&
		contains(r.Phone, c.Phone) &&
		contains(r.Location, c.Location)
}

func contains(field, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return true
	}
	return strings.Contains(strings.ToLower(field), strings.ToLower(want))
}

// Filter returns the records matching c, preserving order.
func Filter(records []Record, c Criteria) []Record {
	if c.IsEmpty() {
		return append([]Record(nil), records...)
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if c.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
