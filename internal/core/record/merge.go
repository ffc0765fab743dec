package record

// Merge appends every incoming record whose key is not yet present, keeping
// first-seen order. Neither argument is modified; the result never shares a
// backing array with existing.
func Merge(existing, incoming []Record) []Record {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]Record, 0, len(existing)+len(incoming))
	for _, r := range existing {
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	for _, r := range incoming {
		r = r.Normalize()
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// MergePages merges pages in the order given.
func MergePages(pages ...[]Record) []Record {
	var out []Record
	for _, p := range pages {
		out = Merge(out, p)
	}
	return out
}
