package pipeline

import "sort"

// IgnoreSet holds the ids of providers whose processing is skipped because
// they are disabled, failed, or consume an ignored model. The zero value is
// empty. An IgnoreSet is never modified; With returns an extended copy.
type IgnoreSet struct {
	ids map[string]struct{}
}

// Has reports whether id is ignored.
func (s IgnoreSet) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// With returns a set that additionally contains id.
func (s IgnoreSet) With(id string) IgnoreSet {
	if s.Has(id) {
		return s
	}
	ids := make(map[string]struct{}, len(s.ids)+1)
	for k := range s.ids {
		ids[k] = struct{}{}
	}
	ids[id] = struct{}{}
	return IgnoreSet{ids: ids}
}

// Len returns the number of ignored ids.
func (s IgnoreSet) Len() int { return len(s.ids) }

// IDs returns the ignored ids, sorted.
func (s IgnoreSet) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
