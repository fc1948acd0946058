package ruleid

import "strings"

// Set is a case-insensitive set of identifiers. It remembers the first
// spelling added for each member. The zero value is not usable; call NewSet.
type Set struct {
	members map[string]string
}

// NewSet creates a set holding the given ids.
func NewSet(ids ...string) *Set {
	set := &Set{members: make(map[string]string, len(ids))}
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Add inserts id after trimming whitespace. Blank ids are ignored.
func (s *Set) Add(id string) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return
	}
	folded := strings.ToUpper(trimmed)
	if _, exists := s.members[folded]; !exists {
		s.members[folded] = trimmed
	}
}

// Has reports whether id is a member, ignoring case.
func (s *Set) Has(id string) bool {
	_, ok := s.members[strings.ToUpper(strings.TrimSpace(id))]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.members)
}

// Values returns the members in natural order.
func (s *Set) Values() []string {
	values := make([]string, 0, len(s.members))
	for _, original := range s.members {
		values = append(values, original)
	}
	Sort(values)
	return values
}

// BaseKeys normalizes every raw id and returns the set of non-empty base keys.
func BaseKeys(raw []string) *Set {
	set := NewSet()
	for _, id := range raw {
		if base := Normalize(id); base != "" {
			set.Add(base)
		}
	}
	return set
}
