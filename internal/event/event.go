package event

import (
	"encoding/json"
	"sort"
	"strings"
)

// Normalize collapses every whitespace run into a single space and trims both ends,
// so cosmetic formatting changes on the page never look like a new item.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Set is an unordered collection of normalized items
type Set struct {
	items map[string]struct{}
}

// NewSet creates a set holding the given items. Empty strings are skipped.
func NewSet(items ...string) Set {
	s := Set{items: make(map[string]struct{}, len(items))}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts an item. Empty items are never members of a set.
func (s *Set) Add(item string) {
	if item == "" {
		return
	}
	if s.items == nil {
		s.items = make(map[string]struct{})
	}
	s.items[item] = struct{}{}
}

// Has reports whether item is in the set
func (s Set) Has(item string) bool {
	_, ok := s.items[item]
	return ok
}

// Len returns the number of items
func (s Set) Len() int {
	return len(s.items)
}

// Sorted returns the items in lexicographic order
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s.items))
	for item := range s.items {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold exactly the same items
func (s Set) Equal(other Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for item := range s.items {
		if !other.Has(item) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a sorted array of strings
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a JSON array of strings. Duplicates collapse and empty
// strings are dropped.
func (s *Set) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewSet(items...)
	return nil
}
