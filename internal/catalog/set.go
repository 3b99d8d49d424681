package catalog

import "sort"

// Set is a set of permission codes with well-defined union semantics.
// The effective permission set of a user is the union of role-derived
// sets and active temporary grants.
type Set map[Code]struct{}

// NewSet builds a set from the given codes.
func NewSet(codes ...Code) Set {
	s := make(Set, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(code Code) bool {
	_, ok := s[code]
	return ok
}

// Add inserts a code.
func (s Set) Add(code Code) {
	s[code] = struct{}{}
}

// Union returns a new set containing every code in s or other.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for c := range s {
		out[c] = struct{}{}
	}
	for c := range other {
		out[c] = struct{}{}
	}
	return out
}

// Codes returns the members sorted for stable output.
func (s Set) Codes() []Code {
	codes := make([]Code, 0, len(s))
	for c := range s {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
