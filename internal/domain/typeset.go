package domain

import "sort"

// TypeSet is a set of member types. A nil TypeSet and an empty TypeSet are both empty;
// whether a rule is configured at all is tracked separately by the rule store.
type TypeSet map[MemberType]struct{}

func NewTypeSet(types ...MemberType) TypeSet {
	s := make(TypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

func (s TypeSet) Contains(t MemberType) bool {
	_, ok := s[t]
	return ok
}

func (s TypeSet) Len() int { return len(s) }

// Slice returns the members in ascending order.
func (s TypeSet) Slice() []MemberType {
	out := make([]MemberType, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s TypeSet) Clone() TypeSet {
	out := make(TypeSet, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}

func (s TypeSet) Equal(other TypeSet) bool {
	if len(s) != len(other) {
		return false
	}
	for t := range s {
		if !other.Contains(t) {
			return false
		}
	}
	return true
}
