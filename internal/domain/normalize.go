package domain

import "strings"

// NormalizeMemberType trims surrounding whitespace and substitutes TypeNone for a blank value.
func NormalizeMemberType(t MemberType) MemberType {
	v := strings.TrimSpace(string(t))
	if v == "" {
		return TypeNone
	}
	return MemberType(v)
}
