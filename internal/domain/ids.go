package domain

import (
	"errors"
	"strconv"
	"strings"
)

// FieldID identifies a profile field in the host platform's field catalog.
type FieldID int

// MemberType is an opaque member-type identifier supplied by the member-type catalog.
// Its format is controlled by the host platform.
type MemberType string

// TypeNone is the sentinel member type for "no type selected/assigned".
const TypeNone MemberType = "type_none"

const fieldKeyPrefix = "field_"

var ErrInvalidFieldKey = errors.New("invalid field key")

// FieldKey returns the form input name used for a field ("field_<id>").
func FieldKey(id FieldID) string {
	return fieldKeyPrefix + strconv.Itoa(int(id))
}

// ParseFieldKey is the inverse of FieldKey.
func ParseFieldKey(key string) (FieldID, error) {
	raw, ok := strings.CutPrefix(key, fieldKeyPrefix)
	if !ok || raw == "" {
		return 0, ErrInvalidFieldKey
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, ErrInvalidFieldKey
	}
	return FieldID(n), nil
}
