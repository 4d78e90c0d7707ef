package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	snapshotTypeFieldKey   = "type_field"
	snapshotCurrentTypeKey = "current_user_type"
)

// FieldVisibility lists the member types for which a field is required (Y) and not required (N).
// Both empty means "no decision": the client leaves the field's visibility as it is.
type FieldVisibility struct {
	Y []MemberType `json:"y"`
	N []MemberType `json:"n"`
}

// Snapshot is the rule table serialized into the page for the client-side toggler.
//
// On the wire it is a flat object: one "field_<id>" member per regular field plus
// "type_field" and "current_user_type".
type Snapshot struct {
	Fields          map[string]FieldVisibility
	TypeField       string
	CurrentUserType *MemberType
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Fields)+2)
	for key, fv := range s.Fields {
		if !strings.HasPrefix(key, fieldKeyPrefix) {
			return nil, fmt.Errorf("snapshot: %w: %q", ErrInvalidFieldKey, key)
		}
		out[key] = FieldVisibility{Y: nonNil(fv.Y), N: nonNil(fv.N)}
	}
	out[snapshotTypeFieldKey] = s.TypeField
	out[snapshotCurrentTypeKey] = s.CurrentUserType
	return json.Marshal(out)
}

func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	next := Snapshot{Fields: make(map[string]FieldVisibility)}
	for key, v := range raw {
		switch {
		case key == snapshotTypeFieldKey:
			if err := json.Unmarshal(v, &next.TypeField); err != nil {
				return fmt.Errorf("snapshot: type_field: %w", err)
			}
		case key == snapshotCurrentTypeKey:
			if err := json.Unmarshal(v, &next.CurrentUserType); err != nil {
				return fmt.Errorf("snapshot: current_user_type: %w", err)
			}
		case strings.HasPrefix(key, fieldKeyPrefix):
			var fv FieldVisibility
			if err := json.Unmarshal(v, &fv); err != nil {
				return fmt.Errorf("snapshot: %s: %w", key, err)
			}
			next.Fields[key] = fv
		}
	}
	*s = next
	return nil
}

func nonNil(ts []MemberType) []MemberType {
	if ts == nil {
		return []MemberType{}
	}
	return ts
}
