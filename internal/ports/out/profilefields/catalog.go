package profilefields

import (
	"context"

	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
)

// Field is the minimal projection of a host profile field.
type Field struct {
	ID   domain.FieldID
	Name string
}

// Catalog enumerates the profile fields defined on the host platform.
type Catalog interface {
	ListFields(ctx context.Context) ([]Field, error)
}

// UserID identifies an authenticated user on the host platform.
type UserID string

// ValueReader reads a user's stored profile field value.
type ValueReader interface {
	// FieldValue returns the stored value and whether one exists.
	FieldValue(ctx context.Context, user UserID, field domain.FieldID) (string, bool, error)
}

// ValueRepository stores profile field values. Setting an empty value removes the entry.
type ValueRepository interface {
	ValueReader
	SetFieldValue(ctx context.Context, user UserID, field domain.FieldID, value string) error
}
