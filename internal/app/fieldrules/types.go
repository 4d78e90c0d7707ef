package fieldrules

import (
	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/profilefields"
)

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

// Choice is one selectable member type, including the synthetic domain.TypeNone entry.
type Choice struct {
	ID    domain.MemberType
	Label string
}

type FieldChoice struct {
	Choice
	Checked bool
}

// FieldConfig is the admin view of one field's configuration.
type FieldConfig struct {
	FieldID     domain.FieldID
	IsTypeField bool
	// Configured is false when no rule exists for the field.
	Configured bool
	// NoTypes is true when the member-type catalog returned nothing.
	NoTypes bool
	Notice  string
	// Choices is nil for the member-type field.
	Choices []FieldChoice
}

type SaveFieldConfigInput struct {
	Lang string

	IsTypeField Optional[bool]
	// RequiredTypes null clears the rule; a list replaces it.
	RequiredTypes Optional[[]domain.MemberType]
	// KeepEmpty stores an empty selection as "required for none" instead of clearing the rule.
	KeepEmpty bool
}

// SignupSubmission is what the signup validation pipeline hands over after validating.
type SignupSubmission struct {
	FieldIDs []domain.FieldID
	Request  Request
	// Errors maps field keys ("field_<id>") to validation messages.
	Errors map[string]string
}

type SignupResult struct {
	Errors  map[string]string
	Cleared []string
	Type    domain.MemberType
}

// RenderContext identifies whose profile form is being rendered.
type RenderContext struct {
	Request Request
	User    profilefields.UserID
}
