package fieldrules

import "errors"

var (
	// ErrNoTypeField indicates no profile field has been designated as the member-type field.
	ErrNoTypeField = errors.New("no member-type field configured")

	// ErrInvalidFieldID indicates a non-positive field id.
	ErrInvalidFieldID = errors.New("invalid field id")
)

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}
