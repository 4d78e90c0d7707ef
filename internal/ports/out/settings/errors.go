package settings

import "errors"

// ErrNotFound indicates no value is stored under the requested key.
var ErrNotFound = errors.New("setting not found")
