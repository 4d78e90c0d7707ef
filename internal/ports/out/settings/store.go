package settings

import "context"

// Store is the host platform's key/value settings store.
//
// Values are opaque bytes (the rule store writes JSON). Keys are plugin-prefixed names such as
// "mtcf_type_field_id" and "mtcf_12_types". Writes follow last-write-wins semantics.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
