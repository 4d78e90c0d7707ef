package idempotency

import (
	"context"
	"time"
)

// Key is the caller-provided idempotency key (Idempotency-Key header).
type Key string

// Fingerprint identifies an admin edit for replay purposes.
//
// Route is the HTTP method plus the route template, e.g. "PUT /admin/fields/{fieldId}/requirement";
// the concrete field id is part of BodyHash so two fields never share a replay.
type Fingerprint struct {
	Key      Key
	Subject  string
	Method   string
	Route    string
	BodyHash string
}

// Record is the stored response replayed for a duplicate request.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store persists replayable responses. Records older than the store's retention are
// reported as missing.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
}
