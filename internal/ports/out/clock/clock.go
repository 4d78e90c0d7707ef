package clock

import "time"

// Clock supplies "now" to idempotency record stamping and expiry.
type Clock interface {
	Now() time.Time
}
