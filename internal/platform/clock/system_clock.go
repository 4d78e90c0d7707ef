package clock

import "time"

// SystemClock reads the wall clock in UTC so stored timestamps compare across hosts.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC() }
