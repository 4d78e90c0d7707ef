package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Stripper removes all markup from untrusted text. The result is safe to use as a lookup key
// and to reflect into HTML attributes. It is safe for concurrent use.
type Stripper struct {
	policy *bluemonday.Policy
}

func NewStripper() *Stripper {
	return &Stripper{policy: bluemonday.StrictPolicy()}
}

func (s *Stripper) Sanitize(in string) string {
	return strings.TrimSpace(s.policy.Sanitize(in))
}
