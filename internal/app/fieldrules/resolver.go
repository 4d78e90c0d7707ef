package fieldrules

import (
	"context"
	"net/url"
	"strings"

	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/profilefields"
)

// Source selects which request bucket a submitted value is read from.
type Source int

const (
	// SourceAny reads POST, then GET, then cookies.
	SourceAny Source = iota
	SourceGet
	SourcePost
)

// Request carries the submitted values of one request, split by bucket.
type Request struct {
	Get    url.Values
	Post   url.Values
	Cookie url.Values
}

func (r Request) lookup(key string, src Source) (string, bool) {
	var buckets []url.Values
	switch src {
	case SourceGet:
		buckets = []url.Values{r.Get}
	case SourcePost:
		buckets = []url.Values{r.Post}
	default:
		buckets = []url.Values{r.Post, r.Get, r.Cookie}
	}
	for _, b := range buckets {
		if b == nil {
			continue
		}
		if vs, ok := b[key]; ok && len(vs) > 0 {
			return vs[0], true
		}
	}
	return "", false
}

// Sanitizer strips markup from untrusted input.
type Sanitizer interface {
	Sanitize(s string) string
}

// TypeResolver determines the current member type of a request or user.
type TypeResolver struct {
	rules     *RuleStore
	values    profilefields.ValueReader
	sanitizer Sanitizer
}

func NewTypeResolver(rules *RuleStore, values profilefields.ValueReader, sanitizer Sanitizer) *TypeResolver {
	return &TypeResolver{rules: rules, values: values, sanitizer: sanitizer}
}

// RequestType returns the sanitized member type submitted for the member-type field.
// ok is false when nothing (or only markup/whitespace) was submitted.
func (r *TypeResolver) RequestType(ctx context.Context, req Request, src Source) (t domain.MemberType, ok bool, err error) {
	tf, has, err := r.rules.TypeField(ctx)
	if err != nil {
		return "", false, err
	}
	if !has {
		return "", false, ErrNoTypeField
	}
	raw, found := req.lookup(domain.FieldKey(tf), src)
	if !found {
		return "", false, nil
	}
	v := strings.TrimSpace(r.sanitize(raw))
	if v == "" {
		return "", false, nil
	}
	return domain.MemberType(v), true, nil
}

// UserType returns the member type stored in the member-type field for user, lower-cased.
func (r *TypeResolver) UserType(ctx context.Context, user profilefields.UserID) (domain.MemberType, bool, error) {
	tf, has, err := r.rules.TypeField(ctx)
	if err != nil {
		return "", false, err
	}
	if !has {
		return "", false, ErrNoTypeField
	}
	if user == "" || r.values == nil {
		return "", false, nil
	}
	raw, found, err := r.values.FieldValue(ctx, user, tf)
	if err != nil || !found {
		return "", false, err
	}
	v := strings.ToLower(strings.TrimSpace(r.sanitize(raw)))
	if v == "" {
		return "", false, nil
	}
	return domain.MemberType(v), true, nil
}

// ResolveType applies the precedence request value > stored user value > domain.TypeNone.
func (r *TypeResolver) ResolveType(ctx context.Context, req Request, src Source, user profilefields.UserID) (domain.MemberType, error) {
	t, ok, err := r.RequestType(ctx, req, src)
	if err != nil {
		return "", err
	}
	if ok {
		return t, nil
	}
	t, ok, err = r.UserType(ctx, user)
	if err != nil {
		return "", err
	}
	if ok {
		return t, nil
	}
	return domain.TypeNone, nil
}

func (r *TypeResolver) sanitize(s string) string {
	if r.sanitizer == nil {
		return s
	}
	return r.sanitizer.Sanitize(s)
}
