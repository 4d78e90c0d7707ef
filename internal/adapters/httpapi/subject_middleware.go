package httpapi

import (
	"context"
	"net/http"
	"strings"
)

// SubjectHeader names the host platform user on whose behalf a request is made.
const SubjectHeader = "X-User-ID"

type userIDKey struct{}

// WithSubject attaches the host user id to ctx.
func WithSubject(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// SubjectFromContext reports the user id set by the subject middleware, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id, id != ""
}

// NewSubjectMiddleware stores the caller's user id in request context.
//
// The id is taken from X-User-ID; if the header is absent, it falls back to defaultSubject
// (if provided). Requests without either are anonymous, which is how signup forms are
// rendered. Authentication is the host platform's job, so the header must only be reachable
// through it.
func NewSubjectMiddleware(defaultSubject string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := strings.TrimSpace(r.Header.Get(SubjectHeader))
			if sub == "" {
				sub = strings.TrimSpace(defaultSubject)
			}
			if sub == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), sub)))
		})
	}
}

// RequireSubject rejects anonymous requests with 401.
func RequireSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SubjectFromContext(r.Context()); !ok {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject (set "+SubjectHeader+")", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
