package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	// SubjectMiddleware identifies the caller. Defaults to NewSubjectMiddleware("").
	SubjectMiddleware func(http.Handler) http.Handler
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server) http.Handler {
	return NewRouterWithOptions(s, RouterOptions{})
}

func NewRouterWithOptions(s *Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Baseline production-safe middleware (minimal but useful).
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoint is used for infra checks.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/assets/mtcf.js", s.GetClientScript)

	subject := opts.SubjectMiddleware
	if subject == nil {
		subject = NewSubjectMiddleware("")
	}

	r.Group(func(r chi.Router) {
		r.Use(subject)

		r.Get("/member-types", s.ListMemberTypes)
		r.Get("/snapshot", s.GetSnapshot)
		r.Get("/snapshot.js", s.GetSnapshotScript)
		r.Post("/signup/validate", s.ValidateSignup)
		r.Get("/fields/{fieldId}/required", s.GetFieldRequired)
		r.Post("/render/required", s.RenderRequired)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireSubject)
			r.Get("/fields/{fieldId}/requirement", s.GetFieldRequirement)
			r.Put("/fields/{fieldId}/requirement", s.PutFieldRequirement)
			r.Delete("/fields/{fieldId}/requirement", s.DeleteFieldRequirement)
			r.Post("/cache/invalidate", s.InvalidateCache)
		})
	})
	return r
}
