package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/Overland-East-Bay/member-type-fields/internal/app/fieldrules"
	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/clock"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/idempotency"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/profilefields"
)

const (
	// SignupFieldIDsKey is the form member listing the submitted profile field ids, comma separated.
	SignupFieldIDsKey = "signup_profile_field_ids"
	// SignupErrorPrefix prefixes form members carrying a pipeline validation error, e.g. "error_field_12".
	SignupErrorPrefix = "error_"

	routeFieldRequirement = "/admin/fields/{fieldId}/requirement"
	maxBodyBytes          = 1 << 20
)

type ServerOptions struct {
	// Fade is the client-side reveal/hide animation length published with the snapshot.
	Fade time.Duration
}

// Server is the HTTP adapter over the field rules service.
type Server struct {
	Rules *fieldrules.Service
	Idem  idempotency.Store
	Clock clock.Clock

	fade time.Duration
}

func NewServer(rules *fieldrules.Service, idem idempotency.Store, clk clock.Clock, opts ServerOptions) *Server {
	fade := opts.Fade
	if fade <= 0 {
		fade = 100 * time.Millisecond
	}
	return &Server{Rules: rules, Idem: idem, Clock: clk, fade: fade}
}

func (s *Server) ListMemberTypes(w http.ResponseWriter, r *http.Request) {
	choices := s.Rules.Choices(r.Context(), requestLang(r))
	out := make([]MemberTypeChoice, 0, len(choices))
	for _, c := range choices {
		out = append(out, MemberTypeChoice{Id: string(c.ID), Label: c.Label})
	}
	writeJSON(w, http.StatusOK, ListMemberTypesResponse{MemberTypes: out})
}

func (s *Server) GetFieldRequirement(w http.ResponseWriter, r *http.Request) {
	id, ok := bindFieldID(w, r)
	if !ok {
		return
	}
	cfg, err := s.Rules.FieldConfig(r.Context(), id, requestLang(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fieldRequirementFromApp(cfg))
}

// PutFieldRequirement applies an admin edit. With an Idempotency-Key header a retried request
// replays the first response; reusing the key with a different payload is a 409.
func (s *Server) PutFieldRequirement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := bindFieldID(w, r)
	if !ok {
		return
	}
	sub, _ := SubjectFromContext(ctx)

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unreadable request body", nil)
		return
	}
	var body PutFieldRequirementRequest
	if len(bytes.TrimSpace(raw)) == 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "missing request body", nil)
		return
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "malformed request body", map[string]any{"body": err.Error()})
		return
	}

	key := idempotency.Key(strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	bodyHash := hashPutBody(id, raw)
	if key != "" && s.Idem != nil {
		replayed, err := s.replay(ctx, w, r, key, sub, bodyHash)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if replayed {
			return
		}
	}

	in := fieldrules.SaveFieldConfigInput{Lang: requestLang(r)}
	if body.IsTypeField.IsSpecified() {
		if body.IsTypeField.IsNull() {
			in.IsTypeField = fieldrules.Null[bool]()
		} else if v, err := body.IsTypeField.Get(); err == nil {
			in.IsTypeField = fieldrules.Some(v)
		}
	}
	if body.RequiredTypes.IsSpecified() {
		if body.RequiredTypes.IsNull() {
			in.RequiredTypes = fieldrules.Null[[]domain.MemberType]()
		} else if v, err := body.RequiredTypes.Get(); err == nil {
			types := make([]domain.MemberType, 0, len(v))
			for _, t := range v {
				types = append(types, domain.MemberType(t))
			}
			in.RequiredTypes = fieldrules.Some(types)
		}
	}
	if body.KeepEmpty != nil {
		in.KeepEmpty = *body.KeepEmpty
	}

	cfg, err := s.Rules.SaveFieldConfig(ctx, id, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	resp := fieldRequirementFromApp(cfg)

	// Store successful response for replay.
	if key != "" && s.Idem != nil {
		if b, err := json.Marshal(resp); err == nil {
			_ = s.Idem.Put(ctx, idempotency.Fingerprint{
				Key:      key,
				Subject:  sub,
				Method:   http.MethodPut,
				Route:    routeFieldRequirement,
				BodyHash: bodyHash,
			}, idempotency.Record{
				StatusCode:  http.StatusOK,
				ContentType: "application/json",
				Body:        b,
				CreatedAt:   s.now(),
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// replay implements the two-record idempotency scheme: a meta record (empty BodyHash) pins the
// key to one payload hash, and a response record keyed by that hash holds the replayable body.
func (s *Server) replay(ctx context.Context, w http.ResponseWriter, r *http.Request, key idempotency.Key, sub string, bodyHash string) (bool, error) {
	metaFP := idempotency.Fingerprint{
		Key:     key,
		Subject: sub,
		Method:  http.MethodPut,
		Route:   routeFieldRequirement,
	}
	meta, ok, err := s.Idem.Get(ctx, metaFP)
	if err != nil {
		return false, err
	}
	if ok {
		if string(meta.Body) != bodyHash {
			writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
			return true, nil
		}
	} else {
		_ = s.Idem.Put(ctx, metaFP, idempotency.Record{
			StatusCode:  0,
			ContentType: "text/plain",
			Body:        []byte(bodyHash),
			CreatedAt:   s.now(),
		})
	}

	respFP := metaFP
	respFP.BodyHash = bodyHash
	rec, ok, err := s.Idem.Get(ctx, respFP)
	if err != nil {
		return false, err
	}
	if ok && rec.StatusCode == http.StatusOK && strings.HasPrefix(rec.ContentType, "application/json") {
		w.Header().Set("Content-Type", rec.ContentType)
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.Body)
		return true, nil
	}
	return false, nil
}

func (s *Server) DeleteFieldRequirement(w http.ResponseWriter, r *http.Request) {
	id, ok := bindFieldID(w, r)
	if !ok {
		return
	}
	if err := s.Rules.ClearRule(r.Context(), id); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InvalidateCache drops the in-process rule mirror so edits made by other instances are seen.
func (s *Server) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	s.Rules.Rules().InvalidateAll()
	w.WriteHeader(http.StatusNoContent)
}

// GetSnapshot returns the rule table for the current user, or 204 when no member-type field
// is configured.
func (s *Server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok, err := s.Rules.Snapshot(r.Context(), currentUser(r), requestLang(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetSnapshotScript emits the page bootstrap consumed by /assets/mtcf.js.
func (s *Server) GetSnapshotScript(w http.ResponseWriter, r *http.Request) {
	snap, ok, err := s.Rules.Snapshot(r.Context(), currentUser(r), requestLang(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	payload := []byte("null")
	if ok {
		if payload, err = json.Marshal(snap); err != nil {
			writeAppError(w, r, err)
			return
		}
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "var MTCF = %s;\nvar MTCF_FADE = %d;\n", payload, s.fade.Milliseconds())
}

func (s *Server) GetClientScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(clientScript)
}

// ValidateSignup accepts either the signup form itself or a SignupValidateRequest and returns
// the validation errors that remain once fields not required for the submitted type are cleared.
func (s *Server) ValidateSignup(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.signupSubmission(w, r)
	if !ok {
		return
	}
	res, err := s.Rules.ValidateSignup(r.Context(), sub)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	cleared := res.Cleared
	if cleared == nil {
		cleared = []string{}
	}
	writeJSON(w, http.StatusOK, SignupValidateResponse{
		MemberType: string(res.Type),
		Errors:     res.Errors,
		Cleared:    cleared,
	})
}

func (s *Server) signupSubmission(w http.ResponseWriter, r *http.Request) (fieldrules.SignupSubmission, bool) {
	if isJSON(r) {
		var body SignupValidateRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "malformed request body", map[string]any{"body": err.Error()})
			return fieldrules.SignupSubmission{}, false
		}
		sub := fieldrules.SignupSubmission{
			Request: fieldrules.Request{Post: url.Values{}, Cookie: cookieValues(r)},
			Errors:  body.Errors,
		}
		for _, id := range body.FieldIds {
			sub.FieldIDs = append(sub.FieldIDs, domain.FieldID(id))
		}
		for k, v := range body.Values {
			sub.Request.Post.Set(k, v)
		}
		return sub, true
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "malformed form body", nil)
		return fieldrules.SignupSubmission{}, false
	}
	ids, bad := parseFieldIDList(r.PostForm.Get(SignupFieldIDsKey))
	if len(bad) > 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid field ids", map[string]any{SignupFieldIDsKey: bad})
		return fieldrules.SignupSubmission{}, false
	}
	sub := fieldrules.SignupSubmission{
		FieldIDs: ids,
		Request:  formRequest(r),
		Errors:   map[string]string{},
	}
	for k, vs := range r.PostForm {
		if strings.HasPrefix(k, SignupErrorPrefix) && len(vs) > 0 {
			sub.Errors[strings.TrimPrefix(k, SignupErrorPrefix)] = vs[0]
		}
	}
	return sub, true
}

// GetFieldRequired answers the render-time requiredness of one field. The member type comes
// from the query, cookies or the current user's stored value.
func (s *Server) GetFieldRequired(w http.ResponseWriter, r *http.Request) {
	id, ok := bindFieldID(w, r)
	if !ok {
		return
	}
	def := false
	if v := r.URL.Query().Get("default"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "default must be a boolean", map[string]any{"default": v})
			return
		}
		def = b
	}
	rc := fieldrules.RenderContext{Request: formRequest(r), User: currentUser(r)}
	writeJSON(w, http.StatusOK, FieldRequiredResponse{
		FieldId:         int(id),
		DefaultRequired: def,
		Required:        s.Rules.FilterRequired(r.Context(), rc, id, def),
	})
}

// RenderRequired resolves the member type once and filters every listed field.
func (s *Server) RenderRequired(w http.ResponseWriter, r *http.Request) {
	var body RenderRequiredRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "malformed request body", map[string]any{"body": err.Error()})
		return
	}
	req := formRequest(r)
	if len(body.Values) > 0 {
		req.Post = url.Values{}
		for k, v := range body.Values {
			req.Post.Set(k, v)
		}
	}
	filter := s.Rules.RenderFilter(r.Context(), fieldrules.RenderContext{Request: req, User: currentUser(r)})

	out := make([]RenderedField, 0, len(body.Fields))
	for _, f := range body.Fields {
		out = append(out, RenderedField{FieldId: f.FieldId, Required: filter(domain.FieldID(f.FieldId), f.DefaultRequired)})
	}
	writeJSON(w, http.StatusOK, RenderRequiredResponse{Fields: out})
}

func (s *Server) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

func bindFieldID(w http.ResponseWriter, r *http.Request) (domain.FieldID, bool) {
	var id int
	err := runtime.BindStyledParameterWithOptions("simple", "fieldId", chi.URLParam(r, "fieldId"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "fieldId must be a positive integer", map[string]any{"fieldId": chi.URLParam(r, "fieldId")})
		return 0, false
	}
	return domain.FieldID(id), true
}

func fieldRequirementFromApp(cfg fieldrules.FieldConfig) FieldRequirement {
	out := FieldRequirement{
		FieldId:     int(cfg.FieldID),
		IsTypeField: cfg.IsTypeField,
		Configured:  cfg.Configured,
		NoTypes:     cfg.NoTypes,
		Choices:     make([]FieldRequirementChoice, 0, len(cfg.Choices)),
	}
	if cfg.Notice != "" {
		n := cfg.Notice
		out.Notice = &n
	}
	for _, c := range cfg.Choices {
		out.Choices = append(out.Choices, FieldRequirementChoice{Id: string(c.ID), Label: c.Label, Checked: c.Checked})
	}
	return out
}

func hashPutBody(id domain.FieldID, raw []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d\n", id)
	_, _ = h.Write(bytes.TrimSpace(raw))
	return hex.EncodeToString(h.Sum(nil))
}

func parseFieldIDList(s string) (ids []domain.FieldID, bad []string) {
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			bad = append(bad, part)
			continue
		}
		ids = append(ids, domain.FieldID(n))
	}
	return ids, bad
}

// formRequest splits the request's values into the buckets the type resolver reads.
func formRequest(r *http.Request) fieldrules.Request {
	req := fieldrules.Request{Get: r.URL.Query(), Cookie: cookieValues(r)}
	if r.PostForm != nil {
		req.Post = r.PostForm
	}
	return req
}

func cookieValues(r *http.Request) url.Values {
	out := url.Values{}
	for _, c := range r.Cookies() {
		out.Add(c.Name, c.Value)
	}
	return out
}

func currentUser(r *http.Request) profilefields.UserID {
	sub, _ := SubjectFromContext(r.Context())
	return profilefields.UserID(sub)
}

// requestLang prefers an explicit ?lang= over Accept-Language; the translator matches either.
func requestLang(r *http.Request) string {
	if v := strings.TrimSpace(r.URL.Query().Get("lang")); v != "" {
		return v
	}
	return r.Header.Get("Accept-Language")
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
