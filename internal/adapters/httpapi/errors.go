package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/nullable"

	"github.com/Overland-East-Bay/member-type-fields/internal/app/fieldrules"
)

func apiError(r *http.Request, code string, message string, details map[string]any) ErrorResponse {
	var er ErrorResponse
	er.Error.Code = code
	er.Error.Message = message
	if details != nil {
		er.Error.Details = nullable.NewNullableWithValue(map[string]any(details))
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		er.Error.RequestId = nullable.NewNullableWithValue(rid)
	}
	return er
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any) {
	writeJSON(w, status, apiError(r, code, message, details))
}

// writeAppError maps application errors onto the envelope; anything unrecognized is a 500.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	if ae := (*fieldrules.Error)(nil); errors.As(err, &ae) {
		status := ae.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		writeError(w, r, status, ae.Code, ae.Message, ae.Details)
		return
	}
	if errors.Is(err, fieldrules.ErrInvalidFieldID) {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid field id", nil)
		return
	}
	log.Printf("httpapi: %s %s: %v", r.Method, r.URL.Path, err)
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
