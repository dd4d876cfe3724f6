package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"shepherd/internal/adapters/http/middleware"
	"shepherd/internal/domain/access"
	"shepherd/internal/domain/fault"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("http_event", "event", "encode_failed", "error", err)
	}
}

// writeError maps err onto a status code through fault.Kind.
// Internal errors are logged in full and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch fault.Kind(err) {
	case "validation":
		var ve *fault.ValidationError
		errors.As(err, &ve)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Reason, Field: ve.Field})
	case "forbidden":
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case "not_found":
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case "conflict":
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		logInternal(r, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func logInternal(r *http.Request, err error) {
	slog.Error("internal_error", "method", r.Method, "path", r.URL.Path, "error", err.Error())
}

// strictDecode decodes JSON from the request body, rejecting unknown fields
// and trailing data. Decode failures come back as validation errors.
func strictDecode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fault.Validation("", "request body is empty")
		}
		return fault.Validation("", fmt.Sprintf("invalid request body: %v", err))
	}
	if dec.More() {
		return fault.Validation("", "request body must hold a single JSON object")
	}
	return nil
}

// actor returns the identity RequireActor put on the request.
func actor(r *http.Request) access.Actor {
	a, _ := middleware.ActorFromContext(r.Context())
	return a
}
