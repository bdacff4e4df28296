// Package jsonutil writes the JSON bodies every API handler returns.
//
// Success bodies are the encoded value. Failures are a Problem:
//
//	{"error": "a folder named \"Week1\" already exists here", "kind": "conflict"}
//
// Responses may hold per-user listings, so none of them are cacheable.
package jsonutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ContentType is sent with every JSON response.
const ContentType = "application/json; charset=utf-8"

// Problem is the body of every error response. Kind names the error class
// ("validation", "conflict", "storage", ...) when the caller knows it.
type Problem struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// JSON writes data with the given status. A nil data writes headers only.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func OK(w http.ResponseWriter, data any)      { JSON(w, http.StatusOK, data) }
func Created(w http.ResponseWriter, data any) { JSON(w, http.StatusCreated, data) }

// NoContent answers a successful delete or logout.
func NoContent(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNoContent)
}

// Fail writes a Problem carrying kind.
func Fail(w http.ResponseWriter, status int, kind, message string) {
	JSON(w, status, Problem{Error: message, Kind: kind})
}

// Error writes a Problem without a kind.
func Error(w http.ResponseWriter, status int, message string) {
	Fail(w, status, "", message)
}

func BadRequest(w http.ResponseWriter, message string) {
	Fail(w, http.StatusBadRequest, "validation", message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Fail(w, http.StatusUnauthorized, "authentication", message)
}

func Forbidden(w http.ResponseWriter, message string) {
	Fail(w, http.StatusForbidden, "permission", message)
}

func NotFound(w http.ResponseWriter, message string) {
	Fail(w, http.StatusNotFound, "not_found", message)
}

// InternalError reports a server fault. Log the cause separately; message is
// shown to the client.
func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, message)
}

var (
	ErrEmptyBody    = errors.New("request body is empty")
	ErrTrailingData = errors.New("request body must contain a single JSON object")
)

// Decode reads exactly one JSON value from the request body into v.
func Decode(r *http.Request, v any) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return err
	}
	if dec.More() {
		return ErrTrailingData
	}
	return nil
}
