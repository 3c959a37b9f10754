// Package web holds the small HTTP helpers shared by the portal's handlers and
// extensions: JSON envelopes, strict body decoding and client IP resolution.
package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// MsgResponse is the envelope used by the extension layers (JWT, CSRF, limiter).
type MsgResponse struct {
	Msg string `json:"msg"`
}

// ErrorResponse is the envelope used by API handlers.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// WriteJSON writes v with status and disables caching.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMsg writes a {"msg": ...} body.
func WriteMsg(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, MsgResponse{Msg: msg})
}

// WriteError writes a {"success": false, "error": ...} body.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorResponse{Success: false, Error: msg, Code: code})
}

// DecodeJSON decodes exactly one JSON object from the request body.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
