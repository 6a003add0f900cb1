// Package httputil writes the JSON envelope every endpoint returns:
//
//	{"success": true, "message": "...", "data": {...}, "notificationsSent": 2}
//
// Field names are part of the client contract and must not change.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "doccontrol/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies accepted by DecodeAndPrepare.
const maxBodyBytes = 1 << 20

// Envelope is the response shape shared by all endpoints.
type Envelope struct {
	Success           bool              `json:"success"`
	Message           string            `json:"message"`
	Data              any               `json:"data,omitempty"`
	NotificationsSent *int              `json:"notificationsSent,omitempty"`
	Error             string            `json:"error,omitempty"`
	Fields            map[string]string `json:"fields,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a successful envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// WriteDispatch writes a successful envelope that reports a notification count.
func WriteDispatch(w http.ResponseWriter, status int, message string, data any, sent int) {
	WriteJSON(w, status, Envelope{Success: true, Message: message, Data: data, NotificationsSent: &sent})
}

// WriteError translates a coded error into a failure envelope. Internal
// errors never leak their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	env := Envelope{Success: false, Error: string(code)}
	if de, ok := dErrors.As(err); ok && code != dErrors.CodeInternal {
		env.Message = de.Message
		env.Fields = de.Fields
	} else {
		env.Message = "internal server error"
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), env)
}

// Preparable requests normalize their own fields and validate themselves.
type Preparable interface {
	Normalize()
	Validate() error
}

// DecodeAndPrepare decodes a JSON body into T, normalizes and validates it.
// On failure it writes the error envelope and returns ok=false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Preparable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "invalid request body",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	p := PT(&req)
	p.Normalize()
	if err := p.Validate(); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "request validation failed",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
