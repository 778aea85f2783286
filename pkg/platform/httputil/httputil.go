// Package httputil holds the JSON response and request helpers shared by handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "healthlink/pkg/domain-errors"
)

// MaxBodyBytes caps request bodies decoded through DecodeAndPrepare.
const MaxBodyBytes = 1 << 20

// InternalErrorDetail is the only text ever returned for unclassified failures.
const InternalErrorDetail = "internal error"

// ErrorResponse is the error envelope used by every endpoint.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

// Validatable is implemented by request bodies that normalize and validate
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates err into a status and envelope. Internal errors never
// carry a description.
func WriteError(w http.ResponseWriter, err error) {
	de, ok := dErrors.From(err)
	if !ok {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: InternalErrorDetail})
		return
	}
	status := dErrors.HTTPStatus(de.Code)
	if status == http.StatusInternalServerError {
		WriteJSON(w, status, ErrorResponse{Detail: InternalErrorDetail})
		return
	}
	code := string(de.Code)
	if de.Reason != "" {
		code = de.Reason
	}
	WriteJSON(w, status, ErrorResponse{Detail: de.Message, Code: code})
}

// DecodeAndPrepare decodes the JSON body into T and runs Validate. Keys that
// T does not declare are ignored. On failure it writes the error response and returns false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeValidation, decodeMessage(err)))
		return nil, false
	}
	if dec.More() {
		WriteError(w, dErrors.New(dErrors.CodeValidation, "request body must contain a single JSON object"))
		return nil, false
	}

	if err := PT(&req).Validate(); err != nil {
		logger.InfoContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}

func decodeMessage(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return "request body is required"
	case errors.As(err, &syntaxErr):
		return "request body is not valid JSON"
	case errors.As(err, &typeErr):
		return "invalid type for field " + typeErr.Field
	case errors.As(err, &maxErr):
		return "request body too large"
	default:
		return "invalid request body: " + err.Error()
	}
}
