package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/splax/taskhub/internal/domain"
)

const maxBodyBytes = 1 << 20

// retryAfter is advertised on 503 responses.
var retryAfter = 5 * time.Second

type errorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeMessage sends an error body for failures raised by the transport
// itself.
func writeMessage(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvariantViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError classifies err and writes the matching status and body.
// Internal errors are logged and never echoed to the client.
func (r *Router) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), Code: domain.Kind(err)}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body.Error = "validation failed"
		body.Fields = verr.Fields
	}
	switch status {
	case http.StatusInternalServerError:
		r.logger.Error("request failed", "error", err, "path", req.URL.Path)
		body.Error = "internal server error"
	case http.StatusServiceUnavailable:
		r.logger.Warn("dependency unavailable", "error", err, "path", req.URL.Path)
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(req *http.Request, dst any) error {
	body := io.LimitReader(req.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("body", "request body is required")
		}
		return domain.NewValidationError("body", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}
