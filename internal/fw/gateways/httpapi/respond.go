package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/haukened/rr-fwmgr/internal/fw/common/log"
	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

const (
	errInternal     = "Internal server error"
	errRouteMissing = "Route not found"
	errMethod       = "Method not allowed"
	errBadJSON      = "Invalid JSON body"
	errTooMany      = "Too many requests, please try again later."
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// envelope is the shape of every response body.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// writeError maps a classified error to its status code. Unclassified errors are
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, logger log.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(map[string]any{"error": err}, "Unhandled request error")
		writeMessage(w, status, errInternal)
		return
	}
	if status >= http.StatusInternalServerError {
		logger.Warn(map[string]any{"error": err, "kind": domain.KindOf(err).String()}, "Request failed upstream")
	}
	writeMessage(w, status, err.Error())
}

// statusFor returns the HTTP status code for err's kind.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrKindInvalidIdentifier, domain.ErrKindValidation:
		return http.StatusBadRequest
	case domain.ErrKindAliasNotFound, domain.ErrKindHostnameUnresolved, domain.ErrKindNotFound:
		return http.StatusNotFound
	case domain.ErrKindBlockedSetMissing:
		return http.StatusConflict
	case domain.ErrKindApplyFailed, domain.ErrKindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v. Malformed or oversized bodies are validation errors.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.NewError(domain.ErrKindValidation, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return domain.WrapError(domain.ErrKindValidation, err, errBadJSON)
	}
	return nil
}
