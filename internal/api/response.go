package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/smartclaim/triage/internal/domain"
)

// SuccessResponse is the envelope of every non-health 2xx body.
type SuccessResponse struct {
	Data any `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes data unwrapped. Only /health and admin summaries use it directly.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

var codeStatus = map[string]int{
	domain.ErrCodeValidation:       http.StatusBadRequest,
	domain.ErrCodeNotFound:         http.StatusNotFound,
	domain.ErrCodeUnauthorized:     http.StatusUnauthorized,
	domain.ErrCodeForbidden:        http.StatusForbidden,
	domain.ErrCodeUpstream:         http.StatusServiceUnavailable,
	domain.ErrCodeInvalidOperation: http.StatusConflict,
}

// RetryAfterSeconds is advertised on 503 responses caused by an unavailable
// collaborator.
const RetryAfterSeconds = "5"

// DomainErrorToHTTP maps domain errors, including wrapped ones, to HTTP
// status codes. Anything unrecognised is a 500.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}
	if status, ok := codeStatus[domainErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleError writes the error envelope for err. Internal errors are not
// echoed to the client.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)
	resp := ErrorResponse{Error: err.Error()}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
	}
	switch status {
	case http.StatusInternalServerError:
		resp = ErrorResponse{Error: "internal error", Code: domain.ErrCodeInternalError}
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", RetryAfterSeconds)
	}
	JSON(w, status, resp)
}
