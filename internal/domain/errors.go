package domain

import "fmt"

// DomainError carries a stable machine-readable code next to a message. The
// API layer maps the code to an HTTP status.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError with the same code and message, so a sentinel
// still matches after Wrap attached a cause to a copy of it.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code && t.Message == e.Message
}

// Wrap returns a copy of e with err as its cause.
func (e *DomainError) Wrap(err error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Err: err}
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeUpstream         = "UPSTREAM_UNAVAILABLE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Request validation.
var (
	ErrInvalidRole      = NewDomainError(ErrCodeValidation, "invalid role")
	ErrMissingUserID    = NewDomainError(ErrCodeValidation, "user_id is required")
	ErrEmptyQuery       = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrInvalidTopK      = NewDomainError(ErrCodeValidation, "top_k must be between 1 and 100")
	ErrInvalidSLAInput  = NewDomainError(ErrCodeValidation, "invalid sla input")
	ErrUnsupportedEvent = NewDomainError(ErrCodeValidation, "unsupported webhook event")
)

var ErrTicketNotFound = NewDomainError(ErrCodeNotFound, "ticket not found")

// Caller identity.
var (
	ErrMissingToken       = NewDomainError(ErrCodeUnauthorized, "missing authorization token")
	ErrInvalidToken       = NewDomainError(ErrCodeUnauthorized, "invalid authorization token")
	ErrMissingUserContext = NewDomainError(ErrCodeUnauthorized, "user context required")
	ErrRoleNotPermitted   = NewDomainError(ErrCodeForbidden, "role not permitted")
)

// Collaborators that can be retried later.
var (
	ErrEmbeddingUnavailable   = NewDomainError(ErrCodeUpstream, "embedding provider unavailable")
	ErrVectorStoreUnavailable = NewDomainError(ErrCodeUpstream, "vector store unavailable")
	ErrGeneratorUnavailable   = NewDomainError(ErrCodeUpstream, "llm provider unavailable")
	ErrSourceUnavailable      = NewDomainError(ErrCodeUpstream, "ticket database unavailable")
	ErrSyncQueueFull          = NewDomainError(ErrCodeUpstream, "sync queue unavailable")
)

var ErrDimensionMismatch = NewDomainError(ErrCodeInvalidOperation, "embedding dimension does not match collection")
