package middleware

import (
	"fmt"
	"net/http"

	"github.com/smartclaim/triage/internal/api"
	"github.com/smartclaim/triage/internal/domain"
)

// MaxBodyBytes rejects declared bodies over limit up front and caps the
// rest while handlers read them. A non-positive limit disables the check.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		tooLarge := api.ErrorResponse{
			Error: fmt.Sprintf("request body exceeds %d bytes", limit),
			Code:  domain.ErrCodeValidation,
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				api.JSON(w, http.StatusRequestEntityTooLarge, tooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
