package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/api"
	"github.com/smartclaim/triage/internal/domain"
)

type contextKey string

const UserContextKey contextKey = "user_context"

// UserClaims are the JWT claims that carry a caller's access scope. The
// subject is the user id.
type UserClaims struct {
	Role         string `json:"role"`
	DepartmentID string `json:"department_id,omitempty"`
	jwt.RegisteredClaims
}

// UserContextAuth validates an HS256 bearer token and stores the caller's
// domain.UserContext on the request context.
func UserContextAuth(secret []byte, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			uc, err := ParseUserToken(token, secret)
			if err != nil {
				logger.Debug("token rejected", zap.Error(err))
				api.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.Scope().SetUser(sentry.User{ID: uc.UserID})
				hub.Scope().SetTag("role", string(uc.Role))
			}

			ctx := context.WithValue(r.Context(), UserContextKey, uc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseUserToken verifies token and maps its claims onto a UserContext.
// Unknown roles are rejected here rather than downgraded.
func ParseUserToken(token string, secret []byte) (domain.UserContext, error) {
	var claims UserClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return domain.UserContext{}, errors.Join(domain.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return domain.UserContext{}, domain.ErrInvalidToken
	}

	uc, err := domain.NewUserContext(claims.Subject, claims.Role, claims.DepartmentID)
	if err != nil {
		return domain.UserContext{}, errors.Join(domain.ErrInvalidToken, err)
	}
	return uc, nil
}

// RequireRole rejects callers whose token role is not in roles. It must run
// after UserContextAuth.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uc, ok := GetUserContext(r.Context())
			if !ok {
				api.HandleError(w, domain.ErrMissingUserContext)
				return
			}
			for _, role := range roles {
				if uc.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			api.HandleError(w, domain.ErrRoleNotPermitted)
		})
	}
}

// GetUserContext returns the authenticated caller, if any.
func GetUserContext(ctx context.Context) (domain.UserContext, bool) {
	uc, ok := ctx.Value(UserContextKey).(domain.UserContext)
	return uc, ok
}
