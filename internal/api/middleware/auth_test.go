package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartclaim/triage/internal/domain"
)

var testSecret = []byte("test-secret-0123456789")

func signToken(t *testing.T, secret []byte, method jwt.SigningMethod, claims UserClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func validClaims(sub, role, dept string) UserClaims {
	return UserClaims{
		Role:         role,
		DepartmentID: dept,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func serveWithAuth(t *testing.T, header string) (*httptest.ResponseRecorder, *domain.UserContext) {
	t.Helper()
	var captured *domain.UserContext
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uc, ok := GetUserContext(r.Context()); ok {
			captured = &uc
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/query", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	UserContextAuth(testSecret, nil)(handler).ServeHTTP(w, req)
	return w, captured
}

func TestUserContextAuth_Success(t *testing.T) {
	token := signToken(t, testSecret, jwt.SigningMethodHS256, validClaims("u-42", "manager", "dept-7"))

	w, uc := serveWithAuth(t, "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, uc)
	assert.Equal(t, "u-42", uc.UserID)
	assert.Equal(t, domain.RoleDepartmentManager, uc.Role)
	assert.Equal(t, "dept-7", uc.DepartmentID)
}

func TestUserContextAuth_Rejects(t *testing.T) {
	expired := validClaims("u-1", "worker", "")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims("u-1", "worker", "")
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", "missing authorization header"},
		{"wrong scheme", "Basic abc123", "invalid authorization format"},
		{"garbage token", "Bearer not-a-jwt", "invalid token"},
		{"wrong secret", "Bearer " + signToken(t, []byte("other"), jwt.SigningMethodHS256, validClaims("u-1", "worker", "")), "invalid token"},
		{"wrong algorithm", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS512, validClaims("u-1", "worker", "")), "invalid token"},
		{"expired", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, expired), "invalid token"},
		{"no expiry", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, noExpiry), "invalid token"},
		{"unknown role", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, validClaims("u-1", "superuser", "")), "invalid token"},
		{"missing subject", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, validClaims("", "admin", "")), "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, uc := serveWithAuth(t, tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
			assert.Nil(t, uc)
		})
	}
}

func TestParseUserToken_ErrorIsInvalidToken(t *testing.T) {
	_, err := ParseUserToken("nope", testSecret)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(domain.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(ctx context.Context) int {
		req := httptest.NewRequest(http.MethodPost, "/admin/recreate-collection", nil).WithContext(ctx)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	admin := context.WithValue(context.Background(), UserContextKey, domain.UserContext{UserID: "a", Role: domain.RoleAdmin})
	worker := context.WithValue(context.Background(), UserContextKey, domain.UserContext{UserID: "w", Role: domain.RoleWorker})

	assert.Equal(t, http.StatusNoContent, serve(admin))
	assert.Equal(t, http.StatusForbidden, serve(worker))
	assert.Equal(t, http.StatusUnauthorized, serve(context.Background()))
}

func TestGetUserContext_Missing(t *testing.T) {
	_, ok := GetUserContext(context.Background())
	assert.False(t, ok)
}
