package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go-user-template/internal/metrics"
	"go-user-template/internal/model"
)

type tokenValidator interface {
	ParseToken(tokenString string) (model.TokenUser, error)
	IsRefreshToken(tokenString string) bool
}

type contextKey string

const tokenUserContextKey contextKey = "token_user"

type AuthMiddleware struct {
	validator tokenValidator
}

func NewAuthMiddleware(validator tokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireAuth accepts access tokens only. Refresh tokens are rejected so they
// can be used for nothing but obtaining a new pair.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
			writeUnauthorized(w, "UNAUTHORIZED", "missing or invalid authorization header")
			return
		}

		token := strings.TrimSpace(header[7:])
		if m.validator.IsRefreshToken(token) {
			metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
			writeUnauthorized(w, "INVALID_TOKEN", "refresh tokens cannot be used for API access")
			return
		}

		user, err := m.validator.ParseToken(token)
		if err != nil {
			if errors.Is(err, model.ErrMalformedClaims) {
				metrics.AuthFailuresTotal.WithLabelValues("malformed_claims").Inc()
				writeUnauthorized(w, "MALFORMED_CLAIMS", "token claims are incomplete")
				return
			}
			metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
			writeUnauthorized(w, "INVALID_TOKEN", "invalid or expired token")
			return
		}

		setRequestUser(r.Context(), user.ID)
		ctx := context.WithValue(r.Context(), tokenUserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserFromContext(ctx context.Context) (model.TokenUser, bool) {
	user, ok := ctx.Value(tokenUserContextKey).(model.TokenUser)
	return user, ok
}

// ContextWithUser is used by tests and internal callers that already hold an identity.
func ContextWithUser(ctx context.Context, user model.TokenUser) context.Context {
	return context.WithValue(ctx, tokenUserContextKey, user)
}

func writeUnauthorized(w http.ResponseWriter, code string, message string) {
	writeJSONError(w, http.StatusUnauthorized, code, message)
}
