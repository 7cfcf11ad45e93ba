package middleware

import (
	"context"
	"net/http"
	"strings"

	"profile-service/config"
	"profile-service/utils"
)

type contextKey string

const userClaimsKey contextKey = "userClaims"

const (
	msgNoToken      = "No token, authorization denied"
	msgInvalidToken = "Token is not valid"
)

// Authenticate rejects requests without a valid bearer token in the
// configured header and stores the decoded claims on the request context.
func Authenticate(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r, cfg.HeaderName)
			if token == "" {
				_ = WriteMessage(w, http.StatusUnauthorized, msgNoToken)
				return
			}

			claims, err := utils.ParseToken(token, cfg.TokenSecret)
			if err != nil {
				_ = WriteMessage(w, http.StatusUnauthorized, msgInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*utils.Claims, bool) {
	claims, ok := ctx.Value(userClaimsKey).(*utils.Claims)
	return claims, ok
}

func ContextWithClaims(ctx context.Context, claims *utils.Claims) context.Context {
	return context.WithValue(ctx, userClaimsKey, claims)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.User.ID == "" {
		return "", false
	}
	return claims.User.ID, true
}

func tokenFromRequest(r *http.Request, headerName string) string {
	if headerName == "" {
		headerName = "x-auth-token"
	}
	return strings.TrimSpace(r.Header.Get(headerName))
}
