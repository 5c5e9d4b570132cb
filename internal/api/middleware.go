/**
 * @description
 * Authentication middleware for the dashboard API. Requests carry the Supabase
 * session JWT, signed with the project's HS256 secret.
 */
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// UserIDContextKey is the key used to store the user ID in the request context.
const UserIDContextKey = contextKey("userID")

// AuthMiddlewareConfig controls how dashboard requests are authenticated.
type AuthMiddlewareConfig struct {
	JWTSecret        string
	ExpectedAudience string
}

// SupabaseAuthMiddleware validates Supabase access tokens and injects the user ID into context.
func SupabaseAuthMiddleware(cfg AuthMiddlewareConfig) func(http.Handler) http.Handler {
	secret := []byte(strings.TrimSpace(cfg.JWTSecret))
	audience := strings.TrimSpace(cfg.ExpectedAudience)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				respondWithError(w, http.StatusUnauthorized, "Authentication is not configured")
				return
			}

			tokenString, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			userID, err := validateToken(tokenString, secret, audience)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext retrieves the user ID from the request context.
func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(string)
	return userID, ok && userID != ""
}

func validateToken(tokenString string, secret []byte, audience string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithLeeway(30 * time.Second),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("token validation failed")
	}

	// Session tokens always expire; a token without exp is not one of ours.
	if exp, err := claims.GetExpirationTime(); err != nil || exp == nil {
		return "", errors.New("expiration claim missing")
	}

	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errors.New("subject claim missing")
	}
	return sub, nil
}

func bearerToken(authHeader string) (string, bool) {
	authHeader = strings.TrimSpace(authHeader)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

// tokenMatches compares a bearer token against the configured one in constant time.
func tokenMatches(authHeader, expected string) bool {
	token, ok := bearerToken(authHeader)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}
