package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hiroshi75/photoword/internal/pkg/router"
)

type ownerKey struct{}

// Auth accepts HS256 tokens signed with key and binds their subject as the
// request owner. The "Bearer " prefix is optional.
func Auth(key any) router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken := strings.TrimSpace(r.Header.Get("Authorization"))
			rawToken = strings.TrimSpace(strings.TrimPrefix(rawToken, "Bearer "))
			if rawToken == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(rawToken, func(t *jwt.Token) (any, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil {
				authError("failed to parse jwt", w, r, err)
				return
			}

			sub, err := token.Claims.GetSubject()
			if err != nil || strings.TrimSpace(sub) == "" {
				authError("jwt has no subject", w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), sub)))
		})
	}
}

// StaticOwner binds every request to the same owner. It is used when the
// service runs without authentication.
func StaticOwner(name string) router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), name)))
		})
	}
}

func authError(msg string, w http.ResponseWriter, r *http.Request, err error) {
	slog.Warn(msg,
		"error", err,
		"method", r.Method,
		"url", r.URL.String(),
		"remote_addr", r.RemoteAddr,
		"request_id", RequestIDFromContext(r.Context()),
	)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

func WithOwner(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ownerKey{}, name)
}

func OwnerFromContext(ctx context.Context) string {
	name, _ := ctx.Value(ownerKey{}).(string)
	return name
}
