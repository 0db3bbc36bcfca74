package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aryan0dhankhar/academyportal/internal/security/auth"
	"github.com/aryan0dhankhar/academyportal/internal/security/ratelimit"
)

type ClaimsContextKey struct{}
type TokenContextKey struct{}

// authError is the {success, message} body the identity API answers with.
type authError struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(authError{Success: false, Message: message})
}

// JWTMiddleware requires a valid Bearer credential and attaches its claims
// and raw token to the request context.
func JWTMiddleware(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, http.StatusUnauthorized, "Token não fornecido")
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Cabeçalho de autorização inválido")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				log.Debug("rejected bearer token",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeAuthError(w, http.StatusUnauthorized, "Token inválido ou expirado")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			ctx = context.WithValue(ctx, TokenContextKey{}, tokenString)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isInfraPath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

// RateLimitMiddleware applies the limiter's default budget per client IP.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isInfraPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			if !limiter.Allow(ip) {
				log.Warn("rate limit exceeded",
					slog.String("client_ip", ip),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LoginRateLimit caps POST attempts per client IP on login endpoints.
func LoginRateLimit(limiter *ratelimit.Limiter, maxAttempts int, window time.Duration, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			if !limiter.AllowStrict("login:"+ip, maxAttempts, window) {
				log.Warn("login rate limit exceeded", slog.String("client_ip", ip))
				w.Header().Set("Retry-After", retryAfter(window))
				writeAuthError(w, http.StatusTooManyRequests, "Muitas tentativas de login. Tente novamente mais tarde.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfter(window time.Duration) string {
	secs := int(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// ClientIP returns the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c, ok := ctx.Value(ClaimsContextKey{}).(*auth.Claims); ok {
		return c
	}
	return nil
}

func GetTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(TokenContextKey{}).(string)
	return t
}
