// Package mware holds the portal's HTTP middleware: session token checks
// and per-client rate limiting.
package mware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/dishnetafrica/isp-portal/internal/http-server/response"
	libjwt "github.com/dishnetafrica/isp-portal/internal/lib/jwt"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
)

type contextKey string

// ClaimsKey holds the parsed session claims in the request context.
const ClaimsKey contextKey = "session_claims"

// Maker parses portal session tokens.
type Maker interface {
	ParseToken(tokenStr string) (*libjwt.SessionClaims, error)
}

// Claims pulls the session claims a passed JWTMiddleware stored.
func Claims(ctx context.Context) (*libjwt.SessionClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*libjwt.SessionClaims)
	return claims, ok
}

// JWTMiddleware checks the Authorization bearer token and stores the parsed
// claims in the request context. A missing header, an expired token and a
// malformed token each answer 401 with a distinct message.
func JWTMiddleware(maker Maker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "mware.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))

				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := maker.ParseToken(tokenStr)
			if err != nil {
				log.Error("token rejected", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				if errors.Is(err, libjwt.ErrTokenExpired) {
					render.JSON(w, r, response.Error("token has expired"))
				} else {
					render.JSON(w, r, response.Error("invalid token"))
				}

				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware limits each remote address to rps requests per second
// with the given burst.
func RateLimitMiddleware(rps rate.Limit, burst int) func(http.Handler) http.Handler {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(addr string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[addr]
		if !ok {
			l = rate.NewLimiter(rps, burst)
			limiters[addr] = l
		}
		return l
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := r.RemoteAddr
			if host, _, ok := strings.Cut(addr, ":"); ok {
				addr = host
			}
			if !limiterFor(addr).Allow() {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))

				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
