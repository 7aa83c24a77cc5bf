package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/ABNmmd/PFE-FSA/internal/ratelimit"
	"github.com/ABNmmd/PFE-FSA/pkg/logger"
)

// UserIDHeader carries the caller's identity, set by the upstream gateway.
const UserIDHeader = "X-User-ID"

type contextKey string

const userKey contextKey = "user_id"

// Identity rejects API requests without a caller id and stores the id in
// the request context. Health endpoints are exempt.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		user := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if user == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserIDHeader+" header")
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the caller id stored by Identity.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey).(string)
	return id
}

// Throttle limits how often each caller may submit runs.
func Throttle(l *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserID(r.Context())
			if !l.Allow(user) {
				logger.FromContext(r.Context()).Warn("submission throttled", "user_id", user, "path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(int(l.RetryAfter().Seconds())))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
