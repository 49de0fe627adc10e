// Package ratelimit throttles requests by client IP or cart owner.
package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/fafa-store/internal/common"
)

// KeyFunc derives the bucket of a request. An empty key skips limiting.
type KeyFunc func(*http.Request) string

// ByClientIP buckets by the caller's address.
func ByClientIP(r *http.Request) string {
	return "ip:" + common.ClientIP(r)
}

// ByCartOwner buckets by signed-in user, falling back to the session cart and
// then the client IP.
func ByCartOwner(r *http.Request) string {
	if uid, ok := common.UserID(r.Context()); ok {
		return "user:" + uid
	}
	if sid, ok := common.SessionCartID(r.Context()); ok {
		return "session:" + sid
	}
	if sid := common.SessionCart(r); sid != "" {
		return "session:" + sid
	}
	return ByClientIP(r)
}

// Handler enforces rate limits before delegating to the next handler.
type Handler struct {
	Limiter Limiter
	Key     KeyFunc
	OnError func(error)
}

// Middleware rejects requests over the limit with 429. Limiter failures let the
// request through.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil || h.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := h.Key(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		d, err := h.Limiter.Allow(r.Context(), key)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(max(d.Limit, 0)))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

		if !d.Allowed {
			retryAfter := int(time.Until(d.Reset).Seconds())
			headers.Set("Retry-After", strconv.Itoa(max(retryAfter, 0)))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
