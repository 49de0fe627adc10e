package common

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionCartHeader carries the anonymous cart session id.
	SessionCartHeader = "X-Session-Cart-Id"
	// SessionCartCookie is the cookie fallback for SessionCartHeader.
	SessionCartCookie = "sessionCartId"
)

// ClientIP attempts to determine the real client IP address from the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if candidate := strings.TrimSpace(first); candidate != "" {
			return candidate
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// SessionCart reads the session cart id from the header, then the cookie.
func SessionCart(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(SessionCartHeader)); v != "" {
		return v
	}
	if c, err := r.Cookie(SessionCartCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// SessionCartMiddleware copies the session cart id onto the request context.
// Requests without one get a fresh id, echoed in the response header and
// cookie so the client can keep using the same guest cart.
func SessionCartMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := SessionCart(r)
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCartCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int((30 * 24 * time.Hour).Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(SessionCartHeader, id)
		next.ServeHTTP(w, r.WithContext(WithSessionCartID(r.Context(), id)))
	})
}
