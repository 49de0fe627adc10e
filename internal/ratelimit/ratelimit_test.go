package ratelimit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fafa-store/internal/common"
	"github.com/noah-isme/fafa-store/internal/ratelimit"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSlidingWindow(t *testing.T) {
	_, client := newClient(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := ratelimit.SlidingWindow{Client: client, Prefix: "rl:cart:", Window: 2 * time.Second, Max: 2,
		Now: func() time.Time { return now }}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "session:s1")
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, 1-i, d.Remaining)
	}
	d, err := l.Allow(ctx, "session:s1")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Zero(t, d.Remaining)

	d, err = l.Allow(ctx, "session:s2")
	require.NoError(t, err)
	require.True(t, d.Allowed, "buckets are per key")

	now = now.Add(3 * time.Second)
	d, err = l.Allow(ctx, "session:s1")
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestFixedPublicLimit(t *testing.T) {
	_, client := newClient(t)
	f, err := ratelimit.NewFixed(client, "rl:public", "2-M")
	require.NoError(t, err)

	h := ratelimit.Handler{Limiter: f, Key: ratelimit.ByClientIP}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	require.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	rec := send("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	require.Contains(t, rec.Body.String(), "RATE_LIMITED")
	require.Equal(t, http.StatusOK, send("10.0.0.2").Code)

	_, err = ratelimit.NewFixed(client, "rl:x", "lots")
	require.Error(t, err)
}

type failing struct{}

func (failing) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func TestMiddlewareFailsOpen(t *testing.T) {
	var reported error
	h := ratelimit.Handler{Limiter: failing{}, Key: ratelimit.ByCartOwner, OnError: func(err error) { reported = err }}.
		Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.EqualError(t, reported, "redis down")
}

func TestByCartOwner(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(common.SessionCartHeader, "abc")
	require.Equal(t, "session:abc", ratelimit.ByCartOwner(req))

	req = req.WithContext(common.WithUserID(req.Context(), "u1"))
	require.Equal(t, "user:u1", ratelimit.ByCartOwner(req))
}
