package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fafa-store/internal/auth"
	"github.com/noah-isme/fafa-store/internal/common"
)

var (
	testSecret = []byte("test-secret-0123456789")
	testNow    = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
)

func newToken(t *testing.T, mutate func(*jwt.Builder) *jwt.Builder) jwt.Token {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer("fafa-idp").
		Audience([]string{"fafa-store-api"}).
		Subject("8a0f4c5e-1111-4d2b-9c3d-2e4f6a8b0c1d").
		IssuedAt(testNow).
		NotBefore(testNow).
		Expiration(testNow.Add(15 * time.Minute))
	if mutate != nil {
		b = mutate(b)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	return tok
}

func sign(t *testing.T, tok jwt.Token, alg jwa.SignatureAlgorithm, key any) string {
	t.Helper()
	signed, err := jwt.Sign(tok, jwt.WithKey(alg, key))
	require.NoError(t, err)
	return string(signed)
}

func newVerifier() *auth.Verifier {
	v := auth.NewVerifier(string(testSecret), "fafa-idp", "fafa-store-api", time.Second)
	v.Now = func() time.Time { return testNow }
	return v
}

func TestTokenValidator(t *testing.T) {
	validator := auth.TokenValidator{Issuer: "fafa-idp", Audience: "fafa-store-api", ClockSkew: time.Second, Algorithm: jwa.HS256}

	require.NoError(t, validator.Validate(newToken(t, nil), jwa.HS256, testNow))

	other := newToken(t, func(b *jwt.Builder) *jwt.Builder { return b.Issuer("other") })
	require.Error(t, validator.Validate(other, jwa.HS256, testNow))

	require.Error(t, validator.Validate(newToken(t, nil), jwa.HS256, testNow.Add(time.Hour)), "expired")

	early := newToken(t, func(b *jwt.Builder) *jwt.Builder { return b.NotBefore(testNow.Add(5 * time.Minute)) })
	require.Error(t, validator.Validate(early, jwa.HS256, testNow))

	require.Error(t, validator.Validate(newToken(t, nil), jwa.RS256, testNow))

	anonymous, err := jwt.NewBuilder().Issuer("fafa-idp").Audience([]string{"fafa-store-api"}).
		Expiration(testNow.Add(time.Minute)).Build()
	require.NoError(t, err)
	require.Error(t, validator.Validate(anonymous, jwa.HS256, testNow), "subject is required")
}

func TestVerifierReadsRole(t *testing.T) {
	tok := newToken(t, func(b *jwt.Builder) *jwt.Builder { return b.Claim(auth.RoleClaim, "Admin") })
	claims, err := newVerifier().Verify(sign(t, tok, jwa.HS256, testSecret))
	require.NoError(t, err)
	require.Equal(t, "8a0f4c5e-1111-4d2b-9c3d-2e4f6a8b0c1d", claims.UserID)
	require.Equal(t, common.RoleAdmin, claims.Role)
}

func TestVerifierRejectsForeignTokens(t *testing.T) {
	v := newVerifier()

	_, err := v.Verify(sign(t, newToken(t, nil), jwa.HS256, []byte("another-secret-xxxxxxx")))
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)

	_, err = v.Verify(sign(t, newToken(t, nil), jwa.HS512, testSecret))
	require.Error(t, err, "algorithm pinned to HS256")

	_, err = v.Verify("not.a.token")
	require.Error(t, err)
}

func TestMiddlewareRoles(t *testing.T) {
	m := auth.Middleware{Verifier: newVerifier(), AccessCookie: "access_token"}
	var seenUser, seenRole string
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser, _ = common.UserID(r.Context())
		seenRole = common.Role(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	admin := m.RequireAuth(auth.RequireRole(common.RoleAdmin)(final))
	optional := m.Authenticate(final)

	customer := sign(t, newToken(t, nil), jwa.HS256, testSecret)
	boss := sign(t, newToken(t, func(b *jwt.Builder) *jwt.Builder { return b.Claim(auth.RoleClaim, "admin") }), jwa.HS256, testSecret)

	send := func(h http.Handler, token string, cookie bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" && cookie {
			req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, send(admin, "", false).Code)
	require.Equal(t, http.StatusForbidden, send(admin, customer, false).Code)
	require.Equal(t, http.StatusNoContent, send(admin, boss, true).Code)
	require.Equal(t, common.RoleAdmin, seenRole)

	seenUser = "stale"
	require.Equal(t, http.StatusNoContent, send(optional, "garbage", false).Code)
	require.Empty(t, seenUser)

	require.Equal(t, http.StatusNoContent, send(optional, customer, false).Code)
	require.Equal(t, "8a0f4c5e-1111-4d2b-9c3d-2e4f6a8b0c1d", seenUser)
	require.Empty(t, seenRole)
}
