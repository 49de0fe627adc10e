package user_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fafa-store/internal/cart"
	"github.com/noah-isme/fafa-store/internal/common"
	"github.com/noah-isme/fafa-store/internal/user"
)

type savedAddress struct {
	userID string
	addr   cart.Address
}

func (s *savedAddress) SaveUserAddress(_ context.Context, userID string, addr cart.Address) error {
	s.userID, s.addr = userID, addr
	return nil
}

func withUser(req *http.Request, id string) *http.Request {
	return req.WithContext(common.WithUserID(req.Context(), id))
}

func TestMeReadsStoredProfile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	email := "amina@example.dz"
	created := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "role", "address", "created_at"}).
			AddRow("u1", "Amina B", &email, "customer",
				[]byte(`{"deliveryMethod":"PICKUP_POINT","fullName":"Amina B","phone":"0550123456","region":"Alger","pickupPointId":"ALG-01"}`),
				created))

	h := &user.Handler{Service: &user.Service{DB: mock}}
	rec := httptest.NewRecorder()
	h.Me(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"pickupPointId":"ALG-01"`)
	require.Contains(t, rec.Body.String(), `"email":"amina@example.dz"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMeUnknownUserGetsBareProfile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM users`).WithArgs("u2").WillReturnError(pgx.ErrNoRows)
	p, err := (&user.Service{DB: mock}).Me(context.Background(), "u2")
	require.NoError(t, err)
	require.Equal(t, "u2", p.ID)
	require.Equal(t, "customer", p.Role)
	require.Nil(t, p.Address)
}

func TestUpdateAddress(t *testing.T) {
	saver := &savedAddress{}
	h := &user.Handler{Service: &user.Service{Addresses: saver}}

	body := `{"deliveryMethod":"STOP_DESK","fullName":" Karim T ","phone":"0661000000","region":"Oran","pickupPointId":"ORN-2"}`
	rec := httptest.NewRecorder()
	h.UpdateAddress(rec, withUser(httptest.NewRequest(http.MethodPut, "/api/v1/me/address", strings.NewReader(body)), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u1", saver.userID)
	require.Equal(t, "Karim T", saver.addr.FullName)
	require.Equal(t, "PICKUP_POINT", string(saver.addr.DeliveryMethod))

	rec = httptest.NewRecorder()
	h.UpdateAddress(rec, withUser(httptest.NewRequest(http.MethodPut, "/api/v1/me/address",
		strings.NewReader(`{"deliveryMethod":"HOME","fullName":"Karim T","phone":"0661000000","region":"Oran"}`)), "u1"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), `"street"`)

	rec = httptest.NewRecorder()
	h.UpdateAddress(rec, withUser(httptest.NewRequest(http.MethodPut, "/api/v1/me/address",
		strings.NewReader(`{"address":{"deliveryMethod":"home","fullName":"Karim T","phone":"0661000000","region":"Alger","commune":"Kouba","street":"5 rue Didouche"}}`)), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Alger", saver.addr.Region)
	require.Equal(t, "HOME", string(saver.addr.DeliveryMethod))

	rec = httptest.NewRecorder()
	h.UpdateAddress(rec, httptest.NewRequest(http.MethodPut, "/api/v1/me/address", strings.NewReader(body)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
