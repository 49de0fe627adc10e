package shipping_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fafa-store/internal/shipping"
)

func TestTableClientRates(t *testing.T) {
	t.Parallel()

	client := shipping.TableClient{}
	rates, err := client.Rates(context.Background(), shipping.RateReq{Region: "oran"})
	require.NoError(t, err)
	require.Len(t, rates, 2)
	require.Equal(t, "Oran", rates[0].Region)
	require.Equal(t, int64(800), rates[0].Price)
	require.Equal(t, int64(400), rates[1].Price)

	rates, err = client.Rates(context.Background(), shipping.RateReq{Region: "Tindouf", Method: shipping.MethodPickupPoint})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	require.True(t, rates[0].Fallback)
	require.Equal(t, int64(1700), rates[0].Price)

	_, err = client.Rates(context.Background(), shipping.RateReq{Region: "Atlantis"})
	require.ErrorIs(t, err, shipping.ErrUnknownRegion)
}

func TestQuoteHandler(t *testing.T) {
	t.Parallel()

	h := &shipping.Handler{}

	rec := httptest.NewRecorder()
	h.Quote(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shipping/quote?region=Blida&method=STOP_DESK", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []shipping.Rate `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, shipping.MethodPickupPoint, body.Data[0].Method)
	require.Equal(t, int64(300), body.Data[0].Price)

	rec = httptest.NewRecorder()
	h.Quote(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shipping/quote?region=Atlantis", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.Quote(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shipping/quote?region=Oran&method=drone", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegionsHandler(t *testing.T) {
	t.Parallel()

	h := &shipping.Handler{Resolver: shipping.MustResolver(map[string]shipping.RegionRate{
		"Tipaza": {Home: 600},
	})}
	rec := httptest.NewRecorder()
	h.Regions(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shipping/regions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"data":[{"name":"Tipaza","home":600,"pickup":null}]}`, rec.Body.String())
}
