package shipping

import (
	"errors"
	"net/http"

	"github.com/noah-isme/fafa-store/internal/common"
)

// Handler exposes the rate table over HTTP.
type Handler struct {
	Resolver *Resolver
	Client   Client
}

// Regions lists the served regions with their rates.
func (h *Handler) Regions(w http.ResponseWriter, r *http.Request) {
	res := h.resolver()
	names := res.Regions()
	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		_, rr, _ := res.Lookup(name)
		out = append(out, map[string]any{
			"name":   name,
			"home":   rr.Home,
			"pickup": rr.Pickup,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Quote returns the shipping price for ?region=&method=.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "region is required", nil)
		return
	}
	var method DeliveryMethod
	if raw := r.URL.Query().Get("method"); raw != "" {
		m, err := ParseDeliveryMethod(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "method must be HOME or PICKUP_POINT", nil)
			return
		}
		method = m
	}
	client := h.Client
	if client == nil {
		client = TableClient{Resolver: h.resolver()}
	}
	rates, err := client.Rates(r.Context(), RateReq{Region: region, Method: method})
	if err != nil {
		if errors.Is(err, ErrUnknownRegion) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "region not served", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to quote shipping", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rates})
}

func (h *Handler) resolver() *Resolver {
	if h.Resolver != nil {
		return h.Resolver
	}
	return DefaultResolver()
}
