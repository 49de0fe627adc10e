package analytics

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/noah-isme/fafa-store/internal/common"
)

// Handler exposes the back office dashboard endpoints.
type Handler struct {
	Svc *Service
}

var errBadRange = errors.New("from must be before to")

// salesRange reads ?from=&to= (RFC 3339, both or neither) or ?days=N back from now.
func salesRange(q url.Values, now time.Time, defaultDays int) (time.Time, time.Time, error) {
	fromStr, toStr := q.Get("from"), q.Get("to")
	if fromStr == "" || toStr == "" {
		days := common.AtoiDefault(q.Get("days"), defaultDays)
		if days <= 0 {
			days = defaultDays
		}
		return now.AddDate(0, 0, -days), now, nil
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid from date")
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid to date")
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, errBadRange
	}
	return from, to, nil
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.Svc != nil {
		return true
	}
	common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
	return false
}

// Sales handles GET /api/v1/admin/analytics/sales.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	days := h.Svc.DefaultRange
	if days <= 0 {
		days = 30
	}
	from, to, err := salesRange(r.URL.Query(), h.Svc.now(), days)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	rows, err := h.Svc.SalesRange(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", "could not load analytics", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":  rows,
		"range": map[string]time.Time{"from": from, "to": to},
	})
}

// TopProducts handles GET /api/v1/admin/analytics/top-products?limit=&offset=.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	q := r.URL.Query()
	rows, err := h.Svc.TopProducts(r.Context(), common.AtoiDefault(q.Get("limit"), 10), common.AtoiDefault(q.Get("offset"), 0))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", "could not load analytics", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Overview handles GET /api/v1/admin/overview.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	out, err := h.Svc.Overview(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", "could not load overview", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}
