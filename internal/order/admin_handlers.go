package order

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/fafa-store/internal/common"
)

// AdminHandler exposes the back office order endpoints.
type AdminHandler struct {
	Svc            *Service
	DefaultPerPage int
	MaxPerPage     int
}

type batchPayload struct {
	IDs []string `json:"ids" validate:"required,min=1,max=200,dive,uuid"`
}

// List handles GET /api/v1/admin/orders.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r, h.DefaultPerPage, h.MaxPerPage)
	res, err := h.Svc.List(r.Context(), page, perPage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows := make([]Summary, 0, len(res.Items))
	for _, o := range res.Items {
		rows = append(rows, Summarize(o))
	}
	common.JSONPage(w, rows, page, perPage, res.Total)
}

// Get handles GET /api/v1/admin/orders/{id}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.Get(r.Context(), Viewer{Admin: true}, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// MarkDelivered handles PATCH /api/v1/admin/orders/{id}/delivered.
func (h *AdminHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.MarkDelivered(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o, "message": "Order marked as delivered"})
}

// MarkDeliveredBatch handles POST /api/v1/admin/orders/delivered.
func (h *AdminHandler) MarkDeliveredBatch(w http.ResponseWriter, r *http.Request) {
	var payload batchPayload
	if !common.DecodeAndValidate(w, r, &payload) {
		return
	}
	changed, err := h.Svc.MarkDeliveredBatch(r.Context(), payload.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"updated": changed, "count": len(changed)}})
}

// Delete handles DELETE /api/v1/admin/orders/{id}.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	common.NoContent(w)
}
