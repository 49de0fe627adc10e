package order

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fafa-store/internal/common"
	"github.com/noah-isme/fafa-store/internal/obs"
)

// Handler exposes order endpoints to shoppers.
type Handler struct {
	Svc            *Service
	DefaultPerPage int
	MaxPerPage     int
}

// ViewerFromRequest builds the read scope of the caller.
func ViewerFromRequest(r *http.Request) Viewer {
	ctx := r.Context()
	v := Viewer{Admin: common.Role(ctx) == common.RoleAdmin}
	v.UserID, _ = common.UserID(ctx)
	if sid, ok := common.SessionCartID(ctx); ok {
		v.SessionID = sid
	} else {
		v.SessionID = common.SessionCart(r)
	}
	return v
}

func pageParams(r *http.Request, def, max int) (int, int) {
	if def <= 0 {
		def = 10
	}
	if max <= 0 {
		max = 100
	}
	return common.ParsePagination(r, def, max)
}

// Mine handles GET /api/v1/orders.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	uid, _ := common.UserID(r.Context())
	page, perPage := pageParams(r, h.DefaultPerPage, h.MaxPerPage)
	res, err := h.Svc.ListMine(r.Context(), uid, page, perPage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.JSONPage(w, res.Items, page, perPage, res.Total)
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.Get(r.Context(), ViewerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "Order not found", nil)
	case common.WriteAppError(w, err):
	default:
		logger := obs.LoggerFrom(r.Context(), zerolog.Nop())
		logger.Error().Err(err).Msg("order request failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}
