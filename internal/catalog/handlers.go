package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/fafa-store/internal/common"
)

// Handler exposes catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Latest handles GET /api/v1/products/latest.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Latest(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Categories(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// CategoryProducts handles GET /api/v1/categories/{slug}/products.
func (h *Handler) CategoryProducts(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.InCategory(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// Products handles GET /api/v1/products with category filter and pagination.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	params, err := h.service.ParseListParams(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.service.ListProducts(r.Context(), params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONPage(w, result.Items, result.Page, result.Limit, result.Total)
}

// ProductDetail handles GET /api/v1/products/{slug}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.ProductBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

// AdminGet handles GET /api/v1/admin/products/{id}.
func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.ProductByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// AdminCreate handles POST /api/v1/admin/products.
func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	p, err := h.service.CreateProduct(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p, "message": "Product created successfully"})
}

// AdminUpdate handles PUT /api/v1/admin/products/{id}.
func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p, "message": "Product updated successfully"})
}

// AdminDelete handles DELETE /api/v1/admin/products/{id}.
func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	common.NoContent(w)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if common.WriteAppError(w, err) {
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
