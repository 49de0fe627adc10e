package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/fafa-store/internal/catalog"
	"github.com/noah-isme/fafa-store/internal/common"
	"github.com/noah-isme/fafa-store/internal/lock"
	"github.com/noah-isme/fafa-store/internal/pricing"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc      *Service
	Currency string
}

type itemPayload struct {
	ProductID string  `json:"productId" validate:"required,uuid"`
	Variant   *string `json:"variant"`
}

// OwnerFromRequest resolves the signed-in user and the session cart id.
func OwnerFromRequest(r *http.Request) Owner {
	ctx := r.Context()
	owner := Owner{}
	owner.UserID, _ = common.UserID(ctx)
	if sid, ok := common.SessionCartID(ctx); ok {
		owner.SessionID = sid
	} else {
		owner.SessionID = common.SessionCart(r)
	}
	return owner
}

// Get handles GET /api/v1/cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Get(r.Context(), OwnerFromRequest(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(c)})
}

// Count handles GET /api/v1/cart/count.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.Count(r.Context(), OwnerFromRequest(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]int{"count": n}})
}

// AddItem handles POST /api/v1/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload itemPayload
	if !common.DecodeAndValidate(w, r, &payload) {
		return
	}
	c, err := h.Svc.AddItem(r.Context(), OwnerFromRequest(r), payload.ProductID, payload.Variant)
	if err != nil {
		h.writeError(w, err)
		return
	}
	msg := "Item added to cart"
	for _, ln := range c.Lines {
		if ln.ProductID == payload.ProductID {
			msg = ln.Name + " added to cart"
			break
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(c), "message": msg})
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}?variant=.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	var variant *string
	if v := r.URL.Query().Get("variant"); v != "" {
		variant = &v
	}
	c, err := h.Svc.RemoveItem(r.Context(), OwnerFromRequest(r), chi.URLParam(r, "productId"), variant)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(c), "message": "Item removed from cart"})
}

// SaveShippingAddress handles PUT /api/v1/cart/shipping-address.
func (h *Handler) SaveShippingAddress(w http.ResponseWriter, r *http.Request) {
	var addr Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	c, err := h.Svc.SaveShippingAddress(r.Context(), OwnerFromRequest(r), addr)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(c), "message": "Shipping address saved"})
}

func (h *Handler) view(c Cart) map[string]any {
	return map[string]any{
		"cart": c,
		"pricing": pricing.Summary{
			Subtotal: c.ItemsPrice,
			Tax:      c.TaxPrice,
			Shipping: c.ShippingPrice,
			Total:    c.TotalPrice,
		},
		"count":    pricing.Count(c.Lines),
		"currency": h.Currency,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOutOfStock):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", "Not enough stock available", nil)
	case errors.Is(err, ErrInvalidVariant):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_VARIANT", "size is not available for this product", nil)
	case errors.Is(err, ErrNoOwner):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "session cart id is required", nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "Cart not found", nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	case errors.Is(err, lock.ErrNotAcquired):
		common.JSONError(w, http.StatusConflict, "CART_BUSY", "cart is being updated, retry", nil)
	case errors.Is(err, pricing.ErrNegativeInput):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid price", nil)
	case common.WriteAppError(w, err):
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
