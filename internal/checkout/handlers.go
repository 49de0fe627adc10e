package checkout

import (
	"errors"
	"net/http"

	"github.com/noah-isme/fafa-store/internal/cart"
	"github.com/noah-isme/fafa-store/internal/common"
	"github.com/noah-isme/fafa-store/internal/lock"
	"github.com/noah-isme/fafa-store/internal/obs"
)

// Handler exposes order placement.
type Handler struct {
	Svc *Service
}

// Checkout handles POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	o, err := h.Svc.Create(r.Context(), cart.OwnerFromRequest(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": o, "message": "Order placed successfully"})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var stock *OutOfStockError
	switch {
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "Your cart is empty", nil)
	case errors.Is(err, ErrNoAddress):
		common.JSONError(w, http.StatusUnprocessableEntity, "SHIPPING_ADDRESS_REQUIRED", "Please add a shipping address", nil)
	case errors.As(err, &stock):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", stock.Error(), map[string]string{"productId": stock.ProductID})
	case errors.Is(err, cart.ErrNoOwner):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "missing cart session", nil)
	case errors.Is(err, lock.ErrNotAcquired):
		common.JSONError(w, http.StatusConflict, "CART_BUSY", "Cart is being updated, retry shortly", nil)
	case common.WriteAppError(w, err):
	default:
		logger := obs.LoggerFrom(r.Context(), h.Svc.Logger)
		logger.Error().Err(err).Msg("checkout failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not place order", nil)
	}
}
