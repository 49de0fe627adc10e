package user

import (
	"encoding/json"
	"net/http"

	"github.com/noah-isme/fafa-store/internal/cart"
	"github.com/noah-isme/fafa-store/internal/common"
)

// Handler exposes /me endpoints.
type Handler struct {
	Service *Service
}

// Me handles GET /api/v1/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := signedIn(w, r)
	if !ok {
		return
	}
	p, err := h.Service.Me(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if role := common.Role(r.Context()); role != "" {
		p.Role = role
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// UpdateAddress handles PUT /api/v1/me/address.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := signedIn(w, r)
	if !ok {
		return
	}
	var body struct {
		cart.Address
		// Older clients nest the address under "address".
		Nested *cart.Address `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	addr := body.Address
	if body.Nested != nil {
		addr = *body.Nested
	}
	saved, err := h.Service.UpdateAddress(r.Context(), userID, addr)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": saved, "message": "User updated successfully"})
}

func signedIn(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
	}
	return id, ok
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if common.WriteAppError(w, err) {
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}
