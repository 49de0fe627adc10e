package audit

import (
	"net/http"
	"strings"

	"github.com/noah-isme/fafa-store/internal/common"
)

// Handler serves the audit trail to administrators.
type Handler struct {
	Store Store
}

// List handles GET /api/v1/admin/audit-logs?action=&resource=&actor=&page=&limit=.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	q := r.URL.Query()
	filter := Filter{
		Action:       strings.TrimSpace(q.Get("action")),
		ResourceType: strings.TrimSpace(q.Get("resource")),
		ActorUserID:  strings.TrimSpace(q.Get("actor")),
	}
	page, perPage := common.ParsePagination(r, 50, 200)
	rows, total, err := h.Store.List(r.Context(), filter, perPage, common.Offset(page, perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	common.JSONPage(w, rows, page, perPage, total)
}
