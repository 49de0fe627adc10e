package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/fafa-store/internal/common"
	"github.com/noah-isme/fafa-store/internal/obs"
)

// HTTPRecorder records HTTP requests after they have been handled.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// HTTPConfig customises how the audit entry is produced for a route.
type HTTPConfig struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
	MetadataFunc    func(*http.Request, int) map[string]any
}

// Middleware records an entry once the wrapped handler has answered.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}
			rec := obs.NewStatusRecorder(w)
			next.ServeHTTP(rec, req)

			resourceID := ""
			if cfg.ResourceIDParam != "" {
				resourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}
			var metadata []byte
			if cfg.MetadataFunc != nil {
				if payload := cfg.MetadataFunc(req, rec.Status()); payload != nil {
					metadata, _ = json.Marshal(payload)
				}
			}
			if err := r.Service.Record(req.Context(), ActorFromRequest(req), cfg.Action, cfg.ResourceType, resourceID, req, rec.Status(), metadata); err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

// ActorFromRequest classifies the caller from the auth context.
func ActorFromRequest(req *http.Request) Actor {
	userID, ok := common.UserID(req.Context())
	if !ok {
		return Actor{Kind: ActorKindAnonymous}
	}
	if common.Role(req.Context()) == common.RoleAdmin {
		return Actor{Kind: ActorKindAdmin, UserID: userID}
	}
	return Actor{Kind: ActorKindUser, UserID: userID}
}
