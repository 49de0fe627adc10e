package audit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fafa-store/internal/audit"
	"github.com/noah-isme/fafa-store/internal/common"
)

type memStore struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memStore) Insert(_ context.Context, e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memStore) List(_ context.Context, f audit.Filter, limit, offset int) ([]audit.Entry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]audit.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if f.Action == "" || e.Action == f.Action {
			matched = append(matched, e)
		}
	}
	total := int64(len(matched))
	if offset > len(matched) {
		return []audit.Entry{}, total, nil
	}
	return matched[offset:min(offset+limit, len(matched))], total, nil
}

func TestMiddlewareRecordsAdminMutation(t *testing.T) {
	store := &memStore{}
	svc := &audit.Service{Store: store, Enabled: true, Now: func() time.Time { return time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC) }}
	rec := audit.HTTPRecorder{Service: svc}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := common.WithRole(common.WithUserID(req.Context(), "admin-1"), common.RoleAdmin)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.With(rec.Middleware(audit.HTTPConfig{Action: "order.delivered", ResourceType: "order", ResourceIDParam: "id"})).
		Patch("/api/v1/admin/orders/{id}/delivered", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	r.With(rec.Middleware(audit.HTTPConfig{ResourceIDParam: "id"})).
		Delete("/api/v1/admin/products/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/o-1/delivered", nil)
	req.Header.Set("X-Request-ID", "req-9")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/v1/admin/products/p-7?force=1", nil))

	require.Len(t, store.entries, 2)
	first := store.entries[0]
	require.Equal(t, audit.ActorKindAdmin, first.ActorKind)
	require.Equal(t, "admin-1", *first.ActorUserID)
	require.Equal(t, "order.delivered", first.Action)
	require.Equal(t, "o-1", *first.ResourceID)
	require.Equal(t, "req-9", *first.RequestID)
	require.Equal(t, http.StatusOK, first.Status)

	second := store.entries[1]
	require.Equal(t, "DELETE /api/v1/admin/products/p-7", second.Action)
	require.Equal(t, "admin.products.p-7", second.ResourceType)
	require.Equal(t, http.StatusNoContent, second.Status)
	require.JSONEq(t, `{"query":"force=1"}`, string(second.Metadata))
}

func TestDisabledServiceSkips(t *testing.T) {
	store := &memStore{}
	h := audit.HTTPRecorder{Service: &audit.Service{Store: store}}.Middleware(audit.HTTPConfig{})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Empty(t, store.entries)
}

func TestHandlerList(t *testing.T) {
	store := &memStore{entries: []audit.Entry{{ID: 1, Action: "product.created"}, {ID: 2, Action: "order.deleted"}}}
	rec := httptest.NewRecorder()
	audit.Handler{Store: store}.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit-logs?limit=1&page=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "order.deleted")
	require.NotContains(t, rec.Body.String(), "product.created")
	require.Equal(t, "2", rec.Header().Get("X-Total-Count"))

	rec = httptest.NewRecorder()
	audit.Handler{Store: store}.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit-logs?action=product.created", nil))
	require.Contains(t, rec.Body.String(), "product.created")
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))
}

func TestPgStoreListFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)
	uid := "admin-1"
	rows := pgxmock.NewRows([]string{"id", "actor_kind", "actor_user_id", "action", "resource_type", "resource_id",
		"method", "path", "status", "ip", "request_id", "metadata", "created_at", "count"}).
		AddRow(int64(4), "admin", &uid, "order.delete", "order", (*string)(nil),
			http.MethodDelete, "/api/v1/admin/orders/x", http.StatusNoContent, (*string)(nil), (*string)(nil), []byte(nil), at, int64(9))
	mock.ExpectQuery(`FROM audit_logs WHERE action = \$1 AND actor_user_id = \$2 ORDER BY created_at DESC, id DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("order.delete", "admin-1", 20, 40).
		WillReturnRows(rows)

	got, total, err := audit.PgStore{DB: mock}.List(context.Background(), audit.Filter{Action: "order.delete", ActorUserID: "admin-1"}, 20, 40)
	require.NoError(t, err)
	require.Equal(t, int64(9), total)
	require.Len(t, got, 1)
	require.Equal(t, audit.ActorKindAdmin, got[0].ActorKind)
	require.Nil(t, got[0].Metadata)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	uid := "admin-1"
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs("admin", &uid, "order.deleted", "order", (*string)(nil), http.MethodDelete, "/api/v1/admin/orders/x",
			http.StatusNoContent, (*string)(nil), (*string)(nil), []byte(nil), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = audit.PgStore{DB: mock}.Insert(context.Background(), audit.Entry{
		ActorKind: audit.ActorKindAdmin, ActorUserID: &uid, Action: "order.deleted", ResourceType: "order",
		Method: http.MethodDelete, Path: "/api/v1/admin/orders/x", Status: http.StatusNoContent, CreatedAt: at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
