package cart_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fafa-store/internal/cart"
	"github.com/noah-isme/fafa-store/internal/catalog"
	"github.com/noah-isme/fafa-store/internal/common"
	"github.com/noah-isme/fafa-store/internal/lock"
	"github.com/noah-isme/fafa-store/internal/shipping"
)

const (
	robeID  = "6f1d8c62-2a4b-4e58-9a57-0c7b1f0d4a11"
	foulard = "0d6b6a57-4ac1-4f5a-8d0f-9e2b6f3c1a22"
)

type memStore struct {
	mu        sync.Mutex
	carts     map[string][]byte
	addresses map[string]cart.Address
}

func newMemStore() *memStore {
	return &memStore{carts: map[string][]byte{}, addresses: map[string]cart.Address{}}
}

func (m *memStore) Find(_ context.Context, owner cart.Owner) (cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, raw := range m.carts {
		var c cart.Cart
		if err := json.Unmarshal(raw, &c); err != nil {
			return cart.Cart{}, err
		}
		if owner.UserID != "" && c.UserID != nil && *c.UserID == owner.UserID {
			return c, nil
		}
	}
	for _, raw := range m.carts {
		var c cart.Cart
		if err := json.Unmarshal(raw, &c); err != nil {
			return cart.Cart{}, err
		}
		if owner.SessionID != "" && c.SessionID == owner.SessionID {
			return c, nil
		}
	}
	return cart.Cart{}, cart.ErrNotFound
}

func (m *memStore) Save(_ context.Context, c cart.Cart) (cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(c)
	if err != nil {
		return cart.Cart{}, err
	}
	m.carts[c.ID] = raw
	var out cart.Cart
	return out, json.Unmarshal(raw, &out)
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, id)
	return nil
}

func (m *memStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, raw := range m.carts {
		var c cart.Cart
		_ = json.Unmarshal(raw, &c)
		if !c.ExpiresAt.After(now) {
			delete(m.carts, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) UserAddress(_ context.Context, userID string) (*cart.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.addresses[userID]; ok {
		return &a, nil
	}
	return nil, nil
}

func (m *memStore) SaveUserAddress(_ context.Context, userID string, addr cart.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses[userID] = addr
	return nil
}

type fakeCatalog map[string]catalog.Product

func (f fakeCatalog) ProductByID(_ context.Context, id string) (catalog.Product, error) {
	p, ok := f[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func newService(t *testing.T, stock int) (*cart.Service, *memStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemStore()
	svc := &cart.Service{
		Store: store,
		Catalog: fakeCatalog{
			robeID: {ID: robeID, Name: "Robe Kabyle", Slug: "robe-kabyle", Stock: stock,
				Price: decimal.NewFromInt(2500), Sizes: []string{"M", "L"}, Images: []string{"/img/robe.jpg"}},
			foulard: {ID: foulard, Name: "Foulard", Slug: "foulard", Stock: stock, Price: decimal.NewFromInt(1000)},
		},
		Rates:   shipping.DefaultResolver(),
		Locker:  lock.Locker{R: client, RetryBackoff: time.Millisecond},
		LockTTL: 2 * time.Second,
	}
	return svc, store
}

func ptr(s string) *string { return &s }

func TestAddItemMergesAndPrices(t *testing.T) {
	svc, _ := newService(t, 5)
	ctx := context.Background()
	owner := cart.Owner{SessionID: "sess-1"}

	_, err := svc.AddItem(ctx, owner, robeID, ptr("M"))
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, owner, robeID, ptr("m"))
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, owner, robeID, ptr("L"))
	require.NoError(t, err)
	c, err := svc.AddItem(ctx, owner, foulard, nil)
	require.NoError(t, err)

	require.Len(t, c.Lines, 3)
	require.Equal(t, 2, c.Lines[0].Qty)
	require.Equal(t, "M", *c.Lines[0].Variant)
	require.Equal(t, 1, c.Lines[1].Qty)
	require.True(t, c.ItemsPrice.Equal(decimal.NewFromInt(8500)))
	require.True(t, c.ShippingPrice.IsZero())
	require.True(t, c.TotalPrice.Equal(decimal.NewFromInt(8500)))

	n, err := svc.Count(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestAddItemStockCeiling(t *testing.T) {
	svc, _ := newService(t, 1)
	ctx := context.Background()
	owner := cart.Owner{SessionID: "sess-2"}

	_, err := svc.AddItem(ctx, owner, foulard, nil)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, owner, foulard, nil)
	require.ErrorIs(t, err, cart.ErrOutOfStock)

	c, err := svc.Get(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 1, c.Lines[0].Qty)
}

func TestAddItemStockCountsEverySize(t *testing.T) {
	svc, _ := newService(t, 1)
	ctx := context.Background()
	owner := cart.Owner{SessionID: "sess-sizes"}

	_, err := svc.AddItem(ctx, owner, robeID, ptr("M"))
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, owner, robeID, ptr("L"))
	require.ErrorIs(t, err, cart.ErrOutOfStock)

	n, err := svc.Count(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestAddItemRejectsBadVariant(t *testing.T) {
	svc, _ := newService(t, 3)
	ctx := context.Background()
	owner := cart.Owner{SessionID: "sess-3"}

	_, err := svc.AddItem(ctx, owner, robeID, nil)
	require.ErrorIs(t, err, cart.ErrInvalidVariant)
	_, err = svc.AddItem(ctx, owner, robeID, ptr("XXL"))
	require.ErrorIs(t, err, cart.ErrInvalidVariant)
	_, err = svc.AddItem(ctx, owner, foulard, ptr("M"))
	require.ErrorIs(t, err, cart.ErrInvalidVariant)
	_, err = svc.AddItem(ctx, owner, "9a3f2b1c-0000-4000-8000-000000000000", nil)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestRemoveItem(t *testing.T) {
	svc, _ := newService(t, 3)
	ctx := context.Background()
	owner := cart.Owner{SessionID: "sess-4"}

	_, err := svc.RemoveItem(ctx, owner, foulard, nil)
	require.ErrorIs(t, err, cart.ErrNotFound)

	_, err = svc.AddItem(ctx, owner, foulard, nil)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, owner, foulard, nil)
	require.NoError(t, err)

	c, err := svc.RemoveItem(ctx, owner, foulard, nil)
	require.NoError(t, err)
	require.Equal(t, 1, c.Lines[0].Qty)

	c, err = svc.RemoveItem(ctx, owner, robeID, ptr("M"))
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)

	c, err = svc.RemoveItem(ctx, owner, foulard, nil)
	require.NoError(t, err)
	require.Empty(t, c.Lines)
	require.True(t, c.TotalPrice.IsZero())
}

func TestRemoveItemMatchesSizeLikeAdd(t *testing.T) {
	svc, _ := newService(t, 3)
	ctx := context.Background()
	owner := cart.Owner{SessionID: "sess-case"}

	c, err := svc.AddItem(ctx, owner, robeID, ptr("m"))
	require.NoError(t, err)
	require.Equal(t, "M", *c.Lines[0].Variant)

	c, err = svc.RemoveItem(ctx, owner, robeID, ptr(" m "))
	require.NoError(t, err)
	require.Empty(t, c.Lines)
}

func TestSaveShippingAddressReprices(t *testing.T) {
	svc, store := newService(t, 3)
	ctx := context.Background()
	owner := cart.Owner{UserID: "c1b7f7a4-5b5e-4a3c-9f1e-6a0d2b8e7f01", SessionID: "sess-5"}

	_, err := svc.AddItem(ctx, owner, foulard, nil)
	require.NoError(t, err)

	c, err := svc.SaveShippingAddress(ctx, owner, cart.Address{
		DeliveryMethod: "STOP_DESK",
		FullName:       "Amina Bensalah",
		Phone:          "0550123456",
		Region:         "  alger ",
		PickupPointID:  "12",
	})
	require.NoError(t, err)
	require.Equal(t, shipping.MethodPickupPoint, c.ShippingAddress.DeliveryMethod)
	require.True(t, c.ShippingPrice.Equal(decimal.NewFromInt(400)), c.ShippingPrice.String())
	require.True(t, c.TotalPrice.Equal(decimal.NewFromInt(1400)))

	saved, err := store.UserAddress(ctx, owner.UserID)
	require.NoError(t, err)
	require.Equal(t, "alger", saved.Region)

	_, err = svc.SaveShippingAddress(ctx, owner, cart.Address{
		DeliveryMethod: "HOME",
		FullName:       "Amina Bensalah",
		Phone:          "0550123456",
		Region:         "Oran",
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	require.Contains(t, details, "street")
	require.Contains(t, details, "commune")
}

func TestConcurrentAddsAreSerialized(t *testing.T) {
	svc, _ := newService(t, 100)
	ctx := context.Background()
	owner := cart.Owner{SessionID: "sess-race"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(ctx, owner, foulard, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := svc.Get(ctx, owner)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	require.Equal(t, 10, c.Lines[0].Qty)
	require.True(t, c.ItemsPrice.Equal(decimal.NewFromInt(10000)))
}

func TestPurgeExpired(t *testing.T) {
	svc, _ := newService(t, 3)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }
	svc.TTL = time.Hour

	_, err := svc.AddItem(ctx, cart.Owner{SessionID: "old"}, foulard, nil)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestPurgeHandler(t *testing.T) {
	svc, store := newService(t, 3)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }
	svc.TTL = time.Minute

	_, err := svc.AddItem(ctx, cart.Owner{SessionID: "stale"}, robeID, ptr("M"))
	require.NoError(t, err)
	now = now.Add(time.Hour)

	h := cart.PurgeHandler{Svc: svc}
	require.NoError(t, h.ProcessTask(ctx, asynq.NewTask(cart.TaskPurge, nil)))
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Empty(t, store.carts)
}

func TestGetWithoutOwner(t *testing.T) {
	svc, _ := newService(t, 3)
	_, err := svc.Get(context.Background(), cart.Owner{})
	require.ErrorIs(t, err, cart.ErrNoOwner)

	c, err := svc.Get(context.Background(), cart.Owner{SessionID: "fresh"})
	require.NoError(t, err)
	require.Empty(t, c.Lines)
}
