package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/fafa-store/internal/db"
	"github.com/noah-isme/fafa-store/internal/pricing"
)

const cartColumns = `id, session_id, user_id, items, shipping_address, items_price, shipping_price,
	tax_price, total_price, expires_at, updated_at`

// Store persists carts and the signed-in user's saved address.
type Store interface {
	Find(ctx context.Context, owner Owner) (Cart, error)
	Save(ctx context.Context, c Cart) (Cart, error)
	Delete(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	UserAddress(ctx context.Context, userID string) (*Address, error)
	SaveUserAddress(ctx context.Context, userID string, addr Address) error
}

// PgStore implements Store on Postgres.
type PgStore struct {
	DB db.DBTX
}

// NewPgStore wraps a pool or transaction.
func NewPgStore(conn db.DBTX) *PgStore {
	return &PgStore{DB: conn}
}

func scanCart(row pgx.Row) (Cart, error) {
	var (
		c        Cart
		items    []byte
		shipAddr []byte
	)
	err := row.Scan(&c.ID, &c.SessionID, &c.UserID, &items, &shipAddr, &c.ItemsPrice, &c.ShippingPrice,
		&c.TaxPrice, &c.TotalPrice, &c.ExpiresAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cart{}, ErrNotFound
	}
	if err != nil {
		return Cart{}, err
	}
	c.Lines = []pricing.Line{}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &c.Lines); err != nil {
			return Cart{}, fmt.Errorf("decode cart items: %w", err)
		}
	}
	if len(shipAddr) > 0 && string(shipAddr) != "null" {
		c.ShippingAddress = &Address{}
		if err := json.Unmarshal(shipAddr, c.ShippingAddress); err != nil {
			return Cart{}, fmt.Errorf("decode cart address: %w", err)
		}
	}
	return c, nil
}

// Find loads the live cart for owner. A signed-in user's own cart wins over
// the session cart.
func (s *PgStore) Find(ctx context.Context, owner Owner) (Cart, error) {
	if owner.UserID != "" {
		c, err := scanCart(s.DB.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts
			WHERE user_id = $1 AND expires_at > now()
			ORDER BY updated_at DESC LIMIT 1`, owner.UserID))
		if !errors.Is(err, ErrNotFound) || owner.SessionID == "" {
			return c, err
		}
	}
	if owner.SessionID == "" {
		return Cart{}, ErrNotFound
	}
	return scanCart(s.DB.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts
		WHERE session_id = $1 AND expires_at > now()`, owner.SessionID))
}

// Save upserts c and returns the stored row.
func (s *PgStore) Save(ctx context.Context, c Cart) (Cart, error) {
	lines := c.Lines
	if lines == nil {
		lines = []pricing.Line{}
	}
	items, err := json.Marshal(lines)
	if err != nil {
		return Cart{}, fmt.Errorf("encode cart items: %w", err)
	}
	var shipAddr []byte
	if c.ShippingAddress != nil {
		if shipAddr, err = json.Marshal(c.ShippingAddress); err != nil {
			return Cart{}, fmt.Errorf("encode cart address: %w", err)
		}
	}
	out, err := scanCart(s.DB.QueryRow(ctx, `INSERT INTO carts
		(id, session_id, user_id, items, shipping_address, items_price, shipping_price, tax_price, total_price, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			items = EXCLUDED.items,
			shipping_address = EXCLUDED.shipping_address,
			items_price = EXCLUDED.items_price,
			shipping_price = EXCLUDED.shipping_price,
			tax_price = EXCLUDED.tax_price,
			total_price = EXCLUDED.total_price,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()
		RETURNING `+cartColumns,
		c.ID, c.SessionID, c.UserID, items, shipAddr, c.ItemsPrice, c.ShippingPrice, c.TaxPrice, c.TotalPrice, c.ExpiresAt))
	if err != nil {
		return Cart{}, fmt.Errorf("save cart: %w", err)
	}
	return out, nil
}

// Delete removes the cart with id.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	if _, err := s.DB.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// PurgeExpired deletes carts whose expiry has passed.
func (s *PgStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `DELETE FROM carts WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge carts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UserAddress returns the user's saved address or nil.
func (s *PgStore) UserAddress(ctx context.Context, userID string) (*Address, error) {
	var raw []byte
	err := s.DB.QueryRow(ctx, `SELECT address FROM users WHERE id = $1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && (len(raw) == 0 || string(raw) == "null")) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user address: %w", err)
	}
	var addr Address
	if err := json.Unmarshal(raw, &addr); err != nil {
		return nil, fmt.Errorf("decode user address: %w", err)
	}
	return &addr, nil
}

// SaveUserAddress stores addr on the user row, creating the row when the
// identity provider's user has not been seen yet.
func (s *PgStore) SaveUserAddress(ctx context.Context, userID string, addr Address) error {
	raw, err := json.Marshal(addr)
	if err != nil {
		return fmt.Errorf("encode user address: %w", err)
	}
	_, err = s.DB.Exec(ctx, `INSERT INTO users (id, name, address) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET address = EXCLUDED.address, updated_at = now()`,
		userID, addr.FullName, raw)
	if err != nil {
		return fmt.Errorf("save user address: %w", err)
	}
	return nil
}
