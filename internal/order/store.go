package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/fafa-store/internal/db"
)

const orderSelect = `SELECT o.id, o.user_id, o.session_id, o.shipping_address, o.items_price, o.shipping_price,
	o.tax_price, o.total_price, o.currency, o.is_delivered, o.delivered_at, o.created_at,
	COALESCE((SELECT json_agg(json_build_object(
		'productId', i.product_id, 'variant', NULLIF(i.variant, ''), 'name', i.name, 'slug', i.slug,
		'image', i.image, 'price', i.price::text, 'qty', i.qty) ORDER BY i.name, i.variant)
		FROM order_items i WHERE i.order_id = o.id), '[]')
	FROM orders o`

// Store persists orders.
type Store interface {
	Insert(ctx context.Context, o Order) error
	ByID(ctx context.Context, id string) (Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int64, error)
	List(ctx context.Context, limit, offset int) ([]Order, int64, error)
	MarkDelivered(ctx context.Context, ids []string, at time.Time) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// PgStore implements Store on Postgres.
type PgStore struct {
	DB db.DBTX
}

// NewPgStore wraps a pool or transaction.
func NewPgStore(conn db.DBTX) *PgStore {
	return &PgStore{DB: conn}
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o     Order
		addr  []byte
		items []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &o.SessionID, &addr, &o.ItemsPrice, &o.ShippingPrice, &o.TaxPrice,
		&o.TotalPrice, &o.Currency, &o.IsDelivered, &o.DeliveredAt, &o.CreatedAt, &items)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return Order{}, fmt.Errorf("decode order address: %w", err)
	}
	o.Items = []Item{}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return Order{}, fmt.Errorf("decode order items: %w", err)
	}
	return o, nil
}

func collect(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	out := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Insert writes the order row and its items. Run it inside a transaction.
func (s *PgStore) Insert(ctx context.Context, o Order) error {
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("encode order address: %w", err)
	}
	_, err = s.DB.Exec(ctx, `INSERT INTO orders
		(id, user_id, session_id, shipping_address, items_price, shipping_price, tax_price, total_price, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.UserID, o.SessionID, addr, o.ItemsPrice, o.ShippingPrice, o.TaxPrice, o.TotalPrice, o.Currency, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for _, it := range o.Items {
		variant := ""
		if it.Variant != nil {
			variant = *it.Variant
		}
		_, err = s.DB.Exec(ctx, `INSERT INTO order_items (order_id, product_id, variant, name, slug, image, price, qty)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			o.ID, it.ProductID, variant, it.Name, it.Slug, it.Image, it.Price, it.Qty)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

// ByID loads one order with its items.
func (s *PgStore) ByID(ctx context.Context, id string) (Order, error) {
	return scanOrder(s.DB.QueryRow(ctx, orderSelect+` WHERE o.id = $1`, id))
}

// ListByUser returns a user's orders, newest first.
func (s *PgStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count user orders: %w", err)
	}
	rows, err := s.DB.Query(ctx, orderSelect+` WHERE o.user_id = $1 ORDER BY o.created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list user orders: %w", err)
	}
	out, err := collect(rows)
	return out, total, err
}

// List returns all orders, newest first.
func (s *PgStore) List(ctx context.Context, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.DB.Query(ctx, orderSelect+` ORDER BY o.created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	out, err := collect(rows)
	return out, total, err
}

// MarkDelivered flags the undelivered orders among ids and returns the ids it changed.
func (s *PgStore) MarkDelivered(ctx context.Context, ids []string, at time.Time) ([]string, error) {
	rows, err := s.DB.Query(ctx, `UPDATE orders SET is_delivered = true, delivered_at = $2
		WHERE id = ANY($1::uuid[]) AND NOT is_delivered
		RETURNING id`, ids, at)
	if err != nil {
		return nil, fmt.Errorf("mark delivered: %w", err)
	}
	defer rows.Close()
	changed := make([]string, 0, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		changed = append(changed, id)
	}
	return changed, rows.Err()
}

// Delete removes an order; its items cascade.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
