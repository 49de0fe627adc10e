package analytics

import (
	"context"
	"time"

	"github.com/noah-isme/fafa-store/internal/db"
)

// PgQuerier runs the dashboard aggregates on Postgres.
type PgQuerier struct {
	DB db.DBTX
}

// Totals counts orders, products and users and sums order totals.
func (q PgQuerier) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := q.DB.QueryRow(ctx, `SELECT
		(SELECT count(*) FROM orders),
		(SELECT count(*) FROM products),
		(SELECT count(*) FROM users),
		(SELECT COALESCE(sum(total_price), 0) FROM orders)`).
		Scan(&t.Orders, &t.Products, &t.Users, &t.TotalSales)
	return t, err
}

// SalesDaily groups orders placed in [from, to) by UTC day.
func (q PgQuerier) SalesDaily(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	rows, err := q.DB.Query(ctx, `SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day,
		count(*), COALESCE(sum(total_price), 0)
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]DailySales, 0)
	for rows.Next() {
		var d DailySales
		if err := rows.Scan(&d.Day, &d.Orders, &d.Revenue); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// TopProducts ranks products by units ordered.
func (q PgQuerier) TopProducts(ctx context.Context, limit, offset int) ([]TopProduct, error) {
	rows, err := q.DB.Query(ctx, `SELECT product_id::text, max(name), sum(qty), sum(price * qty)
		FROM order_items
		GROUP BY product_id
		ORDER BY sum(qty) DESC, max(name)
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]TopProduct, 0)
	for rows.Next() {
		var p TopProduct
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Units, &p.Revenue); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
