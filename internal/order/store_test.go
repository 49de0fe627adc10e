package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fafa-store/internal/cart"
	"github.com/noah-isme/fafa-store/internal/order"
)

const orderID = "6f1d2c3b-4a5e-4f60-8a7b-0c1d2e3f4a5b"

var orderCols = []string{"id", "user_id", "session_id", "shipping_address", "items_price", "shipping_price",
	"tax_price", "total_price", "currency", "is_delivered", "delivered_at", "created_at", "items"}

var placedAt = time.Date(2025, 2, 10, 9, 30, 0, 0, time.UTC)

func orderRow(rows *pgxmock.Rows, id string, userID *string, delivered bool) *pgxmock.Rows {
	return rows.AddRow(id, userID, nil,
		[]byte(`{"deliveryMethod":"PICKUP_POINT","fullName":"Amina B","phone":"0550123456","region":"Alger","pickupPointId":"ALG-01"}`),
		decimal.NewFromInt(5000), decimal.NewFromInt(400), decimal.Zero, decimal.NewFromInt(5400),
		"DZD", delivered, nil, placedAt,
		[]byte(`[{"productId":"p1","variant":"M","name":"Robe","slug":"robe","image":"/img/robe.jpg","price":"2500.00","qty":2}]`),
	)
}

func TestPgStoreByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	uid := "u1"
	mock.ExpectQuery(`FROM orders o WHERE o.id = \$1`).
		WithArgs(orderID).
		WillReturnRows(orderRow(pgxmock.NewRows(orderCols), orderID, &uid, false))

	o, err := order.NewPgStore(mock).ByID(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, "u1", *o.UserID)
	require.Equal(t, "Amina B", o.CustomerName())
	require.Len(t, o.Items, 1)
	require.Equal(t, "M", *o.Items[0].Variant)
	require.True(t, o.Items[0].Price.Equal(decimal.NewFromInt(2500)))
	require.True(t, o.TotalPrice.Equal(decimal.NewFromInt(5400)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreByIDMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`WHERE o.id = \$1`).WithArgs(orderID).WillReturnError(pgx.ErrNoRows)
	_, err = order.NewPgStore(mock).ByID(context.Background(), orderID)
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestPgStoreInsertWritesItems(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	size := "M"
	sid := "s1"
	o := order.Order{
		ID:              orderID,
		SessionID:       &sid,
		ShippingAddress: cart.Address{DeliveryMethod: "HOME", FullName: "Amina B"},
		Items: []order.Item{
			{ProductID: "p1", Variant: &size, Name: "Robe", Slug: "robe", Price: decimal.NewFromInt(2500), Qty: 2},
			{ProductID: "p2", Name: "Foulard", Slug: "foulard", Price: decimal.NewFromInt(1000), Qty: 1},
		},
		ItemsPrice:    decimal.NewFromInt(6000),
		ShippingPrice: decimal.NewFromInt(800),
		TaxPrice:      decimal.Zero,
		TotalPrice:    decimal.NewFromInt(6800),
		Currency:      "DZD",
		CreatedAt:     placedAt,
	}
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(orderID, (*string)(nil), &sid, pgxmock.AnyArg(), o.ItemsPrice, o.ShippingPrice, o.TaxPrice, o.TotalPrice, "DZD", placedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(orderID, "p1", "M", "Robe", "robe", "", decimal.NewFromInt(2500), 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(orderID, "p2", "", "Foulard", "foulard", "", decimal.NewFromInt(1000), 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, order.NewPgStore(mock).Insert(context.Background(), o))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreMarkDeliveredReturnsChanged(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := placedAt.Add(48 * time.Hour)
	ids := []string{orderID, "7a1d2c3b-4a5e-4f60-8a7b-0c1d2e3f4a5b"}
	mock.ExpectQuery(`UPDATE orders SET is_delivered = true`).
		WithArgs(ids, at).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(orderID))

	changed, err := order.NewPgStore(mock).MarkDelivered(context.Background(), ids, at)
	require.NoError(t, err)
	require.Equal(t, []string{orderID}, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreDeleteMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM orders WHERE id = \$1`).
		WithArgs(orderID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, order.NewPgStore(mock).Delete(context.Background(), orderID), order.ErrNotFound)
}

func TestPgStoreListAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT count\(\*\) FROM orders`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(11)))
	mock.ExpectQuery(`ORDER BY o.created_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(10, 10).
		WillReturnRows(orderRow(pgxmock.NewRows(orderCols), orderID, nil, true))

	items, total, err := order.NewPgStore(mock).List(context.Background(), 10, 10)
	require.NoError(t, err)
	require.Equal(t, int64(11), total)
	require.Len(t, items, 1)
	require.True(t, items[0].IsDelivered)
	require.Equal(t, 2, order.Summarize(items[0]).ItemCount)
	require.NoError(t, mock.ExpectationsWereMet())
}
