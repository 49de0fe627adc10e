package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/fafa-store/internal/order"
)

// LatestOrdersLimit is the number of orders shown on the dashboard.
const LatestOrdersLimit = 6

// Totals are the headline counters of the back office.
type Totals struct {
	Orders     int64           `json:"ordersCount"`
	Products   int64           `json:"productsCount"`
	Users      int64           `json:"usersCount"`
	TotalSales decimal.Decimal `json:"totalSales"`
}

// Overview is the dashboard payload.
type Overview struct {
	Totals
	LatestOrders []order.Summary `json:"latestOrders"`
}

// DailySales is one day of placed orders.
type DailySales struct {
	Day     time.Time       `json:"day"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// TopProduct ranks products by units sold.
type TopProduct struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Units     int64           `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Querier defines the database access required for analytics operations.
type Querier interface {
	Totals(ctx context.Context) (Totals, error)
	SalesDaily(ctx context.Context, from, to time.Time) ([]DailySales, error)
	TopProducts(ctx context.Context, limit, offset int) ([]TopProduct, error)
}

// OrderLister provides the newest orders.
type OrderLister interface {
	List(ctx context.Context, limit, offset int) ([]order.Order, int64, error)
}

// Service provides cached dashboard aggregates.
type Service struct {
	Q            Querier
	Orders       OrderLister
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// Overview returns counts, total sales and the latest orders.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	if s == nil || s.Q == nil || s.Orders == nil {
		return Overview{}, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("an", "overview")
	var out Overview
	if s.load(ctx, key, &out) {
		return out, nil
	}
	totals, err := s.Q.Totals(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("overview totals: %w", err)
	}
	latest, _, err := s.Orders.List(ctx, LatestOrdersLimit, 0)
	if err != nil {
		return Overview{}, fmt.Errorf("overview latest orders: %w", err)
	}
	out = Overview{Totals: totals, LatestOrders: make([]order.Summary, 0, len(latest))}
	for _, o := range latest {
		out.LatestOrders = append(out.LatestOrders, order.Summarize(o))
	}
	s.store(ctx, key, out)
	return out, nil
}

// SalesRange returns sales summary between the provided bounds inclusive of from and exclusive of to.
func (s *Service) SalesRange(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("an", "sales", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var rows []DailySales
	if s.load(ctx, key, &rows) {
		return rows, nil
	}
	rows, err := s.Q.SalesDaily(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

// TopProducts returns paginated best sellers ordered by units sold.
func (s *Service) TopProducts(ctx context.Context, limit, offset int) ([]TopProduct, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	key := cacheKey("an", "top", limit, offset)
	var rows []TopProduct
	if s.load(ctx, key, &rows) {
		return rows, nil
	}
	rows, err := s.Q.TopProducts(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

func (s *Service) load(ctx context.Context, key string, dst any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
