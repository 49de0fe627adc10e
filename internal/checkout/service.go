// Package checkout turns a priced cart into an order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fafa-store/internal/cart"
	"github.com/noah-isme/fafa-store/internal/db"
	"github.com/noah-isme/fafa-store/internal/events"
	"github.com/noah-isme/fafa-store/internal/lock"
	"github.com/noah-isme/fafa-store/internal/obs"
	"github.com/noah-isme/fafa-store/internal/order"
)

var (
	// ErrEmptyCart is returned when there is nothing to order.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoAddress is returned when neither the cart nor the user has a shipping address.
	ErrNoAddress = errors.New("shipping address required")
)

// OutOfStockError names the line that could not be reserved.
type OutOfStockError struct {
	ProductID string
	Name      string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("%s is out of stock", e.Name)
}

// Is lets callers match cart.ErrOutOfStock.
func (e *OutOfStockError) Is(target error) bool {
	return target == cart.ErrOutOfStock
}

// Carts reads carts and saved addresses outside the order transaction.
type Carts interface {
	Find(ctx context.Context, owner cart.Owner) (cart.Cart, error)
	UserAddress(ctx context.Context, userID string) (*cart.Address, error)
}

// Pricer recomputes the cart price breakdown.
type Pricer interface {
	Reprice(c *cart.Cart) error
}

// Dispatcher fans a committed event out.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev events.Event) error
}

// Service places orders.
type Service struct {
	DB       db.TxBeginner
	Carts    Carts
	Pricer   Pricer
	Locker   cart.Locker
	LockTTL  time.Duration
	Events   Dispatcher
	Currency string
	Now      func() time.Time
	Logger   zerolog.Logger
}

// CreatedPayload is the body of order.created events.
type CreatedPayload struct {
	OrderID    string `json:"orderId"`
	UserID     string `json:"userId,omitempty"`
	TotalPrice string `json:"totalPrice"`
	Currency   string `json:"currency"`
	Items      int    `json:"items"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create places an order from the owner's cart. Stock is reserved, the order
// stored, the cart removed and order.created recorded in one transaction.
func (s *Service) Create(ctx context.Context, owner cart.Owner) (order.Order, error) {
	if s == nil || s.DB == nil || s.Carts == nil || s.Pricer == nil {
		return order.Order{}, errors.New("checkout service not configured")
	}
	if owner.UserID == "" && owner.SessionID == "" {
		return order.Order{}, cart.ErrNoOwner
	}
	var (
		placed order.Order
		event  events.Event
	)
	run := func(ctx context.Context) error {
		var err error
		placed, event, err = s.place(ctx, owner)
		return err
	}
	var err error
	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, lock.CartKey(owner.LockKey()), s.LockTTL, run)
	} else {
		err = run(ctx)
	}
	observe(err)
	if err != nil {
		return order.Order{}, fmt.Errorf("checkout: %w", err)
	}
	if s.Events != nil {
		if dispatchErr := s.Events.Dispatch(ctx, event); dispatchErr != nil {
			s.Logger.Warn().Err(dispatchErr).Str("order_id", placed.ID).Msg("order.created dispatch deferred to relay")
		}
	}
	s.Logger.Info().Str("order_id", placed.ID).Str("total", placed.TotalPrice.String()).Int("lines", len(placed.Items)).Msg("order placed")
	return placed, nil
}

func (s *Service) place(ctx context.Context, owner cart.Owner) (order.Order, events.Event, error) {
	c, err := s.Carts.Find(ctx, owner)
	if errors.Is(err, cart.ErrNotFound) {
		return order.Order{}, events.Event{}, ErrEmptyCart
	}
	if err != nil {
		return order.Order{}, events.Event{}, err
	}
	if c.Empty() {
		return order.Order{}, events.Event{}, ErrEmptyCart
	}
	if c.ShippingAddress == nil && owner.UserID != "" {
		if c.ShippingAddress, err = s.Carts.UserAddress(ctx, owner.UserID); err != nil {
			return order.Order{}, events.Event{}, err
		}
	}
	if c.ShippingAddress == nil {
		return order.Order{}, events.Event{}, ErrNoAddress
	}
	if err := s.Pricer.Reprice(&c); err != nil {
		return order.Order{}, events.Event{}, err
	}

	o := s.build(c, owner)
	payload := CreatedPayload{
		OrderID:    o.ID,
		TotalPrice: o.TotalPrice.StringFixed(2),
		Currency:   o.Currency,
		Items:      len(o.Items),
	}
	if o.UserID != nil {
		payload.UserID = *o.UserID
	}
	ev, err := events.New(events.TopicOrderCreated, uuid.MustParse(o.ID), payload)
	if err != nil {
		return order.Order{}, events.Event{}, err
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return order.Order{}, events.Event{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if o.UserID != nil {
		if _, err := tx.Exec(ctx, `INSERT INTO users (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
			*o.UserID, o.ShippingAddress.FullName); err != nil {
			return order.Order{}, events.Event{}, fmt.Errorf("ensure user: %w", err)
		}
	}
	for _, it := range o.Items {
		tag, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`, it.ProductID, it.Qty)
		if err != nil {
			return order.Order{}, events.Event{}, fmt.Errorf("reserve stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return order.Order{}, events.Event{}, &OutOfStockError{ProductID: it.ProductID, Name: it.Name}
		}
	}
	if err := order.NewPgStore(tx).Insert(ctx, o); err != nil {
		return order.Order{}, events.Event{}, err
	}
	if err := cart.NewPgStore(tx).Delete(ctx, c.ID); err != nil {
		return order.Order{}, events.Event{}, err
	}
	if ev, err = events.NewPgStore(tx).Insert(ctx, ev); err != nil {
		return order.Order{}, events.Event{}, fmt.Errorf("record order event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return order.Order{}, events.Event{}, fmt.Errorf("commit order: %w", err)
	}
	return o, ev, nil
}

func (s *Service) build(c cart.Cart, owner cart.Owner) order.Order {
	o := order.Order{
		ID:              uuid.NewString(),
		ShippingAddress: *c.ShippingAddress,
		Items:           make([]order.Item, 0, len(c.Lines)),
		ItemsPrice:      c.ItemsPrice,
		ShippingPrice:   c.ShippingPrice,
		TaxPrice:        c.TaxPrice,
		TotalPrice:      c.TotalPrice,
		Currency:        s.Currency,
		CreatedAt:       s.now(),
	}
	if o.Currency == "" {
		o.Currency = "DZD"
	}
	if owner.UserID != "" {
		uid := owner.UserID
		o.UserID = &uid
	}
	if sid := c.SessionID; sid != "" {
		o.SessionID = &sid
	}
	for _, ln := range c.Lines {
		o.Items = append(o.Items, order.Item{
			ProductID: ln.ProductID,
			Variant:   ln.Variant,
			Name:      ln.Name,
			Slug:      ln.Slug,
			Image:     ln.Image,
			Price:     ln.UnitPrice,
			Qty:       ln.Qty,
		})
	}
	return o
}

func observe(err error) {
	if obs.CheckoutOrdersTotal == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrEmptyCart):
		result = "empty_cart"
	case errors.Is(err, ErrNoAddress):
		result = "no_address"
	case errors.Is(err, cart.ErrOutOfStock):
		result = "out_of_stock"
	case errors.Is(err, lock.ErrNotAcquired):
		result = "lock_timeout"
	default:
		result = "error"
	}
	obs.CheckoutOrdersTotal.WithLabelValues(result).Inc()
}
