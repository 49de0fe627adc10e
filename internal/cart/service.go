package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/fafa-store/internal/catalog"
	"github.com/noah-isme/fafa-store/internal/lock"
	"github.com/noah-isme/fafa-store/internal/obs"
	"github.com/noah-isme/fafa-store/internal/pricing"
	"github.com/noah-isme/fafa-store/internal/shipping"
)

// Catalog looks up the live product a line refers to.
type Catalog interface {
	ProductByID(ctx context.Context, id string) (catalog.Product, error)
}

// Rates resolves a shipping price for a region and delivery method.
type Rates interface {
	Price(region string, method shipping.DeliveryMethod) int64
}

// Locker serializes work on one key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service encapsulates cart domain operations. Every mutation runs as
// lock -> load -> modify -> reprice -> save under the owner's cart lock.
type Service struct {
	Store   Store
	Catalog Catalog
	Rates   Rates
	Locker  Locker
	LockTTL time.Duration
	TTL     time.Duration
	TaxBps  int
	Now     func() time.Time
	Logger  zerolog.Logger
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Get returns the owner's cart. Without a stored cart an empty, unsaved cart
// is returned.
func (s *Service) Get(ctx context.Context, owner Owner) (Cart, error) {
	if !owner.valid() {
		return Cart{}, ErrNoOwner
	}
	c, err := s.Store.Find(ctx, owner)
	if errors.Is(err, ErrNotFound) {
		return s.blank(owner), nil
	}
	return c, err
}

// Count returns the number of units in the owner's cart.
func (s *Service) Count(ctx context.Context, owner Owner) (int, error) {
	c, err := s.Get(ctx, owner)
	if err != nil {
		return 0, err
	}
	return pricing.Count(c.Lines), nil
}

// AddItem adds one unit of the product (and size) to the owner's cart. The
// unit is refused with ErrOutOfStock when the cart already holds the whole
// stock of the product, counting every size.
func (s *Service) AddItem(ctx context.Context, owner Owner, productID string, variant *string) (Cart, error) {
	var out Cart
	err := s.mutate(ctx, "add", owner, true, func(c *Cart) error {
		product, err := s.Catalog.ProductByID(ctx, productID)
		if err != nil {
			return err
		}
		if !product.AcceptsVariant(variant) {
			return ErrInvalidVariant
		}
		variant = canonicalVariant(product, variant)
		allowed := product.Stock >= pricing.ProductQuantity(c.Lines, product.ID)+1
		if !allowed {
			return ErrOutOfStock
		}
		c.Lines = pricing.AddOne(c.Lines, product.ID, variant, product.Price, pricing.Meta{
			Name:  product.Name,
			Slug:  product.Slug,
			Image: product.Thumbnail(),
		}, allowed)
		return nil
	}, &out)
	return out, err
}

// RemoveItem takes one unit of the line off the owner's cart. Removing an
// absent line leaves the cart unchanged.
func (s *Service) RemoveItem(ctx context.Context, owner Owner, productID string, variant *string) (Cart, error) {
	var out Cart
	err := s.mutate(ctx, "remove", owner, false, func(c *Cart) error {
		c.Lines = pricing.RemoveOne(c.Lines, productID, storedVariant(c.Lines, productID, variant))
		return nil
	}, &out)
	return out, err
}

// SaveShippingAddress stores the delivery address on the cart and reprices
// shipping for it. A signed-in user's address is also kept on the user.
func (s *Service) SaveShippingAddress(ctx context.Context, owner Owner, addr Address) (Cart, error) {
	if err := addr.Validate(); err != nil {
		return Cart{}, err
	}
	var out Cart
	err := s.mutate(ctx, "address", owner, true, func(c *Cart) error {
		c.ShippingAddress = &addr
		if owner.UserID != "" {
			return s.Store.SaveUserAddress(ctx, owner.UserID, addr)
		}
		return nil
	}, &out)
	return out, err
}

// PurgeExpired deletes carts past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.Store.PurgeExpired(ctx, s.now())
}

// Reprice recomputes the stored price breakdown of c. Shipping is charged only
// when the cart has lines and an address.
func (s *Service) Reprice(c *Cart) error {
	shippingPrice := decimal.Zero
	if c.ShippingAddress != nil && !c.Empty() && s.Rates != nil {
		shippingPrice = decimal.NewFromInt(s.Rates.Price(c.ShippingAddress.Region, c.ShippingAddress.DeliveryMethod))
	}
	summary, err := pricing.Compute(c.Lines, s.TaxBps, shippingPrice)
	if err != nil {
		return err
	}
	c.ItemsPrice = summary.Subtotal
	c.ShippingPrice = summary.Shipping
	c.TaxPrice = summary.Tax
	c.TotalPrice = summary.Total
	return nil
}

func (s *Service) mutate(ctx context.Context, op string, owner Owner, create bool, fn func(*Cart) error, out *Cart) error {
	if !owner.valid() {
		return ErrNoOwner
	}
	err := s.Locker.WithLock(ctx, lock.CartKey(owner.LockKey()), s.LockTTL, func(ctx context.Context) error {
		c, err := s.Store.Find(ctx, owner)
		switch {
		case errors.Is(err, ErrNotFound) && create:
			c = s.blank(owner)
		case err != nil:
			return err
		}
		if owner.UserID != "" && c.UserID == nil {
			uid := owner.UserID
			c.UserID = &uid
		}
		if err := fn(&c); err != nil {
			return err
		}
		if err := s.Reprice(&c); err != nil {
			return err
		}
		c.ExpiresAt = s.now().Add(s.ttl())
		saved, err := s.Store.Save(ctx, c)
		if err != nil {
			return err
		}
		*out = saved
		return nil
	})
	result := "ok"
	if err != nil {
		result = resultLabel(err)
		s.Logger.Debug().Err(err).Str("op", op).Str("cart_owner", owner.LockKey()).Msg("cart mutation rejected")
	}
	obs.ObserveCartOperation(op, result)
	if err != nil {
		return fmt.Errorf("cart %s: %w", op, err)
	}
	return nil
}

func (s *Service) blank(owner Owner) Cart {
	c := Cart{
		ID:        uuid.NewString(),
		SessionID: owner.SessionID,
		Lines:     []pricing.Line{},
		ExpiresAt: s.now().Add(s.ttl()),
	}
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
	if owner.UserID != "" {
		uid := owner.UserID
		c.UserID = &uid
	}
	return c
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrInvalidVariant):
		return "invalid_variant"
	case errors.Is(err, catalog.ErrNotFound):
		return "unknown_product"
	case errors.Is(err, lock.ErrNotAcquired):
		return "lock_timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func normalizeVariant(variant *string) *string {
	if variant == nil || strings.TrimSpace(*variant) == "" {
		return nil
	}
	v := strings.TrimSpace(*variant)
	return &v
}

// storedVariant returns the spelling of variant already held by a line of
// productID, so a size is removed the same way AddItem matched it.
func storedVariant(lines []pricing.Line, productID string, variant *string) *string {
	variant = normalizeVariant(variant)
	if variant == nil {
		return nil
	}
	for _, ln := range lines {
		if ln.ProductID == productID && ln.Variant != nil && strings.EqualFold(*ln.Variant, *variant) {
			v := *ln.Variant
			return &v
		}
	}
	return variant
}

// canonicalVariant returns the product's own spelling of the picked size.
func canonicalVariant(p catalog.Product, variant *string) *string {
	variant = normalizeVariant(variant)
	if variant == nil {
		return nil
	}
	for _, size := range p.Sizes {
		if strings.EqualFold(size, *variant) {
			v := size
			return &v
		}
	}
	return variant
}
