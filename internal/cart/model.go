package cart

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/fafa-store/internal/common"
	"github.com/noah-isme/fafa-store/internal/pricing"
	"github.com/noah-isme/fafa-store/internal/shipping"
)

var (
	// ErrNotFound indicates the caller has no cart yet.
	ErrNotFound = errors.New("cart not found")
	// ErrNoOwner is returned when a request carries neither a user nor a session cart id.
	ErrNoOwner = errors.New("cart: no user or session")
	// ErrOutOfStock is returned when adding one more unit would exceed stock.
	ErrOutOfStock = errors.New("cart: not enough stock")
	// ErrInvalidVariant is returned when the picked size is not offered by the product.
	ErrInvalidVariant = errors.New("cart: invalid size")
)

// Owner identifies whose cart an operation targets. A signed-in user owns at
// most one cart; guests are keyed by the session cart id.
type Owner struct {
	UserID    string
	SessionID string
}

// LockKey is the per-cart serialization key.
func (o Owner) LockKey() string {
	if o.UserID != "" {
		return "user:" + o.UserID
	}
	return "session:" + o.SessionID
}

func (o Owner) valid() bool {
	return o.UserID != "" || o.SessionID != ""
}

// Address is the delivery destination. HOME delivery needs a commune and a
// street; PICKUP_POINT needs the pickup point id.
type Address struct {
	DeliveryMethod shipping.DeliveryMethod `json:"deliveryMethod" validate:"required,oneof=HOME PICKUP_POINT"`
	FullName       string                  `json:"fullName" validate:"required,min=3"`
	Phone          string                  `json:"phone" validate:"required,min=8"`
	Region         string                  `json:"region" validate:"required,min=2"`
	Commune        string                  `json:"commune,omitempty" validate:"required_if=DeliveryMethod HOME,omitempty,min=2"`
	Street         string                  `json:"street,omitempty" validate:"required_if=DeliveryMethod HOME,omitempty,min=5"`
	PickupPointID  string                  `json:"pickupPointId,omitempty" validate:"required_if=DeliveryMethod PICKUP_POINT"`
}

// Normalize trims fields and maps external delivery method names.
func (a *Address) Normalize() {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Region = strings.TrimSpace(a.Region)
	a.Commune = strings.TrimSpace(a.Commune)
	a.Street = strings.TrimSpace(a.Street)
	a.PickupPointID = strings.TrimSpace(a.PickupPointID)
	if m, err := shipping.ParseDeliveryMethod(string(a.DeliveryMethod)); err == nil {
		a.DeliveryMethod = m
	}
}

// Validate normalizes a and checks it, returning a VALIDATION_ERROR AppError.
func (a *Address) Validate() error {
	a.Normalize()
	if err := common.Validator().Struct(a); err != nil {
		return &common.AppError{
			Code:       "VALIDATION_ERROR",
			Message:    "invalid shipping address",
			HTTPStatus: http.StatusUnprocessableEntity,
			Err:        err,
			Details:    common.FieldErrors(err),
		}
	}
	return nil
}

// Cart is a persisted shopping cart with its stored price breakdown.
type Cart struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"sessionCartId"`
	UserID          *string         `json:"userId,omitempty"`
	Lines           []pricing.Line  `json:"items"`
	ShippingAddress *Address        `json:"shippingAddress,omitempty"`
	ItemsPrice      decimal.Decimal `json:"itemsPrice"`
	ShippingPrice   decimal.Decimal `json:"shippingPrice"`
	TaxPrice        decimal.Decimal `json:"taxPrice"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	ExpiresAt       time.Time       `json:"expiresAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Empty reports whether the cart holds no lines.
func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}
