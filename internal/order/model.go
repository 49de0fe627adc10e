package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/fafa-store/internal/cart"
)

// ErrNotFound is returned when an order does not exist or is not visible to the caller.
var ErrNotFound = errors.New("order not found")

// Item is a frozen copy of a cart line.
type Item struct {
	ProductID string          `json:"productId"`
	Variant   *string         `json:"variant,omitempty"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

// Order is a placed order.
type Order struct {
	ID              string          `json:"id"`
	UserID          *string         `json:"userId,omitempty"`
	SessionID       *string         `json:"-"`
	ShippingAddress cart.Address    `json:"shippingAddress"`
	Items           []Item          `json:"items"`
	ItemsPrice      decimal.Decimal `json:"itemsPrice"`
	ShippingPrice   decimal.Decimal `json:"shippingPrice"`
	TaxPrice        decimal.Decimal `json:"taxPrice"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	Currency        string          `json:"currency"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// CustomerName falls back to "Unknown" when the address has no name.
func (o Order) CustomerName() string {
	if o.ShippingAddress.FullName == "" {
		return "Unknown"
	}
	return o.ShippingAddress.FullName
}

// CustomerPhone falls back to "N/A".
func (o Order) CustomerPhone() string {
	if o.ShippingAddress.Phone == "" {
		return "N/A"
	}
	return o.ShippingAddress.Phone
}

// Summary is the list row used by the back office.
type Summary struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"createdAt"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	IsDelivered   bool            `json:"isDelivered"`
	ItemCount     int             `json:"itemCount"`
	CustomerName  string          `json:"customerName"`
	CustomerPhone string          `json:"customerPhone"`
}

// Summarize projects o into a list row.
func Summarize(o Order) Summary {
	n := 0
	for _, it := range o.Items {
		n += it.Qty
	}
	return Summary{
		ID:            o.ID,
		CreatedAt:     o.CreatedAt,
		TotalPrice:    o.TotalPrice,
		IsDelivered:   o.IsDelivered,
		ItemCount:     n,
		CustomerName:  o.CustomerName(),
		CustomerPhone: o.CustomerPhone(),
	}
}

// Viewer is the caller reading orders.
type Viewer struct {
	UserID    string
	SessionID string
	Admin     bool
}

// CanSee reports whether v may read o. Guest orders are visible to the
// session that placed them.
func (v Viewer) CanSee(o Order) bool {
	if v.Admin {
		return true
	}
	if o.UserID != nil {
		return v.UserID != "" && *o.UserID == v.UserID
	}
	return o.SessionID != nil && v.SessionID != "" && *o.SessionID == v.SessionID
}
