package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNegativeInput is returned when a line carries a negative unit price or quantity.
var ErrNegativeInput = errors.New("pricing: negative input")

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Subtotal sums unitPrice*qty over all lines. An empty cart is zero.
func Subtotal(lines []Line) (decimal.Decimal, error) {
	subtotal := decimal.Zero
	for _, ln := range lines {
		if ln.UnitPrice.IsNegative() || ln.Qty < 0 {
			return decimal.Zero, fmt.Errorf("line %s: %w", ln.Key(), ErrNegativeInput)
		}
		subtotal = subtotal.Add(ln.UnitPrice.Mul(decimal.NewFromInt(int64(ln.Qty))))
	}
	return subtotal, nil
}

// Total adds shipping to the subtotal.
func Total(subtotal, shipping decimal.Decimal) decimal.Decimal {
	return subtotal.Add(shipping)
}

// TaxFor computes tax in basis points over the subtotal, rounded to two places.
func TaxFor(subtotal decimal.Decimal, taxBps int) decimal.Decimal {
	if taxBps <= 0 || !subtotal.IsPositive() {
		return decimal.Zero
	}
	return subtotal.Mul(decimal.NewFromInt(int64(taxBps))).Div(decimal.NewFromInt(10000)).Round(2)
}

// TotalWithTax is Total plus the tax term.
func TotalWithTax(subtotal, tax, shipping decimal.Decimal) decimal.Decimal {
	return Total(subtotal, shipping).Add(tax)
}

// Compute calculates cart totals given the provided inputs.
func Compute(lines []Line, taxBps int, shipping decimal.Decimal) (Summary, error) {
	subtotal, err := Subtotal(lines)
	if err != nil {
		return Summary{}, err
	}
	if shipping.IsNegative() {
		return Summary{}, fmt.Errorf("shipping: %w", ErrNegativeInput)
	}
	tax := TaxFor(subtotal, taxBps)
	return Summary{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    TotalWithTax(subtotal, tax, shipping),
	}, nil
}
