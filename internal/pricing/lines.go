package pricing

import "github.com/shopspring/decimal"

// Line is one cart entry. Lines are identified by product and variant.
type Line struct {
	ProductID string          `json:"productId"`
	Variant   *string         `json:"variant,omitempty"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

// Meta carries the display fields copied onto a new line.
type Meta struct {
	Name  string
	Slug  string
	Image string
}

// Key renders the identity of a line, e.g. "p1/M" or "p1/-".
func (l Line) Key() string {
	if l.Variant == nil {
		return l.ProductID + "/-"
	}
	return l.ProductID + "/" + *l.Variant
}

// Matches reports whether the line has the given identity. A nil variant only
// matches another nil variant.
func (l Line) Matches(productID string, variant *string) bool {
	if l.ProductID != productID {
		return false
	}
	if l.Variant == nil || variant == nil {
		return l.Variant == nil && variant == nil
	}
	return *l.Variant == *variant
}

// Find returns the index of the matching line or -1.
func Find(lines []Line, productID string, variant *string) int {
	for i := range lines {
		if lines[i].Matches(productID, variant) {
			return i
		}
	}
	return -1
}

// Quantity of the matching line, zero when absent.
func Quantity(lines []Line, productID string, variant *string) int {
	if i := Find(lines, productID, variant); i >= 0 {
		return lines[i].Qty
	}
	return 0
}

// ProductQuantity sums the quantities of every line of productID, whatever
// the variant.
func ProductQuantity(lines []Line, productID string) int {
	n := 0
	for _, ln := range lines {
		if ln.ProductID == productID {
			n += ln.Qty
		}
	}
	return n
}

// Count sums quantities over all lines.
func Count(lines []Line) int {
	n := 0
	for _, ln := range lines {
		n += ln.Qty
	}
	return n
}

// AddOne returns a new slice with one more unit of the identified line. When no
// line matches a new one is appended with qty 1. allowed is the caller's stock
// decision; when false the result equals the input.
func AddOne(lines []Line, productID string, variant *string, unitPrice decimal.Decimal, meta Meta, allowed bool) []Line {
	out := clone(lines)
	if !allowed {
		return out
	}
	if i := Find(out, productID, variant); i >= 0 {
		out[i].Qty++
		return out
	}
	return append(out, Line{
		ProductID: productID,
		Variant:   copyVariant(variant),
		Name:      meta.Name,
		Slug:      meta.Slug,
		Image:     meta.Image,
		UnitPrice: unitPrice,
		Qty:       1,
	})
}

// RemoveOne returns a new slice with one less unit of the identified line. A line
// at qty 1 is dropped. An absent line leaves the result equal to the input.
func RemoveOne(lines []Line, productID string, variant *string) []Line {
	out := clone(lines)
	i := Find(out, productID, variant)
	if i < 0 {
		return out
	}
	if out[i].Qty > 1 {
		out[i].Qty--
		return out
	}
	return append(out[:i], out[i+1:]...)
}

func clone(lines []Line) []Line {
	out := make([]Line, len(lines), len(lines)+1)
	for i, ln := range lines {
		ln.Variant = copyVariant(ln.Variant)
		out[i] = ln
	}
	return out
}

func copyVariant(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
