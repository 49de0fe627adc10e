package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no product matches the lookup.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrSlugTaken is returned when a write collides with an existing slug.
	ErrSlugTaken = errors.New("catalog: slug already in use")
)

// Product is a sellable catalog entry. Sizes lists the variants a shopper can
// pick; an empty list means the product has no size.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	Description string          `json:"description"`
	Stock       int             `json:"stock"`
	Images      []string        `json:"images"`
	IsFeatured  bool            `json:"isFeatured"`
	Banner      *string         `json:"banner"`
	Price       decimal.Decimal `json:"price"`
	Sizes       []string        `json:"sizes"`
	Rating      decimal.Decimal `json:"rating"`
	NumReviews  int             `json:"numReviews"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Thumbnail returns the first image or "".
func (p Product) Thumbnail() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// AcceptsVariant reports whether variant is a valid pick for p. Products with
// sizes require one of them; products without sizes accept no variant.
func (p Product) AcceptsVariant(variant *string) bool {
	if len(p.Sizes) == 0 {
		return variant == nil || strings.TrimSpace(*variant) == ""
	}
	if variant == nil {
		return false
	}
	for _, size := range p.Sizes {
		if strings.EqualFold(size, strings.TrimSpace(*variant)) {
			return true
		}
	}
	return false
}

// Category is a derived category with a representative image.
type Category struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// ProductInput is the admin payload for create and update.
type ProductInput struct {
	Name        string          `json:"name" validate:"required,min=3"`
	Slug        string          `json:"slug" validate:"required,min=3"`
	Category    string          `json:"category" validate:"required,min=3"`
	Brand       string          `json:"brand" validate:"required,min=2"`
	Description string          `json:"description" validate:"required,min=10"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Images      []string        `json:"images" validate:"min=1,dive,required"`
	IsFeatured  bool            `json:"isFeatured"`
	Banner      *string         `json:"banner"`
	Price       decimal.Decimal `json:"price"`
	Sizes       []string        `json:"sizes" validate:"dive,required"`
}

func (in ProductInput) product(id string) Product {
	sizes := in.Sizes
	if sizes == nil {
		sizes = []string{}
	}
	return Product{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Slug:        strings.ToLower(strings.TrimSpace(in.Slug)),
		Category:    strings.TrimSpace(in.Category),
		Brand:       strings.TrimSpace(in.Brand),
		Description: in.Description,
		Stock:       in.Stock,
		Images:      in.Images,
		IsFeatured:  in.IsFeatured,
		Banner:      in.Banner,
		Price:       in.Price.Round(2),
		Sizes:       sizes,
	}
}

// CategoryName turns a URL slug such as "t-shirts" into "T Shirts".
func CategoryName(slug string) string {
	parts := strings.Split(strings.TrimSpace(slug), "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
