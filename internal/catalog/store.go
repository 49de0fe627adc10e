package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/fafa-store/internal/db"
)

const productColumns = `id, name, slug, category, brand, description, stock, images, is_featured,
	banner, price, sizes, rating, num_reviews, created_at`

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Page     int
	Limit    int
}

// Store is the product persistence used by Service.
type Store interface {
	Latest(ctx context.Context, limit int) ([]Product, error)
	List(ctx context.Context, params ListParams) ([]Product, error)
	Count(ctx context.Context, params ListParams) (int64, error)
	InCategory(ctx context.Context, name string) ([]Product, error)
	BySlug(ctx context.Context, slug string) (Product, error)
	ByID(ctx context.Context, id string) (Product, error)
	Categories(ctx context.Context) ([]Category, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id string) error
}

// PgStore implements Store on Postgres.
type PgStore struct {
	DB db.DBTX
}

// NewPgStore wraps a pool or transaction.
func NewPgStore(conn db.DBTX) *PgStore {
	return &PgStore{DB: conn}
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Category, &p.Brand, &p.Description, &p.Stock,
		&p.Images, &p.IsFeatured, &p.Banner, &p.Price, &p.Sizes, &p.Rating, &p.NumReviews, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Latest returns the most recently created products.
func (s *PgStore) Latest(ctx context.Context, limit int) ([]Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("latest products: %w", err)
	}
	return collectProducts(rows)
}

// List returns one page of products, newest first.
func (s *PgStore) List(ctx context.Context, params ListParams) ([]Product, error) {
	offset := (params.Page - 1) * params.Limit
	if offset < 0 {
		offset = 0
	}
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE ($1 = '' OR category = $1) AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		params.Category, params.Query, params.Limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collectProducts(rows)
}

// Count returns the number of products matching the list filters.
func (s *PgStore) Count(ctx context.Context, params ListParams) (int64, error) {
	var total int64
	err := s.DB.QueryRow(ctx, `SELECT count(*) FROM products
		WHERE ($1 = '' OR category = $1) AND ($2 = '' OR name ILIKE '%' || $2 || '%')`,
		params.Category, params.Query).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

// InCategory returns in-stock products whose category contains name.
func (s *PgStore) InCategory(ctx context.Context, name string) ([]Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE category ILIKE '%' || $1 || '%' AND stock > 0
		ORDER BY created_at DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("products in category: %w", err)
	}
	return collectProducts(rows)
}

// BySlug loads a product by slug.
func (s *PgStore) BySlug(ctx context.Context, slug string) (Product, error) {
	return scanProduct(s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug))
}

// ByID loads a product by id.
func (s *PgStore) ByID(ctx context.Context, id string) (Product, error) {
	return scanProduct(s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

// Categories derives the category list from products. The oldest product with
// an image supplies each category's picture.
func (s *PgStore) Categories(ctx context.Context) ([]Category, error) {
	rows, err := s.DB.Query(ctx, `SELECT DISTINCT ON (btrim(category)) btrim(category), COALESCE(images[1], '')
		FROM products
		ORDER BY btrim(category), (cardinality(images) = 0), created_at`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	out := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.Name, &c.Image); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts p and returns the stored row.
func (s *PgStore) Create(ctx context.Context, p Product) (Product, error) {
	row := s.DB.QueryRow(ctx, `INSERT INTO products
		(id, name, slug, category, brand, description, stock, images, is_featured, banner, price, sizes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+productColumns,
		p.ID, p.Name, p.Slug, p.Category, p.Brand, p.Description, p.Stock, p.Images, p.IsFeatured, p.Banner, p.Price, p.Sizes)
	out, err := scanProduct(row)
	if err != nil {
		return Product{}, mapWriteErr(err)
	}
	return out, nil
}

// Update overwrites the editable fields of p.
func (s *PgStore) Update(ctx context.Context, p Product) (Product, error) {
	row := s.DB.QueryRow(ctx, `UPDATE products SET
		name = $2, slug = $3, category = $4, brand = $5, description = $6, stock = $7,
		images = $8, is_featured = $9, banner = $10, price = $11, sizes = $12
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Name, p.Slug, p.Category, p.Brand, p.Description, p.Stock, p.Images, p.IsFeatured, p.Banner, p.Price, p.Sizes)
	out, err := scanProduct(row)
	if err != nil {
		return Product{}, mapWriteErr(err)
	}
	return out, nil
}

// Delete removes the product with id.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrSlugTaken
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("write product: %w", err)
}
