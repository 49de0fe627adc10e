package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/fafa-store/internal/common"
)

const (
	keyLatest     = "catalog:products:latest"
	keyCategories = "catalog:categories"
	keyPattern    = "catalog:*"
)

// Service orchestrates catalog queries and caching.
type Service struct {
	store        Store
	cache        *Cache
	defaultPage  int
	defaultLimit int
	maxLimit     int
	latestLimit  int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *Cache
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
	LatestLimit  int
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items      []Product `json:"items"`
	Total      int64     `json:"total"`
	TotalPages int       `json:"totalPages"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	defaultPage := cfg.DefaultPage
	if defaultPage < 1 {
		defaultPage = 1
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 10
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	latest := cfg.LatestLimit
	if latest < 1 {
		latest = 4
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		defaultPage:  defaultPage,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		latestLimit:  latest,
	}, nil
}

// ParseListParams normalises raw query values into typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Page:     s.defaultPage,
		Limit:    s.defaultLimit,
		Query:    strings.TrimSpace(values.Get("q")),
		Category: strings.TrimSpace(values.Get("category")),
	}
	if params.Category == "all" {
		params.Category = ""
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = min(limit, s.maxLimit)
	}
	return params, nil
}

// Latest returns the newest products for the storefront home page.
func (s *Service) Latest(ctx context.Context) ([]Product, error) {
	var cached []Product
	if ok, err := s.cache.GetJSON(ctx, keyLatest, &cached); err == nil && ok {
		return cached, nil
	}
	items, err := s.store.Latest(ctx, s.latestLimit)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, keyLatest, items)
	return items, nil
}

// ListProducts returns a filtered page of products.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	key := listCacheKey(params)
	var cached ProductListResult
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	total, err := s.store.Count(ctx, params)
	if err != nil {
		return ProductListResult{}, err
	}
	items, err := s.store.List(ctx, params)
	if err != nil {
		return ProductListResult{}, err
	}
	result := ProductListResult{
		Items:      items,
		Total:      total,
		TotalPages: common.NewPagination(params.Page, params.Limit, int(total)).TotalPages,
		Page:       params.Page,
		Limit:      params.Limit,
	}
	_ = s.cache.SetJSON(ctx, key, result)
	return result, nil
}

// ProductBySlug returns a product detail.
func (s *Service) ProductBySlug(ctx context.Context, slug string) (Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Product{}, badRequest("slug", "slug is required", nil)
	}
	key := "catalog:products:detail:" + slug
	var cached Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	p, err := s.store.BySlug(ctx, slug)
	if err != nil {
		return Product{}, mapErr(err)
	}
	_ = s.cache.SetJSON(ctx, key, p)
	return p, nil
}

// ProductByID reads a product straight from the store. Cart operations use it
// so price and stock are never served from cache.
func (s *Service) ProductByID(ctx context.Context, id string) (Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, mapErr(ErrNotFound)
	}
	p, err := s.store.ByID(ctx, id)
	if err != nil {
		return Product{}, mapErr(err)
	}
	return p, nil
}

// InCategory lists in-stock products for a category slug.
func (s *Service) InCategory(ctx context.Context, slug string) ([]Product, error) {
	name := CategoryName(slug)
	if name == "" {
		return nil, badRequest("category", "category is required", nil)
	}
	return s.store.InCategory(ctx, name)
}

// Categories returns the derived category list.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	var cached []Category
	if ok, err := s.cache.GetJSON(ctx, keyCategories, &cached); err == nil && ok {
		return cached, nil
	}
	items, err := s.store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, keyCategories, items)
	return items, nil
}

// CreateProduct validates and stores a new product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := validateInput(in); err != nil {
		return Product{}, err
	}
	p, err := s.store.Create(ctx, in.product(uuid.NewString()))
	if err != nil {
		return Product{}, mapErr(err)
	}
	s.invalidate(ctx)
	return p, nil
}

// UpdateProduct replaces the editable fields of product id.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, mapErr(ErrNotFound)
	}
	if err := validateInput(in); err != nil {
		return Product{}, err
	}
	p, err := s.store.Update(ctx, in.product(id))
	if err != nil {
		return Product{}, mapErr(err)
	}
	s.invalidate(ctx)
	return p, nil
}

// DeleteProduct removes product id.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return mapErr(ErrNotFound)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return mapErr(err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	_ = s.cache.DeleteMatching(ctx, keyPattern)
}

func validateInput(in ProductInput) error {
	if err := common.Validator().Struct(in); err != nil {
		return &common.AppError{Code: "VALIDATION_ERROR", Message: "validation failed", HTTPStatus: http.StatusUnprocessableEntity, Err: err, Details: common.FieldErrors(err)}
	}
	if in.Price.IsNegative() {
		return &common.AppError{Code: "VALIDATION_ERROR", Message: "validation failed", HTTPStatus: http.StatusUnprocessableEntity, Details: map[string]string{"price": "gte=0"}}
	}
	return nil
}

func listCacheKey(p ListParams) string {
	return fmt.Sprintf("catalog:products:list:%s", common.Sha256Hex(fmt.Sprintf("%d|%d|%s|%s", p.Page, p.Limit, p.Category, p.Query)))
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
	case errors.Is(err, ErrSlugTaken):
		return &common.AppError{Code: "CONFLICT", Message: "slug already in use", HTTPStatus: http.StatusConflict, Err: err}
	default:
		return err
	}
}

func badRequest(field, message string, err error) error {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]string{"field": field},
	}
}
