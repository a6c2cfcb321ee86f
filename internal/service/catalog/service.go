// Package catalog serves product and category browsing, vendor product
// management and product images.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmamart/internal/domain"
	"pharmamart/internal/logging"
	categoryrepo "pharmamart/internal/repository/category"
	productrepo "pharmamart/internal/repository/product"
	"pharmamart/internal/storage"
	"pharmamart/internal/validate"
)

const (
	defaultLimit = 20
	maxLimit     = 100
	maxImages    = 8
)

type Service struct {
	products   productrepo.Repository
	categories categoryrepo.Repository
	images     storage.Images
	logger     *zap.Logger
}

func New(products productrepo.Repository, categories categoryrepo.Repository, images storage.Images, logger *zap.Logger) *Service {
	if images == nil {
		images = storage.Disabled{}
	}
	return &Service{
		products:   products,
		categories: categories,
		images:     images,
		logger:     logging.OrNop(logger).Named("catalog"),
	}
}

// ListInput mirrors the product listing query string.
type ListInput struct {
	Category string `form:"category"`
	VendorID string `form:"vendor"`
	Search   string `form:"q"`
	MinPrice string `form:"minPrice"`
	MaxPrice string `form:"maxPrice"`
	InStock  bool   `form:"inStock"`
	Sort     string `form:"sort"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

// Page is one page of products and the total match count.
type Page struct {
	Items  []domain.Product `json:"items"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// List returns active products matching in.
func (s *Service) List(ctx context.Context, in ListInput) (Page, error) {
	f, err := buildFilter(in)
	if err != nil {
		return Page{}, err
	}
	return s.list(ctx, f)
}

// VendorProducts lists a vendor's own products, inactive ones included.
func (s *Service) VendorProducts(ctx context.Context, vendorID string, limit, offset int) (Page, error) {
	f, err := buildFilter(ListInput{VendorID: vendorID, Limit: limit, Offset: offset})
	if err != nil {
		return Page{}, err
	}
	f.IncludeInactive = true
	return s.list(ctx, f)
}

func (s *Service) list(ctx context.Context, f productrepo.Filter) (Page, error) {
	items, total, err := s.products.List(ctx, f)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []domain.Product{}
	}
	return Page{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func buildFilter(in ListInput) (productrepo.Filter, error) {
	fe := validate.FieldErrors{}
	f := productrepo.Filter{
		CategorySlug: strings.TrimSpace(in.Category),
		VendorID:     strings.TrimSpace(in.VendorID),
		Search:       strings.TrimSpace(in.Search),
		InStockOnly:  in.InStock,
		Limit:        in.Limit,
		Offset:       in.Offset,
	}
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		fe.Add("offset", "must not be negative")
	}
	if f.VendorID != "" {
		if _, err := uuid.Parse(f.VendorID); err != nil {
			fe.Add("vendor", "must be a uuid")
		}
	}
	switch in.Sort {
	case "", productrepo.SortNewest, productrepo.SortPriceAsc, productrepo.SortPriceDesc, productrepo.SortName:
		f.Sort = in.Sort
	default:
		fe.Add("sort", "unknown sort")
	}
	if in.MinPrice != "" {
		d, err := decimal.NewFromString(in.MinPrice)
		if err != nil {
			fe.Add("minPrice", "must be a number")
		} else {
			f.MinPrice = &d
		}
	}
	if in.MaxPrice != "" {
		d, err := decimal.NewFromString(in.MaxPrice)
		if err != nil {
			fe.Add("maxPrice", "must be a number")
		} else {
			f.MaxPrice = &d
		}
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		fe.Add("minPrice", "must not exceed maxPrice")
	}
	return f, fe.Err()
}

// Get returns an active product.
func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// Products returns live product rows for ids, skipping unknown ones.
func (s *Service) Products(ctx context.Context, ids []string) ([]domain.Product, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return s.products.GetByIDs(ctx, valid)
}

func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.categories.List(ctx)
}

// UpsertCategory creates or renames a category keyed by slug. The slug is
// derived from the name when empty.
func (s *Service) UpsertCategory(ctx context.Context, c domain.Category) (*domain.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, validate.FieldErrors{"name": "required"}
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if c.Slug == "" {
		return nil, validate.FieldErrors{"slug": "required"}
	}
	return s.categories.Upsert(ctx, c)
}

// ProductInput is the vendor-editable part of a product.
type ProductInput struct {
	Name                 string `json:"name"`
	Slug                 string `json:"slug"`
	Description          string `json:"description"`
	Price                string `json:"price"`
	Stock                int    `json:"stock"`
	MALNumber            string `json:"malNumber"`
	Category             string `json:"category"`
	RequiresPrescription bool   `json:"requiresPrescription"`
	IsActive             *bool  `json:"isActive"`
}

// CreateProduct lists a new product for vendorID.
func (s *Service) CreateProduct(ctx context.Context, vendorID string, in ProductInput) (*domain.Product, error) {
	p := domain.Product{VendorID: vendorID, IsActive: true, ImageURLs: []string{}}
	if err := s.apply(ctx, &p, in); err != nil {
		return nil, err
	}
	created, err := s.products.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product created", zap.String("product_id", created.ID), zap.String("vendor_id", vendorID))
	return created, nil
}

// UpdateProduct replaces the editable fields of a product the vendor owns.
func (s *Service) UpdateProduct(ctx context.Context, vendorID, id string, in ProductInput) (*domain.Product, error) {
	p, err := s.owned(ctx, vendorID, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, p, in); err != nil {
		return nil, err
	}
	return s.products.Update(ctx, *p)
}

// DeleteProduct removes a product and, best effort, its images.
func (s *Service) DeleteProduct(ctx context.Context, vendorID, id string) error {
	p, err := s.owned(ctx, vendorID, id)
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, vendorID, id); err != nil {
		return err
	}
	for _, u := range p.ImageURLs {
		if err := s.images.Delete(ctx, u); err != nil {
			s.logger.Warn("orphaned product image", zap.String("url", u), zap.Error(err))
		}
	}
	return nil
}

// AddImage uploads an image and appends its URL to the product.
func (s *Service) AddImage(ctx context.Context, vendorID, id, filename string, r io.Reader, size int64, contentType string) (*domain.Product, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, validate.FieldErrors{"file": "must be an image"}
	}
	p, err := s.owned(ctx, vendorID, id)
	if err != nil {
		return nil, err
	}
	if len(p.ImageURLs) >= maxImages {
		return nil, validate.FieldErrors{"file": fmt.Sprintf("at most %d images per product", maxImages)}
	}

	key := fmt.Sprintf("products/%s/%s%s", p.ID, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	url, err := s.images.Upload(ctx, key, r, size, contentType)
	if err != nil {
		return nil, err
	}
	p.ImageURLs = append(p.ImageURLs, url)
	updated, err := s.products.Update(ctx, *p)
	if err != nil {
		if delErr := s.images.Delete(ctx, url); delErr != nil {
			s.logger.Warn("orphaned product image", zap.String("url", url), zap.Error(delErr))
		}
		return nil, err
	}
	return updated, nil
}

// RemoveImage detaches url from the product and deletes the object.
func (s *Service) RemoveImage(ctx context.Context, vendorID, id, url string) (*domain.Product, error) {
	p, err := s.owned(ctx, vendorID, id)
	if err != nil {
		return nil, err
	}
	i := slices.Index(p.ImageURLs, url)
	if i < 0 {
		return nil, domain.ErrNotFound
	}
	p.ImageURLs = slices.Delete(p.ImageURLs, i, i+1)
	updated, err := s.products.Update(ctx, *p)
	if err != nil {
		return nil, err
	}
	if err := s.images.Delete(ctx, url); err != nil {
		s.logger.Warn("orphaned product image", zap.String("url", url), zap.Error(err))
	}
	return updated, nil
}

func (s *Service) owned(ctx context.Context, vendorID, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.VendorID != vendorID {
		return nil, domain.ErrForbidden
	}
	return p, nil
}

func (s *Service) apply(ctx context.Context, p *domain.Product, in ProductInput) error {
	fe := validate.FieldErrors{}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		fe.Add("name", "required")
	}
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(in.Price))
	switch {
	case err != nil:
		fe.Add("price", "must be a number")
	case price.IsNegative():
		fe.Add("price", "must not be negative")
	case !price.Equal(price.Round(2)):
		fe.Add("price", "at most 2 decimal places")
	}
	if in.Stock < 0 {
		fe.Add("stock", "must not be negative")
	}
	mal := strings.ToUpper(strings.TrimSpace(in.MALNumber))
	if !validate.MALNumber(mal) {
		fe.Add("malNumber", "must look like MAL12345678A")
	}

	var categoryID *string
	if c := strings.TrimSpace(in.Category); c != "" {
		cat, err := s.categories.GetBySlug(ctx, c)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			fe.Add("category", "unknown category")
		case err != nil:
			return err
		default:
			categoryID = &cat.ID
		}
	}
	if err := fe.Err(); err != nil {
		return err
	}

	p.Name = name
	p.Slug = slug
	p.Description = strings.TrimSpace(in.Description)
	p.Price = price
	p.Stock = in.Stock
	p.MALNumber = mal
	p.CategoryID = categoryID
	p.RequiresPrescription = in.RequiresPrescription
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	return nil
}

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
