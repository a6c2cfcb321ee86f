// Package importer loads product and category CSV files into the catalog.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmamart/internal/domain"
	"pharmamart/internal/logging"
	"pharmamart/internal/service/catalog"
	"pharmamart/internal/validate"
)

type ProductWriter interface {
	UpsertBySlug(ctx context.Context, p domain.Product) (*domain.Product, error)
}

type CategoryWriter interface {
	Upsert(ctx context.Context, c domain.Category) (*domain.Category, error)
}

// Kind is the type of CSV file detected from its header.
type Kind string

const (
	KindProducts   Kind = "products"
	KindCategories Kind = "categories"
)

// DetectKind reads the header row and decides what the file contains.
func DetectKind(r io.Reader) (Kind, error) {
	headers, err := csv.NewReader(r).Read()
	if err != nil {
		return "", fmt.Errorf("read headers: %w", err)
	}
	idx := headerIndex(headers)
	if _, ok := idx["mal_number"]; ok {
		return KindProducts, nil
	}
	if _, ok := idx["price"]; ok {
		return KindProducts, nil
	}
	if _, ok := idx["name"]; ok {
		return KindCategories, nil
	}
	return "", errors.New("unrecognised CSV header")
}

// CSVImporter upserts products keyed by slug for one vendor. A row with
// only image_url set adds an image to the product above it.
type CSVImporter struct {
	reader     *csv.Reader
	products   ProductWriter
	categories CategoryWriter
	vendorID   string
	logger     *zap.Logger

	categoryIDs map[string]string
}

func NewCSVImporter(r io.Reader, products ProductWriter, categories CategoryWriter, vendorID string, logger *zap.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:      csvr,
		products:    products,
		categories:  categories,
		vendorID:    vendorID,
		logger:      logging.OrNop(logger).Named("importer"),
		categoryIDs: make(map[string]string),
	}
}

type csvRow struct {
	line         int
	Name         string
	Slug         string
	Category     string
	Price        string
	Stock        string
	MALNumber    string
	Description  string
	Prescription string
	ImageURLs    []string
}

// Run imports products and returns how many were written.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)

	var (
		current  *csvRow
		imported int
		line     = 1
	)
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}

		row := parseRow(record, index)
		if row == nil {
			continue
		}
		row.line = line

		if row.Name != "" || row.Slug != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}
		if current != nil {
			current.ImageURLs = append(current.ImageURLs, row.ImageURLs...)
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}
	i.logger.Info("products imported", zap.Int("count", imported), zap.String("vendor_id", i.vendorID))
	return imported, nil
}

// RunCategories imports a name,slug,description file.
func (i *CSVImporter) RunCategories(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)

	imported := 0
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		name := pick(record, index, "name")
		if name == "" {
			continue
		}
		c := domain.Category{
			Name:        name,
			Slug:        pick(record, index, "slug"),
			Description: pick(record, index, "description"),
		}
		if c.Slug == "" {
			c.Slug = catalog.Slugify(name)
		}
		if _, err := i.categories.Upsert(ctx, c); err != nil {
			return imported, fmt.Errorf("upsert category %q: %w", c.Slug, err)
		}
		imported++
	}
	i.logger.Info("categories imported", zap.Int("count", imported))
	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	slug := row.Slug
	if slug == "" {
		slug = catalog.Slugify(row.Name)
	}
	if row.Name == "" || slug == "" {
		return fmt.Errorf("row %d: name required", row.line)
	}
	price, err := decimal.NewFromString(row.Price)
	if err != nil || price.IsNegative() {
		return fmt.Errorf("row %d (%s): invalid price %q", row.line, slug, row.Price)
	}
	stock := 0
	if row.Stock != "" {
		stock, err = strconv.Atoi(row.Stock)
		if err != nil || stock < 0 {
			return fmt.Errorf("row %d (%s): invalid stock %q", row.line, slug, row.Stock)
		}
	}
	mal := strings.ToUpper(row.MALNumber)
	if !validate.MALNumber(mal) {
		return fmt.Errorf("row %d (%s): invalid MAL number %q", row.line, slug, row.MALNumber)
	}
	rx, _ := strconv.ParseBool(row.Prescription)

	categoryID, err := i.category(ctx, row.Category)
	if err != nil {
		return fmt.Errorf("row %d (%s): %w", row.line, slug, err)
	}

	p := domain.Product{
		VendorID:             i.vendorID,
		CategoryID:           categoryID,
		Name:                 row.Name,
		Slug:                 slug,
		Description:          row.Description,
		Price:                price.Round(2),
		Stock:                stock,
		MALNumber:            mal,
		ImageURLs:            row.ImageURLs,
		RequiresPrescription: rx,
		IsActive:             true,
	}
	if _, err := i.products.UpsertBySlug(ctx, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", slug, err)
	}
	return nil
}

// category resolves a category name, creating it on first sight.
func (i *CSVImporter) category(ctx context.Context, name string) (*string, error) {
	if name == "" || i.categories == nil {
		return nil, nil
	}
	slug := catalog.Slugify(name)
	if id, ok := i.categoryIDs[slug]; ok {
		return &id, nil
	}
	c, err := i.categories.Upsert(ctx, domain.Category{Name: name, Slug: slug})
	if err != nil {
		return nil, fmt.Errorf("upsert category %q: %w", slug, err)
	}
	i.categoryIDs[slug] = c.ID
	return &c.ID, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	row := &csvRow{
		Name:         pick(record, index, "name"),
		Slug:         pick(record, index, "slug"),
		Category:     pick(record, index, "category"),
		Price:        pick(record, index, "price"),
		Stock:        pick(record, index, "stock"),
		MALNumber:    pick(record, index, "mal_number"),
		Description:  pick(record, index, "description"),
		Prescription: pick(record, index, "requires_prescription"),
	}
	imageURL := pick(record, index, "image_url")
	if row.Name == "" && row.Slug == "" && imageURL == "" {
		return nil
	}
	if imageURL != "" {
		row.ImageURLs = []string{imageURL}
	}
	return row
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
