package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry listed by a vendor. Price is in MYR.
type Product struct {
	ID                   string          `json:"id"`
	VendorID             string          `json:"vendorId"`
	CategoryID           *string         `json:"categoryId,omitempty"`
	Name                 string          `json:"name"`
	Slug                 string          `json:"slug"`
	Description          string          `json:"description,omitempty"`
	Price                decimal.Decimal `json:"price"`
	Stock                int             `json:"stock"`
	MALNumber            string          `json:"malNumber"`
	ImageURLs            []string        `json:"imageUrls"`
	RequiresPrescription bool            `json:"requiresPrescription"`
	IsActive             bool            `json:"isActive"`
	CreatedAt            time.Time       `json:"createdAt"`
}

// InStock reports whether at least qty units are on hand.
func (p Product) InStock(qty int) bool {
	return p.Stock >= qty
}
