package domain

import "time"

// CartLine is one product's presence in a user's cart. The unit price is
// never stored on the line; it is read from Product when totals are needed.
type CartLine struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Product   *Product  `json:"product,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}
