package domain

import "time"

// Role is the marketplace role attached to a profile.
type Role string

const (
	RoleConsumer Role = "consumer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleConsumer, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// Address is a Malaysian postal address.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
}

// Profile is the durable record of a user's role and approval status,
// distinct from the transient auth session.
type Profile struct {
	UserID     string    `json:"userId"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Phone      string    `json:"phone,omitempty"`
	Role       Role      `json:"role"`
	IsApproved bool      `json:"isApproved"`
	Address    Address   `json:"address"`
	CreatedAt  time.Time `json:"createdAt"`
}

// User is an authentication identity.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Metadata     Metadata  `json:"metadata,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Metadata is the free-form bag attached to a user at sign-up.
type Metadata map[string]string
