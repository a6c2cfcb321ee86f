package domain

import "time"

// ApplicationStatus is the review state of a vendor application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// VendorApplication is a consumer's request to sell on the marketplace.
type VendorApplication struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"userId"`
	BusinessName       string            `json:"businessName"`
	RegistrationNumber string            `json:"registrationNumber"`
	PharmacyLicense    string            `json:"pharmacyLicense"`
	Phone              string            `json:"phone"`
	Address            Address           `json:"address"`
	Status             ApplicationStatus `json:"status"`
	ReviewNote         string            `json:"reviewNote,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	ReviewedAt         *time.Time        `json:"reviewedAt,omitempty"`
}
