package models

import (
	"gorm.io/gorm"
)

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalDeclined = "declined"
)

// Mahal is a bookable event venue. Listings start out pending and become
// publicly visible only after an admin approves them.
type Mahal struct {
	gorm.Model
	OwnerID         uint    `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Name            string  `gorm:"column:name;size:200;not null" json:"name"`
	Description     string  `gorm:"column:description;type:text" json:"description"`
	Address         string  `gorm:"column:address;size:500" json:"address"`
	City            string  `gorm:"column:city;size:100;index" json:"city"`
	State           string  `gorm:"column:state;size:100" json:"state"`
	Pincode         string  `gorm:"column:pincode;size:10" json:"pincode"`
	Capacity        int     `gorm:"column:capacity;not null" json:"capacity"`
	BasePrice       float64 `gorm:"column:base_price;not null" json:"base_price"`
	Currency        string  `gorm:"column:currency;size:10;default:INR" json:"currency"`
	ApprovalStatus  string  `gorm:"column:approval_status;size:20;not null;default:pending;index" json:"approval_status"`
	RejectionReason string  `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	IsActive        bool    `gorm:"column:is_active;default:true" json:"is_active"`

	Owner *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

// Contractor is an ancillary provider (catering, decor, photography) booked
// alongside a venue. Packages are priced variants of the base offering.
type Contractor struct {
	gorm.Model
	OwnerID         uint    `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Name            string  `gorm:"column:name;size:200;not null" json:"name"`
	Category        string  `gorm:"column:category;size:100;index" json:"category"`
	Description     string  `gorm:"column:description;type:text" json:"description"`
	City            string  `gorm:"column:city;size:100;index" json:"city"`
	BasePrice       float64 `gorm:"column:base_price;not null" json:"base_price"`
	Currency        string  `gorm:"column:currency;size:10;default:INR" json:"currency"`
	ApprovalStatus  string  `gorm:"column:approval_status;size:20;not null;default:pending;index" json:"approval_status"`
	RejectionReason string  `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	IsActive        bool    `gorm:"column:is_active;default:true" json:"is_active"`

	Packages []ContractorPackage `gorm:"foreignKey:ContractorID;constraint:OnDelete:CASCADE" json:"packages,omitempty"`
	Owner    *User               `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

type ContractorPackage struct {
	gorm.Model
	ContractorID uint    `gorm:"column:contractor_id;not null;index" json:"contractor_id"`
	Name         string  `gorm:"column:name;size:200;not null" json:"name"`
	Price        float64 `gorm:"column:price;not null" json:"price"`
}

// Service is a standalone offering that is not tied to a venue booking.
// It shares the approval sub-model with Mahal and Contractor.
type Service struct {
	gorm.Model
	OwnerID         uint    `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Name            string  `gorm:"column:name;size:200;not null" json:"name"`
	Category        string  `gorm:"column:category;size:100;index" json:"category"`
	Description     string  `gorm:"column:description;type:text" json:"description"`
	BasePrice       float64 `gorm:"column:base_price;not null" json:"base_price"`
	Currency        string  `gorm:"column:currency;size:10;default:INR" json:"currency"`
	ApprovalStatus  string  `gorm:"column:approval_status;size:20;not null;default:pending;index" json:"approval_status"`
	RejectionReason string  `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	IsActive        bool    `gorm:"column:is_active;default:true" json:"is_active"`

	Owner *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}
