package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

const (
	PaymentUnpaid   = "unpaid"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
	PaymentFailed   = "failed"
)

// Booking is the immutable order record materialized from a cart. Only
// Status, PaymentStatus and PaymentID change after creation; amounts and
// items are snapshots taken at booking time.
type Booking struct {
	gorm.Model
	UserID          uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	MahalID         uint      `gorm:"column:mahal_id;not null;index" json:"mahal_id"`
	EventDate       time.Time `gorm:"column:event_date;not null;index" json:"event_date"`
	GuestCount      int       `gorm:"column:guest_count;not null" json:"guest_count"`
	Status          string    `gorm:"column:status;size:20;not null;default:pending;index" json:"status"`
	PaymentStatus   string    `gorm:"column:payment_status;size:20;not null;default:unpaid;index" json:"payment_status"`
	TotalAmount     float64   `gorm:"column:total_amount;not null" json:"total_amount"`
	SpecialRequests string    `gorm:"column:special_requests;type:text" json:"special_requests,omitempty"`
	PaymentID       *uint     `gorm:"column:payment_id" json:"payment_id,omitempty"`

	User  *User                   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Mahal *Mahal                  `gorm:"foreignKey:MahalID" json:"mahal,omitempty"`
	Items []BookingContractorItem `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE" json:"contractor_items"`
}

// BookingContractorItem snapshots a contractor selection at booking time.
// PriceAtBooking is never recomputed, even if the contractor reprices.
type BookingContractorItem struct {
	gorm.Model
	BookingID      uint    `gorm:"column:booking_id;not null;index" json:"booking_id"`
	ContractorID   uint    `gorm:"column:contractor_id;not null;index" json:"contractor_id"`
	PackageID      string  `gorm:"column:package_id;size:50;not null" json:"package_id"`
	PackageName    string  `gorm:"column:package_name;size:200;not null" json:"package_name"`
	PriceAtBooking float64 `gorm:"column:price_at_booking;not null" json:"price_at_booking"`
	Quantity       int     `gorm:"column:quantity;not null;default:1" json:"quantity"`

	Contractor *Contractor `gorm:"foreignKey:ContractorID" json:"contractor,omitempty"`
}
