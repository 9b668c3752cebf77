package models

import (
	"gorm.io/gorm"
)

const (
	PaymentStatusCreated  = "created"
	PaymentStatusPending  = "pending"
	PaymentStatusSuccess  = "success"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Payment tracks one gateway order for a booking. The unique index on
// booking_id keeps it to one row per booking even under racing create-order
// calls; a failed attempt is overwritten by the next create-order call
// rather than accumulating history.
type Payment struct {
	gorm.Model
	BookingID        uint    `gorm:"column:booking_id;not null;uniqueIndex" json:"booking_id"`
	Gateway          string  `gorm:"column:gateway;size:50;not null;default:razorpay" json:"gateway"`
	GatewayOrderID   string  `gorm:"column:gateway_order_id;size:255;not null;uniqueIndex" json:"gateway_order_id"`
	GatewayPaymentID string  `gorm:"column:gateway_payment_id;size:255" json:"gateway_payment_id,omitempty"`
	Amount           float64 `gorm:"column:amount;not null" json:"amount"`
	Status           string  `gorm:"column:status;size:20;not null;default:created;index" json:"status"`
	RawResponse      string  `gorm:"column:raw_response;type:text" json:"raw_response,omitempty"`

	Booking *Booking `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
}
