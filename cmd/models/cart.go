package models

import (
	"time"

	"gorm.io/gorm"
)

// Cart holds a user's in-progress selection: at most one venue plus a set of
// contractors. The unique index on user_id guarantees one cart per user even
// when two first-access requests race.
type Cart struct {
	gorm.Model
	UserID    uint       `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	MahalID   *uint      `gorm:"column:mahal_id" json:"mahal_id,omitempty"`
	EventDate *time.Time `gorm:"column:event_date" json:"event_date,omitempty"`

	Mahal       *Mahal           `gorm:"foreignKey:MahalID" json:"mahal,omitempty"`
	Contractors []CartContractor `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"contractors"`
}

// CartContractor links one contractor into a cart. The composite unique
// index gives the selection set semantics at the storage layer.
type CartContractor struct {
	gorm.Model
	CartID       uint `gorm:"column:cart_id;not null;uniqueIndex:idx_cart_contractor" json:"cart_id"`
	ContractorID uint `gorm:"column:contractor_id;not null;uniqueIndex:idx_cart_contractor" json:"contractor_id"`

	Contractor *Contractor `gorm:"foreignKey:ContractorID" json:"contractor,omitempty"`
}
