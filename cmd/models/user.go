package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser       = "user"
	RoleMahalOwner = "mahal_owner"
	RoleContractor = "contractor"
	RoleAdmin      = "admin"
)

// ValidRoles lists the roles accepted at registration. Admin accounts are
// created through the seed-admin command, never through the public API.
var ValidRoles = []string{RoleUser, RoleMahalOwner, RoleContractor}

type User struct {
	gorm.Model
	FullName              string     `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email                 string     `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash          string     `gorm:"column:password_hash;size:255;not null" json:"-"`
	Phone                 string     `gorm:"column:phone;size:20" json:"phone"`
	Role                  string     `gorm:"column:role;size:50;not null;default:user" json:"role"`
	IsActive              bool       `gorm:"column:is_active;default:true" json:"is_active"`
	DisabledUntil         *time.Time `gorm:"column:disabled_until" json:"disabled_until,omitempty"`
	OrdersDisabledUntil   *time.Time `gorm:"column:orders_disabled_until" json:"orders_disabled_until,omitempty"`
	EmailVerified         bool       `gorm:"column:email_verified;default:false" json:"email_verified"`
	EmailVerificationCode string     `gorm:"size:6" json:"-"`
	VerificationExpiry    time.Time  `json:"-"`
	Refresh               string     `gorm:"column:refresh_token;size:255" json:"-"`
	RefreshTokenExpiredAt time.Time  `gorm:"column:refresh_token_expired_at" json:"-"`
}

// Disabled reports whether the account is currently blocked from logging in.
func (u *User) Disabled(now time.Time) bool {
	if !u.IsActive {
		return true
	}
	return u.DisabledUntil != nil && u.DisabledUntil.After(now)
}

// OrdersDisabled reports whether the account is blocked from creating
// bookings and payment orders while still being able to browse.
func (u *User) OrdersDisabled(now time.Time) bool {
	return u.OrdersDisabledUntil != nil && u.OrdersDisabledUntil.After(now)
}

type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null"`
	Token     string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
}
