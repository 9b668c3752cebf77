package models

import (
	"gorm.io/gorm"
)

// ActivityLog is an advisory audit trail. Writes are fire-and-forget; a
// failed insert must never abort the operation being logged.
type ActivityLog struct {
	gorm.Model
	UserID      uint   `gorm:"column:user_id;index" json:"user_id"`
	UserName    string `gorm:"column:user_name;size:255" json:"user_name"`
	Role        string `gorm:"column:role;size:50" json:"role"`
	Action      string `gorm:"column:action;size:100;not null;index" json:"action"`
	Description string `gorm:"column:description;type:text" json:"description"`
	TargetType  string `gorm:"column:target_type;size:50" json:"target_type,omitempty"`
	TargetID    uint   `gorm:"column:target_id" json:"target_id,omitempty"`
	TargetName  string `gorm:"column:target_name;size:255" json:"target_name,omitempty"`
	IPAddress   string `gorm:"column:ip_address;size:64" json:"ip_address,omitempty"`
	UserAgent   string `gorm:"column:user_agent;size:512" json:"user_agent,omitempty"`
}
