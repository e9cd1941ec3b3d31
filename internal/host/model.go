// File: internal/host/model.go
package host

import (
	"github.com/lib/pq"

	"marketplace_backend/internal/common"
)

// Host roles.
const (
	RoleHost  = "host"
	RoleAdmin = "admin"
)

// Host is an account that owns listings. Identity lives in Firebase; this row
// carries the profile and notification routing data.
type Host struct {
	common.BaseModel
	FirebaseUID  string         `gorm:"type:varchar(128);uniqueIndex;not null"`
	Email        string         `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name         string         `gorm:"type:varchar(255);not null"`
	Language     string         `gorm:"type:varchar(8);not null;default:'en'"`
	Role         string         `gorm:"type:varchar(32);not null;default:'host'"`
	IsVerified   bool           `gorm:"not null;default:false"`
	DeviceTokens pq.StringArray `gorm:"type:text[]"`
}

// TableName specifies the table name for the Host model.
func (Host) TableName() string {
	return "hosts"
}

// IsAdmin reports whether the host carries the admin role.
func (h *Host) IsAdmin() bool {
	return h.Role == RoleAdmin
}
