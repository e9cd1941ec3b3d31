// File: internal/slot/model.go
package slot

import (
	"time"

	"github.com/google/uuid"

	"marketplace_backend/internal/common"
)

// AdvertisingSlot is one active publication lease. A listing holds at most
// one slot at any time; the slot's expiry bounds how long the listing stays
// publicly visible.
type AdvertisingSlot struct {
	common.BaseModel
	HostID    uuid.UUID `gorm:"type:uuid;not null;index"`
	ListingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	PlanID    uuid.UUID `gorm:"type:uuid;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`

	// True while the host's subscription payment is delinquent but inside
	// the grace window. A past-due slot is not expired by the sweep unless
	// MarkedForImmediateExpiry overrides the grace.
	IsPastDue                bool `gorm:"not null;default:false"`
	MarkedForImmediateExpiry bool `gorm:"not null;default:false"`
	DoNotRenew               bool `gorm:"not null;default:false"`
}

// TableName specifies the table name for the AdvertisingSlot model.
func (AdvertisingSlot) TableName() string {
	return "advertising_slots"
}

// EligibleForExpiry applies the grace rule: a past-due slot is skipped
// unless an admin or billing override forces immediate expiry.
func (s *AdvertisingSlot) EligibleForExpiry() bool {
	if s.IsPastDue && !s.MarkedForImmediateExpiry {
		return false
	}
	return true
}
