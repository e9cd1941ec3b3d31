// File: internal/subscription/model.go
package subscription

import (
	"time"

	"github.com/google/uuid"

	"marketplace_backend/internal/common"
)

// Subscription statuses.
const (
	StatusActive   = "ACTIVE"
	StatusPastDue  = "PAST_DUE"
	StatusCanceled = "CANCELED"
)

// Plan defines what a subscription tier buys: how many listings may hold an
// advertising slot at once and how long each lease runs.
type Plan struct {
	common.BaseModel
	Name           string `gorm:"type:varchar(64);not null;uniqueIndex"`
	DurationDays   int    `gorm:"not null"`
	MaxActiveSlots int    `gorm:"not null"`
}

// TableName specifies the table name for the Plan model.
func (Plan) TableName() string {
	return "plans"
}

// HostSubscription is a host's current billing relationship. Payment capture
// happens elsewhere; this engine only reads status and period boundaries.
type HostSubscription struct {
	common.BaseModel
	HostID           uuid.UUID `gorm:"type:uuid;not null;index"`
	PlanID           uuid.UUID `gorm:"type:uuid;not null"`
	Plan             Plan      `gorm:"foreignKey:PlanID"`
	Status           string    `gorm:"type:varchar(32);not null;default:'ACTIVE'"`
	CurrentPeriodEnd time.Time `gorm:"not null"`
}

// TableName specifies the table name for the HostSubscription model.
func (HostSubscription) TableName() string {
	return "host_subscriptions"
}

// IsPastDue reports whether the subscription payment is delinquent.
func (s *HostSubscription) IsPastDue() bool {
	return s.Status == StatusPastDue
}
