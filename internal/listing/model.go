// File: internal/listing/model.go
package listing

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"marketplace_backend/internal/common"
)

// Status is the listing's position in the publication lifecycle.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusInReview  Status = "IN_REVIEW"
	StatusReviewing Status = "REVIEWING"
	StatusLocked    Status = "LOCKED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusOnline    Status = "ONLINE"
	StatusOffline   Status = "OFFLINE"
	StatusArchived  Status = "ARCHIVED"
)

// Image statuses. Only READY images are eligible for publication.
const (
	ImageStatusPending = "PENDING"
	ImageStatusReady   = "READY"
)

// Listing is one property going through review and publication.
type Listing struct {
	common.BaseModel
	HostID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Title       string    `gorm:"type:varchar(255);not null"`
	Description string    `gorm:"type:text"`
	Status      Status    `gorm:"type:varchar(32);not null;default:'DRAFT';index"`

	// Geocoded location references. A listing carries either these or at
	// least one manual location id; publication requires one of the two.
	PlaceID    *string `gorm:"type:varchar(64);index"`
	LocalityID *string `gorm:"type:varchar(64)"`
	CountryID  *string `gorm:"type:varchar(64)"`

	ManualLocationIDs pq.StringArray `gorm:"type:text[]"`
	AmenityKeys       pq.StringArray `gorm:"type:text[]"`

	// Set by the reviewing admin at approval time.
	IsVerified bool `gorm:"not null;default:false"`

	// Advertising slot denormalization for fast reads. Authoritative slot
	// state lives in the slots table.
	ActiveSlotID   *uuid.UUID `gorm:"type:uuid"`
	SlotExpiresAt  *time.Time
	SlotDoNotRenew bool `gorm:"not null;default:false"`

	// Stamped on the first transition into APPROVED or ONLINE, then never
	// overwritten. Slot duration calculations depend on the original date.
	FirstReviewCompletedAt *time.Time

	ArchivedAt gorm.DeletedAt `gorm:"index"`

	Images []ListingImage `gorm:"foreignKey:ListingID"`
}

// TableName specifies the table name for the Listing model.
func (Listing) TableName() string {
	return "listings"
}

// HasResolvableLocation reports whether publication can resolve at least one
// location id for this listing.
func (l *Listing) HasResolvableLocation() bool {
	return l.PlaceID != nil || len(l.ManualLocationIDs) > 0
}

// ReadyImages returns the listing's READY images ordered for display.
func (l *Listing) ReadyImages() []ListingImage {
	out := make([]ListingImage, 0, len(l.Images))
	for _, img := range l.Images {
		if img.Status == ImageStatusReady {
			out = append(out, img)
		}
	}
	return out
}

// PrimaryImage returns the READY image marked primary, or nil.
func (l *Listing) PrimaryImage() *ListingImage {
	for i := range l.Images {
		if l.Images[i].Status == ImageStatusReady && l.Images[i].IsPrimary {
			return &l.Images[i]
		}
	}
	return nil
}

// ListingImage is one uploaded photo belonging to a listing.
type ListingImage struct {
	common.BaseModel
	ListingID    uuid.UUID `gorm:"type:uuid;not null;index"`
	URL          string    `gorm:"type:varchar(1024);not null"`
	ThumbnailURL string    `gorm:"type:varchar(1024)"`
	Status       string    `gorm:"type:varchar(32);not null;default:'PENDING'"`
	IsPrimary    bool      `gorm:"not null;default:false"`
	SortOrder    int       `gorm:"not null;default:0"`
}

// TableName specifies the table name for the ListingImage model.
func (ListingImage) TableName() string {
	return "listing_images"
}
