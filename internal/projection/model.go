// File: internal/projection/model.go
package projection

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"marketplace_backend/internal/common"
)

// PublicListing is the publicly queryable summary of one listing under one
// geographic location. A listing published into a place and a locality gets
// one row per location id. Rows are derived at publish time and never edited;
// they exist iff the listing is ONLINE.
type PublicListing struct {
	common.BaseModel
	ListingID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_public_listings_listing"`
	LocationID    string         `gorm:"type:varchar(64);not null;index:idx_public_listings_location"`
	HostID        uuid.UUID      `gorm:"type:uuid;not null"`
	Title         string         `gorm:"type:varchar(255);not null"`
	CoverImageURL string         `gorm:"type:varchar(1024);not null"`
	ThumbnailURL  string         `gorm:"type:varchar(1024);not null"`
	AmenityKeys   pq.StringArray `gorm:"type:text[]"`
	HostVerified  bool           `gorm:"not null;default:false"`
	SlotExpiresAt time.Time      `gorm:"not null"`
}

// TableName specifies the table name for the PublicListing model.
func (PublicListing) TableName() string {
	return "public_listings"
}

// PublicListingMedia is one displayed image of a published listing, ordered
// by ImageIndex with the first marked as cover. Lifecycle mirrors the
// projection rows.
type PublicListingMedia struct {
	common.BaseModel
	ListingID    uuid.UUID `gorm:"type:uuid;not null;index"`
	URL          string    `gorm:"type:varchar(1024);not null"`
	ThumbnailURL string    `gorm:"type:varchar(1024)"`
	ImageIndex   int       `gorm:"not null"`
	IsCoverImage bool      `gorm:"not null;default:false"`
}

// TableName specifies the table name for the PublicListingMedia model.
func (PublicListingMedia) TableName() string {
	return "public_listing_media"
}
