// File: internal/location/model.go
package location

import (
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"marketplace_backend/internal/common"
)

// Location kinds, from widest to narrowest.
const (
	KindCountry  = "country"
	KindPlace    = "place"
	KindLocality = "locality"
)

// Location is one name-variant record of a geographic location. The same
// physical location id may have several spelling/locale variants; every
// variant carries the same ListingsCount so search can filter on any of them.
type Location struct {
	common.BaseModel
	LocationID       string  `gorm:"type:varchar(64);not null;index"`
	Kind             string  `gorm:"type:varchar(16);not null"`
	ParentLocationID *string `gorm:"type:varchar(64);index"`
	Name             string  `gorm:"type:varchar(255);not null"`
	NameSlug         string  `gorm:"type:varchar(255);not null;index"`
	Language         string  `gorm:"type:varchar(8);not null;default:'en'"`
	ListingsCount    int     `gorm:"not null;default:0"`
}

// TableName specifies the table name for the Location model.
func (Location) TableName() string {
	return "locations"
}

// BeforeCreate derives the search slug from the variant name.
func (l *Location) BeforeCreate(tx *gorm.DB) error {
	if err := l.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if l.NameSlug == "" {
		l.NameSlug = slug.Make(l.Name)
	}
	return nil
}
