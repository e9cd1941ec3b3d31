// File: internal/projection/writer.go
package projection

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketplace_backend/internal/common"
	"marketplace_backend/internal/listing"
	"marketplace_backend/internal/location"
)

// Writer builds and persists the public projection of a listing: summary rows
// per location plus media rows. Relational writes can join a caller-supplied
// transaction; the Elasticsearch mirror is best effort and never fails the
// caller.
type Writer struct {
	db     *gorm.DB
	mirror *Mirror
	logger *zap.Logger
}

// NewWriter creates a new projection writer.
func NewWriter(db *gorm.DB, mirror *Mirror, logger *zap.Logger) *Writer {
	return &Writer{db: db, mirror: mirror, logger: logger.Named("projection_writer")}
}

// BuildRows derives the projection and media rows for a listing about to go
// online. Requires at least one READY image and exactly one primary with a
// thumbnail; failures name the missing piece so approve can fall back.
func (w *Writer) BuildRows(l *listing.Listing, set location.ResolvedSet, hostVerified bool, slotExpiresAt time.Time) ([]PublicListing, []PublicListingMedia, error) {
	ready := l.ReadyImages()
	if len(ready) == 0 {
		return nil, nil, common.ErrBadRequest.WithDetails("Listing has no ready images to publish.")
	}

	primary := l.PrimaryImage()
	if primary == nil {
		return nil, nil, common.ErrBadRequest.WithDetails("Listing has no primary image marked among its ready images.")
	}
	if primary.ThumbnailURL == "" {
		return nil, nil, common.ErrBadRequest.WithDetails("Primary image is missing its thumbnail.")
	}

	// Projection rows exist for the place and locality levels; the country
	// level only participates in counters.
	var rowLocations []string
	if set.PlaceID != nil {
		rowLocations = append(rowLocations, *set.PlaceID)
	}
	if set.LocalityID != nil {
		rowLocations = append(rowLocations, *set.LocalityID)
	}
	if len(rowLocations) == 0 {
		return nil, nil, common.ErrBadRequest.WithDetails("Listing resolved no place or locality to publish into.")
	}

	rows := make([]PublicListing, 0, len(rowLocations))
	for _, locID := range rowLocations {
		rows = append(rows, PublicListing{
			ListingID:     l.ID,
			LocationID:    locID,
			HostID:        l.HostID,
			Title:         l.Title,
			CoverImageURL: primary.URL,
			ThumbnailURL:  primary.ThumbnailURL,
			AmenityKeys:   l.AmenityKeys,
			HostVerified:  hostVerified,
			SlotExpiresAt: slotExpiresAt,
		})
	}

	media := make([]PublicListingMedia, 0, len(ready))
	for i, img := range ready {
		media = append(media, PublicListingMedia{
			ListingID:    l.ID,
			URL:          img.URL,
			ThumbnailURL: img.ThumbnailURL,
			ImageIndex:   i,
			IsCoverImage: i == 0,
		})
	}

	return rows, media, nil
}

// Create persists the projection and media rows. Pass a transaction handle to
// join an atomic operation, or nil to write against the base connection. The
// search mirror is updated afterwards, outside any transaction.
func (w *Writer) Create(ctx context.Context, tx *gorm.DB, rows []PublicListing, media []PublicListingMedia) error {
	db := w.handle(tx)
	if len(rows) > 0 {
		if err := db.WithContext(ctx).Create(&rows).Error; err != nil {
			return err
		}
	}
	if len(media) > 0 {
		if err := db.WithContext(ctx).Create(&media).Error; err != nil {
			return err
		}
	}

	if tx == nil {
		w.mirror.IndexRows(ctx, rows)
	}
	return nil
}

// MirrorRows pushes rows to the search mirror. Called after a transactional
// Create commits.
func (w *Writer) MirrorRows(ctx context.Context, rows []PublicListing) {
	w.mirror.IndexRows(ctx, rows)
}

// DeleteForListing removes every projection and media row of a listing,
// returning the location ids the rows lived under so the caller can decrement
// counters. Joins the supplied transaction when given.
func (w *Writer) DeleteForListing(ctx context.Context, tx *gorm.DB, listingID uuid.UUID) ([]string, error) {
	db := w.handle(tx)

	var locationIDs []string
	err := db.WithContext(ctx).
		Model(&PublicListing{}).
		Where("listing_id = ?", listingID).
		Pluck("location_id", &locationIDs).Error
	if err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).Where("listing_id = ?", listingID).Delete(&PublicListing{}).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Where("listing_id = ?", listingID).Delete(&PublicListingMedia{}).Error; err != nil {
		return nil, err
	}

	if tx == nil {
		w.mirror.RemoveListing(ctx, listingID)
	}
	return locationIDs, nil
}

// MirrorRemove removes a listing from the search mirror. Called after a
// transactional delete commits.
func (w *Writer) MirrorRemove(ctx context.Context, listingID uuid.UUID) {
	w.mirror.RemoveListing(ctx, listingID)
}

// DeleteRowsForLocations removes the projection rows of a listing under the
// given location ids with one batched delete. Used by the sweep, which works
// from an already-resolved location set and removes media separately.
func (w *Writer) DeleteRowsForLocations(ctx context.Context, listingID uuid.UUID, locationIDs []string) error {
	if len(locationIDs) > 0 {
		err := w.db.WithContext(ctx).
			Where("listing_id = ? AND location_id IN ?", listingID, locationIDs).
			Delete(&PublicListing{}).Error
		if err != nil {
			return err
		}
	}

	w.mirror.RemoveListing(ctx, listingID)
	return nil
}

// DeleteMediaForListing removes all media rows of a listing.
func (w *Writer) DeleteMediaForListing(ctx context.Context, listingID uuid.UUID) error {
	return w.db.WithContext(ctx).Where("listing_id = ?", listingID).Delete(&PublicListingMedia{}).Error
}

// ListRowsBatch pages through all projection rows, for bulk reindexing of the
// search mirror.
func (w *Writer) ListRowsBatch(ctx context.Context, offset, limit int) ([]PublicListing, error) {
	var rows []PublicListing
	err := w.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (w *Writer) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return w.db
}
