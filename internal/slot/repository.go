// File: internal/slot/repository.go
package slot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"marketplace_backend/internal/common"
)

// Repository defines persistence operations for advertising slots. The
// expiring/expired queries range over the expires_at index, in effect a
// priority queue by time over all active slots.
type Repository interface {
	// Create refuses to create a second slot for a listing that already has
	// one. Callers are responsible for deleting the prior slot first.
	Create(ctx context.Context, s *AdvertisingSlot) error
	// GetByListingID returns nil without error when the listing has no slot.
	GetByListingID(ctx context.Context, listingID uuid.UUID) (*AdvertisingSlot, error)
	Delete(ctx context.Context, s *AdvertisingSlot) error
	CountByHostID(ctx context.Context, hostID uuid.UUID) (int64, error)
	ListExpiringBetween(ctx context.Context, start, end time.Time) ([]AdvertisingSlot, error)
	ListExpiredBefore(ctx context.Context, t time.Time) ([]AdvertisingSlot, error)
	SetDoNotRenew(ctx context.Context, listingID, slotID uuid.UUID, value bool) error

	// WithTx returns a repository bound to the given transaction so slot
	// deletion can join a multi-table atomic operation.
	WithTx(tx *gorm.DB) Repository
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM-backed slot repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, s *AdvertisingSlot) error {
	existing, err := r.GetByListingID(ctx, s.ListingID)
	if err != nil {
		return err
	}
	if existing != nil {
		return common.ErrConflict.WithDetails("Listing already holds an advertising slot.")
	}
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *gormRepository) GetByListingID(ctx context.Context, listingID uuid.UUID) (*AdvertisingSlot, error) {
	var s AdvertisingSlot
	err := r.db.WithContext(ctx).First(&s, "listing_id = ?", listingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *gormRepository) Delete(ctx context.Context, s *AdvertisingSlot) error {
	return r.db.WithContext(ctx).Delete(s).Error
}

func (r *gormRepository) CountByHostID(ctx context.Context, hostID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&AdvertisingSlot{}).
		Where("host_id = ?", hostID).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) ListExpiringBetween(ctx context.Context, start, end time.Time) ([]AdvertisingSlot, error) {
	var slots []AdvertisingSlot
	err := r.db.WithContext(ctx).
		Where("expires_at >= ? AND expires_at < ?", start, end).
		Order("expires_at ASC").
		Find(&slots).Error
	return slots, err
}

func (r *gormRepository) ListExpiredBefore(ctx context.Context, t time.Time) ([]AdvertisingSlot, error) {
	var slots []AdvertisingSlot
	err := r.db.WithContext(ctx).
		Where("expires_at <= ?", t).
		Order("expires_at ASC").
		Find(&slots).Error
	return slots, err
}

func (r *gormRepository) SetDoNotRenew(ctx context.Context, listingID, slotID uuid.UUID, value bool) error {
	result := r.db.WithContext(ctx).
		Model(&AdvertisingSlot{}).
		Where("id = ? AND listing_id = ?", slotID, listingID).
		Update("do_not_renew", value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("Advertising slot not found for this listing.")
	}
	return nil
}
