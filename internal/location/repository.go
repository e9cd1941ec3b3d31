// File: internal/location/repository.go
package location

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"marketplace_backend/internal/common"
)

// Repository defines persistence operations for location name-variants and
// their denormalized live-listing counters.
type Repository interface {
	Create(ctx context.Context, l *Location) error
	// FindCanonical returns one variant for the physical location id, used
	// to resolve kind and parent linkage.
	FindCanonical(ctx context.Context, locationID string) (*Location, error)
	FindVariants(ctx context.Context, locationID string) ([]Location, error)

	// IncrementListings bumps ListingsCount on every name-variant of the
	// physical location id in a single statement.
	IncrementListings(ctx context.Context, locationID string) error
	// DecrementListings lowers ListingsCount on every variant, clamping at
	// zero. Returns common.ErrNotFound when no variant rows exist.
	DecrementListings(ctx context.Context, locationID string) error

	// WithTx returns a repository bound to the given transaction so counter
	// writes can join a multi-table atomic operation.
	WithTx(tx *gorm.DB) Repository
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM-backed location repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, l *Location) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *gormRepository) FindCanonical(ctx context.Context, locationID string) (*Location, error) {
	var l Location
	err := r.db.WithContext(ctx).First(&l, "location_id = ?", locationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Location not found.")
		}
		return nil, err
	}
	return &l, nil
}

func (r *gormRepository) FindVariants(ctx context.Context, locationID string) ([]Location, error) {
	var variants []Location
	err := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Find(&variants).Error
	return variants, err
}

func (r *gormRepository) IncrementListings(ctx context.Context, locationID string) error {
	result := r.db.WithContext(ctx).
		Model(&Location{}).
		Where("location_id = ?", locationID).
		Update("listings_count", gorm.Expr("listings_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("No location variants to increment.")
	}
	return nil
}

func (r *gormRepository) DecrementListings(ctx context.Context, locationID string) error {
	result := r.db.WithContext(ctx).
		Model(&Location{}).
		Where("location_id = ?", locationID).
		Update("listings_count", gorm.Expr("CASE WHEN listings_count > 0 THEN listings_count - 1 ELSE 0 END"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("No location variants to decrement.")
	}
	return nil
}
