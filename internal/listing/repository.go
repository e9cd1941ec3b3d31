// File: internal/listing/repository.go
package listing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"marketplace_backend/internal/common"
)

// Repository defines persistence operations for listings.
type Repository interface {
	Create(ctx context.Context, l *Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*Listing, error)
	FindByHostID(ctx context.Context, hostID uuid.UUID) ([]Listing, error)
	Update(ctx context.Context, l *Listing) error

	// WithTx returns a repository bound to the given transaction so listing
	// writes can join a multi-table atomic operation.
	WithTx(tx *gorm.DB) Repository
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM-backed listing repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, l *Listing) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*Listing, error) {
	var l Listing
	err := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		First(&l, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Listing not found.")
		}
		return nil, err
	}
	return &l, nil
}

func (r *gormRepository) FindByHostID(ctx context.Context, hostID uuid.UUID) ([]Listing, error) {
	var listings []Listing
	err := r.db.WithContext(ctx).
		Where("host_id = ?", hostID).
		Order("created_at DESC").
		Find(&listings).Error
	return listings, err
}

func (r *gormRepository) Update(ctx context.Context, l *Listing) error {
	// Images are managed by the upload flow; never write them back here.
	return r.db.WithContext(ctx).Omit("Images").Save(l).Error
}
