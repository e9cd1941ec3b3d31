// File: internal/host/repository.go
package host

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"marketplace_backend/internal/common"
)

// Repository defines persistence operations for hosts.
type Repository interface {
	Create(ctx context.Context, h *Host) error
	FindByID(ctx context.Context, id uuid.UUID) (*Host, error)
	FindByFirebaseUID(ctx context.Context, uid string) (*Host, error)
	Update(ctx context.Context, h *Host) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM-backed host repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, h *Host) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*Host, error) {
	var h Host
	if err := r.db.WithContext(ctx).First(&h, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Host not found.")
		}
		return nil, err
	}
	return &h, nil
}

func (r *gormRepository) FindByFirebaseUID(ctx context.Context, uid string) (*Host, error) {
	var h Host
	if err := r.db.WithContext(ctx).First(&h, "firebase_uid = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Host not found.")
		}
		return nil, err
	}
	return &h, nil
}

func (r *gormRepository) Update(ctx context.Context, h *Host) error {
	return r.db.WithContext(ctx).Save(h).Error
}
