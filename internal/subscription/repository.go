// File: internal/subscription/repository.go
package subscription

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"marketplace_backend/internal/common"
)

// Repository defines persistence operations for plans and subscriptions.
type Repository interface {
	// FindCurrentByHostID returns the host's newest non-canceled subscription
	// with its plan, or nil when the host has none.
	FindCurrentByHostID(ctx context.Context, hostID uuid.UUID) (*HostSubscription, error)
	FindPlanByID(ctx context.Context, id uuid.UUID) (*Plan, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM-backed subscription repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindCurrentByHostID(ctx context.Context, hostID uuid.UUID) (*HostSubscription, error) {
	var sub HostSubscription
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("host_id = ? AND status <> ?", hostID, StatusCanceled).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindPlanByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	var p Plan
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Plan not found.")
		}
		return nil, err
	}
	return &p, nil
}
