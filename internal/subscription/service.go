// File: internal/subscription/service.go
package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace_backend/internal/config"
	"marketplace_backend/internal/slot"
)

// PlanDurationDays returns the slot lease length for a subscription, using
// the fallback when the subscription or its plan carries no duration.
func PlanDurationDays(sub *HostSubscription, fallback int) int {
	if sub != nil && sub.Plan.DurationDays > 0 {
		return sub.Plan.DurationDays
	}
	return fallback
}

// PublishDecision is the answer to "may this host put another listing online".
type PublishDecision struct {
	CanPublish   bool
	Subscription *HostSubscription
	Reason       string
}

// CreateSlotParams carries what the publish path knows when it leases a slot.
// BaseTime anchors the lease duration, normally the moment of publication.
type CreateSlotParams struct {
	HostID       uuid.UUID
	ListingID    uuid.UUID
	Subscription *HostSubscription
	BaseTime     time.Time
}

// Service answers slot-allowance questions and fronts the slot repository for
// the host-facing surfaces.
type Service interface {
	CanHostPublishListing(ctx context.Context, hostID uuid.UUID) (*PublishDecision, error)
	CreateAdvertisingSlot(ctx context.Context, params CreateSlotParams) (*slot.AdvertisingSlot, error)
	GetSlotByListingID(ctx context.Context, listingID uuid.UUID) (*slot.AdvertisingSlot, error)
	SetSlotDoNotRenew(ctx context.Context, listingID, slotID uuid.UUID, value bool) error
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo   Repository
	slots  slot.Repository
	cfg    *config.Config
	logger *zap.Logger
}

// NewService creates a new subscription service.
func NewService(repo Repository, slots slot.Repository, cfg *config.Config, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:   repo,
		slots:  slots,
		cfg:    cfg,
		logger: logger.Named("subscription_service"),
	}
}

var _ Service = (*ServiceImplementation)(nil)

// CanHostPublishListing checks the host's current subscription for an unused
// advertising-slot allowance. A negative answer carries the reason; it is not
// an error, approval falls back to a plain status update.
func (s *ServiceImplementation) CanHostPublishListing(ctx context.Context, hostID uuid.UUID) (*PublishDecision, error) {
	sub, err := s.repo.FindCurrentByHostID(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return &PublishDecision{CanPublish: false, Reason: "host has no subscription"}, nil
	}
	if sub.Status != StatusActive && sub.Status != StatusPastDue {
		return &PublishDecision{CanPublish: false, Subscription: sub, Reason: "subscription is not active"}, nil
	}

	used, err := s.slots.CountByHostID(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if used >= int64(sub.Plan.MaxActiveSlots) {
		return &PublishDecision{
			CanPublish:   false,
			Subscription: sub,
			Reason:       "all advertising slots of the plan are in use",
		}, nil
	}

	return &PublishDecision{CanPublish: true, Subscription: sub}, nil
}

// CreateAdvertisingSlot leases one slot for the listing, with an expiry of
// the plan duration counted from BaseTime.
func (s *ServiceImplementation) CreateAdvertisingSlot(ctx context.Context, params CreateSlotParams) (*slot.AdvertisingSlot, error) {
	durationDays := PlanDurationDays(params.Subscription, s.cfg.DefaultPlanDurationDays)
	var planID uuid.UUID
	if params.Subscription != nil {
		planID = params.Subscription.PlanID
	}

	base := params.BaseTime
	if base.IsZero() {
		base = time.Now().UTC()
	}

	newSlot := &slot.AdvertisingSlot{
		HostID:    params.HostID,
		ListingID: params.ListingID,
		PlanID:    planID,
		ExpiresAt: base.AddDate(0, 0, durationDays),
		IsPastDue: params.Subscription != nil && params.Subscription.IsPastDue(),
	}

	if err := s.slots.Create(ctx, newSlot); err != nil {
		return nil, err
	}

	s.logger.Info("Advertising slot created",
		zap.String("listing_id", params.ListingID.String()),
		zap.String("slot_id", newSlot.ID.String()),
		zap.Time("expires_at", newSlot.ExpiresAt))
	return newSlot, nil
}

// GetSlotByListingID is a thin pass-through to the slot repository.
func (s *ServiceImplementation) GetSlotByListingID(ctx context.Context, listingID uuid.UUID) (*slot.AdvertisingSlot, error) {
	return s.slots.GetByListingID(ctx, listingID)
}

// SetSlotDoNotRenew is a thin pass-through from the host-facing toggle.
func (s *ServiceImplementation) SetSlotDoNotRenew(ctx context.Context, listingID, slotID uuid.UUID, value bool) error {
	return s.slots.SetDoNotRenew(ctx, listingID, slotID, value)
}
