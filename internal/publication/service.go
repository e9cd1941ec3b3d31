// File: internal/publication/service.go
package publication

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketplace_backend/internal/common"
	"marketplace_backend/internal/config"
	"marketplace_backend/internal/flag"
	"marketplace_backend/internal/host"
	"marketplace_backend/internal/listing"
	"marketplace_backend/internal/location"
	"marketplace_backend/internal/notification"
	"marketplace_backend/internal/projection"
	"marketplace_backend/internal/slot"
	"marketplace_backend/internal/subscription"
)

// TxRunner executes a function inside one database transaction.
type TxRunner interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GormTxRunner is the production TxRunner.
type GormTxRunner struct {
	db *gorm.DB
}

// NewGormTxRunner creates a TxRunner over the given connection.
func NewGormTxRunner(db *gorm.DB) *GormTxRunner {
	return &GormTxRunner{db: db}
}

func (r *GormTxRunner) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// ProjectionWriter is the slice of the projection writer this engine uses.
type ProjectionWriter interface {
	BuildRows(l *listing.Listing, set location.ResolvedSet, hostVerified bool, slotExpiresAt time.Time) ([]projection.PublicListing, []projection.PublicListingMedia, error)
	Create(ctx context.Context, tx *gorm.DB, rows []projection.PublicListing, media []projection.PublicListingMedia) error
	DeleteForListing(ctx context.Context, tx *gorm.DB, listingID uuid.UUID) ([]string, error)
	DeleteRowsForLocations(ctx context.Context, listingID uuid.UUID, locationIDs []string) error
	DeleteMediaForListing(ctx context.Context, listingID uuid.UUID) error
	MirrorRows(ctx context.Context, rows []projection.PublicListing)
	MirrorRemove(ctx context.Context, listingID uuid.UUID)
}

// LocationResolver resolves a listing's location references.
type LocationResolver interface {
	Resolve(ctx context.Context, l *listing.Listing) (location.ResolvedSet, error)
}

// CounterMaintainer fans counter changes out across location name-variants.
type CounterMaintainer interface {
	IncrementAll(ctx context.Context, locationIDs []string) common.BatchReport
	DecrementAll(ctx context.Context, locationIDs []string) common.BatchReport
}

// ExpireOutcome reports what happened to one slot during an expiry pass, so
// the sweep can group the succeeded ones by host for notifications.
type ExpireOutcome struct {
	Skipped      bool
	OrphanedSlot bool
	HostID       uuid.UUID
	ListingID    uuid.UUID
	ListingTitle string
}

// Service is the publication state machine: given a listing and an approval,
// unpublish, or expiry event, it computes the next status and drives the slot
// repository, projection writer, and location counters as one unit.
type Service interface {
	Approve(ctx context.Context, listingID uuid.UUID, listingVerified bool) (*listing.Listing, error)
	Unpublish(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error)
	Expire(ctx context.Context, s *slot.AdvertisingSlot) (*ExpireOutcome, error)
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	tx        TxRunner
	listings  listing.Repository
	slots     slot.Repository
	hosts     host.Repository
	subs      subscription.Service
	flags     flag.Store
	writer    ProjectionWriter
	resolver  LocationResolver
	counters  CounterMaintainer
	locations location.Repository
	notifier  notification.Service
	cfg       *config.Config
	logger    *zap.Logger
}

// NewService creates a new publication service.
func NewService(
	tx TxRunner,
	listings listing.Repository,
	slots slot.Repository,
	hosts host.Repository,
	subs subscription.Service,
	flags flag.Store,
	writer ProjectionWriter,
	resolver LocationResolver,
	counters CounterMaintainer,
	locations location.Repository,
	notifier notification.Service,
	cfg *config.Config,
	logger *zap.Logger,
) *ServiceImplementation {
	return &ServiceImplementation{
		tx:        tx,
		listings:  listings,
		slots:     slots,
		hosts:     hosts,
		subs:      subs,
		flags:     flags,
		writer:    writer,
		resolver:  resolver,
		counters:  counters,
		locations: locations,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.Named("publication_service"),
	}
}

var _ Service = (*ServiceImplementation)(nil)

// Approve moves a listing out of review. When auto-publish is enabled and
// the host has an unused slot allowance, it attempts the full publish; any
// failure there falls back to a plain APPROVED status, since publication is
// an enhancement of approval, not a requirement.
func (s *ServiceImplementation) Approve(ctx context.Context, listingID uuid.UUID, listingVerified bool) (*listing.Listing, error) {
	l, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if _, err := listing.NextStatus(ctx, l.Status, listing.EventApprove); err != nil {
		return nil, err
	}
	if !l.HasResolvableLocation() {
		return nil, common.ErrBadRequest.WithDetails(
			"Listing has no resolvable location data: neither geocoded references nor manual location ids.")
	}

	l.IsVerified = listingVerified

	autoPublish := s.flags.IsAutoPublishEnabled(ctx)
	var decision *subscription.PublishDecision
	if autoPublish {
		decision, err = s.subs.CanHostPublishListing(ctx, l.HostID)
		if err != nil {
			s.logger.Warn("Slot allowance check failed, approving without publish",
				zap.String("listing_id", l.ID.String()), zap.Error(err))
			decision = &subscription.PublishDecision{CanPublish: false, Reason: "allowance check failed"}
		}
	}

	published := false
	if autoPublish && decision.CanPublish {
		if err := s.publish(ctx, l, decision.Subscription); err != nil {
			s.logger.Warn("Publish failed, falling back to plain approval",
				zap.String("listing_id", l.ID.String()), zap.Error(err))
		} else {
			published = true
		}
	}

	if !published {
		l.Status = listing.StatusApproved
		s.stampFirstReview(l)
		err = common.RetryTransient(ctx, func() error {
			return s.listings.Update(ctx, l)
		})
		if err != nil {
			return nil, err
		}
	}

	s.notifyApproval(ctx, l, published)

	s.logger.Info("Listing approved",
		zap.String("listing_id", l.ID.String()),
		zap.String("status", string(l.Status)),
		zap.Bool("published", published))
	return l, nil
}

// publish is the internal ONLINE transition: it validates and builds the
// public projection, leases one advertising slot, flips the listing status,
// and increments location counters. Validation failures happen before any
// write; write failures after the slot exists trigger a compensating delete
// so approval's fallback path never leaves an orphaned slot behind.
func (s *ServiceImplementation) publish(ctx context.Context, l *listing.Listing, sub *subscription.HostSubscription) error {
	set, err := s.resolver.Resolve(ctx, l)
	if err != nil {
		return err
	}

	hostRec, err := s.hosts.FindByID(ctx, l.HostID)
	if err != nil {
		return err
	}

	base := time.Now().UTC()
	durationDays := subscription.PlanDurationDays(sub, s.cfg.DefaultPlanDurationDays)
	expiresAt := base.AddDate(0, 0, durationDays)

	rows, media, err := s.writer.BuildRows(l, set, hostRec.IsVerified, expiresAt)
	if err != nil {
		return err
	}

	var planID uuid.UUID
	isPastDue := false
	if sub != nil {
		planID = sub.PlanID
		isPastDue = sub.IsPastDue()
	}
	newSlot := &slot.AdvertisingSlot{
		HostID:    l.HostID,
		ListingID: l.ID,
		PlanID:    planID,
		ExpiresAt: expiresAt,
		IsPastDue: isPastDue,
	}
	if err := s.slots.Create(ctx, newSlot); err != nil {
		return err
	}

	if err := s.writer.Create(ctx, nil, rows, media); err != nil {
		s.compensateSlot(ctx, newSlot)
		return err
	}

	l.Status = listing.StatusOnline
	l.ActiveSlotID = &newSlot.ID
	l.SlotExpiresAt = &newSlot.ExpiresAt
	s.stampFirstReview(l)

	err = common.RetryTransient(ctx, func() error {
		return s.listings.Update(ctx, l)
	})
	if err != nil {
		if _, derr := s.writer.DeleteForListing(ctx, nil, l.ID); derr != nil {
			s.logger.Error("Failed to roll back projection rows after status write failure",
				zap.String("listing_id", l.ID.String()), zap.Error(derr))
		}
		s.compensateSlot(ctx, newSlot)
		return err
	}

	// Counters are a best-effort materialized view; failures are reported
	// and logged, never unwound.
	report := s.counters.IncrementAll(ctx, set.IDs())
	if report.HasFailures() {
		s.logger.Warn("Some location counters were not incremented",
			zap.String("listing_id", l.ID.String()),
			zap.Strings("failed_locations", report.FailureKeys()))
	}

	return nil
}

func (s *ServiceImplementation) compensateSlot(ctx context.Context, newSlot *slot.AdvertisingSlot) {
	if err := s.slots.Delete(ctx, newSlot); err != nil {
		s.logger.Error("Failed to delete slot while unwinding publish",
			zap.String("slot_id", newSlot.ID.String()), zap.Error(err))
	}
}

// stampFirstReview sets firstReviewCompletedAt exactly once across the
// listing's lifetime. Re-approvals after a rejection cycle must not move it,
// slot duration math depends on the original review date.
func (s *ServiceImplementation) stampFirstReview(l *listing.Listing) {
	if l.FirstReviewCompletedAt == nil {
		now := time.Now().UTC()
		l.FirstReviewCompletedAt = &now
	}
}

// Unpublish takes an ONLINE listing offline. Projection rows, media rows,
// the slot, counters, and the status change all commit in one transaction;
// anything other than ONLINE is rejected with the actual status named.
func (s *ServiceImplementation) Unpublish(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error) {
	l, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	next, err := listing.NextStatus(ctx, l.Status, listing.EventUnpublish)
	if err != nil {
		return nil, err
	}

	activeSlot, err := s.slots.GetByListingID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	err = common.RetryTransient(ctx, func() error {
		return s.tx.Transaction(ctx, func(tx *gorm.DB) error {
			locationIDs, err := s.writer.DeleteForListing(ctx, tx, l.ID)
			if err != nil {
				return err
			}

			if activeSlot != nil {
				if err := s.slots.WithTx(tx).Delete(ctx, activeSlot); err != nil {
					return err
				}
			}

			locRepo := s.locations.WithTx(tx)
			for _, locID := range locationIDs {
				if err := locRepo.DecrementListings(ctx, locID); err != nil {
					if apiErr, ok := common.IsAPIError(err); ok && apiErr.Code == "NOT_FOUND" {
						continue
					}
					return err
				}
			}

			l.Status = next
			l.ActiveSlotID = nil
			l.SlotExpiresAt = nil
			return s.listings.WithTx(tx).Update(ctx, l)
		})
	})
	if err != nil {
		return nil, err
	}

	s.writer.MirrorRemove(ctx, l.ID)
	s.notifyUnpublished(ctx, l)

	s.logger.Info("Listing unpublished", zap.String("listing_id", l.ID.String()))
	return l, nil
}

// Expire resolves one due slot for the sweep. Projections and media are
// removed before the status flips, so a reader observing APPROVED can never
// also observe a stale live projection; the status reset and slot deletion
// commit together.
func (s *ServiceImplementation) Expire(ctx context.Context, due *slot.AdvertisingSlot) (*ExpireOutcome, error) {
	if !due.EligibleForExpiry() {
		s.logger.Debug("Slot past due and inside grace, skipping",
			zap.String("slot_id", due.ID.String()))
		return &ExpireOutcome{Skipped: true, HostID: due.HostID}, nil
	}

	l, err := s.listings.FindByID(ctx, due.ListingID)
	if err != nil {
		if apiErr, ok := common.IsAPIError(err); ok && apiErr.Code == "NOT_FOUND" {
			if derr := s.slots.Delete(ctx, due); derr != nil {
				return nil, derr
			}
			s.logger.Info("Deleted orphaned slot, listing gone",
				zap.String("slot_id", due.ID.String()),
				zap.String("listing_id", due.ListingID.String()))
			return &ExpireOutcome{OrphanedSlot: true, HostID: due.HostID}, nil
		}
		return nil, err
	}

	set, err := s.resolver.Resolve(ctx, l)
	if err != nil {
		return nil, err
	}
	locationIDs := set.IDs()

	if err := s.writer.DeleteRowsForLocations(ctx, l.ID, locationIDs); err != nil {
		return nil, err
	}

	report := s.counters.DecrementAll(ctx, locationIDs)
	if report.HasFailures() {
		s.logger.Warn("Some location counters were not decremented",
			zap.String("listing_id", l.ID.String()),
			zap.Strings("failed_locations", report.FailureKeys()))
	}

	if err := s.writer.DeleteMediaForListing(ctx, l.ID); err != nil {
		return nil, err
	}

	next, err := listing.NextStatus(ctx, l.Status, listing.EventExpire)
	if err != nil {
		// The listing moved out of ONLINE under us; the projection cleanup
		// above was already a no-op, so just drop the slot.
		s.logger.Warn("Listing not online at expiry, deleting slot only",
			zap.String("listing_id", l.ID.String()),
			zap.String("status", string(l.Status)))
		if derr := s.slots.Delete(ctx, due); derr != nil {
			return nil, derr
		}
		return &ExpireOutcome{HostID: due.HostID, ListingID: l.ID, ListingTitle: l.Title}, nil
	}

	err = common.RetryTransient(ctx, func() error {
		return s.tx.Transaction(ctx, func(tx *gorm.DB) error {
			l.Status = next
			l.ActiveSlotID = nil
			l.SlotExpiresAt = nil
			if err := s.listings.WithTx(tx).Update(ctx, l); err != nil {
				return err
			}
			return s.slots.WithTx(tx).Delete(ctx, due)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Slot expired",
		zap.String("slot_id", due.ID.String()),
		zap.String("listing_id", l.ID.String()))
	return &ExpireOutcome{HostID: due.HostID, ListingID: l.ID, ListingTitle: l.Title}, nil
}

// notifyApproval sends the post-commit approved/published notification.
// Failures are logged and never surfaced to the request.
func (s *ServiceImplementation) notifyApproval(ctx context.Context, l *listing.Listing, published bool) {
	hostRec, err := s.hosts.FindByID(ctx, l.HostID)
	if err != nil {
		s.logger.Warn("Approval notification skipped, host lookup failed",
			zap.String("listing_id", l.ID.String()), zap.Error(err))
		return
	}

	template := notification.TemplateListingApproved
	vars := map[string]string{"listing_title": l.Title}
	if published {
		template = notification.TemplateListingPublished
		if l.SlotExpiresAt != nil {
			vars["expires_at"] = l.SlotExpiresAt.Format("2006-01-02")
		}
	}

	if err := s.notifier.SendEmail(ctx, template, hostRec.Email, hostRec.Language, vars); err != nil {
		s.logger.Warn("Approval email failed",
			zap.String("listing_id", l.ID.String()), zap.Error(err))
	}
	if err := s.notifier.SendPush(ctx, hostRec.ID, template, hostRec.Language, vars); err != nil {
		s.logger.Warn("Approval push failed",
			zap.String("listing_id", l.ID.String()), zap.Error(err))
	}
}

func (s *ServiceImplementation) notifyUnpublished(ctx context.Context, l *listing.Listing) {
	hostRec, err := s.hosts.FindByID(ctx, l.HostID)
	if err != nil {
		s.logger.Warn("Unpublish notification skipped, host lookup failed",
			zap.String("listing_id", l.ID.String()), zap.Error(err))
		return
	}

	vars := map[string]string{"listing_title": l.Title}
	if err := s.notifier.SendEmail(ctx, notification.TemplateListingUnpublished, hostRec.Email, hostRec.Language, vars); err != nil {
		s.logger.Warn("Unpublish email failed",
			zap.String("listing_id", l.ID.String()), zap.Error(err))
	}
	if err := s.notifier.SendPush(ctx, hostRec.ID, notification.TemplateListingUnpublished, hostRec.Language, vars); err != nil {
		s.logger.Warn("Unpublish push failed",
			zap.String("listing_id", l.ID.String()), zap.Error(err))
	}
}
