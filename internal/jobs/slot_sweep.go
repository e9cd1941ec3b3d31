// File: internal/jobs/slot_sweep.go
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"marketplace_backend/internal/config"
	"marketplace_backend/internal/host"
	"marketplace_backend/internal/listing"
	"marketplace_backend/internal/notification"
	"marketplace_backend/internal/publication"
	"marketplace_backend/internal/slot"
)

// Sweep labels, selecting which mode a triggered run executes.
const (
	LabelExpiryWarning = "EXPIRY_WARNING"
	LabelExpiry        = "EXPIRY"
)

// SlotSweepJob is the timer-driven pass over advertising slots. Warning mode
// tells hosts their ads expire in a week; expiry mode resolves lapsed slots
// through the publication engine's expiry transition, one slot at a time so
// a single bad record never blocks the batch.
type SlotSweepJob struct {
	publisher     publication.Service
	slots         slot.Repository
	listings      listing.Repository
	hosts         host.Repository
	notifier      notification.Service
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
}

// NewSlotSweepJob creates a new SlotSweepJob.
func NewSlotSweepJob(
	publisher publication.Service,
	slots slot.Repository,
	listings listing.Repository,
	hosts host.Repository,
	notifier notification.Service,
	logger *zap.Logger,
	cfg *config.Config,
) *SlotSweepJob {
	scheduler := cron.New(cron.WithLogger(NewCronLogger(logger.Named("cron"))))

	return &SlotSweepJob{
		publisher:     publisher,
		slots:         slots,
		listings:      listings,
		hosts:         hosts,
		notifier:      notifier,
		logger:        logger.Named("SlotSweepJob"),
		cfg:           cfg,
		cronScheduler: scheduler,
	}
}

// SetupAndStart schedules both sweep modes and starts the cron scheduler.
func (j *SlotSweepJob) SetupAndStart() error {
	warningSpec := j.cfg.SlotWarningSchedule
	if warningSpec == "" {
		j.logger.Warn("Slot warning sweep schedule not defined (SLOT_WARNING_JOB_SCHEDULE). Warning mode will not run.")
	} else {
		jobID, err := j.cronScheduler.AddFunc(warningSpec, func() { j.runScheduled(LabelExpiryWarning) })
		if err != nil {
			j.logger.Error("Failed to schedule warning sweep", zap.String("spec", warningSpec), zap.Error(err))
			return err
		}
		j.logger.Info("Warning sweep scheduled", zap.String("spec", warningSpec), zap.Any("jobID", jobID))
	}

	expirySpec := j.cfg.SlotExpirySchedule
	if expirySpec == "" {
		j.logger.Warn("Slot expiry sweep schedule not defined (SLOT_EXPIRY_JOB_SCHEDULE). Expiry mode will not run.")
	} else {
		jobID, err := j.cronScheduler.AddFunc(expirySpec, func() { j.runScheduled(LabelExpiry) })
		if err != nil {
			j.logger.Error("Failed to schedule expiry sweep", zap.String("spec", expirySpec), zap.Error(err))
			return err
		}
		j.logger.Info("Expiry sweep scheduled", zap.String("spec", expirySpec), zap.Any("jobID", jobID))
	}

	j.cronScheduler.Start()
	return nil
}

func (j *SlotSweepJob) runScheduled(label string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	if err := j.RunByLabel(ctx, label); err != nil {
		j.logger.Error("Sweep run failed", zap.String("label", label), zap.Error(err))
	}
}

// RunByLabel dispatches one sweep run by its label. Also used by the manual
// trigger endpoint.
func (j *SlotSweepJob) RunByLabel(ctx context.Context, label string) error {
	switch label {
	case LabelExpiryWarning:
		return j.RunWarning(ctx, time.Now().UTC())
	case LabelExpiry:
		return j.RunExpiry(ctx, time.Now().UTC())
	default:
		return fmt.Errorf("unknown sweep label %q", label)
	}
}

// WarningWindow computes the calendar-day window leadDays out from now:
// [start of that day, start of the next day).
func WarningWindow(now time.Time, leadDays int) (time.Time, time.Time) {
	day := now.AddDate(0, 0, leadDays)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}

// RunWarning finds every slot expiring on the calendar day the configured
// lead time from now and sends each affected host one combined email and
// push naming all of that host's soon-to-expire listings.
func (j *SlotSweepJob) RunWarning(ctx context.Context, now time.Time) error {
	start, end := WarningWindow(now, j.cfg.SlotWarningLeadDays)
	j.logger.Info("Starting warning sweep",
		zap.Time("window_start", start), zap.Time("window_end", end))

	dueSlots, err := j.slots.ListExpiringBetween(ctx, start, end)
	if err != nil {
		// No useful work possible without the slot set; re-raise.
		return fmt.Errorf("warning sweep slot query failed: %w", err)
	}
	if len(dueSlots) == 0 {
		j.logger.Info("Warning sweep found no slots in window")
		return nil
	}

	byHost := make(map[uuid.UUID][]string)
	for _, s := range dueSlots {
		l, err := j.listings.FindByID(ctx, s.ListingID)
		if err != nil {
			j.logger.Warn("Warning sweep could not load listing, skipping slot",
				zap.String("slot_id", s.ID.String()),
				zap.String("listing_id", s.ListingID.String()),
				zap.Error(err))
			continue
		}
		byHost[s.HostID] = append(byHost[s.HostID], l.Title)
	}

	notified := j.notifyHosts(ctx, notification.TemplateAdsExpiryWarning, byHost, map[string]string{
		"expires_at": start.Format("2006-01-02"),
	})

	j.logger.Info("Warning sweep completed",
		zap.Int("slots_in_window", len(dueSlots)),
		zap.Int("hosts_notified", notified))
	return nil
}

// RunExpiry finds every slot with expiresAt at or before now and drives the
// publication engine's expiry transition per slot, isolating failures. After
// the pass, successfully expired slots are grouped by host for one combined
// "your ads expired" notification each.
func (j *SlotSweepJob) RunExpiry(ctx context.Context, now time.Time) error {
	j.logger.Info("Starting expiry sweep", zap.Time("cutoff", now))

	dueSlots, err := j.slots.ListExpiredBefore(ctx, now)
	if err != nil {
		return fmt.Errorf("expiry sweep slot query failed: %w", err)
	}
	if len(dueSlots) == 0 {
		j.logger.Info("Expiry sweep found no due slots")
		return nil
	}

	var expired, skipped, failed int
	byHost := make(map[uuid.UUID][]string)
	for i := range dueSlots {
		s := &dueSlots[i]
		outcome, err := j.publisher.Expire(ctx, s)
		if err != nil {
			failed++
			j.logger.Error("Failed to expire slot, continuing",
				zap.String("slot_id", s.ID.String()),
				zap.String("listing_id", s.ListingID.String()),
				zap.Error(err))
			continue
		}
		if outcome.Skipped {
			skipped++
			continue
		}
		expired++
		if !outcome.OrphanedSlot {
			byHost[outcome.HostID] = append(byHost[outcome.HostID], outcome.ListingTitle)
		}
	}

	notified := j.notifyHosts(ctx, notification.TemplateAdsExpired, byHost, nil)

	j.logger.Info("Expiry sweep completed",
		zap.Int("slots_due", len(dueSlots)),
		zap.Int("expired", expired),
		zap.Int("skipped_grace", skipped),
		zap.Int("failed", failed),
		zap.Int("hosts_notified", notified))
	return nil
}

// notifyHosts sends one combined email and push per host. Host records are
// fetched once each; per-host failures are logged and never stop the rest.
// Returns how many hosts were notified.
func (j *SlotSweepJob) notifyHosts(ctx context.Context, template string, byHost map[uuid.UUID][]string, extraVars map[string]string) int {
	hostCache := make(map[uuid.UUID]*host.Host)
	notified := 0

	for hostID, titles := range byHost {
		h, cached := hostCache[hostID]
		if !cached {
			var err error
			h, err = j.hosts.FindByID(ctx, hostID)
			if err != nil {
				j.logger.Warn("Sweep could not load host, skipping its notification",
					zap.String("host_id", hostID.String()), zap.Error(err))
				continue
			}
			hostCache[hostID] = h
		}

		vars := map[string]string{"listing_titles": strings.Join(titles, ", ")}
		for k, v := range extraVars {
			vars[k] = v
		}

		emailErr := j.notifier.SendEmail(ctx, template, h.Email, h.Language, vars)
		pushErr := j.notifier.SendPush(ctx, h.ID, template, h.Language, vars)
		if emailErr != nil || pushErr != nil {
			j.logger.Warn("Sweep notification partially failed",
				zap.String("host_id", hostID.String()),
				zap.NamedError("email_error", emailErr),
				zap.NamedError("push_error", pushErr))
		}
		notified++
	}

	return notified
}

// Stop gracefully stops the cron scheduler.
func (j *SlotSweepJob) Stop() {
	if j.cronScheduler != nil {
		j.logger.Info("Stopping slot sweep scheduler...")
		stopCtx := j.cronScheduler.Stop()
		select {
		case <-stopCtx.Done():
			j.logger.Info("Slot sweep scheduler stopped gracefully.")
		case <-time.After(10 * time.Second):
			j.logger.Warn("Slot sweep scheduler stop timed out.")
		}
	}
}
