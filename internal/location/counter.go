// File: internal/location/counter.go
package location

import (
	"context"

	"go.uber.org/zap"

	"marketplace_backend/internal/common"
)

// CounterMaintainer fans a listing's live/not-live change out to the counter
// on every name-variant of every location the listing belongs to. Counters
// are a best-effort materialized view; the listing status stays the single
// source of truth, so per-location failures are collected, never fatal.
type CounterMaintainer struct {
	repo   Repository
	logger *zap.Logger
}

// NewCounterMaintainer creates a new counter maintainer.
func NewCounterMaintainer(repo Repository, logger *zap.Logger) *CounterMaintainer {
	return &CounterMaintainer{repo: repo, logger: logger.Named("location_counters")}
}

// IncrementAll bumps the live-listing counter for each location id in order.
func (m *CounterMaintainer) IncrementAll(ctx context.Context, locationIDs []string) common.BatchReport {
	var report common.BatchReport
	for _, id := range locationIDs {
		if err := m.repo.IncrementListings(ctx, id); err != nil {
			m.logger.Warn("Failed to increment location counter",
				zap.String("location_id", id), zap.Error(err))
			report.Fail(id, err)
			continue
		}
		report.Ok()
	}
	return report
}

// DecrementAll lowers the live-listing counter for each location id in order.
// A location that no longer exists is tolerated silently.
func (m *CounterMaintainer) DecrementAll(ctx context.Context, locationIDs []string) common.BatchReport {
	var report common.BatchReport
	for _, id := range locationIDs {
		err := m.repo.DecrementListings(ctx, id)
		if err != nil {
			if apiErr, ok := common.IsAPIError(err); ok && apiErr.Code == "NOT_FOUND" {
				m.logger.Debug("Location gone, skipping counter decrement",
					zap.String("location_id", id))
				report.Ok()
				continue
			}
			m.logger.Warn("Failed to decrement location counter",
				zap.String("location_id", id), zap.Error(err))
			report.Fail(id, err)
			continue
		}
		report.Ok()
	}
	return report
}
