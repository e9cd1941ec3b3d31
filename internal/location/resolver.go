// File: internal/location/resolver.go
package location

import (
	"context"

	"go.uber.org/zap"

	"marketplace_backend/internal/common"
	"marketplace_backend/internal/listing"
)

// ResolvedSet holds the location identifiers a listing publishes into, from
// widest to narrowest. Any field may be nil.
type ResolvedSet struct {
	CountryID  *string
	PlaceID    *string
	LocalityID *string
}

// IDs returns the non-nil identifiers in country, place, locality order.
func (s ResolvedSet) IDs() []string {
	var out []string
	if s.CountryID != nil {
		out = append(out, *s.CountryID)
	}
	if s.PlaceID != nil {
		out = append(out, *s.PlaceID)
	}
	if s.LocalityID != nil {
		out = append(out, *s.LocalityID)
	}
	return out
}

// Resolver turns a listing's location references into the set of location
// ids its public projections live under.
type Resolver struct {
	repo   Repository
	logger *zap.Logger
}

// NewResolver creates a new location resolver.
func NewResolver(repo Repository, logger *zap.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger.Named("location_resolver")}
}

// Resolve uses the geocoded references when present, otherwise falls back to
// the manually-assigned location ids, climbing from a locality to its parent
// place when only the locality was assigned.
func (r *Resolver) Resolve(ctx context.Context, l *listing.Listing) (ResolvedSet, error) {
	if l.PlaceID != nil {
		return ResolvedSet{
			CountryID:  l.CountryID,
			PlaceID:    l.PlaceID,
			LocalityID: l.LocalityID,
		}, nil
	}

	if len(l.ManualLocationIDs) == 0 {
		return ResolvedSet{}, common.ErrBadRequest.WithDetails(
			"Listing has no resolvable location data: neither geocoded references nor manual location ids.")
	}

	var set ResolvedSet
	for _, id := range l.ManualLocationIDs {
		loc, err := r.repo.FindCanonical(ctx, id)
		if err != nil {
			return ResolvedSet{}, err
		}
		r.assign(&set, loc)

		if loc.Kind == KindLocality && set.PlaceID == nil && loc.ParentLocationID != nil {
			parent, err := r.repo.FindCanonical(ctx, *loc.ParentLocationID)
			if err != nil {
				r.logger.Warn("Parent place lookup failed for manual locality",
					zap.String("locality_id", id), zap.Error(err))
				continue
			}
			r.assign(&set, parent)
		}
	}

	if len(set.IDs()) == 0 {
		return ResolvedSet{}, common.ErrBadRequest.WithDetails(
			"Manual location ids did not resolve to any known location.")
	}
	return set, nil
}

// assign fills the slot for the location's kind, first assignment wins.
func (r *Resolver) assign(set *ResolvedSet, loc *Location) {
	id := loc.LocationID
	switch loc.Kind {
	case KindCountry:
		if set.CountryID == nil {
			set.CountryID = &id
		}
	case KindPlace:
		if set.PlaceID == nil {
			set.PlaceID = &id
		}
	case KindLocality:
		if set.LocalityID == nil {
			set.LocalityID = &id
		}
	}
}
