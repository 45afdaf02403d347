// Package service contains the read-side business logic of tripfeed.
// Services validate inputs and orchestrate repo and cache calls.
// No SQL lives here — services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkordes/tripfeed/internal/domain"
	"github.com/pkordes/tripfeed/internal/repo"
)

// StatsCache is the read-through cache for driver statistics.
// *cache.StatsCache satisfies it.
type StatsCache interface {
	GetDriverStats(ctx context.Context, driverID string) (domain.DriverStats, bool, error)
	SetDriverStats(ctx context.Context, stats domain.DriverStats) error
}

// TripService answers trip history and driver stats queries.
type TripService struct {
	trips repo.TripRepo
	cache StatsCache
	log   *slog.Logger
}

// NewTripService constructs a TripService backed by the provided TripRepo.
// cache may be nil, in which case every stats lookup hits the repo.
func NewTripService(r repo.TripRepo, cache StatsCache, log *slog.Logger) *TripService {
	if log == nil {
		log = slog.Default()
	}
	return &TripService{trips: r, cache: cache, log: log}
}

// ClientTrips returns the trip history of a client, most recent first.
// Returns domain.ErrValidation for a blank id. Always returns a non-nil slice.
func (s *TripService) ClientTrips(ctx context.Context, clientID string) ([]domain.ClientTrip, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("%w: client_id is required", domain.ErrValidation)
	}
	trips, err := s.trips.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("service.TripService.ClientTrips: %w", err)
	}
	if trips == nil {
		return []domain.ClientTrip{}, nil
	}
	return trips, nil
}

// DriverStats returns trip counts for a driver, served from the cache when
// possible. Cache failures fall through to the repo.
// Returns domain.ErrValidation for a blank id.
func (s *TripService) DriverStats(ctx context.Context, driverID string) (domain.DriverStats, error) {
	if strings.TrimSpace(driverID) == "" {
		return domain.DriverStats{}, fmt.Errorf("%w: driver_id is required", domain.ErrValidation)
	}

	if s.cache != nil {
		stats, ok, err := s.cache.GetDriverStats(ctx, driverID)
		switch {
		case err != nil:
			s.log.WarnContext(ctx, "stats cache read failed", "driver_id", driverID, "error", err)
		case ok:
			return stats, nil
		}
	}

	stats, err := s.trips.StatsByDriver(ctx, driverID)
	if err != nil {
		return domain.DriverStats{}, fmt.Errorf("service.TripService.DriverStats: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetDriverStats(ctx, stats); err != nil {
			s.log.WarnContext(ctx, "stats cache write failed", "driver_id", driverID, "error", err)
		}
	}
	return stats, nil
}
