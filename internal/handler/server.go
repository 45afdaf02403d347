// Package handler implements the HTTP handlers for the tripfeed read API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, trip.go, ingest_run.go) but share the same Server struct so
// they can access its dependencies. Routes are registered in api.go.
package handler

import (
	"context"
	"log/slog"

	"github.com/pkordes/tripfeed/internal/domain"
)

// TripServicer defines the read operations the trip handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or service layer.
type TripServicer interface {
	ClientTrips(ctx context.Context, clientID string) ([]domain.ClientTrip, error)
	DriverStats(ctx context.Context, driverID string) (domain.DriverStats, error)
}

// RunLister lists the ingestion run log.
type RunLister interface {
	List(ctx context.Context, p domain.PageParams) (domain.Page[domain.IngestRun], error)
}

// Pinger reports whether the database is reachable. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies of every endpoint.
// Any dependency may be nil; the matching endpoints then answer 503
// (or, for readiness, report ready).
type Server struct {
	trips TripServicer
	runs  RunLister
	db    Pinger
	log   *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(trips TripServicer, runs RunLister, db Pinger, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{trips: trips, runs: runs, db: db, log: log}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(nil, nil, nil, nil)
}
