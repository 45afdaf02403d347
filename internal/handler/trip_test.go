package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripfeed/internal/domain"
	"github.com/pkordes/tripfeed/internal/handler"
)

// mockTripServicer is a test double for handler.TripServicer.
// Set only the method fields your test needs.
type mockTripServicer struct {
	clientTrips func(ctx context.Context, clientID string) ([]domain.ClientTrip, error)
	driverStats func(ctx context.Context, driverID string) (domain.DriverStats, error)
}

func (m *mockTripServicer) ClientTrips(ctx context.Context, clientID string) ([]domain.ClientTrip, error) {
	return m.clientTrips(ctx, clientID)
}
func (m *mockTripServicer) DriverStats(ctx context.Context, driverID string) (domain.DriverStats, error) {
	return m.driverStats(ctx, driverID)
}

// compile-time check: mockTripServicer must satisfy handler.TripServicer.
var _ handler.TripServicer = (*mockTripServicer)(nil)

// ---- helpers ---------------------------------------------------------------

// newHTTPHandler wires a Server with the given mock into the chi router.
// This mirrors how main.go wires it in production.
func newHTTPHandler(svc handler.TripServicer) http.Handler {
	return handler.Handler(handler.NewServer(svc, nil, nil, nil))
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// ---- GET /clients/{client_id}/trips ----------------------------------------

func TestGetClientTrips_200(t *testing.T) {
	svc := &mockTripServicer{
		clientTrips: func(_ context.Context, id string) ([]domain.ClientTrip, error) {
			assert.Equal(t, "C1", id)
			return []domain.ClientTrip{
				{TripID: "A3", DriverID: "D1", TripDate: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC), Status: domain.StatusDone},
				{TripID: "A1", DriverID: "D2", TripDate: time.Date(2024, 5, 1, 10, 0, 0, 500e6, time.UTC), Status: domain.StatusNotRespond},
			}, nil
		},
	}

	rec := get(newHTTPHandler(svc), "/clients/C1/trips")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []handler.ClientTrip
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []handler.ClientTrip{
		{TripID: "A3", DriverID: "D1", TripDate: "2024-05-02T09:00:00.000", Status: "done"},
		{TripID: "A1", DriverID: "D2", TripDate: "2024-05-01T10:00:00.500", Status: "not_respond"},
	}, resp)
}

func TestGetClientTrips_200_Empty(t *testing.T) {
	svc := &mockTripServicer{
		clientTrips: func(context.Context, string) ([]domain.ClientTrip, error) { return []domain.ClientTrip{}, nil },
	}

	rec := get(newHTTPHandler(svc), "/clients/nobody/trips")

	assert.Equal(t, http.StatusOK, rec.Code)
	// Must be a JSON array, not null.
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetClientTrips_EscapedID(t *testing.T) {
	var got string
	svc := &mockTripServicer{
		clientTrips: func(_ context.Context, id string) ([]domain.ClientTrip, error) {
			got = id
			return nil, nil
		},
	}

	rec := get(newHTTPHandler(svc), "/clients/C%201/trips")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "C 1", got)
}

func TestGetClientTrips_422_Blank(t *testing.T) {
	svc := &mockTripServicer{
		clientTrips: func(context.Context, string) ([]domain.ClientTrip, error) {
			return nil, fmt.Errorf("%w: client_id is required", domain.ErrValidation)
		},
	}

	rec := get(newHTTPHandler(svc), "/clients/%20/trips")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "validation_error", resp.Error.Code)
	assert.Equal(t, "client_id is required", resp.Error.Message)
}

func TestGetClientTrips_500(t *testing.T) {
	svc := &mockTripServicer{
		clientTrips: func(context.Context, string) ([]domain.ClientTrip, error) {
			return nil, errors.New("db exploded")
		},
	}

	rec := get(newHTTPHandler(svc), "/clients/C1/trips")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db exploded", "internal errors must not leak")
}

// ---- GET /drivers/{driver_id}/stats ----------------------------------------

func TestGetDriverStats_200(t *testing.T) {
	svc := &mockTripServicer{
		driverStats: func(_ context.Context, id string) (domain.DriverStats, error) {
			return domain.DriverStats{DriverID: id, TotalTrips: 3, Done: 2, NotRespond: 1}, nil
		},
	}

	rec := get(newHTTPHandler(svc), "/drivers/D1/stats")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"driver_id":"D1","total_trips":3,"done":2,"not_respond":1}`, rec.Body.String())
}

func TestGetDriverStats_UnknownDriverIsZero(t *testing.T) {
	svc := &mockTripServicer{
		driverStats: func(_ context.Context, id string) (domain.DriverStats, error) {
			return domain.DriverStats{DriverID: id}, nil
		},
	}

	rec := get(newHTTPHandler(svc), "/drivers/ghost/stats")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"driver_id":"ghost","total_trips":0,"done":0,"not_respond":0}`, rec.Body.String())
}

func TestGetDriverStats_422(t *testing.T) {
	svc := &mockTripServicer{
		driverStats: func(context.Context, string) (domain.DriverStats, error) {
			return domain.DriverStats{}, fmt.Errorf("%w: driver_id is required", domain.ErrValidation)
		},
	}

	rec := get(newHTTPHandler(svc), "/drivers/%20/stats")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTripRoutes_503_WithoutService(t *testing.T) {
	h := handler.Handler(handler.NewHealthHandler())

	assert.Equal(t, http.StatusServiceUnavailable, get(h, "/clients/C1/trips").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(h, "/drivers/D1/stats").Code)
}
