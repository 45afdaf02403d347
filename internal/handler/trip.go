package handler

import (
	"net/http"
)

// GetClientTrips handles GET /clients/{client_id}/trips.
// An unknown client yields an empty array, never null.
func (s *Server) GetClientTrips(w http.ResponseWriter, r *http.Request, clientID string) {
	if s.trips == nil {
		writeJSON(w, http.StatusServiceUnavailable, unavailableBody("trip store not configured"))
		return
	}
	trips, err := s.trips.ClientTrips(r.Context(), clientID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := make([]ClientTrip, len(trips))
	for i, t := range trips {
		resp[i] = clientTripToResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetDriverStats handles GET /drivers/{driver_id}/stats.
// An unknown driver yields zero counts.
func (s *Server) GetDriverStats(w http.ResponseWriter, r *http.Request, driverID string) {
	if s.trips == nil {
		writeJSON(w, http.StatusServiceUnavailable, unavailableBody("trip store not configured"))
		return
	}
	stats, err := s.trips.DriverStats(r.Context(), driverID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, driverStatsToResponse(stats))
}
