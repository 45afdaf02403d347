package handler

import (
	"net/http"

	"github.com/pkordes/tripfeed/internal/domain"
)

// ListIngestRuns handles GET /ingest/runs.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListIngestRuns(w http.ResponseWriter, r *http.Request, params domain.PageParams) {
	if s.runs == nil {
		writeJSON(w, http.StatusServiceUnavailable, unavailableBody("run log not configured"))
		return
	}
	page, err := s.runs.List(r.Context(), params)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	data := make([]IngestRun, len(page.Items))
	for i, run := range page.Items {
		data[i] = ingestRunToResponse(run)
	}
	writeJSON(w, http.StatusOK, IngestRunList{
		Data: data,
		Pagination: Pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: page.Total,
		},
	})
}
