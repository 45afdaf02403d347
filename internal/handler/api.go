package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/tripfeed/internal/domain"
	"github.com/pkordes/tripfeed/spec"
)

// Handler returns every route of s mounted on a fresh chi router.
func Handler(s *Server) http.Handler {
	r := chi.NewRouter()
	HandlerFromMux(s, r)
	return r
}

// HandlerFromMux registers the routes described by spec/openapi.yaml on r.
func HandlerFromMux(s *Server, r chi.Router) {
	r.Get("/healthz", s.GetHealth)
	r.Get("/readyz", s.GetReady)
	r.Get("/openapi.yaml", serveOpenAPI)

	r.Get("/clients/{client_id}/trips", func(w http.ResponseWriter, r *http.Request) {
		clientID, ok := bindPathParam(w, r, "client_id")
		if !ok {
			return
		}
		s.GetClientTrips(w, r, clientID)
	})
	r.Get("/drivers/{driver_id}/stats", func(w http.ResponseWriter, r *http.Request) {
		driverID, ok := bindPathParam(w, r, "driver_id")
		if !ok {
			return
		}
		s.GetDriverStats(w, r, driverID)
	})
	r.Get("/ingest/runs", func(w http.ResponseWriter, r *http.Request) {
		var page, limit *int
		if err := runtime.BindQueryParameter("form", true, false, "page", r.URL.Query(), &page); err != nil {
			writeJSON(w, http.StatusBadRequest, requestBody(fmt.Sprintf("invalid format for parameter page: %v", err)))
			return
		}
		if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
			writeJSON(w, http.StatusBadRequest, requestBody(fmt.Sprintf("invalid format for parameter limit: %v", err)))
			return
		}
		s.ListIngestRuns(w, r, domain.NewPageParams(page, limit))
	})
}

// bindPathParam binds a required string path parameter. An empty value is a
// validation failure, answered with 422 like a blank id.
func bindPathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: ErrorDetail{
			Code:    "validation_error",
			Message: fmt.Sprintf("%s is required", name),
		}})
		return "", false
	}
	return v, true
}

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(spec.OpenAPI)
}
