package router

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "github.com/blobcache/blobcache/api/v1"
	"github.com/blobcache/blobcache/internal/auth"
	"github.com/blobcache/blobcache/internal/service"
)

// New sets up the application routes and required middleware. An empty
// token disables authentication.
func New(logger *slog.Logger, svc *service.Resolver, token string) *mux.Router {

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write healthz response", "err", err)
		}
	}).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	handler := v1.NewResolveHandler(logger, svc)

	r.Use(v1.RequestID)
	r.Use(handler.Log)
	if token != "" {
		r.Use(auth.Middleware(token))
	}

	api := r.PathPrefix("/v1").Subrouter()

	// GETs
	get := api.Methods("GET").Subrouter()
	get.HandleFunc("/resolutions/{id}", handler.GetResolution)
	get.HandleFunc("/resolutions/{id}/events", handler.Events)
	get.HandleFunc("/jobs", handler.GetJobs)
	get.HandleFunc("/jobs/{id}", handler.GetJob)

	// POSTs
	post := api.Methods("POST").Subrouter()
	post.HandleFunc("/resolve", handler.Resolve)
	post.Use(v1.MiddlewareResolveValidation)

	// DELETEs
	del := api.Methods("DELETE").Subrouter()
	del.HandleFunc("/resolutions/{id}", handler.DeleteResolution)

	return r
}
