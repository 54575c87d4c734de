package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/blobcache/blobcache/internal/data"
	"github.com/blobcache/blobcache/internal/service"
)

// ResolveHandler serves the resolution API.
type ResolveHandler struct {
	l   *slog.Logger
	svc *service.Resolver
}

type rwLogger struct {
	http.ResponseWriter
	status int
	bytes  int
	err    error
}

func (w *rwLogger) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *rwLogger) SetErr(err error) {
	w.err = err
}

func (w *rwLogger) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

type errorSetter interface {
	SetErr(error)
}

func markErr(w http.ResponseWriter, err error) {
	if es, ok := w.(errorSetter); ok {
		es.SetErr(err)
	}
}

// context keys
type ctxKeyResource struct{}

func NewResolveHandler(l *slog.Logger, svc *service.Resolver) *ResolveHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ResolveHandler{l: l, svc: svc}
}

// Resolve drives resolution for the resource decoded by the validation
// middleware and returns the current state.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	v := r.Context().Value(ctxKeyResource{})
	res, ok := v.(data.Resource)
	if !ok {
		markErr(w, ErrResourceCtx)
		http.Error(w, ErrResourceCtx.Error(), http.StatusInternalServerError)
		return
	}

	out, err := h.svc.Resolve(r.Context(), res)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrInvalidLocator):
			// malformed locators resolve Local; surface both
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			writeJSON(w, out)
			return
		case errors.Is(err, data.ErrBadPolicy):
			markErr(w, err)
			http.Error(w, ErrPolicyMode.Error(), http.StatusBadRequest)
			return
		default:
			markErr(w, err)
			http.Error(w, "failed to resolve", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, out)
}

// GetResolution returns the current state of a tracked resolution.
func (h *ResolveHandler) GetResolution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	out, ok := h.svc.Get(id)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, out)
}

// DeleteResolution stops tracking a resolution and releases its
// coordinator. The cached file, if any, is left in place.
func (h *ResolveHandler) DeleteResolution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.svc.Evict(id) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetJobs lists recorded download jobs.
func (h *ResolveHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.svc.Jobs(r.Context())
	if err != nil {
		markErr(w, err)
		http.Error(w, "failed to list jobs", http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = data.Jobs{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := jobs.ToJSON(w); err != nil {
		markErr(w, err)
		http.Error(w, "Unable to marshal json", http.StatusInternalServerError)
		return
	}
}

// GetJob returns one recorded download job.
func (h *ResolveHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := h.svc.Job(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		markErr(w, err)
		http.Error(w, "failed to get job", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = job.ToJSON(w)
}
