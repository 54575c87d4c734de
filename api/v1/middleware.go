package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/blobcache/blobcache/internal/data"
)

// MiddlewareResolveValidation decodes and validates the resolve request
// body, stashing the resource in the request context.
func MiddlewareResolveValidation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType := r.Header.Get("Content-Type"); contentType != "" && !strings.HasPrefix(contentType, "application/json") {
			markErr(w, ErrContentType)
			http.Error(w, ErrContentType.Error(), http.StatusUnsupportedMediaType)
			return
		}

		// Body limit
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

		var res data.Resource
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&res); err != nil {
			markErr(w, err)
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		if strings.TrimSpace(res.Locator) == "" {
			markErr(w, ErrLocatorJSON)
			http.Error(w, ErrLocatorJSON.Error(), http.StatusBadRequest)
			return
		}
		if res.Policy.Mode == "" {
			res.Policy.Mode = data.KeyNone
		}
		if !res.Policy.Valid() {
			markErr(w, ErrPolicyMode)
			http.Error(w, ErrPolicyMode.Error(), http.StatusBadRequest)
			return
		}
		if res.Policy.Mode == data.KeyNamed && len(res.Policy.Params) == 0 {
			markErr(w, ErrNamedParams)
			http.Error(w, ErrNamedParams.Error(), http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyResource{}, res)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Log wraps handlers with structured request logging.
func (h *ResolveHandler) Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		rw := &rwLogger{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		if rw.status == 0 {
			rw.status = http.StatusOK
		}
		timeElapsed := time.Since(startTime)
		if hErr := rw.err; hErr != nil {
			h.l.Error(hErr.Error(),
				"method", r.Method,
				"url", r.URL.Path,
				"status", rw.status,
				"remote", r.RemoteAddr,
				"ua", r.UserAgent(),
				"dur_ms", timeElapsed.Milliseconds(),
				"bytes", rw.bytes)
			return
		}

		h.l.Info("", "method", r.Method,
			"url", r.URL.Path,
			"status", rw.status,
			"remote", r.RemoteAddr,
			"ua", r.UserAgent(),
			"dur_ms", timeElapsed.Milliseconds(),
			"bytes", rw.bytes)
	})
}
