// Package service exposes resolution as an application-level API: one
// coordinator per tracked resource, deduplicated by cache key so
// concurrent requests for the same resource share a single fetch.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/blobcache/blobcache/internal/cachekey"
	"github.com/blobcache/blobcache/internal/coordinator"
	"github.com/blobcache/blobcache/internal/data"
	"github.com/blobcache/blobcache/internal/netmon"
	"github.com/blobcache/blobcache/internal/repo"
	"github.com/blobcache/blobcache/internal/store"
	"github.com/blobcache/blobcache/internal/transfer"
)

// Resolution pairs a tracked resolution with its handle.
type Resolution struct {
	ID         string          `json:"id"`
	Resolution data.Resolution `json:"resolution"`
	Job        *data.Job       `json:"job,omitempty"`
}

// Resolver manages coordinators keyed by derived cache identity.
type Resolver struct {
	log   *slog.Logger
	store *store.Store
	net   netmon.Monitor
	tr    transfer.Transport
	jobs  repo.JobRepo

	sf singleflight.Group

	mu     sync.Mutex
	coords map[string]*coordinator.Coordinator // by resolution ID
	byKey  map[string]string                   // cache identity -> resolution ID
}

func NewResolver(log *slog.Logger, st *store.Store, net netmon.Monitor, tr transfer.Transport, jobs repo.JobRepo) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		log:    log,
		store:  st,
		net:    net,
		tr:     tr,
		jobs:   jobs,
		coords: make(map[string]*coordinator.Coordinator),
		byKey:  make(map[string]string),
	}
}

// Resolve drives resolution for the resource. Concurrent calls for the
// same cache identity collapse onto one coordinator; a repeat call for
// a resource that previously resolved Unavailable retries it.
func (r *Resolver) Resolve(ctx context.Context, res data.Resource) (Resolution, error) {
	if !res.Policy.Valid() {
		return Resolution{}, data.ErrBadPolicy
	}
	if !res.Remote() {
		return Resolution{Resolution: data.Resolution{Status: data.StatusLocal}}, nil
	}
	dir, key, err := cachekey.Derive(res.Locator, res.Policy)
	if err != nil {
		return Resolution{Resolution: data.Resolution{Status: data.StatusLocal}}, err
	}
	identity := dir + "/" + key

	v, err, _ := r.sf.Do(identity, func() (any, error) {
		r.mu.Lock()
		id, ok := r.byKey[identity]
		var c *coordinator.Coordinator
		if ok {
			c = r.coords[id]
		}
		r.mu.Unlock()

		if c == nil {
			id = uuid.NewString()
			c = coordinator.New(r.log.With("resolution", id), r.store, r.net, r.tr,
				coordinator.WithRepo(r.jobs))
			r.mu.Lock()
			r.coords[id] = c
			r.byKey[identity] = id
			r.mu.Unlock()
		}

		state := c.State()
		// a Downloading coordinator keeps its in-flight job; every other
		// state re-enters so the store is re-checked on each request. A
		// cached entry deleted out-of-band is re-fetched, not served stale.
		if state.Status != data.StatusDownloading {
			var err error
			state, err = c.SetResource(ctx, res)
			if err != nil {
				return Resolution{ID: id, Resolution: state, Job: c.Job()}, err
			}
		}
		return Resolution{ID: id, Resolution: state, Job: c.Job()}, nil
	})
	if out, ok := v.(Resolution); ok {
		return out, err
	}
	return Resolution{}, err
}

// Get returns the current state of a tracked resolution.
func (r *Resolver) Get(id string) (Resolution, bool) {
	r.mu.Lock()
	c, ok := r.coords[id]
	r.mu.Unlock()
	if !ok {
		return Resolution{}, false
	}
	return Resolution{ID: id, Resolution: c.State(), Job: c.Job()}, true
}

// Watch registers fn on a tracked resolution's coordinator.
func (r *Resolver) Watch(id string, fn func(coordinator.Update)) (func(), bool) {
	r.mu.Lock()
	c, ok := r.coords[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	return c.Watch(fn), true
}

// Jobs lists recorded job history.
func (r *Resolver) Jobs(ctx context.Context) (data.Jobs, error) {
	if r.jobs == nil {
		return nil, nil
	}
	return r.jobs.List(ctx)
}

// Job fetches one recorded job.
func (r *Resolver) Job(ctx context.Context, id string) (*data.Job, error) {
	if r.jobs == nil {
		return nil, data.ErrNotFound
	}
	return r.jobs.Get(ctx, id)
}

// Evict closes and forgets a tracked resolution, releasing its
// coordinator's goroutine and network subscription. Cached bytes stay
// on disk; a later Resolve for the same resource starts a fresh
// coordinator and finds them there.
func (r *Resolver) Evict(id string) bool {
	r.mu.Lock()
	c, ok := r.coords[id]
	if ok {
		delete(r.coords, id)
		for k, v := range r.byKey {
			if v == id {
				delete(r.byKey, k)
			}
		}
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	c.Close()
	return true
}

// Close tears down every coordinator.
func (r *Resolver) Close() {
	r.mu.Lock()
	coords := make([]*coordinator.Coordinator, 0, len(r.coords))
	for _, c := range r.coords {
		coords = append(coords, c)
	}
	r.coords = make(map[string]*coordinator.Coordinator)
	r.byKey = make(map[string]string)
	r.mu.Unlock()
	for _, c := range coords {
		c.Close()
	}
}
