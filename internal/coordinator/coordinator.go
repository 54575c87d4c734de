// Package coordinator orchestrates cache lookups and downloads for one
// logical resource at a time. On every desired-resource change it
// derives the cache key, consults the store, and either resolves
// immediately from disk or starts a download job, tracking the job's
// lifecycle through its event stream.
package coordinator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/blobcache/blobcache/internal/cachekey"
	"github.com/blobcache/blobcache/internal/data"
	"github.com/blobcache/blobcache/internal/metrics"
	"github.com/blobcache/blobcache/internal/netmon"
	"github.com/blobcache/blobcache/internal/repo"
	"github.com/blobcache/blobcache/internal/store"
	"github.com/blobcache/blobcache/internal/transfer"
)

// Update is pushed to watchers whenever the coordinator's observable
// state changes. Job is a snapshot of the current job, nil when idle.
type Update struct {
	Resolution data.Resolution `json:"resolution"`
	Job        *data.Job       `json:"job,omitempty"`
}

type derived struct {
	dir string
	key string
}

// Coordinator owns exactly one resolution at a time. It is safe for
// concurrent use; all mutable state sits behind one mutex and the event
// loop is the only writer for job lifecycle transitions.
type Coordinator struct {
	log   *slog.Logger
	store *store.Store
	net   netmon.Monitor
	tr    transfer.Transport
	jobs  repo.JobRepo // optional, nil disables history
	keys  *gocache.Cache

	events chan transfer.Event
	rep    transfer.Reporter
	sub    netmon.Subscription

	mu          sync.Mutex
	gen         uint64
	online      bool
	res         data.Resolution
	entry       data.Entry
	prevPath    string // last known cacheable path, deleted when superseded
	job         *data.Job
	started     map[string]*data.Job // jobs in flight or superseded, by ID
	downloading bool
	chain       []data.Resource
	chainIdx    int
	fallbacks   []string
	watchers    map[int]func(Update)
	nextWatch   int

	stop    chan struct{}
	wg      sync.WaitGroup
	closed  bool
	closeMu sync.Mutex
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRepo records job history in r.
func WithRepo(r repo.JobRepo) Option {
	return func(c *Coordinator) { c.jobs = r }
}

// WithFallbacks configures locators tried, in order, when the primary
// resource resolves Unavailable. Each fallback uses the same key policy
// as the primary.
func WithFallbacks(locators ...string) Option {
	return func(c *Coordinator) { c.fallbacks = locators }
}

// New builds a coordinator and starts its event loop. The network
// subscription is acquired here and released by Close.
func New(log *slog.Logger, st *store.Store, net netmon.Monitor, tr transfer.Transport, opts ...Option) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		log:      log,
		store:    st,
		net:      net,
		tr:       tr,
		keys:     gocache.New(5*time.Minute, 10*time.Minute),
		events:   make(chan transfer.Event, 16),
		started:  make(map[string]*data.Job),
		watchers: make(map[int]func(Update)),
		res:      data.Resolution{Status: data.StatusLocal},
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rep = transfer.NewChanReporter(c.events)
	c.online = net.Current()
	c.sub = net.Subscribe(c.onNetwork)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.stop:
				return
			case e := <-c.events:
				c.handle(e)
			}
		}
	}()
	return c
}

// State returns the current resolution.
func (c *Coordinator) State() data.Resolution {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.res
}

// Job returns a snapshot of the current download job, or nil when idle.
func (c *Coordinator) Job() *data.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.Clone()
}

// Downloading reports whether a fetch is visibly in flight. It clears
// as soon as the progress stream reaches bytesWritten == contentLength,
// ahead of the authoritative terminal event.
func (c *Coordinator) Downloading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downloading
}

// Watch registers fn for state updates and returns a release func.
// fn is invoked with the coordinator's lock held: it must not block and
// must not call back into the coordinator. A non-blocking channel send
// is the expected shape.
func (c *Coordinator) Watch(fn func(Update)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextWatch++
	id := c.nextWatch
	c.watchers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers, id)
	}
}

// SetResource is the single entry point driving resolution. It derives
// the key, checks the store, and on a miss starts a download when the
// network allows. A new call supersedes the previous resource: the old
// entry's file is deleted once the new key is known to differ, and any
// in-flight job's eventual result is discarded by generation.
func (c *Coordinator) SetResource(ctx context.Context, res data.Resource) (data.Resolution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.downloading = false
	c.job = nil

	if !res.Remote() {
		c.res = data.Resolution{Status: data.StatusLocal}
		c.notifyLocked()
		return c.res, nil
	}

	c.chain = c.chain[:0]
	c.chain = append(c.chain, res)
	for _, loc := range c.fallbacks {
		c.chain = append(c.chain, data.Resource{Locator: loc, Policy: res.Policy})
	}

	resolution, err := c.tryFromLocked(ctx, 0)
	c.res = resolution
	c.notifyLocked()
	return resolution, err
}

// tryFromLocked walks the resource chain starting at idx until a
// candidate resolves to a cache hit or a started download. Candidates
// that cannot be fetched right now (offline, directory failure) are
// skipped so a cached fallback can still serve.
func (c *Coordinator) tryFromLocked(ctx context.Context, idx int) (data.Resolution, error) {
	var firstErr error
	for i := idx; i < len(c.chain); i++ {
		r := c.chain[i]
		d, err := c.derive(r)
		if err != nil {
			if i == 0 {
				// malformed primary locator falls back to Local
				return data.Resolution{Status: data.StatusLocal}, err
			}
			c.log.Warn("skipping fallback with invalid locator", "locator", r.Locator, "err", err)
			continue
		}

		path, found := c.store.Exists(d.dir, d.key)
		if found {
			metrics.Lookups.WithLabelValues("hit").Inc()
			c.entry = data.Entry{Dir: d.dir, Key: d.key, Path: path, Exists: true}
			c.prevPath = path
			c.chainIdx = i
			return data.Resolution{Status: data.StatusCached, Path: path}, nil
		}
		metrics.Lookups.WithLabelValues("miss").Inc()

		if !c.online {
			c.log.Info("fetch gated by connectivity", "locator", r.Locator, "err", data.ErrNoNetwork)
			continue
		}
		if err := c.store.EnsureDir(d.dir); err != nil {
			c.log.Error("ensure storage dir", "dir", d.dir, "err", err)
			if firstErr == nil {
				firstErr = err
			}
			c.store.Delete(c.prevPath)
			c.prevPath = ""
			continue
		}
		if c.prevPath != "" && c.prevPath != path {
			c.store.Delete(c.prevPath)
			c.prevPath = ""
		}

		job := &data.Job{
			ID:        uuid.NewString(),
			Gen:       c.gen,
			Source:    r.Locator,
			Dest:      path,
			State:     data.JobPending,
			CreatedAt: time.Now(),
		}
		if c.jobs != nil {
			if _, err := c.jobs.Add(context.WithoutCancel(ctx), job); err != nil {
				c.log.Error("record job", "id", job.ID, "err", err)
			}
		}
		if _, err := c.tr.Start(ctx, job, c.rep); err != nil {
			c.log.Error("start transfer", "source", r.Locator, "err", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.entry = data.Entry{Dir: d.dir, Key: d.key, Path: path}
		c.job = job
		c.started[job.ID] = job
		c.downloading = true
		c.chainIdx = i
		return data.Resolution{Status: data.StatusDownloading}, nil
	}
	return data.Resolution{Status: data.StatusUnavailable}, firstErr
}

// derive memoizes key derivation per (locator, policy).
func (c *Coordinator) derive(r data.Resource) (derived, error) {
	ck := r.Locator + "\x00" + string(r.Policy.Mode) + "\x00" + strings.Join(r.Policy.Params, ",")
	if v, ok := c.keys.Get(ck); ok {
		return v.(derived), nil
	}
	dir, key, err := cachekey.Derive(r.Locator, r.Policy)
	if err != nil {
		return derived{}, err
	}
	d := derived{dir: dir, key: key}
	c.keys.SetDefault(ck, d)
	return d, nil
}

// Close releases the network subscription, cancels any in-flight job,
// and stops the event loop. Idempotent.
func (c *Coordinator) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true

	c.net.Unsubscribe(c.sub)

	c.mu.Lock()
	var cancelID string
	if c.job != nil && !c.job.State.Terminal() {
		cancelID = c.job.ID
	}
	c.mu.Unlock()
	if cancelID != "" {
		if err := c.tr.Cancel(cancelID); err != nil {
			c.log.Warn("cancel in-flight job", "id", cancelID, "err", err)
		}
	}

	close(c.stop)
	c.wg.Wait()
}

func (c *Coordinator) onNetwork(online bool) {
	c.mu.Lock()
	if c.online == online {
		c.mu.Unlock()
		return
	}
	c.online = online
	c.mu.Unlock()
	// No retroactive retry on reconnect: the next SetResource call is
	// the only retry path.
	c.log.Info("connectivity changed", "online", online)
}

func (c *Coordinator) notifyLocked() {
	u := Update{Resolution: c.res, Job: c.job.Clone()}
	for _, fn := range c.watchers {
		fn(u)
	}
}
