package coordinator

import (
	"context"
	"strings"

	"github.com/blobcache/blobcache/internal/data"
	"github.com/blobcache/blobcache/internal/metrics"
	"github.com/blobcache/blobcache/internal/transfer"
)

// handle applies one transport event. Terminal events from generations
// older than the current one are discarded: their resource was
// superseded and any file they produced is deleted defensively.
func (c *Coordinator) handle(e transfer.Event) {
	metrics.JobEvents.WithLabelValues(strings.ToLower(string(e.Type))).Inc()

	c.mu.Lock()
	job, tracked := c.started[e.JobID]
	if !tracked {
		c.mu.Unlock()
		c.log.Warn("event for unknown job", "id", e.JobID, "type", e.Type)
		return
	}

	stale := e.Gen != c.gen
	var state data.JobState

	switch e.Type {
	case transfer.EventBegin:
		state = data.JobInProgress
		job.State = state
		if e.Progress != nil {
			job.ContentLength = e.Progress.Total
		}
		metrics.ActiveJobs.Inc()
	case transfer.EventProgress:
		if e.Progress != nil {
			job.BytesWritten = e.Progress.Written
			job.ContentLength = e.Progress.Total
			// progress equality clears the downloading flag ahead of
			// the terminal event; Cached still waits for Complete
			if !stale && e.Progress.Done() {
				c.downloading = false
			}
		}
		c.persistLocked(job)
		c.notifyLocked()
		c.mu.Unlock()
		return
	case transfer.EventComplete:
		state = data.JobSucceeded
	case transfer.EventFailed:
		state = data.JobFailed
	case transfer.EventCancelled:
		state = data.JobCancelled
	default:
		c.mu.Unlock()
		c.log.Warn("unknown event type", "id", e.JobID, "type", e.Type)
		return
	}

	// only jobs that saw a Begin counted toward the gauge; a transfer
	// that fails before its first byte must not walk it negative
	wasActive := job.State == data.JobInProgress
	job.State = state
	if state.Terminal() {
		delete(c.started, e.JobID)
		if wasActive {
			metrics.ActiveJobs.Dec()
		}
	}
	c.persistLocked(job)

	if stale {
		cur := c.entry.Path
		c.mu.Unlock()
		c.log.Info("ignoring stale event", "id", e.JobID, "type", e.Type, "gen", e.Gen)
		// a superseded job still wrote its file; its key no longer
		// matters, so remove it unless the current entry owns it
		if e.Type == transfer.EventComplete && job.Dest != cur {
			c.store.Delete(job.Dest)
		}
		return
	}

	switch state {
	case data.JobSucceeded:
		c.entry.Exists = true
		c.prevPath = c.entry.Path
		c.res = data.Resolution{Status: data.StatusCached, Path: c.entry.Path}
		c.downloading = false
		c.job = job
		c.log.Info("download complete", "id", job.ID, "path", job.Dest)
	case data.JobFailed:
		c.store.Delete(job.Dest)
		c.downloading = false
		c.log.Warn("download failed", "id", job.ID, "source", job.Source, "err", e.Err)
		res, _ := c.tryFromLocked(context.Background(), c.chainIdx+1)
		c.res = res
	case data.JobCancelled:
		c.store.Delete(job.Dest)
		c.downloading = false
		c.log.Info("download cancelled", "id", job.ID)
	case data.JobInProgress:
		c.job = job
	}

	c.notifyLocked()
	c.mu.Unlock()
}

// persistLocked mirrors the job snapshot into the history repo.
func (c *Coordinator) persistLocked(job *data.Job) {
	if c.jobs == nil {
		return
	}
	snapshot := job.Clone()
	if _, err := c.jobs.Update(context.Background(), snapshot.ID, func(j *data.Job) error {
		j.State = snapshot.State
		j.BytesWritten = snapshot.BytesWritten
		j.ContentLength = snapshot.ContentLength
		return nil
	}); err != nil {
		c.log.Error("persist job", "id", snapshot.ID, "err", err)
	}
}
