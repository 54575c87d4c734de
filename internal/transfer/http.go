package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blobcache/blobcache/internal/data"
	"github.com/blobcache/blobcache/internal/metrics"
)

const partSuffix = ".part"

// HTTP is a Transport that fetches over plain HTTP(S). Bytes land on a
// temporary .part path and are renamed into place on success, so a
// concurrent reader never observes a partially written entry.
type HTTP struct {
	client *http.Client
	log    *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewHTTP builds an HTTP transport. timeout bounds the whole transfer,
// headers included; zero means no limit.
func NewHTTP(timeout time.Duration, log *slog.Logger) *HTTP {
	if log == nil {
		log = slog.Default()
	}
	return &HTTP{
		client:  &http.Client{Timeout: timeout},
		log:     log,
		cancels: make(map[string]context.CancelFunc),
	}
}

var _ Transport = (*HTTP)(nil)

// Start schedules the fetch and returns its identifier. The transfer
// runs on its own goroutine; all outcomes are reported through rep.
func (t *HTTP) Start(ctx context.Context, job *data.Job, rep Reporter) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	req, err := http.NewRequest(http.MethodGet, job.Source, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", data.ErrDownload, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.mu.Lock()
	t.cancels[job.ID] = cancel
	t.mu.Unlock()

	go t.run(runCtx, req.WithContext(runCtx), job, rep)
	return job.ID, nil
}

// Cancel asks the transfer identified by id to stop. The destination
// file is not assumed to be cleaned up here; failure and cancel paths
// remove the .part file, and the coordinator deletes defensively.
func (t *HTTP) Cancel(id string) error {
	t.mu.Lock()
	cancel, ok := t.cancels[id]
	t.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	cancel()
	return nil
}

func (t *HTTP) run(ctx context.Context, req *http.Request, job *data.Job, rep Reporter) {
	started := time.Now()
	outcome := "failed"
	defer func() {
		t.mu.Lock()
		delete(t.cancels, job.ID)
		t.mu.Unlock()
		metrics.TransferDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
	}()

	var part string
	fail := func(err error) {
		if part != "" {
			_ = os.Remove(part)
		}
		if ctx.Err() == context.Canceled {
			outcome = "cancelled"
			rep.Report(Event{JobID: job.ID, Gen: job.Gen, Type: EventCancelled})
			return
		}
		t.log.Error("transfer failed", "job", job.ID, "source", job.Source, "err", err)
		rep.Report(Event{JobID: job.ID, Gen: job.Gen, Type: EventFailed, Err: err})
	}

	resp, err := t.client.Do(req)
	if err != nil {
		fail(fmt.Errorf("%w: %v", data.ErrDownload, err))
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fail(fmt.Errorf("%w: http %d", data.ErrDownload, resp.StatusCode))
		return
	}

	total := resp.ContentLength
	rep.Report(Event{JobID: job.ID, Gen: job.Gen, Type: EventBegin, Progress: &Progress{Total: total}})

	// a unique temp name per transfer keeps concurrent fetches of the
	// same key from interleaving writes before the rename
	out, err := os.CreateTemp(filepath.Dir(job.Dest), filepath.Base(job.Dest)+partSuffix+"*")
	if err != nil {
		fail(fmt.Errorf("%w: %v", data.ErrDownload, err))
		return
	}
	part = out.Name()

	var written int64
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				_ = out.Close()
				fail(fmt.Errorf("%w: %v", data.ErrDownload, werr))
				return
			}
			written += int64(n)
			rep.Report(Event{JobID: job.ID, Gen: job.Gen, Type: EventProgress, Progress: &Progress{Written: written, Total: total}})
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = out.Close()
			fail(fmt.Errorf("%w: %v", data.ErrDownload, rerr))
			return
		}
	}

	if err := out.Close(); err != nil {
		fail(fmt.Errorf("%w: %v", data.ErrDownload, err))
		return
	}
	if err := os.Rename(part, job.Dest); err != nil {
		fail(fmt.Errorf("%w: %v", data.ErrDownload, err))
		return
	}
	outcome = "succeeded"
	rep.Report(Event{JobID: job.ID, Gen: job.Gen, Type: EventComplete, Progress: &Progress{Written: written, Total: total}})
}
