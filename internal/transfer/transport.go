package transfer

import (
	"context"
	"errors"

	"github.com/blobcache/blobcache/internal/data"
)

// ErrNotFound is returned when the transport cannot locate a transfer
// by ID, typically because it already reached a terminal state.
var ErrNotFound = errors.New("transfer not found")

// Transport moves a job's source to its destination asynchronously.
// Start returns the transfer identifier once the fetch is scheduled and
// streams Begin, zero or more Progress, and exactly one terminal event
// through rep. Cancel is best-effort and non-blocking: it signals
// intent to stop without guaranteeing the transfer halts first.
type Transport interface {
	Start(ctx context.Context, job *data.Job, rep Reporter) (string, error)
	Cancel(id string) error
}
