package repo

import (
	"context"

	"github.com/blobcache/blobcache/internal/data"
)

// JobRepo records download job history.
type JobRepo interface {
	JobReader
	JobWriter
}

type JobReader interface {
	List(ctx context.Context) (data.Jobs, error)
	Get(ctx context.Context, id string) (*data.Job, error)
}

type JobWriter interface {
	Add(ctx context.Context, job *data.Job) (*data.Job, error)
	// Update applies mutate to the stored job under the repository's
	// concurrency control and returns the updated snapshot.
	Update(ctx context.Context, id string, mutate func(*data.Job) error) (*data.Job, error)
}
