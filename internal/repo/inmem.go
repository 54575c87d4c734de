package repo

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/blobcache/blobcache/internal/data"
)

type InMemoryJobRepo struct {
	mu   sync.RWMutex
	jobs data.Jobs
}

func NewInMemoryJobRepo() *InMemoryJobRepo {
	return &InMemoryJobRepo{jobs: make(data.Jobs, 0)}
}

func (r *InMemoryJobRepo) List(ctx context.Context) (data.Jobs, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jobs.Clone(), nil
}

func (r *InMemoryJobRepo) Get(ctx context.Context, id string) (*data.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, err := r.findByID(id)
	if err != nil {
		return nil, err
	}
	return j.Clone(), nil
}

func (r *InMemoryJobRepo) Add(ctx context.Context, job *data.Job) (*data.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs = append(r.jobs, job.Clone())
	return job.Clone(), nil
}

func (r *InMemoryJobRepo) Update(ctx context.Context, id string, mutate func(*data.Job) error) (*data.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, err := r.findByID(id)
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		if err := mutate(j); err != nil {
			return nil, err
		}
	}
	return j.Clone(), nil
}

func (r *InMemoryJobRepo) findByID(id string) (*data.Job, error) {
	for _, j := range r.jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, data.ErrNotFound
}
