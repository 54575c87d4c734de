package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blobcache/blobcache/internal/data"
)

func TestInMemoryJobRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("add assigns id and clones", func(t *testing.T) {
		r := NewInMemoryJobRepo()
		j, err := r.Add(ctx, &data.Job{Source: "https://a/b.png", Dest: "/cache/a/b", State: data.JobPending, CreatedAt: time.Now()})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if j.ID == "" {
			t.Fatalf("no id assigned")
		}

		j.State = data.JobFailed // mutating the returned clone must not touch the store
		got, err := r.Get(ctx, j.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.State != data.JobPending {
			t.Fatalf("stored job mutated through clone: %v", got.State)
		}
	})

	t.Run("update mutates under lock", func(t *testing.T) {
		r := NewInMemoryJobRepo()
		j, _ := r.Add(ctx, &data.Job{Source: "s", Dest: "d", State: data.JobPending})
		updated, err := r.Update(ctx, j.ID, func(job *data.Job) error {
			job.State = data.JobInProgress
			job.BytesWritten = 42
			job.ContentLength = 100
			return nil
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.State != data.JobInProgress || updated.BytesWritten != 42 {
			t.Fatalf("unexpected update result: %+v", updated)
		}
		got, _ := r.Get(ctx, j.ID)
		if got.State != data.JobInProgress || got.ContentLength != 100 {
			t.Fatalf("update not persisted: %+v", got)
		}
	})

	t.Run("update propagates mutate error", func(t *testing.T) {
		r := NewInMemoryJobRepo()
		j, _ := r.Add(ctx, &data.Job{Source: "s", Dest: "d", State: data.JobPending})
		boom := errors.New("boom")
		if _, err := r.Update(ctx, j.ID, func(*data.Job) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected mutate error, got %v", err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		r := NewInMemoryJobRepo()
		if _, err := r.Get(ctx, "nope"); !errors.Is(err, data.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := r.Update(ctx, "nope", nil); !errors.Is(err, data.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list returns all jobs", func(t *testing.T) {
		r := NewInMemoryJobRepo()
		for i := 0; i < 3; i++ {
			if _, err := r.Add(ctx, &data.Job{Source: "s", Dest: "d"}); err != nil {
				t.Fatalf("add: %v", err)
			}
		}
		jobs, err := r.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(jobs) != 3 {
			t.Fatalf("len(jobs) = %d", len(jobs))
		}
	})
}
