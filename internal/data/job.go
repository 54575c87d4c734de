package data

import (
	"encoding/json"
	"io"
	"time"
)

// JobState tracks the lifecycle of a single fetch.
// Pending -> InProgress -> {Succeeded, Failed}, or Cancelled from
// either non-terminal state.
type JobState string

const (
	JobPending    JobState = "Pending"
	JobInProgress JobState = "InProgress"
	JobSucceeded  JobState = "Succeeded"
	JobFailed     JobState = "Failed"
	JobCancelled  JobState = "Cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Job is a single asynchronous fetch of Source into Dest. Gen is the
// coordinator generation that started it; completions from stale
// generations are discarded.
type Job struct {
	ID            string    `json:"id"`
	Gen           uint64    `json:"gen"`
	Source        string    `json:"source"`
	Dest          string    `json:"dest"`
	State         JobState  `json:"state"`
	BytesWritten  int64     `json:"bytesWritten"`
	ContentLength int64     `json:"contentLength"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Jobs []*Job

func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	return &c
}

func (j Jobs) Clone() Jobs {
	out := make(Jobs, 0, len(j))
	for _, job := range j {
		out = append(out, job.Clone())
	}
	return out
}

func (j *Job) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(j) }

func (j *Jobs) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(j) }
