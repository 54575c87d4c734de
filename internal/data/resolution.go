package data

import (
	"encoding/json"
	"io"
)

// ResolutionStatus is the externally observable outcome of a cache
// lookup for the current desired resource.
type ResolutionStatus string

const (
	// StatusLocal means the resource is not remote; the consumer
	// already has it.
	StatusLocal ResolutionStatus = "Local"
	// StatusCached means a valid local copy exists at Resolution.Path.
	StatusCached ResolutionStatus = "Cached"
	// StatusDownloading means a fetch is in flight.
	StatusDownloading ResolutionStatus = "Downloading"
	// StatusUnavailable means the resource could not be resolved and no
	// local copy exists.
	StatusUnavailable ResolutionStatus = "Unavailable"
)

// Resolution is what the presentation layer consumes. Path is only set
// when Status is StatusCached.
type Resolution struct {
	Status ResolutionStatus `json:"status"`
	Path   string           `json:"path,omitempty"`
}

func (r *Resolution) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(r) }

// Entry describes one on-disk cache slot for a derived key. Exists is
// only flipped to true after a job for the same key succeeds, or after
// a stat confirms a prior success.
type Entry struct {
	Dir    string `json:"dir"`
	Key    string `json:"key"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}
