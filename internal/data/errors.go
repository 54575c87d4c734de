package data

import "errors"

var (
	// ErrInvalidLocator marks a locator that could not be parsed into
	// host and path components. Resolution falls back to Local.
	ErrInvalidLocator = errors.New("invalid resource locator")
	// ErrBadPolicy marks an unknown key-policy mode.
	ErrBadPolicy = errors.New("invalid key policy")
	// ErrNotFound is returned by repositories for unknown job IDs.
	ErrNotFound = errors.New("job not found")
	// ErrDirCreate marks a failed storage-directory creation. Fatal for
	// the current attempt only; resolution degrades to Unavailable.
	ErrDirCreate = errors.New("storage directory creation failed")
	// ErrDownload marks a failed transfer. The partial file is deleted
	// before the failure surfaces as Unavailable.
	ErrDownload = errors.New("download failed")
	// ErrNoNetwork marks a download attempt gated off by connectivity.
	ErrNoNetwork = errors.New("network unavailable")
)
