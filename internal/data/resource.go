package data

import (
	"encoding/json"
	"io"
	"strings"
)

// KeyMode selects which query parameters contribute to a resource's
// cache identity.
type KeyMode string

const (
	// KeyNone ignores the query string entirely.
	KeyNone KeyMode = "none"
	// KeyAll folds the full query string into the identity.
	KeyAll KeyMode = "all"
	// KeyNamed folds only the listed parameters, in the order given.
	KeyNamed KeyMode = "named"
)

// KeyPolicy controls cache-key derivation for a resource. Params is only
// consulted when Mode is KeyNamed.
type KeyPolicy struct {
	Mode   KeyMode  `json:"mode"`
	Params []string `json:"params,omitempty"`
}

// PolicyNone is the zero-config policy: query parameters do not
// participate in identity.
var PolicyNone = KeyPolicy{Mode: KeyNone}

// Valid reports whether the policy mode is one of the known modes.
func (p KeyPolicy) Valid() bool {
	switch p.Mode {
	case KeyNone, KeyAll, KeyNamed:
		return true
	}
	return false
}

// Resource is a desired remote resource: an absolute locator plus the
// policy governing its cache identity. Immutable once handed to a
// coordinator.
type Resource struct {
	Locator string    `json:"url"`
	Policy  KeyPolicy `json:"keyPolicy"`
}

// Remote reports whether the locator actually names a remote resource.
// Empty or whitespace-only locators resolve Local without touching the
// cache or the network.
func (r Resource) Remote() bool {
	return strings.TrimSpace(r.Locator) != ""
}

func (r *Resource) FromJSON(rd io.Reader) error { return json.NewDecoder(rd).Decode(r) }

func (r *Resource) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(r) }
