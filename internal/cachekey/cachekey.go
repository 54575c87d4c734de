// Package cachekey derives deterministic cache keys from resource
// locators. Two locators that agree on path and on the query parameters
// selected by the key policy always land on the same key.
package cachekey

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/blobcache/blobcache/internal/data"
)

// Derive parses the locator and returns the storage subdirectory (the
// locator's host) and the cache key: a SHA-1 hex digest of the identity
// string plus the file extension recovered from the path.
//
// The identity string is the path component with the policy-selected
// query contribution appended. When the path carries no extension the
// key is just the bare digest; no trailing dot is emitted.
func Derive(locator string, policy data.KeyPolicy) (dir, key string, err error) {
	if !policy.Valid() {
		return "", "", data.ErrBadPolicy
	}
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil || u.Host == "" || !u.IsAbs() {
		return "", "", fmt.Errorf("%w: %q", data.ErrInvalidLocator, locator)
	}

	identity := u.EscapedPath()
	switch policy.Mode {
	case data.KeyAll:
		identity += u.RawQuery
	case data.KeyNamed:
		q := u.Query()
		for _, name := range policy.Params {
			if !q.Has(name) {
				continue
			}
			identity += name + "=" + q.Get(name)
		}
	}

	sum := sha1.Sum([]byte(identity))
	key = hex.EncodeToString(sum[:])
	if ext := extension(u.EscapedPath()); ext != "" {
		key += "." + ext
	}
	return u.Host, key, nil
}

// extension returns the substring after the last '.' in path, or ""
// when the path has no dot.
func extension(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return ""
	}
	return path[i+1:]
}
