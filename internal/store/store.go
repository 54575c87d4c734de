// Package store manages the on-disk cache namespace. Entries live at
// {baseDir}/{storageDir}/{cacheKey}; storageDir is the resource's host,
// so entries for one host share a subdirectory.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/blobcache/blobcache/internal/data"
)

// tagName and tagContent follow the Cache Directory Tagging
// Specification; backup tools that honor it skip tagged directories.
const (
	tagName    = "CACHEDIR.TAG"
	tagContent = "Signature: 8a477f597d28d172789f06886806bc55\n# This directory is a blobcache cache. Its contents can be re-fetched.\n"
)

// Store performs blocking filesystem I/O for cache entries. Callers are
// expected to invoke it off any latency-sensitive path.
type Store struct {
	baseDir string
	log     *slog.Logger
}

func New(baseDir string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{baseDir: baseDir, log: log}
}

// BaseDir returns the root of the cache namespace.
func (s *Store) BaseDir() string { return s.baseDir }

// EntryPath returns the canonical location for a (dir, key) pair.
func (s *Store) EntryPath(dir, key string) string {
	return filepath.Join(s.baseDir, dir, key)
}

// Exists stats the entry path. found is true only for a regular file;
// a directory squatting on the path does not count as a cache hit.
func (s *Store) Exists(dir, key string) (path string, found bool) {
	path = s.EntryPath(dir, key)
	info, err := os.Stat(path)
	if err != nil {
		return path, false
	}
	return path, info.Mode().IsRegular()
}

// EnsureDir creates the storage subdirectory if absent and drops a
// CACHEDIR.TAG into it so backup tools exclude the tree. Idempotent.
func (s *Store) EnsureDir(dir string) error {
	p := filepath.Join(s.baseDir, dir)
	if err := os.MkdirAll(p, 0o755); err != nil {
		return fmt.Errorf("%w: %v", data.ErrDirCreate, err)
	}
	tag := filepath.Join(p, tagName)
	if _, err := os.Stat(tag); err == nil {
		return nil
	}
	if err := os.WriteFile(tag, []byte(tagContent), 0o644); err != nil {
		return fmt.Errorf("%w: %v", data.ErrDirCreate, err)
	}
	return nil
}

// Delete removes the file at path if present. Best-effort: failures are
// logged, never surfaced, since the file may already be gone or still
// held open by a reader.
func (s *Store) Delete(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := os.Remove(path); err != nil {
		s.log.Warn("stale entry removal failed", "path", path, "err", err)
	}
}
