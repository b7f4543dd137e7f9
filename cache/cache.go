// Package cache implements the content-addressed payload cache and the
// concurrent downloader described by spec.md §4.6: a flat
// <cache>/<PackageKey>/<payloadBasename> layout with SHA-256 verification,
// resumable HTTP transfer, bounded retries, and a worker pool that can be
// cancelled mid-run.
package cache

import (
	"os"
	"path/filepath"

	"github.com/vsprovision/vsprovision/errors"
	"github.com/vsprovision/vsprovision/manifest"
)

// Cache is rooted at a single directory; every payload lives under
// <root>/<PackageKey>/<payloadBasename>.
type Cache struct {
	root string
}

// New returns a Cache rooted at "dir", creating it if necessary.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating cache directory %s", dir)
	}
	return &Cache{root: dir}, nil
}

// Root returns the cache's root directory.
func (c *Cache) Root() string { return c.root }

// Path returns the on-disk path a payload of "key" would be cached at.
func (c *Cache) Path(key manifest.PackageKey, payload manifest.Payload) string {
	return filepath.Join(c.root, string(key), payload.Basename())
}

// Mkdir ensures the package-key subdirectory for "key" exists.
func (c *Cache) Mkdir(key manifest.PackageKey) (string, error) {
	dir := filepath.Join(c.root, string(key))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "creating cache directory %s", dir)
	}
	return dir, nil
}

// Evict removes a single payload's cache entry, e.g. after a hash mismatch.
func (c *Cache) Evict(key manifest.PackageKey, payload manifest.Payload) error {
	err := os.Remove(c.Path(key, payload))
	if err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}

// Clean removes the entire cache directory's contents.
func (c *Cache) Clean() error {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return errors.WithStack(err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(c.root, entry.Name())); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
