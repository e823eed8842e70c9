// Package cache implements the primer mirror: dotted-path resolution
// against local disk, lazy bundle installation, and conditional refresh
// against the remote origin.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/starford/primer/internal/apperr"
	"github.com/starford/primer/internal/compact"
	"github.com/starford/primer/internal/fetch"
	"github.com/starford/primer/internal/manifest"
	"github.com/starford/primer/internal/meta"
	"github.com/starford/primer/internal/storage"
)

// DefaultConcurrency bounds simultaneous in-flight fetches per batch.
const DefaultConcurrency = 20

// Cache coordinates the mirrored bundle tree. Resolution never touches
// the network; installation and refresh go through the registry service.
type Cache struct {
	store    storage.Provider
	registry *manifest.Service
	client   *fetch.Client
	metas    *meta.Store
	logger   *slog.Logger
	limit    int
	now      func() time.Time
}

// New creates a Cache. limit bounds concurrent fetches per batch; a
// non-positive value selects DefaultConcurrency.
func New(store storage.Provider, registry *manifest.Service, client *fetch.Client, metas *meta.Store, limit int, logger *slog.Logger) *Cache {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Cache{
		store:    store,
		registry: registry,
		client:   client,
		metas:    metas,
		logger:   logger,
		limit:    limit,
		now:      time.Now,
	}
}

// Resolve returns the content of the first existing candidate for the
// dotted segments: <segments>/index.md, then <segments joined>.md.
func (c *Cache) Resolve(segments []string) ([]byte, error) {
	for _, rel := range candidatePaths(segments) {
		ok, err := c.store.Exists(rel)
		if err != nil || !ok {
			continue
		}
		data, err := c.store.Read(rel)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		return data, nil
	}
	return nil, fmt.Errorf("cache: %s: %w", strings.Join(segments, "."), apperr.ErrNotFound)
}

// ResolvePath is Resolve returning the file's absolute location instead
// of its content.
func (c *Cache) ResolvePath(segments []string) (string, error) {
	for _, rel := range candidatePaths(segments) {
		ok, err := c.store.Exists(rel)
		if err != nil || !ok {
			continue
		}
		return c.store.Path(rel)
	}
	return "", fmt.Errorf("cache: %s: %w", strings.Join(segments, "."), apperr.ErrNotFound)
}

// Installed returns the bundles recorded as installed, sorted.
func (c *Cache) Installed() []string {
	return c.metas.Read().Installed()
}

// candidatePaths lists the relative paths a query can resolve to, in
// resolution order.
func candidatePaths(segments []string) []string {
	joined := path.Join(segments...)
	if joined == "" || joined == "." {
		return nil
	}
	file := joined
	if path.Ext(file) == "" {
		file += ".md"
	}
	return []string{path.Join(joined, "index.md"), file}
}

// commit records a batch's outcome: compact index regeneration followed
// by the single-writer merge into the meta document.
func (c *Cache) commit(name string, etags map[string]string) error {
	if err := c.regenerateCompact(name); err != nil {
		return err
	}
	return c.metas.Update(func(m *meta.Meta) {
		m.MergeBundle(name, c.now().UTC(), etags)
	})
}

// regenerateCompact rewrites the bundle's compact index. A bundle still
// missing its root index file has nothing to summarize yet.
func (c *Cache) regenerateCompact(name string) error {
	content, err := compact.Generate(c.store, name)
	if err != nil {
		return err
	}
	if content == nil {
		return nil
	}
	return c.store.Write(path.Join(name, compact.FileName), content)
}
