package cache

import (
	"context"
	"log/slog"
	"path"
)

// RefreshAll conditionally refreshes every bundle recorded in the meta
// document, sequentially, and returns the names whose content actually
// changed. It never widens the local footprint: registry bundles that
// were never installed are left alone. On failure the names refreshed
// so far are still returned.
func (c *Cache) RefreshAll(ctx context.Context) ([]string, error) {
	changed := []string{}
	for _, name := range c.metas.Read().Installed() {
		didChange, err := c.refreshBundle(ctx, name)
		if didChange {
			changed = append(changed, name)
		}
		if err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// Refresh synchronously refreshes one bundle and reports whether any of
// its files changed.
func (c *Cache) Refresh(ctx context.Context, name string) (bool, error) {
	return c.refreshBundle(ctx, name)
}

// RefreshInBackground starts a detached conditional refresh of one
// bundle. Nothing is reported back: errors are logged and dropped since
// a stale mirror beats a crashed background task.
func (c *Cache) RefreshInBackground(name string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("cache: background refresh panic",
					slog.String("bundle", name), slog.Any("panic", r))
			}
		}()
		changed, err := c.refreshBundle(context.Background(), name)
		if err != nil {
			c.logger.Warn("cache: background refresh failed",
				slog.String("bundle", name), slog.String("error", err.Error()))
			return
		}
		if changed {
			c.logger.Info("cache: bundle refreshed in background", slog.String("bundle", name))
		}
	}()
}

// refreshBundle fetches every file in the bundle's registry entry using
// its stored validator and rewrites only what changed. A bundle absent
// from the registry is a silent no-op.
func (c *Cache) refreshBundle(ctx context.Context, name string) (bool, error) {
	man, err := c.registry.Get(ctx)
	if err != nil {
		return false, err
	}
	bundle, ok := man.Bundles[name]
	if !ok {
		return false, nil
	}

	m := c.metas.Read()
	etagFor := func(f string) string {
		// A conditional request is only sound while the mirrored copy
		// still exists; a 304 against a missing file would leave a hole.
		present, err := c.store.Exists(path.Join(name, f))
		if err != nil || !present {
			return ""
		}
		return m.ETagFor(name, f)
	}

	results := c.fetchBatch(ctx, name, bundle.Files, etagFor)
	etags, changed, firstErr := foldResults(results)
	if changed > 0 {
		if err := c.commit(name, etags); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return changed > 0, firstErr
}
