package cache

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"golang.org/x/sync/errgroup"

	"github.com/starford/primer/internal/apperr"
	"github.com/starford/primer/internal/fetch"
)

// Ensure materializes a bundle: every file in its registry entry that is
// missing locally is fetched and written. Files already present are
// never re-fetched; freshness belongs to the refresh operations.
// Partial progress survives a failed call, so retrying converges.
func (c *Cache) Ensure(ctx context.Context, name string) error {
	man, err := c.registry.Get(ctx)
	if err != nil {
		return err
	}
	bundle, ok := man.Bundles[name]
	if !ok {
		return fmt.Errorf("cache: bundle %s: %w", name, apperr.ErrNotFound)
	}

	var missing []string
	for _, f := range bundle.Files {
		present, err := c.store.Exists(path.Join(name, f))
		if err != nil {
			return err
		}
		if !present {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	c.logger.Info("cache: installing bundle",
		slog.String("bundle", name), slog.Int("files", len(missing)))

	// Missing files are always fetched unconditionally: a stored etag
	// without the file on disk would turn a 304 into a hole.
	results := c.fetchBatch(ctx, name, missing, func(string) string { return "" })
	etags, changed, firstErr := foldResults(results)
	if changed > 0 {
		if err := c.commit(name, etags); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// fileResult is the outcome of one file's fetch within a batch.
type fileResult struct {
	file string
	res  *fetch.Result
	err  error
}

// fetchBatch downloads files for one bundle with bounded concurrency.
// Each worker writes its own file; failures are collected rather than
// cancelling siblings, so one bad file cannot abort the rest.
func (c *Cache) fetchBatch(ctx context.Context, bundle string, files []string, etagFor func(string) string) []fileResult {
	results := make([]fileResult, len(files))
	var g errgroup.Group
	g.SetLimit(c.limit)
	for i, f := range files {
		g.Go(func() error {
			res, err := c.client.Get(ctx, c.registry.FileURL(bundle, f), etagFor(f))
			if err != nil {
				results[i] = fileResult{file: f, err: err}
				return nil
			}
			if res.Status == fetch.Changed {
				if err := c.store.Write(path.Join(bundle, f), res.Content); err != nil {
					results[i] = fileResult{file: f, err: err}
					return nil
				}
			}
			results[i] = fileResult{file: f, res: res}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// foldResults reduces a batch to what the meta merge needs: etags of
// changed files, how many files were written, and the first failure.
func foldResults(results []fileResult) (etags map[string]string, changed int, firstErr error) {
	etags = map[string]string{}
	for _, r := range results {
		switch {
		case r.err != nil:
			if firstErr == nil {
				firstErr = r.err
			}
		case r.res.Status == fetch.Changed:
			etags[r.file] = r.res.ETag
			changed++
		}
	}
	return etags, changed, firstErr
}
