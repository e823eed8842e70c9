package cache

import (
	"context"
	"path"
	"strings"

	"github.com/starford/primer/internal/fuzzy"
)

const (
	// maxSuggestions caps the total suggestions for one query.
	maxSuggestions = 3
	// maxDistance is the edit-distance ceiling for a candidate to count
	// as similar.
	maxDistance = 2
)

// SuggestSimilar proposes up to three alternatives for a query that did
// not resolve: sub-paths of the named bundle first, then bundle names
// close to the whole query. It never fails; without a usable registry
// it degrades to an empty list.
func (c *Cache) SuggestSimilar(ctx context.Context, segments []string) []string {
	out := []string{}
	if len(segments) == 0 {
		return out
	}
	man, err := c.registry.Get(ctx)
	if err != nil {
		return out
	}
	query := strings.Join(segments, ".")

	seen := map[string]bool{}
	add := func(s string) {
		if len(out) < maxSuggestions && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	// Sub-paths of the named bundle come first: a typo after the bundle
	// name is the likeliest miss.
	if bundle, ok := man.Bundles[segments[0]]; ok {
		for _, f := range bundle.Files {
			flat := flatten(segments[0], f)
			if strings.Contains(flat, query) || fuzzy.Distance(flat, query) <= maxDistance {
				add(flat)
			}
		}
	}
	for _, name := range man.Names() {
		if fuzzy.Distance(name, query) <= maxDistance {
			add(name)
		}
	}
	return out
}

// flatten converts a bundle-relative file path into its dotted query
// form: alpha + guides/setup.md -> alpha.guides.setup. The bundle's own
// index file flattens to the bare bundle name.
func flatten(bundle, file string) string {
	name := strings.TrimSuffix(file, path.Ext(file))
	name = strings.TrimSuffix(name, "/index")
	if name == "index" {
		return bundle
	}
	return bundle + "." + strings.ReplaceAll(name, "/", ".")
}
